package cli

import (
	"encoding/json"
	"fmt"

	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/spf13/cobra"
)

var reposJSON bool

type repoRow struct {
	Repository string `json:"repository"`
	Polled     bool   `json:"polled"`
	Executions int    `json:"executions"`
}

var reposCmd = &cobra.Command{
	Use:   "repos",
	Short: "List polled repositories and repositories with recorded executions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := openEngine(cmd.Context())
		sum, err := eng.Summary(stats.SummaryFilter{})
		if err != nil {
			return err
		}

		rows, err := repoRows(eng, cfg.Poll.Repositories, sum.Repositories)
		if err != nil {
			return err
		}

		if reposJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rows)
		}

		t := newTable("Repository", "Polled", "Executions")
		for _, r := range rows {
			polled := styleDim.Render("no")
			if r.Polled {
				polled = styleOK.Render("yes")
			}
			t.Row(r.Repository, polled, fmt.Sprint(r.Executions))
		}
		printTable(cmd.OutOrStdout(), t)
		return nil
	},
}

// repoRows lists polled repositories first, in config order, then the
// remaining recorded ones.
func repoRows(eng *stats.Engine, polled, recorded []string) ([]repoRow, error) {
	rows := make([]repoRow, 0, len(polled)+len(recorded))
	seen := map[string]bool{}
	add := func(repo string, isPolled bool) error {
		if seen[repo] {
			return nil
		}
		seen[repo] = true
		s, err := eng.Summary(stats.SummaryFilter{Repository: repo})
		if err != nil {
			return err
		}
		rows = append(rows, repoRow{Repository: repo, Polled: isPolled, Executions: s.TotalExecutions})
		return nil
	}
	for _, r := range polled {
		if err := add(r, true); err != nil {
			return nil, err
		}
	}
	for _, r := range recorded {
		if err := add(r, false); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func init() {
	reposCmd.Flags().BoolVar(&reposJSON, "json", false, "print JSON")

	rootCmd.AddCommand(reposCmd)
}
