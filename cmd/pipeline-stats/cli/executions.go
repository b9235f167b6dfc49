package cli

import (
	"fmt"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/spf13/cobra"
)

var (
	execPipeline   string
	execRepository string
	execStatus     string
	execLimit      int
)

var executionsCmd = &cobra.Command{
	Use:     "executions",
	Aliases: []string{"list-executions"},
	Short:   "List recorded executions, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatusFlag("status", execStatus)
		if err != nil {
			return err
		}

		eng := openEngine(cmd.Context())
		out := cmd.OutOrStdout()

		execs, err := eng.Executions(stats.ExecutionFilter{
			Pipeline:   execPipeline,
			Repository: execRepository,
			Status:     status,
			Limit:      execLimit,
		})
		if err != nil {
			return err
		}
		if len(execs) == 0 {
			_, _ = fmt.Fprintln(out, styleDim.Render("no executions match"))
			return nil
		}

		printTable(out, executionsTable(execs))
		return nil
	},
}

func init() {
	executionsCmd.Flags().StringVar(&execPipeline, "pipeline", "", "only this pipeline")
	executionsCmd.Flags().StringVar(&execRepository, "repository", "", "only this owner/repo")
	executionsCmd.Flags().StringVar(&execStatus, "status", "", "only this status ("+domain.ValidStatusNames()+")")
	executionsCmd.Flags().IntVar(&execLimit, "limit", 20, "maximum rows, 0 for all")

	rootCmd.AddCommand(executionsCmd)
}
