package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/spf13/cobra"
)

var (
	statsPipeline   string
	statsRepository string
	statsStatus     string
	statsShowTasks  bool
	statsMinExec    int
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pipeline statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatusFlag("status", statsStatus)
		if err != nil {
			return err
		}

		eng := openEngine(cmd.Context())
		out := cmd.OutOrStdout()

		if statsPipeline != "" {
			return printPipeline(out, eng, statsPipeline, stats.PipelineFilter{
				Repository: statsRepository,
				Status:     status,
			})
		}

		sum, err := eng.Summary(stats.SummaryFilter{
			Repository:    statsRepository,
			Status:        status,
			MinExecutions: statsMinExec,
		})
		if err != nil {
			return err
		}
		printTitle(out, "Pipeline statistics")
		for _, l := range summaryLines(sum) {
			_, _ = fmt.Fprintln(out, l)
		}

		rollups, err := eng.Pipelines(stats.PipelineFilter{
			Repository:    statsRepository,
			MinExecutions: statsMinExec,
		})
		if err != nil {
			return err
		}
		if len(rollups) == 0 {
			_, _ = fmt.Fprintln(out, styleDim.Render("no pipelines match"))
			return nil
		}

		_, _ = fmt.Fprintln(out)
		printTable(out, pipelinesTable(rollups))

		if statsShowTasks {
			for _, r := range rollups {
				if len(r.Tasks) == 0 {
					continue
				}
				_, _ = fmt.Fprintln(out)
				printTitle(out, "Tasks of "+r.Name)
				printTable(out, taskStatsTable(stats.RankTasks(r)))
			}
		}
		return nil
	},
}

func printPipeline(out io.Writer, eng *stats.Engine, name string, f stats.PipelineFilter) error {
	r, ok, err := eng.Pipeline(name, f)
	if err != nil {
		return err
	}
	if !ok {
		_, _ = fmt.Fprintf(out, "no data for pipeline %q\n", name)
		return nil
	}

	printTitle(out, "Pipeline "+r.Name)
	_, _ = fmt.Fprintf(out, "Executions:     %d (%d successful, %d failed)\n", r.TotalExecutions, r.SuccessfulExecutions, r.FailedExecutions)
	_, _ = fmt.Fprintf(out, "Success rate:   %s\n", coloredRate(r.SuccessRate))
	_, _ = fmt.Fprintf(out, "First seen:     %s\n", formatTime(r.FirstSeen))
	_, _ = fmt.Fprintf(out, "Last seen:      %s\n", formatTime(r.LastSeen))
	_, _ = fmt.Fprintf(out, "Repositories:   %s\n", orDash(strings.Join(r.Repositories, ", ")))
	if f.Repository != "" || f.Status != "" {
		_, _ = fmt.Fprintln(out, styleDim.Render("(recomputed from filtered executions)"))
	}

	if len(r.Tasks) > 0 {
		_, _ = fmt.Fprintln(out)
		printTable(out, taskStatsTable(stats.RankTasks(r)))
	}
	return nil
}

func init() {
	statsCmd.Flags().StringVar(&statsPipeline, "pipeline", "", "show one pipeline in detail")
	statsCmd.Flags().StringVar(&statsRepository, "repository", "", "only count this owner/repo")
	statsCmd.Flags().StringVar(&statsStatus, "status", "", "only count executions with this status ("+domain.ValidStatusNames()+")")
	statsCmd.Flags().BoolVar(&statsShowTasks, "show-tasks", false, "list task statistics per pipeline")
	statsCmd.Flags().IntVar(&statsMinExec, "min-executions", 0, "hide pipelines with fewer executions")

	rootCmd.AddCommand(statsCmd)
}
