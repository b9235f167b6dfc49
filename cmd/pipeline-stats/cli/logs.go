package cli

import (
	"fmt"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/spf13/cobra"
)

var (
	logsPipeline   string
	logsRepository string
	logsStatus     string
	logsTask       string
	logsTaskStatus string
	logsLimit      int
	logsDetails    bool
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show log links for recorded executions or tasks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatusFlag("status", logsStatus)
		if err != nil {
			return err
		}
		taskStatus, err := parseStatusFlag("task-status", logsTaskStatus)
		if err != nil {
			return err
		}

		eng := openEngine(cmd.Context())
		out := cmd.OutOrStdout()

		entries, err := eng.Logs(stats.LogFilter{
			Pipeline:   logsPipeline,
			Repository: logsRepository,
			Status:     status,
			Task:       logsTask,
			TaskStatus: taskStatus,
			Limit:      logsLimit,
		})
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			_, _ = fmt.Fprintln(out, styleDim.Render("no log entries match"))
			return nil
		}

		printTable(out, logsTable(entries))

		if logsDetails {
			for _, e := range entries {
				if e.TroubleshootingURL == "" && e.RestartCommand == "" {
					continue
				}
				_, _ = fmt.Fprintln(out)
				printTitle(out, fmt.Sprintf("%s %s", e.PipelineName, formatTime(e.ParsedAt)))
				if e.TroubleshootingURL != "" {
					_, _ = fmt.Fprintf(out, "Troubleshooting: %s\n", e.TroubleshootingURL)
				}
				if e.RestartCommand != "" {
					_, _ = fmt.Fprintf(out, "Restart:         %s\n", e.RestartCommand)
				}
			}
		}
		return nil
	},
}

func init() {
	logsCmd.Flags().StringVar(&logsPipeline, "pipeline", "", "only this pipeline")
	logsCmd.Flags().StringVar(&logsRepository, "repository", "", "only this owner/repo")
	logsCmd.Flags().StringVar(&logsStatus, "status", "", "only executions with this status ("+domain.ValidStatusNames()+")")
	logsCmd.Flags().StringVar(&logsTask, "task", "", "one row per matching task with this name")
	logsCmd.Flags().StringVar(&logsTaskStatus, "task-status", "", "one row per task with this status")
	logsCmd.Flags().IntVar(&logsLimit, "limit", 10, "maximum rows, 0 for all")
	logsCmd.Flags().BoolVar(&logsDetails, "details", false, "print troubleshooting links and restart commands")

	rootCmd.AddCommand(logsCmd)
}
