package cli

import (
	"fmt"

	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/spf13/cobra"
)

var (
	tasksTask       string
	tasksPipeline   string
	tasksRepository string
	tasksMinExec    int
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "Show task statistics across pipelines, least successful first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng := openEngine(cmd.Context())
		out := cmd.OutOrStdout()

		ts, err := eng.Tasks(stats.TaskFilter{
			Task:          tasksTask,
			Pipeline:      tasksPipeline,
			Repository:    tasksRepository,
			MinExecutions: tasksMinExec,
		})
		if err != nil {
			return err
		}
		if len(ts) == 0 {
			_, _ = fmt.Fprintln(out, styleDim.Render("no tasks match"))
			return nil
		}

		printTitle(out, "Task statistics")
		printTable(out, taskSummaryTable(ts))
		return nil
	},
}

func init() {
	tasksCmd.Flags().StringVar(&tasksTask, "task", "", "only this task name")
	tasksCmd.Flags().StringVar(&tasksPipeline, "pipeline", "", "only tasks of this pipeline")
	tasksCmd.Flags().StringVar(&tasksRepository, "repository", "", "only pipelines seen in this owner/repo")
	tasksCmd.Flags().IntVar(&tasksMinExec, "min-executions", 0, "skip pipelines with fewer executions")

	rootCmd.AddCommand(tasksCmd)
}
