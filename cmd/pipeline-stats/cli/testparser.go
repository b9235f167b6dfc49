package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/parser"
	"github.com/spf13/cobra"
)

var testParserCmd = &cobra.Command{
	Use:   "test-parser <file|glob>...",
	Short: "Parse sample comment files and print what was extracted",
	Long: "Parse sample comment files and print what was extracted.\n" +
		"Arguments may be glob patterns, including ** (e.g. 'testdata/**/*.md').",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := expandPatterns(args)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		p := parser.New()
		for i, f := range files {
			if i > 0 {
				_, _ = fmt.Fprintln(out)
			}
			body, err := os.ReadFile(f)
			if err != nil {
				return err
			}
			printTitle(out, f)
			describeComment(out, p, string(body))
		}
		return nil
	},
}

// expandPatterns resolves each argument as a glob. Arguments without glob
// syntax must name an existing file.
func expandPatterns(args []string) ([]string, error) {
	var files []string
	for _, a := range args {
		matches, err := doublestar.FilepathGlob(a, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w", a, err)
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no files match %q", a)
		}
		files = append(files, matches...)
	}
	return files, nil
}

// previewSource stands in for the pull request a real sync would supply.
func previewSource() parser.Source {
	pr := 123
	id := int64(456)
	return parser.Source{
		PRNumber:   &pr,
		PRURL:      "https://github.com/test/repo/pull/123",
		CommentID:  &id,
		Repository: "test/repo",
	}
}

func describeComment(out io.Writer, p *parser.Parser, body string) {
	src := previewSource()
	rec, ok := p.Parse(body, src)
	if !ok {
		_, _ = fmt.Fprintln(out, styleWarn.Render("no pipeline summary in this comment"))
		return
	}

	_, _ = fmt.Fprintln(out, styleDim.Render(fmt.Sprintf(
		"placeholder source: %s PR #%d, comment %d (not fetched)", src.Repository, *src.PRNumber, *src.CommentID)))

	_, _ = fmt.Fprintf(out, "Pipeline:       %s\n", rec.PipelineName)
	if rec.PipelineRunName != "" {
		_, _ = fmt.Fprintf(out, "PipelineRun:    %s\n", rec.PipelineRunName)
	}
	_, _ = fmt.Fprintf(out, "Status:         %s\n", statusLabel(rec.Status))
	if rec.SuccessRate != nil {
		_, _ = fmt.Fprintf(out, "Success rate:   %s\n", formatRate(*rec.SuccessRate))
	}
	_, _ = fmt.Fprintf(out, "Tasks:          %d total, %d successful, %d failed, %d skipped\n",
		rec.TotalTasks, rec.SuccessfulTasks, rec.FailedTasks, rec.SkippedTasks)
	if rec.StartTime != nil {
		_, _ = fmt.Fprintf(out, "Start time:     %s\n", formatTimePtr(rec.StartTime))
	}
	if rec.Duration != "" {
		_, _ = fmt.Fprintf(out, "Duration:       %s\n", rec.Duration)
	}
	if rec.LogsURL != "" {
		_, _ = fmt.Fprintf(out, "Logs:           %s\n", rec.LogsURL)
	}
	if rec.TroubleshootingURL != "" {
		_, _ = fmt.Fprintf(out, "Troubleshooting: %s\n", rec.TroubleshootingURL)
	}
	if rec.RestartCommand != "" {
		_, _ = fmt.Fprintf(out, "Restart:        %s\n", rec.RestartCommand)
	}

	if len(rec.Tasks) == 0 {
		return
	}
	t := newTable("", "Task", "Duration", "Start", "Error")
	for _, task := range rec.Tasks {
		t.Row(taskGlyph(task.Status), task.Name, orDash(task.Duration), formatTimePtr(task.StartTime), orDash(task.ErrorMessage))
	}
	printTable(out, t)
}

func taskGlyph(s domain.Status) string {
	switch s {
	case domain.StatusSuccess:
		return styleOK.Render(s.Glyph())
	case domain.StatusFailed:
		return styleErr.Render(s.Glyph())
	default:
		return s.Glyph()
	}
}

func init() {
	rootCmd.AddCommand(testParserCmd)
}
