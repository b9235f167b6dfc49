package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/stats"
)

var (
	colorSuccess = lipgloss.Color("#50C878")
	colorWarning = lipgloss.Color("#FFB347")
	colorError   = lipgloss.Color("#FF6961")
	colorMuted   = lipgloss.Color("#808080")
	colorBorder  = lipgloss.Color("#3A3A5C")
	colorTitle   = lipgloss.Color("#C4B5FD")

	styleTitle  = lipgloss.NewStyle().Bold(true).Foreground(colorTitle)
	styleHeader = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	styleCell   = lipgloss.NewStyle().Padding(0, 1)
	styleDim    = lipgloss.NewStyle().Foreground(colorMuted)
	styleOK     = lipgloss.NewStyle().Foreground(colorSuccess).Bold(true)
	styleWarn   = lipgloss.NewStyle().Foreground(colorWarning).Bold(true)
	styleErr    = lipgloss.NewStyle().Foreground(colorError).Bold(true)
)

// newTable returns a bordered table with padded cells and a bold header.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorBorder)).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleHeader
			}
			return styleCell
		})
}

func printTitle(w io.Writer, title string) {
	_, _ = fmt.Fprintln(w, styleTitle.Render(title))
}

func printTable(w io.Writer, t *table.Table) {
	_, _ = fmt.Fprintln(w, t.Render())
}

// rateStyle colours a success rate: green from 90, amber from 70, red below.
func rateStyle(rate float64) lipgloss.Style {
	switch {
	case rate >= 90:
		return styleOK
	case rate >= 70:
		return styleWarn
	default:
		return styleErr
	}
}

func formatRate(rate float64) string {
	return strconv.FormatFloat(rate, 'f', 1, 64) + "%"
}

func coloredRate(rate float64) string {
	return rateStyle(rate).Render(formatRate(rate))
}

func statusLabel(s domain.Status) string {
	return s.Glyph() + " " + string(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return formatTime(*t)
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func formatPR(n *int) string {
	if n == nil {
		return "-"
	}
	return "#" + strconv.Itoa(*n)
}

func summaryLines(s stats.Summary) []string {
	repos := "-"
	if len(s.Repositories) > 0 {
		repos = strings.Join(s.Repositories, ", ")
	}
	lines := []string{
		fmt.Sprintf("Pipelines:      %d", s.TotalPipelines),
		fmt.Sprintf("Executions:     %d (%d successful, %d failed)", s.TotalExecutions, s.SuccessfulExecutions, s.FailedExecutions),
		fmt.Sprintf("Success rate:   %s", coloredRate(s.OverallSuccessRate)),
		fmt.Sprintf("Repositories:   %s", repos),
		fmt.Sprintf("Last updated:   %s", formatTime(s.LastUpdated)),
	}
	if s.Filtered {
		lines = append(lines, styleDim.Render("(filtered)"))
	}
	return lines
}

func pipelinesTable(rollups []domain.PipelineRollup) *table.Table {
	t := newTable("Pipeline", "Executions", "Successful", "Failed", "Success rate", "Last seen")
	for _, r := range rollups {
		t.Row(
			r.Name,
			strconv.Itoa(r.TotalExecutions),
			strconv.Itoa(r.SuccessfulExecutions),
			strconv.Itoa(r.FailedExecutions),
			coloredRate(r.SuccessRate),
			formatTime(r.LastSeen),
		)
	}
	return t
}

func taskStatsTable(tasks []stats.TaskStat) *table.Table {
	t := newTable("Task", "Runs", "Successful", "Failed", "Skipped", "Success rate")
	for _, ts := range tasks {
		t.Row(
			ts.Name,
			strconv.Itoa(ts.Total),
			strconv.Itoa(ts.Successful),
			strconv.Itoa(ts.Failed),
			strconv.Itoa(ts.Skipped),
			coloredRate(ts.SuccessRate),
		)
	}
	return t
}

func taskSummaryTable(tasks []stats.TaskSummary) *table.Table {
	t := newTable("Task", "Runs", "Successful", "Failed", "Skipped", "Success rate", "Pipelines")
	for _, ts := range tasks {
		t.Row(
			ts.Name,
			strconv.Itoa(ts.Total),
			strconv.Itoa(ts.Successful),
			strconv.Itoa(ts.Failed),
			strconv.Itoa(ts.Skipped),
			coloredRate(ts.SuccessRate),
			strings.Join(ts.Pipelines, ", "),
		)
	}
	return t
}

func executionsTable(execs []domain.ExecutionRecord) *table.Table {
	t := newTable("Parsed", "Pipeline", "Status", "Tasks", "Success rate", "Repository", "PR")
	for _, x := range execs {
		rate := "-"
		if x.SuccessRate != nil {
			rate = coloredRate(*x.SuccessRate)
		}
		t.Row(
			formatTime(x.ParsedAt),
			x.PipelineName,
			statusLabel(x.Status),
			fmt.Sprintf("%d/%d", x.SuccessfulTasks, x.TotalTasks),
			rate,
			orDash(x.Repository),
			formatPR(x.PRNumber),
		)
	}
	return t
}

func logsTable(entries []stats.LogEntry) *table.Table {
	taskLevel := len(entries) > 0 && entries[0].TaskLevel
	if taskLevel {
		t := newTable("Parsed", "Pipeline", "Task", "Task status", "Duration", "Logs")
		for _, e := range entries {
			t.Row(formatTime(e.ParsedAt), e.PipelineName, e.TaskName, statusLabel(e.TaskStatus), orDash(e.TaskDuration), orDash(e.LogsURL))
		}
		return t
	}
	t := newTable("Parsed", "Pipeline", "Run", "Status", "PR", "Logs")
	for _, e := range entries {
		t.Row(formatTime(e.ParsedAt), e.PipelineName, orDash(e.PipelineRunName), statusLabel(e.PipelineStatus), formatPR(e.PRNumber), orDash(e.LogsURL))
	}
	return t
}
