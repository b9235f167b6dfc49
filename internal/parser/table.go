package parser

import (
	"strings"

	"github.com/davarch/pipeline-stats/internal/domain"
)

// tableTasks reads tasks from a markdown table shaped as
// | status | task | start time | duration | ... |
// The body starts after a dash delimiter row and ends at the first line that
// does not start with a pipe.
func tableTasks(body string) []domain.TaskRecord {
	var (
		tasks   []domain.TaskRecord
		inTable bool
	)

	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)

		if isDelimiterRow(line) {
			inTable = true
			continue
		}
		if isHeaderRow(line) {
			continue
		}
		if !inTable {
			continue
		}
		if !strings.HasPrefix(line, "|") {
			break
		}
		if !strings.HasSuffix(line, "|") {
			continue
		}

		if t, ok := parseRow(line); ok {
			tasks = append(tasks, t)
		}
	}
	return tasks
}

func parseRow(line string) (domain.TaskRecord, bool) {
	cells := splitCells(line)
	if len(cells) < 4 {
		return domain.TaskRecord{}, false
	}

	name := cells[1]
	if name == "" {
		return domain.TaskRecord{}, false
	}

	t := domain.TaskRecord{
		Name:   name,
		Status: domain.ResolveStatus(cells[0]),
	}
	if v := cells[2]; v != "" && v != "-" {
		t.StartTime = parseTime(v, false)
	}
	if v := cells[3]; v != "" && v != "-" {
		t.Duration = v
	}
	return t, true
}

// splitCells drops the empty text outside the leading and trailing pipes.
func splitCells(line string) []string {
	parts := strings.Split(line, "|")
	if len(parts) < 2 {
		return nil
	}
	parts = parts[1 : len(parts)-1]
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func isDelimiterRow(line string) bool {
	if !strings.HasPrefix(line, "|") {
		return false
	}
	// four dash cells, each closed by a pipe
	cells := strings.Split(line, "|")[1:]
	if len(cells) < 5 {
		return false
	}
	for _, c := range cells[:4] {
		if !delimiterCell.MatchString(strings.TrimSpace(c)) {
			return false
		}
	}
	return true
}

func isHeaderRow(line string) bool {
	return strings.Contains(line, "Status") &&
		strings.Contains(line, "Task") &&
		strings.Contains(line, "Start Time")
}
