package stats

import (
	"sort"
	"time"

	"github.com/davarch/pipeline-stats/internal/domain"
)

type Summary struct {
	TotalPipelines       int
	TotalExecutions      int
	TotalRepositories    int
	SuccessfulExecutions int
	FailedExecutions     int
	OverallSuccessRate   float64
	LastUpdated          time.Time
	Repositories         []string
	Filtered             bool
}

// TaskStat is a named task rollup.
type TaskStat struct {
	Name string
	domain.TaskRollup
}

// TaskSummary aggregates one task name across pipelines.
type TaskSummary struct {
	TaskStat
	Pipelines  []string
	ByPipeline map[string]domain.TaskRollup
}

// LogEntry points at the logs of one execution, or of one task inside it
// when the query was task scoped.
type LogEntry struct {
	TaskLevel          bool
	PipelineName       string
	PipelineRunName    string
	PipelineStatus     domain.Status
	TaskName           string
	TaskStatus         domain.Status
	TaskDuration       string
	LogsURL            string
	TroubleshootingURL string
	RestartCommand     string
	PRNumber           *int
	PRURL              string
	Repository         string
	ParsedAt           time.Time
	StartTime          *time.Time
}

// Executions returns matching executions, newest first.
func (e *Engine) Executions(f ExecutionFilter) ([]domain.ExecutionRecord, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := make([]domain.ExecutionRecord, 0)
	for _, x := range e.db.Executions {
		if f.match(x) {
			out = append(out, copyExecution(x))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ParsedAt.After(out[j].ParsedAt) })

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (e *Engine) Summary(f SummaryFilter) (Summary, error) {
	if err := f.Validate(); err != nil {
		return Summary{}, err
	}

	ef := ExecutionFilter{Repository: f.Repository, Status: f.Status}
	pf := PipelineFilter{Repository: f.Repository, MinExecutions: f.MinExecutions}

	s := Summary{
		LastUpdated:  e.db.LastUpdated,
		Repositories: []string{},
		Filtered:     f.active(),
	}
	for _, r := range e.db.Pipelines {
		if pf.admits(r) {
			s.TotalPipelines++
		}
	}

	repos := map[string]struct{}{}
	for _, x := range e.db.Executions {
		if !ef.match(x) {
			continue
		}
		s.TotalExecutions++
		switch x.Status {
		case domain.StatusSuccess:
			s.SuccessfulExecutions++
		case domain.StatusFailed:
			s.FailedExecutions++
		}
		if x.Repository != "" {
			repos[x.Repository] = struct{}{}
		}
	}
	for r := range repos {
		s.Repositories = append(s.Repositories, r)
	}
	sort.Strings(s.Repositories)
	s.TotalRepositories = len(s.Repositories)
	s.OverallSuccessRate = domain.Rate(s.SuccessfulExecutions, s.TotalExecutions)
	return s, nil
}

// Pipelines lists stored rollups admitted by Repository and MinExecutions,
// ordered by name. Rollups are returned as stored, never recomputed.
func (e *Engine) Pipelines(f PipelineFilter) ([]domain.PipelineRollup, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	out := make([]domain.PipelineRollup, 0, len(e.db.Pipelines))
	for _, r := range e.db.Pipelines {
		if f.admits(r) {
			out = append(out, copyRollup(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Pipeline returns the rollup for name. With Repository or Status set the
// rollup is rebuilt from the matching executions only; ok is false when the
// pipeline is unknown or no execution matches.
func (e *Engine) Pipeline(name string, f PipelineFilter) (domain.PipelineRollup, bool, error) {
	if err := f.Validate(); err != nil {
		return domain.PipelineRollup{}, false, err
	}

	r, ok := e.db.Pipelines[name]
	if !ok {
		return domain.PipelineRollup{}, false, nil
	}
	if f.Repository == "" && f.Status == "" {
		return copyRollup(r), true, nil
	}

	ef := ExecutionFilter{Pipeline: name, Repository: f.Repository, Status: f.Status}
	out := newRollup(name)
	for _, x := range e.db.Executions {
		if ef.match(x) {
			addExecution(&out, x)
		}
	}
	if out.TotalExecutions == 0 {
		return domain.PipelineRollup{}, false, nil
	}
	return out, true, nil
}

// Tasks aggregates task rollups across the pipelines admitted by f, worst
// success rate first.
func (e *Engine) Tasks(f TaskFilter) ([]TaskSummary, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	pf := PipelineFilter{Repository: f.Repository, MinExecutions: f.MinExecutions}
	byName := map[string]*TaskSummary{}

	for _, pname := range sortedKeys(e.db.Pipelines) {
		r := e.db.Pipelines[pname]
		if !pf.admits(r) {
			continue
		}
		if f.Pipeline != "" && pname != f.Pipeline {
			continue
		}
		for tname, tr := range r.Tasks {
			if f.Task != "" && tname != f.Task {
				continue
			}
			ts, ok := byName[tname]
			if !ok {
				ts = &TaskSummary{
					TaskStat:   TaskStat{Name: tname},
					ByPipeline: map[string]domain.TaskRollup{},
				}
				byName[tname] = ts
			}
			ts.Total += tr.Total
			ts.Successful += tr.Successful
			ts.Failed += tr.Failed
			ts.Skipped += tr.Skipped
			ts.Pipelines = append(ts.Pipelines, pname)
			ts.ByPipeline[pname] = tr
		}
	}

	out := make([]TaskSummary, 0, len(byName))
	for _, ts := range byName {
		ts.SuccessRate = domain.Rate(ts.Successful, ts.Total)
		out = append(out, *ts)
	}
	sort.Slice(out, func(i, j int) bool { return worseFirst(out[i].TaskStat, out[j].TaskStat) })
	return out, nil
}

// RankTasks orders a pipeline's task rollups worst success rate first.
func RankTasks(r domain.PipelineRollup) []TaskStat {
	out := make([]TaskStat, 0, len(r.Tasks))
	for name, t := range r.Tasks {
		out = append(out, TaskStat{Name: name, TaskRollup: t})
	}
	sort.Slice(out, func(i, j int) bool { return worseFirst(out[i], out[j]) })
	return out
}

// Logs returns log pointers for matching executions, newest first.
func (e *Engine) Logs(f LogFilter) ([]LogEntry, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	ef := ExecutionFilter{Pipeline: f.Pipeline, Repository: f.Repository, Status: f.Status}
	out := make([]LogEntry, 0)
	for _, x := range e.db.Executions {
		if !ef.match(x) {
			continue
		}
		if !f.taskLevel() {
			out = append(out, logEntry(x))
			continue
		}
		for _, t := range x.Tasks {
			if f.Task != "" && t.Name != f.Task {
				continue
			}
			if f.TaskStatus != "" && t.Status != f.TaskStatus {
				continue
			}
			le := logEntry(x)
			le.TaskLevel = true
			le.TaskName = t.Name
			le.TaskStatus = t.Status
			le.TaskDuration = t.Duration
			out = append(out, le)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ParsedAt.After(out[j].ParsedAt) })

	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func logEntry(x domain.ExecutionRecord) LogEntry {
	return LogEntry{
		PipelineName:       x.PipelineName,
		PipelineRunName:    x.PipelineRunName,
		PipelineStatus:     x.Status,
		LogsURL:            x.LogsURL,
		TroubleshootingURL: x.TroubleshootingURL,
		RestartCommand:     x.RestartCommand,
		PRNumber:           clone(x.PRNumber),
		PRURL:              x.PRURL,
		Repository:         x.Repository,
		ParsedAt:           x.ParsedAt,
		StartTime:          clone(x.StartTime),
	}
}

func worseFirst(a, b TaskStat) bool {
	if a.SuccessRate != b.SuccessRate {
		return a.SuccessRate < b.SuccessRate
	}
	return a.Name < b.Name
}

func sortedKeys(m map[string]domain.PipelineRollup) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
