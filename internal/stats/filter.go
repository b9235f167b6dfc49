package stats

import (
	"fmt"

	"github.com/davarch/pipeline-stats/internal/domain"
)

// ExecutionFilter selects executions for Executions. Zero fields match all.
type ExecutionFilter struct {
	Pipeline   string
	Repository string
	Status     domain.Status
	// Limit caps the result after newest-first ordering; 0 means no cap.
	Limit int
}

func (f ExecutionFilter) Validate() error {
	if err := validateStatus("status", f.Status); err != nil {
		return err
	}
	return validateLimit(f.Limit)
}

func (f ExecutionFilter) match(e domain.ExecutionRecord) bool {
	if f.Pipeline != "" && e.PipelineName != f.Pipeline {
		return false
	}
	if f.Repository != "" && e.Repository != f.Repository {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	return true
}

// SummaryFilter drives Summary. Repository and Status narrow the execution
// counts; Repository and MinExecutions narrow the pipeline count.
type SummaryFilter struct {
	Repository    string
	Status        domain.Status
	MinExecutions int
}

func (f SummaryFilter) Validate() error {
	if err := validateStatus("status", f.Status); err != nil {
		return err
	}
	return validateMin(f.MinExecutions)
}

func (f SummaryFilter) active() bool {
	return f.Repository != "" || f.Status != "" || f.MinExecutions > 0
}

// PipelineFilter is used by Pipelines and Pipeline.
//
// Pipelines applies Repository (membership in the rollup's repository set)
// and MinExecutions against the stored rollups and never recomputes them.
// Pipeline applies Repository and Status to the pipeline's executions and
// recomputes the rollup from that subset; MinExecutions is ignored there.
type PipelineFilter struct {
	Repository    string
	Status        domain.Status
	MinExecutions int
}

func (f PipelineFilter) Validate() error {
	if err := validateStatus("status", f.Status); err != nil {
		return err
	}
	return validateMin(f.MinExecutions)
}

func (f PipelineFilter) admits(r domain.PipelineRollup) bool {
	if f.MinExecutions > 0 && r.TotalExecutions < f.MinExecutions {
		return false
	}
	if f.Repository != "" && !contains(r.Repositories, f.Repository) {
		return false
	}
	return true
}

// TaskFilter drives Tasks. Pipeline-level criteria pick which rollups
// contribute; MinExecutions is checked per pipeline, not per task.
type TaskFilter struct {
	Task          string
	Pipeline      string
	Repository    string
	MinExecutions int
}

func (f TaskFilter) Validate() error {
	return validateMin(f.MinExecutions)
}

// LogFilter drives Logs. Task and TaskStatus switch the result to one entry
// per matching task instead of one per execution.
type LogFilter struct {
	Pipeline   string
	Repository string
	Status     domain.Status
	Task       string
	TaskStatus domain.Status
	Limit      int
}

func (f LogFilter) Validate() error {
	if err := validateStatus("status", f.Status); err != nil {
		return err
	}
	if err := validateStatus("task status", f.TaskStatus); err != nil {
		return err
	}
	return validateLimit(f.Limit)
}

func (f LogFilter) taskLevel() bool {
	return f.Task != "" || f.TaskStatus != ""
}

func validateStatus(field string, s domain.Status) error {
	if s == "" || s.Valid() {
		return nil
	}
	return fmt.Errorf("%w: %s %q (valid: %s)", domain.ErrInvalidFilter, field, s, domain.ValidStatusNames())
}

func validateMin(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: min executions must not be negative, got %d", domain.ErrInvalidFilter, n)
	}
	return nil
}

func validateLimit(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: limit must not be negative, got %d", domain.ErrInvalidFilter, n)
	}
	return nil
}

func contains(xs []string, v string) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
