package domain

import "time"

// UnknownPipeline names executions whose summary carried no pipeline name.
const UnknownPipeline = "unknown-pipeline"

// SnapshotVersion is the document version written by this build.
const SnapshotVersion = 1

type TaskRecord struct {
	Name         string     `json:"name"`
	Status       Status     `json:"status"`
	Duration     string     `json:"duration,omitempty"`
	StartTime    *time.Time `json:"start_time,omitempty"`
	EndTime      *time.Time `json:"end_time,omitempty"`
	ErrorMessage string     `json:"error_message,omitempty"`
}

// ExecutionRecord is one pipeline run parsed out of one comment.
type ExecutionRecord struct {
	PipelineName       string       `json:"name"`
	PipelineRunName    string       `json:"pipelinerun_name,omitempty"`
	Status             Status       `json:"status"`
	SuccessRate        *float64     `json:"success_rate,omitempty"`
	TotalTasks         int          `json:"total_tasks"`
	SuccessfulTasks    int          `json:"successful_tasks"`
	FailedTasks        int          `json:"failed_tasks"`
	SkippedTasks       int          `json:"skipped_tasks"`
	Tasks              []TaskRecord `json:"tasks"`
	Duration           string       `json:"duration,omitempty"`
	StartTime          *time.Time   `json:"start_time,omitempty"`
	LogsURL            string       `json:"pipeline_logs_url,omitempty"`
	TroubleshootingURL string       `json:"troubleshooting_guide_url,omitempty"`
	RestartCommand     string       `json:"restart_command,omitempty"`
	PRNumber           *int         `json:"pr_number,omitempty"`
	PRURL              string       `json:"pr_url,omitempty"`
	CommentID          *int64       `json:"comment_id,omitempty"`
	Repository         string       `json:"repository,omitempty"`
	ParsedAt           time.Time    `json:"parsed_at"`
}

// TaskRollup counts outcomes of one task name.
type TaskRollup struct {
	Total       int     `json:"total_executions"`
	Successful  int     `json:"successful_executions"`
	Failed      int     `json:"failed_executions"`
	Skipped     int     `json:"skipped_executions"`
	SuccessRate float64 `json:"success_rate"`
}

func (t *TaskRollup) Add(s Status) {
	t.Total++
	switch s {
	case StatusSuccess:
		t.Successful++
	case StatusFailed:
		t.Failed++
	case StatusSkipped:
		t.Skipped++
	}
	t.SuccessRate = Rate(t.Successful, t.Total)
}

type PipelineRollup struct {
	Name                 string                `json:"name"`
	TotalExecutions      int                   `json:"total_executions"`
	SuccessfulExecutions int                   `json:"successful_executions"`
	FailedExecutions     int                   `json:"failed_executions"`
	SuccessRate          float64               `json:"success_rate"`
	Tasks                map[string]TaskRollup `json:"task_statistics"`
	FirstSeen            time.Time             `json:"first_seen"`
	LastSeen             time.Time             `json:"last_seen"`
	Repositories         []string              `json:"repositories"`
}

// Snapshot is the whole persisted state of the aggregation engine.
type Snapshot struct {
	Version         int                       `json:"version"`
	Pipelines       map[string]PipelineRollup `json:"pipelines"`
	Executions      []ExecutionRecord         `json:"executions"`
	LastUpdated     time.Time                 `json:"last_updated"`
	TotalExecutions int                       `json:"total_executions"`
	Repositories    []string                  `json:"repositories"`
}

func NewSnapshot() Snapshot {
	return Snapshot{
		Version:      SnapshotVersion,
		Pipelines:    map[string]PipelineRollup{},
		Executions:   []ExecutionRecord{},
		Repositories: []string{},
	}
}

// Comment is a pull request comment as delivered by a CommentSource.
type Comment struct {
	ID        int64
	Body      string
	Author    string
	CreatedAt time.Time
	UpdatedAt time.Time
	PRNumber  int
	PRURL     string
	PRTitle   string
	PRState   string
}

// CommentQuery bounds a scan over recent pull requests.
type CommentQuery struct {
	Limit    int
	DaysBack int
	MaxPRs   int
}

type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Rate returns part/total as a percentage, 0 when total is 0.
func Rate(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
