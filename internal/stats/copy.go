package stats

import "github.com/davarch/pipeline-stats/internal/domain"

func copySnapshot(s domain.Snapshot) domain.Snapshot {
	out := s
	out.Pipelines = make(map[string]domain.PipelineRollup, len(s.Pipelines))
	for name, r := range s.Pipelines {
		out.Pipelines[name] = copyRollup(r)
	}
	out.Executions = make([]domain.ExecutionRecord, len(s.Executions))
	for i, x := range s.Executions {
		out.Executions[i] = copyExecution(x)
	}
	out.Repositories = append([]string{}, s.Repositories...)
	return out
}

func copyRollup(r domain.PipelineRollup) domain.PipelineRollup {
	out := r
	out.Tasks = make(map[string]domain.TaskRollup, len(r.Tasks))
	for name, t := range r.Tasks {
		out.Tasks[name] = t
	}
	out.Repositories = append([]string{}, r.Repositories...)
	return out
}

// copyExecution clones every pointer so records held by the engine never
// share memory with callers.
func copyExecution(x domain.ExecutionRecord) domain.ExecutionRecord {
	out := x
	out.SuccessRate = clone(x.SuccessRate)
	out.StartTime = clone(x.StartTime)
	out.PRNumber = clone(x.PRNumber)
	out.CommentID = clone(x.CommentID)
	if x.Tasks != nil {
		out.Tasks = make([]domain.TaskRecord, len(x.Tasks))
		for i, t := range x.Tasks {
			t.StartTime = clone(t.StartTime)
			t.EndTime = clone(t.EndTime)
			out.Tasks[i] = t
		}
	}
	return out
}

func clone[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
