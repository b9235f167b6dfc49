// Package stats keeps the running pipeline and task rollups built from
// parsed execution records and answers filtered queries over them.
//
// An Engine is owned by a single writer. It loads its snapshot once when
// opened and saves the whole snapshot after every mutating call; callers
// serialise access themselves.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/davarch/pipeline-stats/internal/domain"
	"go.uber.org/zap"
)

type Engine struct {
	store domain.SnapshotStore
	log   *zap.Logger
	now   func() time.Time

	db   domain.Snapshot
	seen map[int64]struct{}

	// saveBlocked is set when the stored document could not be understood
	// and must not be overwritten.
	saveBlocked error
}

type Option func(*Engine)

func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Open loads the snapshot from store and returns a ready engine. The engine
// is never nil: when loading fails it starts empty and the error is returned
// as a warning for the caller to report.
func Open(ctx context.Context, store domain.SnapshotStore, opts ...Option) (*Engine, error) {
	e := &Engine{
		store: store,
		log:   zap.NewNop(),
		now:   func() time.Time { return time.Now().UTC() },
		db:    domain.NewSnapshot(),
		seen:  map[int64]struct{}{},
	}
	for _, o := range opts {
		o(e)
	}

	snap, err := store.Load(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrUnsupportedSnapshot) {
			e.saveBlocked = err
		}
		e.log.Warn("snapshot load failed, starting empty", zap.Error(err))
		return e, err
	}

	e.db = normalize(snap)
	for _, x := range e.db.Executions {
		if x.CommentID != nil {
			e.seen[*x.CommentID] = struct{}{}
		}
	}
	e.log.Debug("snapshot loaded",
		zap.Int("executions", len(e.db.Executions)),
		zap.Int("pipelines", len(e.db.Pipelines)),
	)
	return e, nil
}

// Ingest appends one record, updates the rollups and saves. A save error is
// returned but the in-memory state keeps the record.
func (e *Engine) Ingest(ctx context.Context, rec domain.ExecutionRecord) error {
	e.apply(rec)
	return e.Save(ctx)
}

// IngestBatch applies records in order and saves once at the end.
func (e *Engine) IngestBatch(ctx context.Context, recs []domain.ExecutionRecord) error {
	if len(recs) == 0 {
		return nil
	}
	for _, rec := range recs {
		e.apply(rec)
	}
	return e.Save(ctx)
}

// Save writes the whole snapshot to the store.
func (e *Engine) Save(ctx context.Context) error {
	if e.saveBlocked != nil {
		return fmt.Errorf("snapshot save refused: %w", e.saveBlocked)
	}
	if err := e.store.Save(ctx, e.Snapshot()); err != nil {
		e.log.Warn("snapshot save failed", zap.Error(err))
		return err
	}
	return nil
}

// HasComment reports whether an execution parsed from comment id is already
// in the log.
func (e *Engine) HasComment(id int64) bool {
	_, ok := e.seen[id]
	return ok
}

func (e *Engine) LastUpdated() time.Time { return e.db.LastUpdated }

// Snapshot returns a deep copy of the current state.
func (e *Engine) Snapshot() domain.Snapshot {
	return copySnapshot(e.db)
}

func (e *Engine) apply(rec domain.ExecutionRecord) {
	rec = copyExecution(rec)

	e.db.Executions = append(e.db.Executions, rec)
	e.db.TotalExecutions++
	if rec.Repository != "" && !contains(e.db.Repositories, rec.Repository) {
		e.db.Repositories = append(e.db.Repositories, rec.Repository)
	}
	if rec.CommentID != nil {
		e.seen[*rec.CommentID] = struct{}{}
	}

	r, ok := e.db.Pipelines[rec.PipelineName]
	if !ok {
		r = newRollup(rec.PipelineName)
	}
	addExecution(&r, rec)
	e.db.Pipelines[rec.PipelineName] = r

	e.db.LastUpdated = e.now()
}

func newRollup(name string) domain.PipelineRollup {
	return domain.PipelineRollup{
		Name:         name,
		Tasks:        map[string]domain.TaskRollup{},
		Repositories: []string{},
	}
}

// addExecution folds one execution into r. It is shared by ingestion and by
// the filtered recompute so both count identically.
func addExecution(r *domain.PipelineRollup, rec domain.ExecutionRecord) {
	r.TotalExecutions++
	switch rec.Status {
	case domain.StatusSuccess:
		r.SuccessfulExecutions++
	case domain.StatusFailed:
		r.FailedExecutions++
	}
	r.SuccessRate = domain.Rate(r.SuccessfulExecutions, r.TotalExecutions)

	if r.FirstSeen.IsZero() || rec.ParsedAt.Before(r.FirstSeen) {
		r.FirstSeen = rec.ParsedAt
	}
	if r.LastSeen.IsZero() || rec.ParsedAt.After(r.LastSeen) {
		r.LastSeen = rec.ParsedAt
	}

	if rec.Repository != "" && !contains(r.Repositories, rec.Repository) {
		r.Repositories = append(r.Repositories, rec.Repository)
	}

	for _, t := range rec.Tasks {
		tr := r.Tasks[t.Name]
		tr.Add(t.Status)
		r.Tasks[t.Name] = tr
	}
}

func normalize(s domain.Snapshot) domain.Snapshot {
	if s.Pipelines == nil {
		s.Pipelines = map[string]domain.PipelineRollup{}
	}
	for name, r := range s.Pipelines {
		if r.Tasks == nil {
			r.Tasks = map[string]domain.TaskRollup{}
		}
		if r.Repositories == nil {
			r.Repositories = []string{}
		}
		s.Pipelines[name] = r
	}
	if s.Executions == nil {
		s.Executions = []domain.ExecutionRecord{}
	}
	if s.Repositories == nil {
		s.Repositories = []string{}
	}
	s.Version = domain.SnapshotVersion
	return s
}
