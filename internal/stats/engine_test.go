package stats

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/infrastructure/snapshot_fs"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/suite"
)

var base = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)

func execution(pipeline, repo string, status domain.Status, offset time.Duration, tasks ...domain.TaskRecord) domain.ExecutionRecord {
	rec := domain.ExecutionRecord{
		PipelineName: pipeline,
		Status:       status,
		Tasks:        tasks,
		TotalTasks:   len(tasks),
		Repository:   repo,
		ParsedAt:     base.Add(offset),
	}
	for _, t := range tasks {
		switch t.Status {
		case domain.StatusSuccess:
			rec.SuccessfulTasks++
		case domain.StatusFailed:
			rec.FailedTasks++
		case domain.StatusSkipped:
			rec.SkippedTasks++
		}
	}
	return rec
}

func task(name string, s domain.Status) domain.TaskRecord {
	return domain.TaskRecord{Name: name, Status: s}
}

type EngineSuite struct {
	suite.Suite
	ctx   context.Context
	store *domain.MockStore
	eng   *Engine
}

func TestEngineSuite(t *testing.T) {
	suite.Run(t, new(EngineSuite))
}

func (s *EngineSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = &domain.MockStore{}
	eng, err := Open(s.ctx, s.store, WithClock(func() time.Time { return base }))
	s.Require().NoError(err)
	s.eng = eng
}

func (s *EngineSuite) TestIngestUpdatesRollups() {
	s.Require().NoError(s.eng.Ingest(s.ctx, execution("demo", "a/b", domain.StatusSuccess, 0,
		task("build", domain.StatusSuccess), task("test", domain.StatusSuccess))))
	s.Require().NoError(s.eng.Ingest(s.ctx, execution("demo", "c/d", domain.StatusFailed, time.Hour,
		task("build", domain.StatusSuccess), task("test", domain.StatusFailed))))
	s.Require().NoError(s.eng.Ingest(s.ctx, execution("demo", "a/b", domain.StatusRunning, 2*time.Hour,
		task("build", domain.StatusSkipped))))

	r, ok, err := s.eng.Pipeline("demo", PipelineFilter{})
	s.Require().NoError(err)
	s.Require().True(ok)

	s.Equal(3, r.TotalExecutions)
	s.Equal(1, r.SuccessfulExecutions)
	s.Equal(1, r.FailedExecutions)
	s.InDelta(100.0/3, r.SuccessRate, 1e-9)
	s.Equal(base, r.FirstSeen)
	s.Equal(base.Add(2*time.Hour), r.LastSeen)
	s.Equal([]string{"a/b", "c/d"}, r.Repositories)

	build := r.Tasks["build"]
	s.Equal(3, build.Total)
	s.Equal(2, build.Successful)
	s.Equal(0, build.Failed)
	s.Equal(1, build.Skipped)
	s.InDelta(200.0/3, build.SuccessRate, 1e-9)
	s.Equal(domain.TaskRollup{Total: 2, Successful: 1, Failed: 1, SuccessRate: 50}, r.Tasks["test"])

	s.Equal(3, s.store.Saves)
	snap := s.eng.Snapshot()
	s.Equal(3, snap.TotalExecutions)
	s.Equal([]string{"a/b", "c/d"}, snap.Repositories)
	s.Equal(base, snap.LastUpdated)
}

func (s *EngineSuite) TestIngestBatchMatchesSequentialIngest() {
	recs := []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, 0, task("build", domain.StatusSuccess)),
		execution("demo", "a/b", domain.StatusFailed, time.Minute, task("build", domain.StatusFailed)),
		execution("other", "c/d", domain.StatusUnknown, 2*time.Minute),
	}
	s.Require().NoError(s.eng.IngestBatch(s.ctx, recs))
	s.Equal(1, s.store.Saves)

	seqStore := &domain.MockStore{}
	seq, err := Open(s.ctx, seqStore, WithClock(func() time.Time { return base }))
	s.Require().NoError(err)
	for _, r := range recs {
		s.Require().NoError(seq.Ingest(s.ctx, r))
	}
	s.Equal(3, seqStore.Saves)

	if diff := cmp.Diff(seq.Snapshot(), s.eng.Snapshot()); diff != "" {
		s.Failf("batch and sequential ingest differ", "(-seq +batch):\n%s", diff)
	}
}

func (s *EngineSuite) TestEmptyBatchDoesNotSave() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, nil))
	s.Zero(s.store.Saves)
}

func (s *EngineSuite) TestMinExecutionsHidesLowVolumePipelines() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, 0),
		execution("demo", "a/b", domain.StatusSuccess, time.Minute),
		execution("demo", "a/b", domain.StatusFailed, 2*time.Minute),
	}))

	list, err := s.eng.Pipelines(PipelineFilter{MinExecutions: 5})
	s.Require().NoError(err)
	s.Empty(list)

	list, err = s.eng.Pipelines(PipelineFilter{MinExecutions: 3})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("demo", list[0].Name)

	sum, err := s.eng.Summary(SummaryFilter{MinExecutions: 5})
	s.Require().NoError(err)
	s.Zero(sum.TotalPipelines)
	s.Equal(3, sum.TotalExecutions)
	s.True(sum.Filtered)
}

func (s *EngineSuite) TestFilteredPipelineIsRecomputed() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, 0, task("deploy", domain.StatusSuccess)),
		execution("demo", "a/b", domain.StatusSuccess, time.Minute, task("deploy", domain.StatusSuccess)),
		execution("demo", "c/d", domain.StatusFailed, 2*time.Minute, task("deploy", domain.StatusFailed)),
		execution("demo", "c/d", domain.StatusFailed, 3*time.Minute, task("deploy", domain.StatusFailed)),
	}))

	global, ok, err := s.eng.Pipeline("demo", PipelineFilter{})
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(50.0, global.SuccessRate)

	ab, ok, err := s.eng.Pipeline("demo", PipelineFilter{Repository: "a/b"})
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(2, ab.TotalExecutions)
	s.Equal(100.0, ab.SuccessRate)
	s.Equal(domain.TaskRollup{Total: 2, Successful: 2, SuccessRate: 100}, ab.Tasks["deploy"])
	s.Equal([]string{"a/b"}, ab.Repositories)
	s.Equal(base.Add(time.Minute), ab.LastSeen)
	s.NotEqual(global.SuccessRate, ab.SuccessRate)

	failed, ok, err := s.eng.Pipeline("demo", PipelineFilter{Status: domain.StatusFailed})
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal(2, failed.TotalExecutions)
	s.Equal(0.0, failed.SuccessRate)

	_, ok, err = s.eng.Pipeline("demo", PipelineFilter{Repository: "x/y"})
	s.Require().NoError(err)
	s.False(ok)

	// the stored rollup is untouched by filtered reads
	again, _, _ := s.eng.Pipeline("demo", PipelineFilter{})
	s.Equal(global, again)
}

func (s *EngineSuite) TestPipelinesRepositoryFilterDoesNotRecompute() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, 0),
		execution("demo", "c/d", domain.StatusFailed, time.Minute),
		execution("solo", "c/d", domain.StatusSuccess, 2*time.Minute),
	}))

	list, err := s.eng.Pipelines(PipelineFilter{Repository: "a/b"})
	s.Require().NoError(err)
	s.Require().Len(list, 1)
	s.Equal("demo", list[0].Name)
	s.Equal(2, list[0].TotalExecutions)
	s.Equal(50.0, list[0].SuccessRate)
}

func (s *EngineSuite) TestExecutionsNewestFirstWithLimit() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, time.Hour),
		execution("demo", "a/b", domain.StatusFailed, 3*time.Hour),
		execution("demo", "c/d", domain.StatusSuccess, 2*time.Hour),
		execution("other", "a/b", domain.StatusSuccess, 4*time.Hour),
	}))

	got, err := s.eng.Executions(ExecutionFilter{Pipeline: "demo", Limit: 2})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal(base.Add(3*time.Hour), got[0].ParsedAt)
	s.Equal(base.Add(2*time.Hour), got[1].ParsedAt)

	got, err = s.eng.Executions(ExecutionFilter{Repository: "a/b", Status: domain.StatusSuccess})
	s.Require().NoError(err)
	s.Require().Len(got, 2)
	s.Equal("other", got[0].PipelineName)
}

func (s *EngineSuite) TestSummaryIsIdempotent() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, 0),
		execution("demo", "c/d", domain.StatusFailed, time.Minute),
		execution("other", "", domain.StatusRunning, 2*time.Minute),
	}))

	f := SummaryFilter{Repository: "c/d"}
	first, err := s.eng.Summary(f)
	s.Require().NoError(err)
	second, err := s.eng.Summary(f)
	s.Require().NoError(err)
	s.Equal(first, second)

	s.Equal(1, first.TotalPipelines)
	s.Equal(1, first.TotalExecutions)
	s.Equal(1, first.FailedExecutions)
	s.Equal([]string{"c/d"}, first.Repositories)

	all, err := s.eng.Summary(SummaryFilter{})
	s.Require().NoError(err)
	s.False(all.Filtered)
	s.Equal(2, all.TotalPipelines)
	s.Equal(3, all.TotalExecutions)
	s.Equal(2, all.TotalRepositories)
	s.InDelta(100.0/3, all.OverallSuccessRate, 1e-9)
}

func (s *EngineSuite) TestTasksAcrossPipelinesWorstFirst() {
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusFailed, 0,
			task("build", domain.StatusSuccess), task("test", domain.StatusFailed)),
		execution("demo", "a/b", domain.StatusSuccess, time.Minute,
			task("build", domain.StatusSuccess), task("test", domain.StatusSuccess)),
		execution("release", "a/b", domain.StatusFailed, 2*time.Minute,
			task("build", domain.StatusFailed)),
	}))

	got, err := s.eng.Tasks(TaskFilter{})
	s.Require().NoError(err)
	s.Require().Len(got, 2)

	s.Equal("test", got[0].Name)
	s.Equal(50.0, got[0].SuccessRate)
	s.Equal("build", got[1].Name)
	s.Equal(3, got[1].Total)
	s.Equal(2, got[1].Successful)
	s.Equal([]string{"demo", "release"}, got[1].Pipelines)
	s.Equal(1, got[1].ByPipeline["release"].Failed)

	only, err := s.eng.Tasks(TaskFilter{Task: "build", Pipeline: "release"})
	s.Require().NoError(err)
	s.Require().Len(only, 1)
	s.Equal(1, only[0].Total)

	// min executions is pipeline scoped: release has 1 execution
	scoped, err := s.eng.Tasks(TaskFilter{Task: "build", MinExecutions: 2})
	s.Require().NoError(err)
	s.Require().Len(scoped, 1)
	s.Equal([]string{"demo"}, scoped[0].Pipelines)

	ranked := RankTasks(s.mustPipeline("demo"))
	s.Require().Len(ranked, 2)
	s.Equal("test", ranked[0].Name)
}

func (s *EngineSuite) TestLogsPipelineAndTaskLevel() {
	failing := execution("demo", "a/b", domain.StatusFailed, time.Hour,
		task("build", domain.StatusSuccess), task("test", domain.StatusFailed))
	failing.LogsURL = "https://ci/logs/2"
	s.Require().NoError(s.eng.IngestBatch(s.ctx, []domain.ExecutionRecord{
		execution("demo", "a/b", domain.StatusSuccess, 0, task("build", domain.StatusSuccess)),
		failing,
	}))

	entries, err := s.eng.Logs(LogFilter{Pipeline: "demo"})
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.False(entries[0].TaskLevel)
	s.Equal("https://ci/logs/2", entries[0].LogsURL)

	entries, err = s.eng.Logs(LogFilter{TaskStatus: domain.StatusFailed})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.True(entries[0].TaskLevel)
	s.Equal("test", entries[0].TaskName)
	s.Equal(domain.StatusFailed, entries[0].PipelineStatus)

	entries, err = s.eng.Logs(LogFilter{Task: "build", Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(base.Add(time.Hour), entries[0].ParsedAt)
}

func (s *EngineSuite) TestInvalidFiltersAreRejected() {
	_, err := s.eng.Executions(ExecutionFilter{Status: "sucess"})
	s.True(errors.Is(err, domain.ErrInvalidFilter))

	_, err = s.eng.Summary(SummaryFilter{MinExecutions: -1})
	s.True(errors.Is(err, domain.ErrInvalidFilter))

	_, err = s.eng.Logs(LogFilter{TaskStatus: "✅"})
	s.True(errors.Is(err, domain.ErrInvalidFilter))

	_, _, err = s.eng.Pipeline("demo", PipelineFilter{Status: "FAILED"})
	s.True(errors.Is(err, domain.ErrInvalidFilter))
}

func (s *EngineSuite) TestSaveFailureKeepsState() {
	s.store.SaveErr = errors.New("disk full")

	err := s.eng.Ingest(s.ctx, execution("demo", "a/b", domain.StatusSuccess, 0))
	s.Require().Error(err)

	got, err := s.eng.Executions(ExecutionFilter{})
	s.Require().NoError(err)
	s.Len(got, 1)
}

func (s *EngineSuite) TestHasComment() {
	id := int64(42)
	rec := execution("demo", "a/b", domain.StatusSuccess, 0)
	rec.CommentID = &id
	s.Require().NoError(s.eng.Ingest(s.ctx, rec))

	s.True(s.eng.HasComment(42))
	s.False(s.eng.HasComment(43))
}

func (s *EngineSuite) TestRecordsAreIsolatedFromCallers() {
	rate := 50.0
	pr := 7
	started := base.Add(-time.Minute)
	rec := execution("demo", "a/b", domain.StatusFailed, 0, task("build", domain.StatusSuccess))
	rec.SuccessRate = &rate
	rec.PRNumber = &pr
	rec.StartTime = &started
	rec.Tasks[0].StartTime = &started
	s.Require().NoError(s.eng.Ingest(s.ctx, rec))

	rate = 1
	pr = 8
	started = base.Add(time.Hour)
	rec.Tasks[0].Name = "renamed"

	got, err := s.eng.Executions(ExecutionFilter{})
	s.Require().NoError(err)
	s.Require().Len(got, 1)
	s.Equal(50.0, *got[0].SuccessRate)
	s.Equal(7, *got[0].PRNumber)
	s.Equal(base.Add(-time.Minute), *got[0].StartTime)
	s.Equal("build", got[0].Tasks[0].Name)
	s.Equal(base.Add(-time.Minute), *got[0].Tasks[0].StartTime)

	*got[0].SuccessRate = 7
	*got[0].Tasks[0].StartTime = base.Add(2 * time.Hour)
	snap := s.eng.Snapshot()
	*snap.Executions[0].PRNumber = 9
	entries, err := s.eng.Logs(LogFilter{})
	s.Require().NoError(err)
	*entries[0].StartTime = base.Add(3 * time.Hour)

	again, err := s.eng.Executions(ExecutionFilter{})
	s.Require().NoError(err)
	s.Equal(50.0, *again[0].SuccessRate)
	s.Equal(7, *again[0].PRNumber)
	s.Equal(base.Add(-time.Minute), *again[0].StartTime)
	s.Equal(base.Add(-time.Minute), *again[0].Tasks[0].StartTime)
}

func (s *EngineSuite) mustPipeline(name string) domain.PipelineRollup {
	r, ok, err := s.eng.Pipeline(name, PipelineFilter{})
	s.Require().NoError(err)
	s.Require().True(ok)
	return r
}

func TestOpen_LoadFailureStartsEmpty(t *testing.T) {
	store := &domain.MockStore{LoadErr: errors.New("permission denied")}

	eng, err := Open(context.Background(), store)
	if err == nil {
		t.Fatal("expected load warning")
	}
	if eng == nil {
		t.Fatal("engine must be usable after a load failure")
	}
	if err := eng.Ingest(context.Background(), execution("demo", "", domain.StatusSuccess, 0)); err != nil {
		t.Fatalf("ingest after load failure: %v", err)
	}
	if store.Saves != 1 {
		t.Errorf("expected 1 save, got %d", store.Saves)
	}
}

func TestOpen_UnsupportedSnapshotBlocksSave(t *testing.T) {
	store := &domain.MockStore{LoadErr: domain.ErrUnsupportedSnapshot}

	eng, err := Open(context.Background(), store)
	if !errors.Is(err, domain.ErrUnsupportedSnapshot) {
		t.Fatalf("expected ErrUnsupportedSnapshot, got %v", err)
	}

	err = eng.Ingest(context.Background(), execution("demo", "", domain.StatusSuccess, 0))
	if !errors.Is(err, domain.ErrUnsupportedSnapshot) {
		t.Fatalf("expected save to be refused, got %v", err)
	}
	if store.Saves != 0 {
		t.Errorf("store must not be written, got %d saves", store.Saves)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "pipeline_stats.json")

	rate := 75.0
	pr := 12
	id := int64(3001)
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	rec := execution("demo", "a/b", domain.StatusFailed, 0,
		domain.TaskRecord{Name: "build", Status: domain.StatusSuccess, Duration: "1m20s", StartTime: &start},
		domain.TaskRecord{Name: "test", Status: domain.StatusFailed, ErrorMessage: "boom"},
	)
	rec.SuccessRate = &rate
	rec.PRNumber = &pr
	rec.CommentID = &id
	rec.PipelineRunName = "demo-run-1"
	rec.LogsURL = "https://ci/logs/1"
	rec.StartTime = &start

	first, err := Open(ctx, snapshot_fs.New(path), WithClock(func() time.Time { return base }))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := first.Ingest(ctx, rec); err != nil {
		t.Fatalf("ingest: %v", err)
	}

	second, err := Open(ctx, snapshot_fs.New(path))
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}

	if diff := cmp.Diff(first.Snapshot(), second.Snapshot()); diff != "" {
		t.Errorf("snapshot changed across save/load (-want +got):\n%s", diff)
	}
	if !second.HasComment(id) {
		t.Error("comment index not rebuilt on load")
	}
}
