package snapshot_fs

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davarch/pipeline-stats/internal/domain"
)

func sampleSnapshot() domain.Snapshot {
	at := time.Date(2024, 5, 1, 8, 30, 0, 0, time.UTC)
	s := domain.NewSnapshot()
	s.Executions = append(s.Executions, domain.ExecutionRecord{
		PipelineName: "demo",
		Status:       domain.StatusSuccess,
		TotalTasks:   1,
		Tasks:        []domain.TaskRecord{{Name: "build", Status: domain.StatusSuccess, Duration: "1m"}},
		Repository:   "a/b",
		ParsedAt:     at,
	})
	s.Pipelines["demo"] = domain.PipelineRollup{
		Name:                 "demo",
		TotalExecutions:      1,
		SuccessfulExecutions: 1,
		SuccessRate:          100,
		Tasks:                map[string]domain.TaskRollup{"build": {Total: 1, Successful: 1, SuccessRate: 100}},
		FirstSeen:            at,
		LastSeen:             at,
		Repositories:         []string{"a/b"},
	}
	s.TotalExecutions = 1
	s.Repositories = []string{"a/b"}
	s.LastUpdated = at
	return s
}

func TestStore_MissingFileLoadsEmpty(t *testing.T) {
	st := New(filepath.Join(t.TempDir(), "none.json"))

	snap, err := st.Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(snap.Executions) != 0 || len(snap.Pipelines) != 0 {
		t.Errorf("expected empty snapshot, got %+v", snap)
	}
	if snap.Version != domain.SnapshotVersion {
		t.Errorf("expected version %d, got %d", domain.SnapshotVersion, snap.Version)
	}
}

func TestStore_SaveCreatesFileAndRoundTrips(t *testing.T) {
	for _, name := range []string{"stats.json", "stats.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			st := New(path)

			if err := st.Save(context.Background(), sampleSnapshot()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, err := os.Stat(path); err != nil {
				t.Fatalf("file not created: %v", err)
			}

			got, err := st.Load(context.Background())
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if got.TotalExecutions != 1 || len(got.Executions) != 1 {
				t.Fatalf("unexpected snapshot: %+v", got)
			}
			if got.Pipelines["demo"].Tasks["build"].Successful != 1 {
				t.Errorf("task rollup lost: %+v", got.Pipelines["demo"])
			}
			if !got.Executions[0].ParsedAt.Equal(sampleSnapshot().Executions[0].ParsedAt) {
				t.Errorf("parsed_at changed: %v", got.Executions[0].ParsedAt)
			}
		})
	}
}

func TestStore_LegacyDocumentWithoutVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.json")
	doc := `{"pipelines": {}, "executions": [], "last_updated": "2024-01-01T00:00:00Z", "total_executions": 0, "repositories": []}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	snap, err := New(path).Load(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Version != 1 {
		t.Errorf("expected legacy document to load as version 1, got %d", snap.Version)
	}
}

func TestStore_RejectsNewerVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "future.json")
	if err := os.WriteFile(path, []byte(`{"version": 99}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := New(path).Load(context.Background())
	if !errors.Is(err, domain.ErrUnsupportedSnapshot) {
		t.Fatalf("expected ErrUnsupportedSnapshot, got %v", err)
	}
}

func TestStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := New(path).Load(context.Background()); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestStore_FailedSaveRemovesTempFile(t *testing.T) {
	for _, name := range []string{"stats.json", "stats.json.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			snap := sampleSnapshot()
			r := snap.Pipelines["demo"]
			r.SuccessRate = math.NaN()
			snap.Pipelines["demo"] = r

			if err := New(path).Save(context.Background(), snap); err == nil {
				t.Fatal("expected encode error for NaN rate")
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Errorf("temp file left behind: %v", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Errorf("snapshot should not exist after a failed save: %v", err)
			}
		})
	}
}
