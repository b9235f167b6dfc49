package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/davarch/pipeline-stats/internal/application"
	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/infrastructure/snapshot_fs"
	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleSummary = "# Pipeline Summary\nPipeline: demo\nSuccess Rate: 50%\n- build: ✅ (1m)\n- test: ❌ (boom)\n"

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config", filepath.Join(t.TempDir(), "absent.yaml")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func seed(t *testing.T, dir string, recs ...domain.ExecutionRecord) {
	t.Helper()
	eng, err := stats.Open(context.Background(), snapshot_fs.New(filepath.Join(dir, "pipeline_stats.json")))
	require.NoError(t, err)
	require.NoError(t, eng.IngestBatch(context.Background(), recs))
}

func TestExportPath(t *testing.T) {
	at := time.Date(2024, 5, 6, 7, 8, 9, 0, time.Local)

	assert.Equal(t, filepath.Join("data", "pipeline_stats_export_20240506_070809.json"), exportPath("", "data", false, at))
	assert.Equal(t, filepath.Join("data", "out.json.gz"), exportPath("out.json", "data", true, at))
	assert.Equal(t, "/tmp/x.json", exportPath("/tmp/x.json", "data", false, at))
}

func TestExpandPatterns(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"a/x.md", "a/b/y.md", "c.txt"} {
		p := filepath.Join(dir, f)
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte("x"), 0o644))
	}

	got, err := expandPatterns([]string{filepath.Join(dir, "**", "*.md")})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a", "x.md"), filepath.Join(dir, "a", "b", "y.md")}, got)

	got, err = expandPatterns([]string{filepath.Join(dir, "c.txt")})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	_, err = expandPatterns([]string{filepath.Join(dir, "missing.md")})
	assert.Error(t, err)
}

func TestTestParserCommand(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.md")
	plain := filepath.Join(dir, "plain.md")
	require.NoError(t, os.WriteFile(good, []byte(sampleSummary), 0o644))
	require.NoError(t, os.WriteFile(plain, []byte("LGTM"), 0o644))

	out, err := run(t, "test-parser", good, plain)
	require.NoError(t, err)
	assert.Contains(t, out, "demo")
	assert.Contains(t, out, "50.0%")
	assert.Contains(t, out, "boom")
	assert.Contains(t, out, "placeholder source: test/repo PR #123, comment 456 (not fetched)")
	assert.Contains(t, out, "no pipeline summary in this comment")
}

func TestStatsCommand(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	seed(t, dir,
		domain.ExecutionRecord{PipelineName: "demo", Status: domain.StatusSuccess, Repository: "o/r", ParsedAt: base},
		domain.ExecutionRecord{PipelineName: "demo", Status: domain.StatusFailed, Repository: "o/r", ParsedAt: base.Add(time.Hour)},
	)

	out, err := run(t, "stats", "--data-dir", dir, "--min-executions", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "no pipelines match")

	out, err = run(t, "stats", "--data-dir", dir, "--min-executions", "0", "--pipeline", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "Pipeline demo")
	assert.Contains(t, out, "50.0%")

	_, err = run(t, "stats", "--data-dir", dir, "--pipeline", "", "--status", "✅")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidStatus)
}

func TestExportCommandWritesGzip(t *testing.T) {
	dir := t.TempDir()
	seed(t, dir, domain.ExecutionRecord{PipelineName: "demo", Status: domain.StatusSuccess, ParsedAt: time.Now().UTC()})

	out, err := run(t, "export", "--data-dir", dir, "--filename", "snap.json", "--gzip")
	require.NoError(t, err)
	assert.Contains(t, out, "snap.json.gz")

	snap, err := snapshot_fs.New(filepath.Join(dir, "snap.json.gz")).Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TotalExecutions)
}

func TestWatchAndReloadUpdatesRepositories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("poll:\n  repositories: [a/b]\n"), 0o644))

	sched := application.NewScheduler(zap.NewNop(), nil, []string{"a/b"}, application.SyncRequest{}, time.Minute, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watchAndReload(ctx, path, zap.NewNop(), sched)

	require.NoError(t, os.WriteFile(path, []byte("poll:\n  repositories: [c/d, e/f]\n"), 0o644))
	assert.Eventually(t, func() bool {
		got := sched.Repos()
		return len(got) == 2 && got[0] == "c/d" && got[1] == "e/f"
	}, 5*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte("poll:\n  repositories: []\n"), 0o644))
	time.Sleep(500 * time.Millisecond)
	assert.Equal(t, []string{"c/d", "e/f"}, sched.Repos(), "an empty list keeps the current repositories")
}
