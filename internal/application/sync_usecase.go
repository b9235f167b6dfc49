package application

import (
	"context"
	"fmt"
	"strings"

	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/parser"
	"go.uber.org/zap"
)

// Stats is the part of the aggregation engine a sync needs.
type Stats interface {
	IngestBatch(ctx context.Context, recs []domain.ExecutionRecord) error
	HasComment(id int64) bool
}

type SyncRequest struct {
	Repository string
	// PRNumber selects a single pull request; 0 scans recent ones.
	PRNumber int
	Query    domain.CommentQuery
	// SkipSeen drops comments whose id is already in the execution log.
	SkipSeen bool
}

type SyncResult struct {
	Repository string
	Comments   int
	Matched    int
	Parsed     int
	Skipped    int
	Ingested   int
	Executions []domain.ExecutionRecord
}

type SyncUseCase struct {
	log    *zap.Logger
	src    domain.CommentSource
	stats  Stats
	parser *parser.Parser
	note   domain.Notifier
	terms  []string
}

// NewSyncUseCase wires a sync. note may be nil; terms filter comments of a
// recent scan before parsing and an empty list lets everything through.
func NewSyncUseCase(log *zap.Logger, src domain.CommentSource, stats Stats, p *parser.Parser, note domain.Notifier, terms []string) *SyncUseCase {
	if log == nil {
		log = zap.NewNop()
	}
	return &SyncUseCase{log: log, src: src, stats: stats, parser: p, note: note, terms: terms}
}

// Sync fetches comments for one repository, parses the pipeline summaries
// among them and ingests the results with a single save. Notifications go
// out for every ingested failed execution.
func (uc *SyncUseCase) Sync(ctx context.Context, req SyncRequest) (SyncResult, error) {
	res := SyncResult{Repository: req.Repository}

	comments, err := uc.fetch(ctx, req)
	if err != nil {
		return res, fmt.Errorf("fetch comments for %s: %w", req.Repository, err)
	}
	res.Comments = len(comments)

	recs := make([]domain.ExecutionRecord, 0)
	for _, c := range comments {
		if req.PRNumber == 0 && !MatchesSearchTerms(c.Body, uc.terms) {
			continue
		}
		res.Matched++

		if req.SkipSeen && c.ID != 0 && uc.stats.HasComment(c.ID) {
			res.Skipped++
			continue
		}

		rec, ok := uc.parser.Parse(c.Body, parser.SourceFromComment(c, req.Repository))
		if !ok {
			continue
		}
		res.Parsed++
		recs = append(recs, rec)
	}

	uc.log.Debug("sync parsed",
		zap.String("repository", req.Repository),
		zap.Int("comments", res.Comments),
		zap.Int("matched", res.Matched),
		zap.Int("executions", len(recs)),
		zap.Int("skipped", res.Skipped),
	)

	if len(recs) == 0 {
		return res, nil
	}
	if err := uc.stats.IngestBatch(ctx, recs); err != nil {
		return res, fmt.Errorf("ingest %d executions: %w", len(recs), err)
	}
	res.Ingested = len(recs)
	res.Executions = recs

	uc.notifyFailures(ctx, recs)
	return res, nil
}

func (uc *SyncUseCase) fetch(ctx context.Context, req SyncRequest) ([]domain.Comment, error) {
	if req.PRNumber > 0 {
		return uc.src.PullRequestComments(ctx, req.Repository, req.PRNumber)
	}
	return uc.src.RecentComments(ctx, req.Repository, req.Query)
}

func (uc *SyncUseCase) notifyFailures(ctx context.Context, recs []domain.ExecutionRecord) {
	if uc.note == nil {
		return
	}
	for _, r := range recs {
		if r.Status != domain.StatusFailed {
			continue
		}
		if err := uc.note.Notify(ctx, titleFor(r), bodyFor(r), linkFor(r)); err != nil {
			uc.log.Warn("notify failed", zap.String("pipeline", r.PipelineName), zap.Error(err))
		}
	}
}

// MatchesSearchTerms reports whether body contains any of terms, ignoring
// case. No terms matches everything.
func MatchesSearchTerms(body string, terms []string) bool {
	if len(terms) == 0 {
		return true
	}
	lower := strings.ToLower(body)
	for _, t := range terms {
		if t = strings.TrimSpace(t); t != "" && strings.Contains(lower, strings.ToLower(t)) {
			return true
		}
	}
	return false
}

func titleFor(r domain.ExecutionRecord) string {
	return r.Status.Glyph() + " Pipeline " + string(r.Status) + ": " + r.PipelineName
}

func bodyFor(r domain.ExecutionRecord) string {
	var b strings.Builder
	b.WriteString(r.Repository)
	if r.PRNumber != nil {
		fmt.Fprintf(&b, " #%d", *r.PRNumber)
	}
	if r.FailedTasks > 0 {
		fmt.Fprintf(&b, " (%d/%d tasks failed)", r.FailedTasks, r.TotalTasks)
	}
	return strings.TrimSpace(b.String())
}

func linkFor(r domain.ExecutionRecord) string {
	if r.LogsURL != "" {
		return r.LogsURL
	}
	return r.PRURL
}
