// Package parser turns pipeline summary comments into execution records.
//
// Summaries are written by humans and bots in several loosely related
// markdown shapes. Every field is extracted independently and a missing
// field never rejects the comment; only the "Pipeline Summary" heading is
// required.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/davarch/pipeline-stats/internal/domain"
)

var (
	summaryHeading = regexp.MustCompile(`(?i)#\s*Pipeline Summary`)

	pipelineName     = regexp.MustCompile(`(?i)Pipeline:\s*[*_]?([^*_\n]+)[*_]?`)
	altPipelineNames = []*regexp.Regexp{
		regexp.MustCompile(`(?i)#\s*Pipeline:\s*(.+)`),
		regexp.MustCompile(`(?i)Pipeline\s*Name:\s*(.+)`),
		regexp.MustCompile(`(?i)Running pipeline:\s*(.+)`),
	}

	pipelineRunName = regexp.MustCompile(`(?i)PipelineRun:\s*[*_]?([^*_\n]+)[*_]?`)
	startTime       = regexp.MustCompile(`(?i)Start Time:\s*[*_]?([^*_\n]+)[*_]?`)
	successRate     = regexp.MustCompile(`(?i)Success Rate:\s*(\d+(?:\.\d+)?)\s*%`)
	duration        = regexp.MustCompile(`(?i)Duration:\s*([^:\n]+)`)
	logsURL         = regexp.MustCompile(`(?i)Pipeline logs:\s*(https?://\S+)`)
	troubleshooting = regexp.MustCompile(`(?i)\[troubleshooting guide\]\(([^)]+)\)`)
	restartCommand  = regexp.MustCompile("(?i)Run\\s+`([^`]+)`\\s+in case of pipeline failure")

	listTask      = regexp.MustCompile(`(?i)[-*]\s*(.+?):\s*(` + glyphAlternation() + `)(?:\s*\(([^)]+)\))?`)
	durationLike  = regexp.MustCompile(`^\d+[hms]`)
	delimiterCell = regexp.MustCompile(`^-+$`)
)

func glyphAlternation() string {
	glyphs := domain.StatusGlyphs()
	quoted := make([]string, len(glyphs))
	for i, g := range glyphs {
		quoted[i] = regexp.QuoteMeta(g)
	}
	return strings.Join(quoted, "|")
}

// Source identifies where a comment came from. All fields are optional and
// are copied onto the record unchanged.
type Source struct {
	PRNumber   *int
	PRURL      string
	CommentID  *int64
	Repository string
}

// SourceFromComment builds a Source for a fetched comment.
func SourceFromComment(c domain.Comment, repository string) Source {
	src := Source{PRURL: c.PRURL, Repository: repository}
	if c.PRNumber != 0 {
		n := c.PRNumber
		src.PRNumber = &n
	}
	if c.ID != 0 {
		id := c.ID
		src.CommentID = &id
	}
	return src
}

type Parser struct {
	now func() time.Time
}

type Option func(*Parser)

// WithClock overrides the clock used for ParsedAt.
func WithClock(now func() time.Time) Option {
	return func(p *Parser) { p.now = now }
}

func New(opts ...Option) *Parser {
	p := &Parser{now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(p)
	}
	return p
}

// IsSummary reports whether body carries a pipeline summary heading.
func IsSummary(body string) bool {
	return summaryHeading.MatchString(body)
}

// Parse extracts an execution record from a comment body. The second return
// value is false when the comment is not a pipeline summary.
func (p *Parser) Parse(body string, src Source) (domain.ExecutionRecord, bool) {
	if !IsSummary(body) {
		return domain.ExecutionRecord{}, false
	}

	rec := domain.ExecutionRecord{
		PipelineName:       extractPipelineName(body),
		PipelineRunName:    firstGroup(pipelineRunName, body),
		Duration:           firstGroup(duration, body),
		LogsURL:            firstGroup(logsURL, body),
		TroubleshootingURL: firstGroup(troubleshooting, body),
		RestartCommand:     firstGroup(restartCommand, body),
		PRNumber:           src.PRNumber,
		PRURL:              src.PRURL,
		CommentID:          src.CommentID,
		Repository:         src.Repository,
		ParsedAt:           p.now(),
	}

	if v := firstGroup(startTime, body); v != "" {
		rec.StartTime = parseTime(v, true)
	}

	tasks := tableTasks(body)
	if len(tasks) == 0 {
		tasks = listTasks(body)
	}
	rec.Tasks = tasks
	summarize(&rec)

	if v := firstGroup(successRate, body); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			rec.SuccessRate = &f
		}
	}
	if rec.SuccessRate == nil && rec.TotalTasks > 0 {
		f := domain.Rate(rec.SuccessfulTasks, rec.TotalTasks)
		rec.SuccessRate = &f
	}

	return rec, true
}

// summarize fills the task counters and the overall status.
func summarize(rec *domain.ExecutionRecord) {
	running := false
	for _, t := range rec.Tasks {
		switch t.Status {
		case domain.StatusSuccess:
			rec.SuccessfulTasks++
		case domain.StatusFailed:
			rec.FailedTasks++
		case domain.StatusSkipped:
			rec.SkippedTasks++
		case domain.StatusRunning:
			running = true
		}
	}
	rec.TotalTasks = len(rec.Tasks)

	switch {
	case rec.FailedTasks > 0:
		rec.Status = domain.StatusFailed
	case rec.TotalTasks > 0 && rec.SuccessfulTasks == rec.TotalTasks:
		rec.Status = domain.StatusSuccess
	case running:
		rec.Status = domain.StatusRunning
	default:
		rec.Status = domain.StatusUnknown
	}
}

func extractPipelineName(body string) string {
	if m := pipelineName.FindStringSubmatch(body); m != nil {
		return orUnknown(strings.TrimSpace(m[1]))
	}
	for _, re := range altPipelineNames {
		if m := re.FindStringSubmatch(body); m != nil {
			return orUnknown(strings.Trim(m[1], "`\" \n\t\r"))
		}
	}
	return domain.UnknownPipeline
}

func orUnknown(name string) string {
	if name == "" {
		return domain.UnknownPipeline
	}
	return name
}

func firstGroup(re *regexp.Regexp, body string) string {
	m := re.FindStringSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}

func listTasks(body string) []domain.TaskRecord {
	var tasks []domain.TaskRecord
	for _, m := range listTask.FindAllStringSubmatch(body, -1) {
		name := strings.TrimSpace(m[1])
		if name == "" {
			continue
		}
		t := domain.TaskRecord{Name: name, Status: domain.ResolveStatus(m[2])}

		if extra := m[3]; extra != "" {
			switch {
			case durationLike.MatchString(extra):
				t.Duration = extra
			case t.Status == domain.StatusFailed:
				t.ErrorMessage = extra
			}
		}
		tasks = append(tasks, t)
	}
	return tasks
}
