package cli

import (
	"fmt"

	"github.com/davarch/pipeline-stats/internal/application"
	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/infrastructure/github_http"
	"github.com/davarch/pipeline-stats/internal/parser"
	"github.com/davarch/pipeline-stats/internal/stats"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	parsePR       int
	parseLimit    int
	parseDays     int
	parseMaxPRs   int
	parseSkipSeen bool
	parseToken    string
)

var parseCmd = &cobra.Command{
	Use:   "parse <owner/repo>",
	Short: "Fetch pull request comments and record the pipeline summaries found",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo := args[0]
		if parseToken != "" {
			cfg.GitHub.Token = parseToken
		}
		if err := cfg.RequireToken(); err != nil {
			return err
		}

		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		gh := newGitHubClient()
		eng := openEngine(ctx)
		uc := application.NewSyncUseCase(logger, gh, eng, parser.New(), nil, cfg.Fetch.SearchTerms)

		q := domain.CommentQuery{Limit: cfg.Fetch.Limit, DaysBack: cfg.Fetch.DaysBack, MaxPRs: cfg.GitHub.MaxPRs}
		if cmd.Flags().Changed("limit") {
			q.Limit = parseLimit
		}
		if cmd.Flags().Changed("days") {
			q.DaysBack = parseDays
		}
		if cmd.Flags().Changed("max-prs") {
			q.MaxPRs = parseMaxPRs
		}

		logger.Info("parse",
			zap.String("repository", repo),
			zap.Int("pr", parsePR),
			zap.Int("limit", q.Limit),
			zap.Int("days_back", q.DaysBack),
			zap.Int("max_prs", q.MaxPRs),
		)

		res, err := uc.Sync(ctx, application.SyncRequest{
			Repository: repo,
			PRNumber:   parsePR,
			Query:      q,
			SkipSeen:   parseSkipSeen,
		})
		if err != nil {
			return err
		}

		_, _ = fmt.Fprintf(out, "%d comments fetched, %d matched, %d already recorded, %d pipeline executions added\n",
			res.Comments, res.Matched, res.Skipped, res.Ingested)
		if res.Ingested == 0 {
			return nil
		}

		sum, err := eng.Summary(stats.SummaryFilter{})
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out)
		printTitle(out, "Statistics")
		for _, l := range summaryLines(sum) {
			_, _ = fmt.Fprintln(out, l)
		}
		return nil
	},
}

func newGitHubClient() *github_http.Client {
	return github_http.New(cfg.GitHub.BaseURL, cfg.GitHub.Token, cfg.GitHub.Timeout,
		github_http.WithLogger(logger),
		github_http.WithConcurrency(cfg.GitHub.Concurrency),
	)
}

func init() {
	parseCmd.Flags().IntVar(&parsePR, "pr", 0, "parse a single pull request")
	parseCmd.Flags().IntVar(&parseLimit, "limit", 50, "maximum number of recent pull requests to check (overrides fetch.limit)")
	parseCmd.Flags().IntVar(&parseDays, "days", 30, "how many days back to search (overrides fetch.days_back)")
	parseCmd.Flags().IntVar(&parseMaxPRs, "max-prs", 500, "maximum number of pull requests to scan (overrides github.max_prs)")
	parseCmd.Flags().BoolVar(&parseSkipSeen, "skip-seen", true, "skip comments that were already recorded")
	parseCmd.Flags().StringVar(&parseToken, "token", "", "GitHub token (or set GITHUB_TOKEN)")

	rootCmd.AddCommand(parseCmd)
}
