package github_http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/davarch/pipeline-stats/internal/domain"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/sync/errgroup"
)

const defaultPageSize = 100

// Client reads pull request comments from the GitHub REST API.
type Client struct {
	baseURL     string
	hc          *http.Client
	log         *zap.Logger
	now         func() time.Time
	pageSize    int
	concurrency int
	retry       func() backoff.BackOff
}

type Option func(*Client)

func WithLogger(l *zap.Logger) Option { return func(c *Client) { c.log = l } }

func WithClock(now func() time.Time) Option { return func(c *Client) { c.now = now } }

// WithConcurrency bounds the number of pull requests whose comments are
// fetched at once.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithRetry replaces the retry policy used for every request.
func WithRetry(f func() backoff.BackOff) Option { return func(c *Client) { c.retry = f } }

// New builds a client. An empty token sends unauthenticated requests.
func New(baseURL string, token string, timeout time.Duration, opts ...Option) *Client {
	tr := &http.Transport{
		DialContext:         (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
		TLSHandshakeTimeout: 5 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}

	var rt http.RoundTripper = tr
	if token != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}),
			Base:   tr,
		}
	}

	c := &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		hc:          &http.Client{Transport: rt, Timeout: timeout},
		log:         zap.NewNop(),
		now:         time.Now,
		pageSize:    defaultPageSize,
		concurrency: 4,
		retry:       defaultRetry,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func defaultRetry() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 300 * time.Millisecond
	bo.MaxInterval = 2 * time.Second
	bo.MaxElapsedTime = 10 * time.Second
	return bo
}

type userDTO struct {
	Login string `json:"login"`
}

type pullDTO struct {
	Number    int       `json:"number"`
	HTMLURL   string    `json:"html_url"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	UpdatedAt time.Time `json:"updated_at"`
}

type commentDTO struct {
	ID        int64     `json:"id"`
	Body      string    `json:"body"`
	User      userDTO   `json:"user"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type rateDTO struct {
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	Reset     int64 `json:"reset"`
}

// RecentComments scans pull requests by most recent update, keeps at most
// q.Limit of those updated within q.DaysBack, looks at no more than
// q.MaxPRs, and returns their issue comments created after the same
// cutoff. Comments come back grouped by pull request in scan order.
func (c *Client) RecentComments(ctx context.Context, repo string, q domain.CommentQuery) ([]domain.Comment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}
	cutoff := c.now().AddDate(0, 0, -q.DaysBack)

	pulls, err := c.recentPulls(ctx, owner, name, q, cutoff)
	if err != nil {
		return nil, err
	}
	c.log.Debug("recent pull requests",
		zap.String("repository", repo),
		zap.Int("pulls", len(pulls)),
		zap.Time("cutoff", cutoff),
	)

	perPull := make([][]domain.Comment, len(pulls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, p := range pulls {
		i, p := i, p
		g.Go(func() error {
			comments, err := c.issueComments(gctx, owner, name, p)
			if err != nil {
				if errors.Is(err, domain.ErrUnauthorized) || gctx.Err() != nil {
					return err
				}
				c.log.Warn("skip pull request comments",
					zap.String("repository", repo),
					zap.Int("pr", p.Number),
					zap.Error(err),
				)
				return nil
			}
			for _, cm := range comments {
				if !cm.CreatedAt.Before(cutoff) {
					perPull[i] = append(perPull[i], cm)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]domain.Comment, 0)
	for _, cs := range perPull {
		out = append(out, cs...)
	}
	return out, nil
}

// recentPulls relies on the API ordering by update time, newest first, so
// the scan stops at the first pull request older than cutoff.
func (c *Client) recentPulls(ctx context.Context, owner, name string, q domain.CommentQuery, cutoff time.Time) ([]pullDTO, error) {
	out := make([]pullDTO, 0)
	seen := 0
	path := fmt.Sprintf("/repos/%s/%s/pulls", owner, name)

	for page := 1; ; page++ {
		params := url.Values{
			"state":     {"all"},
			"sort":      {"updated"},
			"direction": {"desc"},
			"per_page":  {strconv.Itoa(c.pageSize)},
			"page":      {strconv.Itoa(page)},
		}
		var batch []pullDTO
		if err := c.get(ctx, path, params, &batch); err != nil {
			return nil, err
		}

		for _, p := range batch {
			seen++
			if q.MaxPRs > 0 && seen > q.MaxPRs {
				return out, nil
			}
			if p.UpdatedAt.Before(cutoff) {
				return out, nil
			}
			out = append(out, p)
			if q.Limit > 0 && len(out) >= q.Limit {
				return out, nil
			}
		}
		if len(batch) < c.pageSize {
			return out, nil
		}
	}
}

// PullRequestComments returns every issue comment on one pull request.
func (c *Client) PullRequestComments(ctx context.Context, repo string, number int) ([]domain.Comment, error) {
	owner, name, err := splitRepo(repo)
	if err != nil {
		return nil, err
	}

	var p pullDTO
	if err := c.get(ctx, fmt.Sprintf("/repos/%s/%s/pulls/%d", owner, name, number), nil, &p); err != nil {
		return nil, err
	}
	return c.issueComments(ctx, owner, name, p)
}

func (c *Client) issueComments(ctx context.Context, owner, name string, p pullDTO) ([]domain.Comment, error) {
	path := fmt.Sprintf("/repos/%s/%s/issues/%d/comments", owner, name, p.Number)
	out := make([]domain.Comment, 0)

	for page := 1; ; page++ {
		params := url.Values{
			"per_page": {strconv.Itoa(c.pageSize)},
			"page":     {strconv.Itoa(page)},
		}
		var batch []commentDTO
		if err := c.get(ctx, path, params, &batch); err != nil {
			return nil, err
		}
		for _, cm := range batch {
			out = append(out, domain.Comment{
				ID:        cm.ID,
				Body:      cm.Body,
				Author:    cm.User.Login,
				CreatedAt: cm.CreatedAt,
				UpdatedAt: cm.UpdatedAt,
				PRNumber:  p.Number,
				PRURL:     p.HTMLURL,
				PRTitle:   p.Title,
				PRState:   p.State,
			})
		}
		if len(batch) < c.pageSize {
			return out, nil
		}
	}
}

// RateLimit reports the core API quota.
func (c *Client) RateLimit(ctx context.Context) (domain.RateLimit, error) {
	var body struct {
		Resources struct {
			Core rateDTO `json:"core"`
		} `json:"resources"`
	}
	if err := c.get(ctx, "/rate_limit", nil, &body); err != nil {
		return domain.RateLimit{}, err
	}
	core := body.Resources.Core
	return domain.RateLimit{
		Limit:     core.Limit,
		Remaining: core.Remaining,
		Reset:     time.Unix(core.Reset, 0).UTC(),
	}, nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/vnd.github+json")
		req.Header.Set("X-GitHub-Api-Version", "2022-11-28")

		resp, err := c.hc.Do(req)
		if err != nil {
			return err
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			if ra := resp.Header.Get("Retry-After"); ra != "" {
				if sec, _ := strconv.Atoi(ra); sec > 0 {
					select {
					case <-time.After(time.Duration(sec) * time.Second):
					case <-ctx.Done():
						return backoff.Permanent(ctx.Err())
					}
					return fmt.Errorf("retry after due to 429")
				}
			}
			return fmt.Errorf("github 429")
		case resp.StatusCode == http.StatusUnauthorized:
			return backoff.Permanent(fmt.Errorf("github %s: %w", resp.Status, domain.ErrUnauthorized))
		case resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0":
			return backoff.Permanent(fmt.Errorf("github rate limit exhausted, resets at %s", resetTime(resp.Header)))
		case resp.StatusCode == http.StatusNotFound:
			return backoff.Permanent(fmt.Errorf("github %s %s: %w", resp.Status, path, domain.ErrNotFound))
		case resp.StatusCode >= 500:
			return fmt.Errorf("github %s", resp.Status)
		case resp.StatusCode >= 300:
			return backoff.Permanent(fmt.Errorf("github %s", resp.Status))
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return backoff.Permanent(fmt.Errorf("decode %s: %w", path, err))
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(c.retry(), ctx))
}

func resetTime(h http.Header) string {
	sec, err := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return "unknown"
	}
	return time.Unix(sec, 0).UTC().Format(time.RFC3339)
}

func splitRepo(repo string) (string, string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository must be owner/name, got %q", repo)
	}
	return url.PathEscape(owner), url.PathEscape(name), nil
}
