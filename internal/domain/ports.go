package domain

import "context"

type CommentSource interface {
	RecentComments(ctx context.Context, repo string, q CommentQuery) ([]Comment, error)
	PullRequestComments(ctx context.Context, repo string, number int) ([]Comment, error)
}

type Notifier interface {
	Notify(ctx context.Context, title, body, url string) error
}

// SnapshotStore loads and saves the whole aggregation state. Load returns an
// empty snapshot and no error when nothing was persisted yet.
type SnapshotStore interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, s Snapshot) error
}
