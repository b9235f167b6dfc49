package domain

import (
	"context"
)

type MockCommentSource struct {
	Comments  []Comment
	ByPR      map[int][]Comment
	Err       error
	Called    int
	LastRepo  string
	LastQuery CommentQuery
}

func (m *MockCommentSource) RecentComments(ctx context.Context, repo string, q CommentQuery) ([]Comment, error) {
	m.Called++
	m.LastRepo = repo
	m.LastQuery = q
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Comments, nil
}

func (m *MockCommentSource) PullRequestComments(ctx context.Context, repo string, number int) ([]Comment, error) {
	m.Called++
	m.LastRepo = repo
	if m.Err != nil {
		return nil, m.Err
	}
	return m.ByPR[number], nil
}

type MockNotifier struct {
	Messages []string
	Err      error
}

func (n *MockNotifier) Notify(ctx context.Context, title, body, url string) error {
	n.Messages = append(n.Messages, title+"|"+body+"|"+url)
	return n.Err
}

type MockStore struct {
	Snapshot *Snapshot
	LoadErr  error
	SaveErr  error
	Saves    int
}

func (s *MockStore) Load(ctx context.Context) (Snapshot, error) {
	if s.LoadErr != nil {
		return Snapshot{}, s.LoadErr
	}
	if s.Snapshot == nil {
		return NewSnapshot(), nil
	}
	return *s.Snapshot, nil
}

func (s *MockStore) Save(ctx context.Context, snap Snapshot) error {
	if s.SaveErr != nil {
		return s.SaveErr
	}
	s.Saves++
	s.Snapshot = &snap
	return nil
}
