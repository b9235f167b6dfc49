package application

import (
	"context"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler repeats a sync of every configured repository on a fixed
// interval until its context ends. A tick is skipped while the pause file
// exists.
type Scheduler struct {
	log       *zap.Logger
	use       *SyncUseCase
	template  SyncRequest
	every     time.Duration
	pauseFile string

	mu    sync.RWMutex
	repos []string
}

// NewScheduler builds a scheduler. template carries the query and
// skip-seen setting applied to every repository.
func NewScheduler(l *zap.Logger, u *SyncUseCase, repos []string, template SyncRequest, every time.Duration, pauseFile string) *Scheduler {
	return &Scheduler{
		log: l, use: u, repos: repos, template: template, every: every, pauseFile: pauseFile,
	}
}

func (s *Scheduler) UpdateRepos(repos []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.repos = repos
	s.log.Info("config reloaded", zap.Int("repositories", len(repos)))
}

func (s *Scheduler) UpdatePauseFile(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauseFile = path
}

func (s *Scheduler) Repos() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.repos))
	copy(out, s.repos)
	return out
}

func (s *Scheduler) Run(ctx context.Context) {
	t := time.NewTicker(s.every)
	defer t.Stop()

	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	if s.isPaused() {
		s.log.Debug("paused: skipping poll")
		return
	}
	s.runAll(ctx)
}

func (s *Scheduler) isPaused() bool {
	s.mu.RLock()
	pauseFile := s.pauseFile
	s.mu.RUnlock()

	if pauseFile == "" {
		return false
	}
	_, err := os.Stat(pauseFile)
	return err == nil
}

func (s *Scheduler) runAll(ctx context.Context) {
	for _, repo := range s.Repos() {
		if ctx.Err() != nil {
			return
		}
		req := s.template
		req.Repository = repo
		req.PRNumber = 0

		res, err := s.use.Sync(ctx, req)
		if err != nil {
			s.log.Warn("sync failed", zap.String("repository", repo), zap.Error(err))
			continue
		}
		if res.Ingested > 0 {
			s.log.Info("new executions",
				zap.String("repository", repo),
				zap.Int("executions", res.Ingested),
				zap.Int("skipped", res.Skipped),
			)
		}
	}
}
