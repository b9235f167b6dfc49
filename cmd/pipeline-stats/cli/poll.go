package cli

import (
	"context"
	"errors"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/davarch/pipeline-stats/internal/application"
	"github.com/davarch/pipeline-stats/internal/domain"
	"github.com/davarch/pipeline-stats/internal/infrastructure/config"
	"github.com/davarch/pipeline-stats/internal/infrastructure/notify_libnotify"
	"github.com/davarch/pipeline-stats/internal/parser"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var pollNoNotify bool

var pollCmd = &cobra.Command{
	Use:   "poll",
	Short: "Sync the configured repositories on an interval",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.RequireToken(); err != nil {
			return err
		}
		if len(cfg.Poll.Repositories) == 0 {
			return errors.New("no repositories configured (poll.repositories or PIPESTATS_REPOSITORIES)")
		}

		ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		var note domain.Notifier
		if cfg.Poll.Notify && !pollNoNotify {
			note = notify_libnotify.NewSoft(notify_libnotify.Options{Urgency: "critical"})
		}

		eng := openEngine(ctx)
		uc := application.NewSyncUseCase(logger, newGitHubClient(), eng, parser.New(), note, cfg.Fetch.SearchTerms)

		template := application.SyncRequest{
			Query:    domain.CommentQuery{Limit: cfg.Fetch.Limit, DaysBack: cfg.Fetch.DaysBack, MaxPRs: cfg.GitHub.MaxPRs},
			SkipSeen: true,
		}
		sched := application.NewScheduler(logger, uc, cfg.Poll.Repositories, template, cfg.Poll.Interval, cfg.Poll.PauseFile)
		watchAndReload(ctx, cfgPath, logger, sched)

		logger.Info("start",
			zap.String("version", version),
			zap.Strings("repositories", cfg.Poll.Repositories),
			zap.Duration("every", cfg.Poll.Interval),
			zap.String("data", cfg.DataPath()),
			zap.String("github", cfg.GitHub.BaseURL),
			zap.String("pause_file", cfg.Poll.PauseFile),
			zap.Bool("notify", note != nil),
		)
		sched.Run(ctx)
		return nil
	},
}

func init() {
	pollCmd.Flags().BoolVar(&pollNoNotify, "no-notify", false, "disable desktop notifications for failed runs")

	rootCmd.AddCommand(pollCmd)
}

// watchAndReload pushes repository and pause file changes from the config
// file into the running scheduler. Events are debounced.
func watchAndReload(ctx context.Context, cfgPath string, log *zap.Logger, sched *application.Scheduler) {
	if cfgPath == "" {
		return
	}

	dir := filepath.Dir(cfgPath)
	base := filepath.Base(cfgPath)

	w, err := fsnotify.NewWatcher()
	if err != nil {
		log.Warn("fsnotify init failed", zap.Error(err))
		return
	}
	if err := w.Add(dir); err != nil {
		log.Warn("fsnotify add dir failed", zap.String("dir", dir), zap.Error(err))
		_ = w.Close()
		return
	}

	fire := func() {
		c, err := config.Load(cfgPath)
		if err != nil {
			log.Warn("config reload failed", zap.Error(err))
			return
		}
		if len(c.Poll.Repositories) == 0 {
			log.Warn("config reload: no repositories, keeping the current list")
			return
		}
		sched.UpdateRepos(c.Poll.Repositories)
		sched.UpdatePauseFile(c.Poll.PauseFile)
	}

	go func() {
		defer func() { _ = w.Close() }()

		var timer *time.Timer
		defer func() {
			if timer != nil {
				timer.Stop()
			}
		}()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != base {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}
				if timer == nil {
					timer = time.AfterFunc(300*time.Millisecond, fire)
				} else {
					timer.Reset(300 * time.Millisecond)
				}
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.Warn("fsnotify error", zap.Error(err))
			}
		}
	}()
}
