package dailyrecord

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Syncer runs one sync pass.
type Syncer interface {
	Sync(ctx context.Context, force bool) (Report, error)
}

// Scheduler runs a Syncer on a fixed interval until its context ends.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler creates a Scheduler. interval must be positive.
func NewScheduler(s Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{syncer: s, interval: interval, logger: logger}
}

// Run syncs once immediately and then every interval. It returns nil when
// ctx is canceled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("daily record scheduler started", slog.Duration("interval", s.interval))
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("daily record scheduler stopped")
			return nil
		case <-timer.C:
			s.tick(ctx)
			timer.Reset(s.interval)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	_, err := s.syncer.Sync(ctx, false)
	switch {
	case err == nil:
	case errors.Is(err, ErrSyncInProgress):
		s.logger.Debug("daily record sync skipped, previous pass still running")
	case ctx.Err() != nil:
	default:
		s.logger.Error("daily record sync failed", slog.String("error", err.Error()))
	}
}
