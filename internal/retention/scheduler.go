// Package retention runs the scheduled jobs that purge expired records.
package retention

import (
	"context"
	"time"

	"github.com/nocson47/beaconofknowledge/internal/middleware"
	"github.com/nocson47/beaconofknowledge/internal/observability"

	"github.com/robfig/cron/v3"
)

const (
	// DefaultSchedule runs every job once an hour.
	DefaultSchedule = "@hourly"

	jobPasswordResets = "password_resets"
	jobDebugIndex     = "debug_index"
	jobTimeout        = 30 * time.Second
)

// ResetPurger removes password reset rows that expired before a cutoff.
type ResetPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int64, error)
}

// IndexPruner trims a listing index whose entries expire on their own.
type IndexPruner interface {
	Prune(ctx context.Context) (int64, error)
}

// Scheduler owns the cron runner for retention jobs.
type Scheduler struct {
	cron   *cron.Cron
	resets ResetPurger
	debug  IndexPruner
	now    func() time.Time
}

// NewScheduler wires the jobs. A nil debug skips the debug index job.
func NewScheduler(resets ResetPurger, debug IndexPruner) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		resets: resets,
		debug:  debug,
		now:    time.Now,
	}
}

// Start registers the jobs on schedule and starts the runner.
func (s *Scheduler) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
		defer cancel()
		_, _ = s.PurgeResets(ctx)
		_, _ = s.PruneDebugIndex(ctx)
	}); err != nil {
		return err
	}
	s.cron.Start()
	middleware.Logger.Info("Retention scheduler started", "schedule", schedule)
	return nil
}

// Stop waits for a running job to finish.
func (s *Scheduler) Stop() {
	if s == nil || s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	middleware.Logger.Info("Retention scheduler stopped")
}

// PurgeResets deletes expired password reset tokens once.
func (s *Scheduler) PurgeResets(ctx context.Context) (int64, error) {
	n, err := s.resets.PurgeExpired(ctx, s.now())
	if err != nil {
		middleware.Logger.Error("Retention job failed", "job", jobPasswordResets, "error", err)
		return 0, err
	}
	observability.RetentionPurged.WithLabelValues(jobPasswordResets).Add(float64(n))
	if n > 0 {
		middleware.Logger.Info("Retention job purged rows", "job", jobPasswordResets, "rows", n)
	}
	return n, nil
}

// PruneDebugIndex trims the debug trail index once.
func (s *Scheduler) PruneDebugIndex(ctx context.Context) (int64, error) {
	if s.debug == nil {
		return 0, nil
	}
	n, err := s.debug.Prune(ctx)
	if err != nil {
		middleware.Logger.Error("Retention job failed", "job", jobDebugIndex, "error", err)
		return 0, err
	}
	observability.RetentionPurged.WithLabelValues(jobDebugIndex).Add(float64(n))
	if n > 0 {
		middleware.Logger.Info("Retention job purged rows", "job", jobDebugIndex, "rows", n)
	}
	return n, nil
}
