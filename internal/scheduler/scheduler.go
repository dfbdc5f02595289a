// Package scheduler periodically triggers due tracker runs. It is a
// plain ticker loop: the pipeline itself owns no timers and can be
// driven by any external trigger.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/elonfeng/tracklens/internal/store"
	"github.com/elonfeng/tracklens/pkg/alert"
	"github.com/elonfeng/tracklens/pkg/pipeline"
)

// Scheduler runs due trackers on an interval.
type Scheduler struct {
	store      store.Store
	runner     *pipeline.Runner
	alertMgr   *alert.Manager
	interval   time.Duration
	minResults int
	logger     *zap.Logger
}

// New creates a new scheduler.
func New(s store.Store, runner *pipeline.Runner, alertMgr *alert.Manager, interval time.Duration, minResults int, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if minResults <= 0 {
		minResults = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:      s,
		runner:     runner,
		alertMgr:   alertMgr,
		interval:   interval,
		minResults: minResults,
		logger:     logger,
	}
}

// Run starts the trigger loop. Blocks until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("scheduler running", zap.Duration("check_interval", s.interval))

	// Check immediately on start.
	s.runDue(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// RunDue triggers one pass outside the loop; the CLI uses it for
// one-shot execution.
func (s *Scheduler) RunDue(ctx context.Context) {
	s.runDue(ctx)
}

func (s *Scheduler) runDue(ctx context.Context) {
	trackers, err := s.store.ListTrackers(ctx, store.ListTrackersOpts{Limit: 500})
	if err != nil {
		s.logger.Error("list trackers", zap.Error(err))
		return
	}

	now := time.Now().UTC()
	for i := range trackers {
		tr := &trackers[i]
		if !tr.LastRunAt.IsZero() && now.Sub(tr.LastRunAt) < tr.Interval() {
			continue
		}

		run, results, err := s.runner.Run(ctx, tr)
		if err != nil {
			s.logger.Warn("tracker run failed",
				zap.String("tracker", tr.ID), zap.Error(err))
			continue
		}

		s.notify(ctx, tr, run, results)
	}
}

func (s *Scheduler) notify(ctx context.Context, tr *store.Tracker, run *store.TrackerRun, results []store.TrackerResult) {
	if s.alertMgr == nil || !s.alertMgr.HasNotifiers() || len(results) < s.minResults {
		return
	}

	n := &alert.Notification{
		TrackerID: tr.ID,
		Prompt:    tr.Prompt,
		RunID:     run.ID,
		Count:     len(results),
		Results:   results,
	}
	if err := s.alertMgr.Broadcast(ctx, n); err != nil {
		s.logger.Warn("alert broadcast failed",
			zap.String("tracker", tr.ID), zap.Error(err))
	}
}
