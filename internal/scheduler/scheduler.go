// Package scheduler evaluates per-disk cron specs on a minute tick and
// triggers runs through the runner's single slot.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"tidy/internal/faults"
	"tidy/internal/logging"
	"tidy/internal/runner"
	"tidy/internal/store"
)

const minuteKeyLayout = "2006-01-02 15:04"

// RunStarter is the slice of the runner the scheduler drives.
type RunStarter interface {
	Busy() bool
	Start(ctx context.Context, req runner.Request) (int64, error)
}

// Scheduler fires each disk's schedule at most once per matching minute.
// Misses are skipped, never queued: if the run slot is busy when a disk's
// minute arrives, that occurrence is logged and lost. Trigger bookkeeping
// is in-memory only and resets on restart.
type Scheduler struct {
	store  *store.Store
	runner RunStarter
	logger *slog.Logger

	interval time.Duration
	now      func() time.Time

	// lastFired maps disk name to the last minute it was triggered.
	lastFired map[string]string
}

// New constructs a scheduler ticking once per minute.
func New(st *store.Store, rn RunStarter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		store:     st,
		runner:    rn,
		logger:    logging.WithComponent(logger, "scheduler"),
		interval:  time.Minute,
		now:       time.Now,
		lastFired: make(map[string]string),
	}
}

// Run ticks until the context ends. It never returns a non-context error;
// evaluation failures are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started", logging.Duration("interval", s.interval))
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return ctx.Err()
		case <-ticker.C:
			s.Evaluate(ctx, s.now())
		}
	}
}

// Evaluate checks every scheduled disk against the given wall-clock time
// and triggers matches in ascending disk-name order. Exported so a tick can
// be driven directly in tests.
func (s *Scheduler) Evaluate(ctx context.Context, now time.Time) {
	disks, err := s.store.ListDisks(ctx)
	if err != nil {
		s.logger.Error("list disks for tick", logging.Error(err))
		return
	}

	minute := now.Format(minuteKeyLayout)
	for _, disk := range disks {
		spec, err := disk.Spec()
		if err != nil {
			s.logger.Warn("skipping disk with invalid schedule",
				logging.String(logging.FieldDisk, disk.Name),
				logging.Error(err),
			)
			continue
		}
		if spec == nil || !spec.Matches(now) {
			continue
		}
		if s.lastFired[disk.Name] == minute {
			continue
		}
		// The occurrence is consumed whether or not the run starts; a busy
		// slot means a miss, not a retry.
		s.lastFired[disk.Name] = minute

		if s.runner.Busy() {
			s.logger.Warn("scheduled run skipped, slot busy",
				logging.String(logging.FieldDisk, disk.Name),
				logging.String("minute", minute),
			)
			continue
		}
		runID, err := s.runner.Start(ctx, runner.RequestForDisk(disk, false))
		if err != nil {
			if errors.Is(err, faults.ErrConflict) {
				s.logger.Warn("scheduled run skipped, slot busy",
					logging.String(logging.FieldDisk, disk.Name),
					logging.String("minute", minute),
				)
			} else {
				s.logger.Error("scheduled run failed to start",
					logging.String(logging.FieldDisk, disk.Name),
					logging.Error(err),
				)
			}
			continue
		}
		s.logger.Info("scheduled run started",
			logging.String(logging.FieldDisk, disk.Name),
			logging.Int64(logging.FieldRunID, runID),
		)
	}
}
