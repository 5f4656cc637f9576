// Package runner owns the global run slot and drives individual runs from
// creation through finalization.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"tidy/internal/faults"
	"tidy/internal/logging"
	"tidy/internal/organizer"
	"tidy/internal/rules"
	"tidy/internal/runlog"
	"tidy/internal/store"
)

// Request describes a run to start: either derived from a configured disk
// or an ad-hoc source directory.
type Request struct {
	DiskName  string
	SourceDir string
	SortedDir string
	DryRun    bool
}

// RequestForDisk builds a run request from a configured disk.
func RequestForDisk(d store.Disk, dryRun bool) Request {
	return Request{
		DiskName:  d.Name,
		SourceDir: d.SourceDir,
		SortedDir: d.SortedDir,
		DryRun:    dryRun,
	}
}

// Status is a point-in-time snapshot of the run slot.
type Status struct {
	Status        string     `json:"status"`
	Disk          string     `json:"disk,omitempty"`
	RunID         int64      `json:"run_id,omitempty"`
	LastRunAt     *time.Time `json:"last_run_ts,omitempty"`
	LastRunStatus string     `json:"last_run_status,omitempty"`
}

type activeRun struct {
	runID  int64
	disk   string
	cancel context.CancelFunc
}

// Runner serializes run execution through a single slot. At most one run is
// active at a time; a second start attempt fails with a conflict before any
// run row is created.
type Runner struct {
	store  *store.Store
	hub    *runlog.Hub
	logger *slog.Logger

	rootCtx    context.Context
	rootCancel context.CancelFunc

	// execFn is the run body, replaceable in tests.
	execFn func(ctx context.Context, opts organizer.Options, log *runlog.Log) (int, error)

	mu            sync.Mutex
	active        *activeRun
	lastRunAt     *time.Time
	lastRunStatus string
	wg            sync.WaitGroup
}

// New constructs a runner with an empty slot.
func New(st *store.Store, hub *runlog.Hub, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		store:      st,
		hub:        hub,
		logger:     logging.WithComponent(logger, "runner"),
		rootCtx:    ctx,
		rootCancel: cancel,
		execFn:     organizer.Execute,
	}
}

// Start validates the request, acquires the run slot, creates the run
// record, and launches execution on its own goroutine. When the slot is
// occupied it fails with a conflict and no run row is created.
func (r *Runner) Start(ctx context.Context, req Request) (int64, error) {
	if req.SourceDir == "" {
		return 0, faults.Wrap(faults.ErrValidation, "start run", "source directory is required", nil)
	}
	diskLabel := req.DiskName
	if diskLabel == "" {
		diskLabel = "Custom Run"
	}

	r.mu.Lock()
	if r.active != nil {
		held := r.active.disk
		r.mu.Unlock()
		return 0, faults.Wrap(faults.ErrConflict, "start run", fmt.Sprintf("a run is already in progress for %s", held), nil)
	}
	// Reserve the slot before touching the database so a concurrent Start
	// observes the conflict immediately.
	r.active = &activeRun{disk: diskLabel}
	r.mu.Unlock()

	correlationID := uuid.NewString()
	runID, err := r.store.CreateRun(ctx, diskLabel, req.SourceDir, correlationID, req.DryRun)
	if err != nil {
		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()
		return 0, err
	}

	categories, err := r.store.ListCategories(ctx)
	if err != nil {
		r.mu.Lock()
		r.active = nil
		r.mu.Unlock()
		return 0, err
	}

	runCtx, cancel := context.WithCancel(r.rootCtx)
	log := r.hub.Open(runID)

	r.mu.Lock()
	r.active.runID = runID
	r.active.cancel = cancel
	r.mu.Unlock()

	r.logger.Info("run started",
		slog.Int64(logging.FieldRunID, runID),
		slog.String(logging.FieldDisk, diskLabel),
		slog.String(logging.FieldCorrelationID, correlationID),
		slog.Bool("dry_run", req.DryRun),
	)

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		r.execute(runCtx, runID, req, categories, log)
	}()
	return runID, nil
}

func (r *Runner) execute(ctx context.Context, runID int64, req Request, categories []rules.Category, log *runlog.Log) {
	log.Appendf("Starting run for %s (dry_run=%t)", req.SourceDir, req.DryRun)

	moved, execErr := r.execFn(ctx, organizer.Options{
		SourceDir:  req.SourceDir,
		SortedDir:  req.SortedDir,
		Categories: categories,
		DryRun:     req.DryRun,
	}, log)

	status := store.RunStatusSuccess
	if execErr != nil {
		status = store.RunStatusError
		log.Appendf("Error during run for %s: %v", req.SourceDir, execErr)
	} else {
		log.Appendf("Completed run for %s: moved=%d", req.SourceDir, moved)
	}

	// Persist the terminal state before closing the log stream and before
	// releasing the slot, so observers never see an idle slot with a run
	// still marked running.
	if err := r.store.FinishRun(context.Background(), runID, status, moved, log.Text()); err != nil {
		r.logger.Error("persist run outcome",
			slog.Int64(logging.FieldRunID, runID),
			logging.Error(err),
		)
	}
	r.hub.Finish(runID)

	now := time.Now().UTC()
	r.mu.Lock()
	r.active = nil
	r.lastRunAt = &now
	r.lastRunStatus = string(status)
	r.mu.Unlock()

	r.logger.Info("run finished",
		slog.Int64(logging.FieldRunID, runID),
		slog.String("status", string(status)),
		slog.Int("files_moved", moved),
	)
}

// Status reports the slot state without blocking run execution.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := Status{
		Status:        "idle",
		LastRunAt:     r.lastRunAt,
		LastRunStatus: r.lastRunStatus,
	}
	if r.active != nil {
		s.Status = "running"
		s.Disk = r.active.disk
		s.RunID = r.active.runID
	}
	return s
}

// Busy reports whether a run currently holds the slot.
func (r *Runner) Busy() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// Close cancels any in-flight run and waits for its finalization.
func (r *Runner) Close() {
	r.rootCancel()
	r.wg.Wait()
}
