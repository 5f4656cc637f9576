// Package daemon ties the store, runner, scheduler, and HTTP API into a
// single long-running process guarded by a lock file.
package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gofrs/flock"

	"tidy/internal/config"
	"tidy/internal/logging"
	"tidy/internal/runlog"
	"tidy/internal/runner"
	"tidy/internal/scheduler"
	"tidy/internal/store"
)

// Version is reported by /api/version and the CLI.
const Version = "1.1.0"

// Daemon owns the background services and the API server.
type Daemon struct {
	cfg    *config.Config
	store  *store.Store
	logger *slog.Logger

	hub    *runlog.Hub
	runner *runner.Runner
	sched  *scheduler.Scheduler
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New wires a daemon from an opened store and loaded configuration.
func New(cfg *config.Config, st *store.Store, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, fmt.Errorf("daemon requires configuration and store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	hub := runlog.NewHub()
	rn := runner.New(st, hub, logger)
	d := &Daemon{
		cfg:      cfg,
		store:    st,
		logger:   logging.WithComponent(logger, "daemon"),
		hub:      hub,
		runner:   rn,
		sched:    scheduler.New(st, rn, logger),
		lockPath: cfg.LockPath(),
		lock:     flock.New(cfg.LockPath()),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the daemon lock, reconciles interrupted runs, and brings
// up the scheduler and API server. Crash reconciliation happens before
// either can trigger new runs.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return fmt.Errorf("daemon already started")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another instance is already running (lock %s)", d.lockPath)
	}

	recovered, err := d.store.RecoverInterrupted(ctx)
	if err != nil {
		_ = d.lock.Unlock()
		return fmt.Errorf("recover interrupted runs: %w", err)
	}
	if recovered > 0 {
		d.logger.Warn("marked interrupted runs as failed", logging.Int64("count", recovered))
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.api.start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	if d.cfg.Scheduler.Enabled {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.sched.Run(runCtx)
		}()
	} else {
		d.logger.Info("scheduler disabled by configuration")
	}

	d.started = true
	d.logger.Info("daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop shuts down the API server, cancels background work, waits for an
// in-flight run to finalize, and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}

	d.api.stop()
	if d.cancel != nil {
		d.cancel()
	}
	d.wg.Wait()
	d.runner.Close()

	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.started = false
	d.logger.Info("daemon stopped")
}

// Runner exposes the run slot for handlers and tests.
func (d *Daemon) Runner() *runner.Runner { return d.runner }

// Hub exposes the live run-log hub.
func (d *Daemon) Hub() *runlog.Hub { return d.hub }

// Addr returns the API listen address once started, empty otherwise.
func (d *Daemon) Addr() string {
	return d.api.addr()
}
