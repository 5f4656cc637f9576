package scheduler

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"tidy/internal/faults"
	"tidy/internal/runner"
	"tidy/internal/store"
)

type fakeStarter struct {
	busy    bool
	nextID  int64
	started []runner.Request
}

func (f *fakeStarter) Busy() bool { return f.busy }

func (f *fakeStarter) Start(ctx context.Context, req runner.Request) (int64, error) {
	if f.busy {
		return 0, faults.Wrap(faults.ErrConflict, "start run", "a run is already in progress", nil)
	}
	f.started = append(f.started, req)
	f.nextID++
	return f.nextID, nil
}

func newTestScheduler(t *testing.T, starter RunStarter) (*Scheduler, *store.Store) {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "tidy.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return New(s, starter, nil), s
}

func mustUpsert(t *testing.T, s *store.Store, d store.Disk) {
	t.Helper()
	if err := s.UpsertDisk(context.Background(), d); err != nil {
		t.Fatalf("UpsertDisk(%s): %v", d.Name, err)
	}
}

func TestEvaluateTriggersMatchingDisk(t *testing.T) {
	starter := &fakeStarter{}
	sched, s := newTestScheduler(t, starter)
	mustUpsert(t, s, store.Disk{Name: "media", SourceDir: "/mnt/in", SortedDir: "/mnt/out", Schedule: "30 2 * * *"})
	mustUpsert(t, s, store.Disk{Name: "quiet", SourceDir: "/mnt/q", SortedDir: "/mnt/qs"})

	at := time.Date(2026, 3, 4, 2, 30, 0, 0, time.Local)
	sched.Evaluate(context.Background(), at)

	if len(starter.started) != 1 {
		t.Fatalf("started %d runs, want 1", len(starter.started))
	}
	if starter.started[0].DiskName != "media" || starter.started[0].DryRun {
		t.Errorf("request = %+v", starter.started[0])
	}
}

func TestEvaluateFiresOncePerMinute(t *testing.T) {
	starter := &fakeStarter{}
	sched, s := newTestScheduler(t, starter)
	mustUpsert(t, s, store.Disk{Name: "media", SourceDir: "/mnt/in", SortedDir: "/mnt/out", Schedule: "30 2 * * *"})

	at := time.Date(2026, 3, 4, 2, 30, 0, 0, time.Local)
	// A delayed or repeated tick in the same minute must not double-fire.
	sched.Evaluate(context.Background(), at)
	sched.Evaluate(context.Background(), at.Add(20*time.Second))
	if len(starter.started) != 1 {
		t.Fatalf("started %d runs, want 1", len(starter.started))
	}

	// The next day's occurrence fires again.
	sched.Evaluate(context.Background(), at.Add(24*time.Hour))
	if len(starter.started) != 2 {
		t.Fatalf("started %d runs, want 2", len(starter.started))
	}
}

func TestBusySlotSkipsWithoutQueueing(t *testing.T) {
	starter := &fakeStarter{busy: true}
	sched, s := newTestScheduler(t, starter)
	mustUpsert(t, s, store.Disk{Name: "media", SourceDir: "/mnt/in", SortedDir: "/mnt/out", Schedule: "30 2 * * *"})

	at := time.Date(2026, 3, 4, 2, 30, 0, 0, time.Local)
	sched.Evaluate(context.Background(), at)
	if len(starter.started) != 0 {
		t.Fatalf("busy slot still started a run")
	}

	// The occurrence is consumed: freeing the slot within the same minute
	// does not resurrect it.
	starter.busy = false
	sched.Evaluate(context.Background(), at.Add(30*time.Second))
	if len(starter.started) != 0 {
		t.Fatalf("missed occurrence was queued")
	}
}

func TestDisksEvaluatedInNameOrder(t *testing.T) {
	starter := &fakeStarter{}
	sched, s := newTestScheduler(t, starter)
	mustUpsert(t, s, store.Disk{Name: "zeta", SourceDir: "/mnt/z", SortedDir: "/mnt/zs", Schedule: "30 2 * * *"})
	mustUpsert(t, s, store.Disk{Name: "alpha", SourceDir: "/mnt/a", SortedDir: "/mnt/as", Schedule: "30 2 * * *"})

	at := time.Date(2026, 3, 4, 2, 30, 0, 0, time.Local)
	sched.Evaluate(context.Background(), at)

	// Both disks match; both start because the fake never goes busy, and
	// alpha is attempted first.
	if len(starter.started) != 2 {
		t.Fatalf("started %d runs, want 2", len(starter.started))
	}
	if starter.started[0].DiskName != "alpha" || starter.started[1].DiskName != "zeta" {
		t.Errorf("order = %q, %q", starter.started[0].DiskName, starter.started[1].DiskName)
	}
}

func TestWeekdayRestrictedSchedule(t *testing.T) {
	starter := &fakeStarter{}
	sched, s := newTestScheduler(t, starter)
	// Monday-only schedule.
	mustUpsert(t, s, store.Disk{Name: "media", SourceDir: "/mnt/in", SortedDir: "/mnt/out", Schedule: "0 9 * * 1"})

	monday := time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)
	tuesday := monday.Add(24 * time.Hour)

	sched.Evaluate(context.Background(), tuesday)
	if len(starter.started) != 0 {
		t.Fatal("fired on a non-matching weekday")
	}
	sched.Evaluate(context.Background(), monday)
	if len(starter.started) != 1 {
		t.Fatal("did not fire on the matching weekday")
	}
}
