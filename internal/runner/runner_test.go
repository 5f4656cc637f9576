package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tidy/internal/faults"
	"tidy/internal/organizer"
	"tidy/internal/rules"
	"tidy/internal/runlog"
	"tidy/internal/store"
)

func newTestRunner(t *testing.T) (*Runner, *store.Store, *runlog.Hub) {
	t.Helper()
	s, err := store.OpenPath(filepath.Join(t.TempDir(), "tidy.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	hub := runlog.NewHub()
	r := New(s, hub, nil)
	t.Cleanup(r.Close)
	return r, s, hub
}

func waitIdle(t *testing.T, r *Runner) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if !r.Busy() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("runner never became idle")
}

func TestStartConflictCreatesNoRun(t *testing.T) {
	r, s, _ := newTestRunner(t)
	block := make(chan struct{})
	r.execFn = func(ctx context.Context, opts organizer.Options, log *runlog.Log) (int, error) {
		<-block
		return 2, nil
	}

	id, err := r.Start(context.Background(), Request{DiskName: "media", SourceDir: "/mnt/in", SortedDir: "/mnt/out"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	if _, err := r.Start(context.Background(), Request{DiskName: "other", SourceDir: "/mnt/in2", SortedDir: "/mnt/out2"}); !errors.Is(err, faults.ErrConflict) {
		t.Errorf("second Start = %v, want conflict", err)
	}

	runs, err := s.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("conflict created a run row: %d rows", len(runs))
	}

	close(block)
	waitIdle(t, r)

	run, err := s.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.RunStatusSuccess || run.FilesMoved != 2 {
		t.Errorf("run = %+v", run)
	}
	if !strings.Contains(run.Log, "Completed run for /mnt/in: moved=2") {
		t.Errorf("log = %q", run.Log)
	}
	if run.CorrelationID == "" {
		t.Error("run has no correlation id")
	}

	status := r.Status()
	if status.Status != "idle" || status.LastRunStatus != "success" || status.LastRunAt == nil {
		t.Errorf("status = %+v", status)
	}
}

func TestStartRequiresSource(t *testing.T) {
	r, _, _ := newTestRunner(t)
	if _, err := r.Start(context.Background(), Request{}); !errors.Is(err, faults.ErrValidation) {
		t.Errorf("Start = %v, want validation error", err)
	}
	if r.Busy() {
		t.Error("slot held after rejected request")
	}
}

func TestExecutionFailureEndsInError(t *testing.T) {
	r, s, _ := newTestRunner(t)
	r.execFn = func(ctx context.Context, opts organizer.Options, log *runlog.Log) (int, error) {
		return 0, faults.Wrap(faults.ErrPrecondition, "organize", "source unavailable", nil)
	}

	id, err := r.Start(context.Background(), Request{DiskName: "media", SourceDir: "/mnt/gone", SortedDir: "/mnt/out"})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, r)

	run, err := s.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.RunStatusError {
		t.Errorf("status = %q, want error", run.Status)
	}
	if !strings.Contains(run.Log, "Error during run for /mnt/gone") {
		t.Errorf("log = %q", run.Log)
	}
	if got := r.Status().LastRunStatus; got != "error" {
		t.Errorf("last run status = %q", got)
	}
}

func TestMissingSourceDirectoryEndsInError(t *testing.T) {
	r, s, _ := newTestRunner(t)

	id, err := r.Start(context.Background(), Request{
		DiskName:  "media",
		SourceDir: filepath.Join(t.TempDir(), "does-not-exist"),
		SortedDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, r)

	run, err := s.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.RunStatusError || run.FilesMoved != 0 {
		t.Errorf("run = %+v", run)
	}
}

func TestAdHocRunOrganizesInPlace(t *testing.T) {
	r, s, _ := newTestRunner(t)
	ctx := context.Background()

	if err := s.UpsertCategory(ctx, rules.Category{
		Name: "reports", Priority: 10, TargetDir: "Reports", Keywords: []string{"report"},
	}); err != nil {
		t.Fatalf("UpsertCategory: %v", err)
	}

	source := t.TempDir()
	if err := os.WriteFile(filepath.Join(source, "q3_report.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := r.Start(ctx, Request{SourceDir: source})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	waitIdle(t, r)

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.RunStatusSuccess || run.FilesMoved != 1 {
		t.Errorf("run = %+v", run)
	}
	// Without a sorted tree the run organizes under the source itself,
	// never relative to the process working directory.
	if _, err := os.Stat(filepath.Join(source, "Reports", "q3_report.pdf")); err != nil {
		t.Errorf("file not organized in place: %v", err)
	}
}

func TestRunMovesFilesEndToEnd(t *testing.T) {
	r, s, hub := newTestRunner(t)
	ctx := context.Background()

	if err := s.UpsertCategory(ctx, rules.Category{
		Name: "reports", Priority: 10, TargetDir: "Reports", Keywords: []string{"report"},
	}); err != nil {
		t.Fatalf("UpsertCategory: %v", err)
	}

	dir := t.TempDir()
	source := filepath.Join(dir, "incoming")
	sorted := filepath.Join(dir, "sorted")
	if err := os.MkdirAll(source, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(source, "q3_report.pdf"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	id, err := r.Start(ctx, Request{DiskName: "media", SourceDir: source, SortedDir: sorted})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// A subscriber attached through the hub drains the live log and
	// observes the terminal marker.
	log := hub.Get(id)
	if log == nil {
		// The run may already be finished; the persisted log still has
		// everything.
		waitIdle(t, r)
	} else {
		since := 0
		for {
			lines, next, closed, fetchErr := log.Fetch(ctx, since, true)
			if fetchErr != nil {
				t.Fatalf("Fetch: %v", fetchErr)
			}
			since = next
			_ = lines
			if closed && len(lines) == 0 {
				break
			}
		}
		waitIdle(t, r)
	}

	run, err := s.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != store.RunStatusSuccess || run.FilesMoved != 1 {
		t.Errorf("run = %+v", run)
	}
	if _, err := os.Stat(filepath.Join(sorted, "Reports", "q3_report.pdf")); err != nil {
		t.Errorf("file not moved: %v", err)
	}
	if !strings.Contains(run.Log, "Moved: ") {
		t.Errorf("log = %q", run.Log)
	}
}
