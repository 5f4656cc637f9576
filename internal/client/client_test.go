package client_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tidy/internal/api"
	"tidy/internal/client"
	"tidy/internal/daemon"
	"tidy/internal/testsupport"
)

func startDaemon(t *testing.T) (*client.Client, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	d, err := daemon.New(cfg, st, nil)
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon.Start: %v", err)
	}
	t.Cleanup(d.Stop)

	c, err := client.New(d.Addr())
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	return c, testsupport.BaseDir(cfg)
}

func TestStatusAndVersion(t *testing.T) {
	c, _ := startDaemon(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("Health: %v", err)
	}
	version, err := c.Version(ctx)
	if err != nil || version == "" {
		t.Fatalf("Version = (%q, %v)", version, err)
	}
	status, err := c.Status(ctx)
	if err != nil || status.Status != "idle" {
		t.Fatalf("Status = (%+v, %v)", status, err)
	}
}

func TestRunAndFollow(t *testing.T) {
	c, root := startDaemon(t)
	ctx := context.Background()

	source := filepath.Join(root, "incoming")
	sorted := filepath.Join(root, "sorted")
	testsupport.MkDirs(t, source, sorted)
	testsupport.WriteFile(t, filepath.Join(source, "tax_report.pdf"), "x")

	started, err := c.StartRun(ctx, api.RunRequest{Source: source, DryRun: true})
	if err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	var lines []string
	followCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := c.FollowRunLog(followCtx, started.RunID, func(line string) {
		lines = append(lines, line)
	}); err != nil {
		t.Fatalf("FollowRunLog: %v", err)
	}
	if len(lines) == 0 {
		t.Fatal("no log lines streamed")
	}

	waitIdle(t, c)

	runs, err := c.Runs(ctx, 0)
	if err != nil || len(runs) != 1 {
		t.Fatalf("Runs = (%+v, %v)", runs, err)
	}
	if !runs[0].DryRun || runs[0].Status != "success" {
		t.Errorf("run = %+v", runs[0])
	}

	logText, err := c.RunLog(ctx, started.RunID)
	if err != nil {
		t.Fatalf("RunLog: %v", err)
	}
	if !strings.Contains(logText, "Starting run for") {
		t.Errorf("log = %q", logText)
	}
}

func waitIdle(t *testing.T, c *client.Client) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		status, err := c.Status(context.Background())
		if err != nil {
			t.Fatalf("Status: %v", err)
		}
		if status.Status == "idle" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon never became idle")
}

func TestEmptyDirWorkflow(t *testing.T) {
	c, root := startDaemon(t)
	ctx := context.Background()

	source := filepath.Join(root, "incoming")
	sorted := filepath.Join(root, "sorted")
	testsupport.MkDirs(t, source, sorted, filepath.Join(source, "stale"))

	// Disk creation goes through the daemon so path validation applies.
	if _, err := c.Disks(ctx); err != nil {
		t.Fatalf("Disks: %v", err)
	}
	d, err := client.New("127.0.0.1:1") // unreachable
	if err != nil {
		t.Fatalf("client.New: %v", err)
	}
	if err := d.Health(ctx); !client.IsUnavailable(err) {
		t.Errorf("expected unavailable error, got %v", err)
	}

	cleanup, err := c.CleanupEmptyDirs(ctx, []string{filepath.Join(source, "stale")})
	if err != nil {
		t.Fatalf("CleanupEmptyDirs: %v", err)
	}
	if cleanup.Deleted != 1 {
		t.Errorf("cleanup = %+v", cleanup)
	}
}
