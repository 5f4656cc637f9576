package daemon

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tidy/internal/api"
	"tidy/internal/config"
	"tidy/internal/testsupport"
)

func startTestDaemon(t *testing.T) (*Daemon, *config.Config, string) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	d, err := New(cfg, st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := d.Start(ctx); err != nil {
		cancel()
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		d.Stop()
		cancel()
	})
	return d, cfg, "http://" + d.Addr()
}

func doJSON(t *testing.T, method, url string, body any, out any) *http.Response {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s response: %v", url, err)
		}
	}
	return resp
}

func TestHealthVersionStatus(t *testing.T) {
	_, _, base := startTestDaemon(t)

	var health api.Health
	if resp := doJSON(t, http.MethodGet, base+"/api/health", nil, &health); resp.StatusCode != http.StatusOK || health.Status != "ok" {
		t.Errorf("health = %d %+v", resp.StatusCode, health)
	}

	var version api.Version
	doJSON(t, http.MethodGet, base+"/api/version", nil, &version)
	if version.Version != Version {
		t.Errorf("version = %q", version.Version)
	}

	var status api.Status
	doJSON(t, http.MethodGet, base+"/api/status", nil, &status)
	if status.Status != "idle" {
		t.Errorf("status = %+v", status)
	}
}

func TestDiskEndpoints(t *testing.T) {
	_, cfg, base := startTestDaemon(t)
	root := testsupport.BaseDir(cfg)
	source := filepath.Join(root, "incoming")
	sorted := filepath.Join(root, "sorted")
	testsupport.MkDirs(t, source, sorted)

	resp := doJSON(t, http.MethodPost, base+"/api/disks", api.DiskRequest{
		Name: "media", Source: source, Sorted: sorted, Schedule: "30 2 * * *",
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("create disk = %d", resp.StatusCode)
	}

	// Nonexistent source directory fails validation.
	var apiErr api.Error
	resp = doJSON(t, http.MethodPost, base+"/api/disks", api.DiskRequest{
		Name: "bad", Source: filepath.Join(root, "nope"), Sorted: sorted,
	}, &apiErr)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid disk = %d %+v", resp.StatusCode, apiErr)
	}

	var disks []api.Disk
	doJSON(t, http.MethodGet, base+"/api/disks", nil, &disks)
	if len(disks) != 1 || disks[0].Name != "media" || disks[0].Schedule != "30 2 * * *" {
		t.Fatalf("disks = %+v", disks)
	}
	if usage, ok := disks[0].Usage["source"]; !ok || usage.Total == 0 {
		t.Errorf("source usage missing: %+v", disks[0].Usage)
	}

	resp = doJSON(t, http.MethodDelete, base+"/api/disks/media", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete disk = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodDelete, base+"/api/disks/media", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing disk = %d", resp.StatusCode)
	}
}

func TestKeywordEndpoints(t *testing.T) {
	_, _, base := startTestDaemon(t)

	resp := doJSON(t, http.MethodPost, base+"/api/keywords", api.CategoryRequest{
		Name: "movies", Priority: 10, Target: "Movies", Keywords: []string{"1080p", " bluray "},
	}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("upsert keyword = %d", resp.StatusCode)
	}

	var categories []api.Category
	doJSON(t, http.MethodGet, base+"/api/keywords", nil, &categories)
	if len(categories) != 1 || categories[0].TargetDir != "Movies" {
		t.Fatalf("categories = %+v", categories)
	}
	if len(categories[0].Keywords) != 2 || categories[0].Keywords[1] != "bluray" {
		t.Errorf("keywords not trimmed: %+v", categories[0].Keywords)
	}

	// Export, wipe via replace-import, and confirm the round trip.
	exportResp, err := http.Get(base + "/api/keywords/export")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer exportResp.Body.Close()
	if cd := exportResp.Header.Get("Content-Disposition"); !strings.Contains(cd, "attachment") {
		t.Errorf("export disposition = %q", cd)
	}
	var exported []api.Category
	if err := json.NewDecoder(exportResp.Body).Decode(&exported); err != nil {
		t.Fatalf("decode export: %v", err)
	}

	replacement := []api.Category{{Name: "shows", Priority: 5, TargetDir: "Shows", Keywords: []string{"s01"}}}
	resp = doJSON(t, http.MethodPost, base+"/api/keywords/import?mode=replace", replacement, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import replace = %d", resp.StatusCode)
	}
	doJSON(t, http.MethodGet, base+"/api/keywords", nil, &categories)
	if len(categories) != 1 || categories[0].Name != "shows" {
		t.Fatalf("after replace = %+v", categories)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/keywords/import?mode=merge", exported, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("import merge = %d", resp.StatusCode)
	}
	doJSON(t, http.MethodGet, base+"/api/keywords", nil, &categories)
	if len(categories) != 2 {
		t.Fatalf("after merge = %+v", categories)
	}

	resp = doJSON(t, http.MethodDelete, base+"/api/keywords/shows", nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete keyword = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodDelete, base+"/api/keywords/ghost", nil, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("delete missing keyword = %d", resp.StatusCode)
	}
}

func TestRunEndpointsAndStreaming(t *testing.T) {
	_, cfg, base := startTestDaemon(t)
	root := testsupport.BaseDir(cfg)
	source := filepath.Join(root, "incoming")
	sorted := filepath.Join(root, "sorted")
	testsupport.MkDirs(t, source, sorted)
	testsupport.WriteFile(t, filepath.Join(source, "weekly_report.pdf"), "data")

	doJSON(t, http.MethodPost, base+"/api/keywords", api.CategoryRequest{
		Name: "reports", Priority: 1, Target: "Reports", Keywords: []string{"report"},
	}, nil)
	doJSON(t, http.MethodPost, base+"/api/disks", api.DiskRequest{
		Name: "media", Source: source, Sorted: sorted,
	}, nil)

	var started api.RunStarted
	resp := doJSON(t, http.MethodPost, base+"/api/run", api.RunRequest{Disk: "media"}, &started)
	if resp.StatusCode != http.StatusOK || started.RunID == 0 {
		t.Fatalf("run = %d %+v", resp.StatusCode, started)
	}

	// The SSE stream replays the whole log and ends with the sentinel.
	streamResp, err := http.Get(fmt.Sprintf("%s/stream_run_logs/%d", base, started.RunID))
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	defer streamResp.Body.Close()
	if ct := streamResp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Errorf("stream content type = %q", ct)
	}
	var dataLines []string
	scanner := bufio.NewScanner(streamResp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		dataLines = append(dataLines, strings.TrimPrefix(line, "data: "))
		if dataLines[len(dataLines)-1] == "[STREAM_END]" {
			break
		}
	}
	if len(dataLines) == 0 || dataLines[len(dataLines)-1] != "[STREAM_END]" {
		t.Fatalf("stream lines = %v", dataLines)
	}
	joined := strings.Join(dataLines, "\n")
	if !strings.Contains(joined, "Moved: ") {
		t.Errorf("stream missing move line: %v", dataLines)
	}

	waitForIdle(t, base)

	var runs []api.Run
	doJSON(t, http.MethodGet, base+"/api/runs", nil, &runs)
	if len(runs) != 1 || runs[0].Status != "success" || runs[0].FilesMoved != 1 {
		t.Fatalf("runs = %+v", runs)
	}

	logResp, err := http.Get(fmt.Sprintf("%s/api/runs/%d", base, started.RunID))
	if err != nil {
		t.Fatalf("get run log: %v", err)
	}
	defer logResp.Body.Close()
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(logResp.Body); err != nil {
		t.Fatalf("read run log: %v", err)
	}
	if !strings.Contains(buf.String(), "Completed run for") {
		t.Errorf("run log = %q", buf.String())
	}

	if _, err := os.Stat(filepath.Join(sorted, "Reports", "weekly_report.pdf")); err != nil {
		t.Errorf("file not moved: %v", err)
	}

	// Unknown disk is a 404, missing source a 400.
	resp = doJSON(t, http.MethodPost, base+"/api/run", api.RunRequest{Disk: "ghost"}, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown disk = %d", resp.StatusCode)
	}
	resp = doJSON(t, http.MethodPost, base+"/api/run", api.RunRequest{}, nil)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing source = %d", resp.StatusCode)
	}
}

func waitForIdle(t *testing.T, base string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		var status api.Status
		doJSON(t, http.MethodGet, base+"/api/status", nil, &status)
		if status.Status == "idle" {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("daemon never became idle")
}

func TestEmptyDirAndCleanupEndpoints(t *testing.T) {
	_, cfg, base := startTestDaemon(t)
	root := testsupport.BaseDir(cfg)
	source := filepath.Join(root, "incoming")
	sorted := filepath.Join(root, "sorted")
	testsupport.MkDirs(t, source, sorted, filepath.Join(source, "old", "deep"))
	testsupport.WriteFile(t, filepath.Join(source, "keep", "file.txt"), "x")

	doJSON(t, http.MethodPost, base+"/api/disks", api.DiskRequest{Name: "media", Source: source, Sorted: sorted}, nil)

	var empty []string
	doJSON(t, http.MethodGet, base+"/api/disks/media/empty-dirs", nil, &empty)
	want := map[string]bool{
		filepath.Join(source, "old"):         true,
		filepath.Join(source, "old", "deep"): true,
	}
	if len(empty) != len(want) {
		t.Fatalf("empty dirs = %v", empty)
	}
	for _, dir := range empty {
		if !want[dir] {
			t.Errorf("unexpected empty dir %q", dir)
		}
	}

	var cleanup api.CleanupResponse
	resp := doJSON(t, http.MethodPost, base+"/api/cleanup-empty-dirs", api.CleanupRequest{Paths: empty}, &cleanup)
	if resp.StatusCode != http.StatusOK || cleanup.Deleted != 2 || len(cleanup.Errors) != 0 {
		t.Fatalf("cleanup = %d %+v", resp.StatusCode, cleanup)
	}

	// Paths outside the safety root are refused outright.
	resp = doJSON(t, http.MethodPost, base+"/api/cleanup-empty-dirs", api.CleanupRequest{Paths: []string{"/etc"}}, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("outside cleanup = %d", resp.StatusCode)
	}
}

func TestFileAndSidecarEndpoints(t *testing.T) {
	_, cfg, base := startTestDaemon(t)
	root := testsupport.BaseDir(cfg)
	media := filepath.Join(root, "library", "movie.mkv")
	testsupport.WriteFile(t, media, "data")

	var entries []map[string]any
	doJSON(t, http.MethodGet, base+"/api/files?path="+filepath.Join(root, "library"), nil, &entries)
	if len(entries) != 1 || entries[0]["name"] != "movie.mkv" {
		t.Fatalf("entries = %+v", entries)
	}

	resp := doJSON(t, http.MethodGet, base+"/api/files?path=/etc", nil, nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("outside listing = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPost, base+"/api/nfo", api.SidecarRequest{Path: media, Content: "<movie/>"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("write nfo = %d", resp.StatusCode)
	}
	var sidecar api.SidecarResponse
	doJSON(t, http.MethodGet, base+"/api/nfo?path="+media, nil, &sidecar)
	if sidecar.Content != "<movie/>" {
		t.Errorf("sidecar = %+v", sidecar)
	}
	resp = doJSON(t, http.MethodDelete, base+"/api/nfo?path="+media, nil, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("delete nfo = %d", resp.StatusCode)
	}

	resp = doJSON(t, http.MethodPut, base+"/api/files", api.RenameRequest{Path: media, NewName: "renamed.mkv"}, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("rename = %d", resp.StatusCode)
	}
	if _, err := os.Stat(filepath.Join(root, "library", "renamed.mkv")); err != nil {
		t.Errorf("renamed file missing: %v", err)
	}

	var validation api.PathValidation
	doJSON(t, http.MethodGet, base+"/api/validate-path?path="+filepath.Join(root, "library"), nil, &validation)
	if validation.Status != "ok" {
		t.Errorf("validation = %+v", validation)
	}
}

func TestSingleInstanceLock(t *testing.T) {
	d, cfg, _ := startTestDaemon(t)
	_ = d

	st := testsupport.MustOpenStore(t, cfg)
	second, err := New(cfg, st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("second daemon acquired the lock")
	}
}

func TestCrashRecoveryOnStart(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	// Simulate a run left behind by an unclean shutdown.
	id, err := st.CreateRun(context.Background(), "media", "/mnt/in", "", false)
	if err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	d, err := New(cfg, st, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(d.Stop)

	run, err := st.GetRun(context.Background(), id)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if run.Status != "error" || !strings.Contains(run.Log, "interrupted") {
		t.Errorf("recovered run = %+v", run)
	}
	if d.Runner().Busy() {
		t.Error("slot not idle after recovery")
	}
}
