package daemon

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"tidy/internal/api"
	"tidy/internal/faults"
	"tidy/internal/runner"
)

func (s *apiServer) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload api.RunRequest
	if err := decodeJSON(r, &payload); err != nil {
		s.fail(w, err)
		return
	}

	req := runner.Request{DryRun: payload.DryRun}
	if name := strings.TrimSpace(payload.Disk); name != "" {
		disk, err := s.daemon.store.GetDisk(r.Context(), name)
		if err != nil {
			s.fail(w, err)
			return
		}
		if disk == nil {
			s.writeError(w, http.StatusNotFound, "disk not found")
			return
		}
		req = runner.RequestForDisk(*disk, payload.DryRun)
	} else {
		req.SourceDir = strings.TrimSpace(payload.Source)
	}
	if req.SourceDir == "" {
		s.writeError(w, http.StatusBadRequest, "source required")
		return
	}

	runID, err := s.daemon.runner.Start(r.Context(), req)
	if err != nil {
		if errors.Is(err, faults.ErrConflict) {
			s.writeError(w, http.StatusConflict, "A run is already in progress")
			return
		}
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.RunStarted{Status: "started", RunID: runID})
}

func (s *apiServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	runs, err := s.daemon.store.ListRuns(r.Context(), limit)
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]api.Run, 0, len(runs))
	for _, run := range runs {
		out = append(out, api.FromRun(run))
	}
	s.writeJSON(w, http.StatusOK, out)
}

// handleRunByID serves the full log text of one run: the live buffer while
// it is running, the persisted blob once terminal.
func (s *apiServer) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := runIDFromPath(r.URL.Path, "/api/runs/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	if log := s.daemon.hub.Get(id); log != nil {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(log.Text()))
		return
	}

	run, err := s.daemon.store.GetRun(r.Context(), id)
	if err != nil {
		s.fail(w, err)
		return
	}
	if run == nil {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte(run.Log))
}

const streamEndSentinel = "[STREAM_END]"

// handleStreamRunLog streams a run's log as server-sent events: one data
// line per log line, then the end sentinel. Subscribers attaching late (or
// after the run finished) replay the full history first.
func (s *apiServer) handleStreamRunLog(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id, ok := runIDFromPath(r.URL.Path, "/stream_run_logs/")
	if !ok {
		s.writeError(w, http.StatusBadRequest, "invalid run id")
		return
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")

	writeEvent := func(line string) {
		fmt.Fprintf(w, "data: %s\n\n", line)
		if canFlush {
			flusher.Flush()
		}
	}

	log := s.daemon.hub.Get(id)
	if log == nil {
		// Terminal (or unknown) run: replay from the persisted record.
		run, err := s.daemon.store.GetRun(r.Context(), id)
		if err != nil || run == nil {
			writeEvent("Run not found.")
			writeEvent(streamEndSentinel)
			return
		}
		for _, line := range splitLogLines(run.Log) {
			writeEvent(line)
		}
		writeEvent(streamEndSentinel)
		return
	}

	since := 0
	for {
		lines, next, closed, err := log.Fetch(r.Context(), since, true)
		if err != nil {
			return
		}
		for _, line := range lines {
			writeEvent(line)
		}
		since = next
		if closed && len(lines) == 0 {
			writeEvent(streamEndSentinel)
			return
		}
	}
}

func runIDFromPath(path, prefix string) (int64, bool) {
	raw := strings.TrimPrefix(path, prefix)
	if raw == "" || strings.Contains(raw, "/") {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func splitLogLines(log string) []string {
	trimmed := strings.TrimRight(log, "\n")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "\n")
}
