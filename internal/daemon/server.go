package daemon

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"tidy/internal/config"
	"tidy/internal/faults"
	"tidy/internal/fileops"
	"tidy/internal/logging"
)

type apiServer struct {
	bind   string
	logger *slog.Logger
	daemon *Daemon
	files  *fileops.Ops

	listener net.Listener
	server   *http.Server
}

func newAPIServer(cfg *config.Config, d *Daemon, logger *slog.Logger) *apiServer {
	srv := &apiServer{
		bind:   strings.TrimSpace(cfg.Paths.APIBind),
		logger: logging.WithComponent(logger, "api-server"),
		daemon: d,
		files:  fileops.New(cfg.Paths.SafetyRoot),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", srv.handleHealth)
	mux.HandleFunc("/api/version", srv.handleVersion)
	mux.HandleFunc("/api/host-info", srv.handleHostInfo)
	mux.HandleFunc("/api/status", srv.handleStatus)
	mux.HandleFunc("/api/run", srv.handleRun)
	mux.HandleFunc("/api/runs", srv.handleRuns)
	mux.HandleFunc("/api/runs/", srv.handleRunByID)
	mux.HandleFunc("/stream_run_logs/", srv.handleStreamRunLog)
	mux.HandleFunc("/api/disks", srv.handleDisks)
	mux.HandleFunc("/api/disks/", srv.handleDiskByName)
	mux.HandleFunc("/api/keywords", srv.handleKeywords)
	mux.HandleFunc("/api/keywords/export", srv.handleKeywordsExport)
	mux.HandleFunc("/api/keywords/import", srv.handleKeywordsImport)
	mux.HandleFunc("/api/keywords/", srv.handleKeywordByName)
	mux.HandleFunc("/api/files", srv.handleFiles)
	mux.HandleFunc("/api/nfo", srv.handleSidecar)
	mux.HandleFunc("/api/validate-path", srv.handleValidatePath)
	mux.HandleFunc("/api/cleanup-empty-dirs", srv.handleCleanupEmptyDirs)

	srv.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generous write timeout: run log streams stay open for the whole
		// run.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}
	return srv
}

func (s *apiServer) start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("api server error", logging.Error(err))
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

func (s *apiServer) stop() {
	if s.server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}
	if s.listener != nil {
		_ = s.listener.Close()
		s.listener = nil
	}
}

func (s *apiServer) addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *apiServer) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *apiServer) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

// fail maps a classified error onto its HTTP status and strips the
// sentinel prefix from the payload.
func (s *apiServer) fail(w http.ResponseWriter, err error) {
	s.writeError(w, faults.HTTPStatus(err), faults.Message(err))
}

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return faults.Wrap(faults.ErrValidation, "decode request", "invalid JSON payload", err)
	}
	return nil
}
