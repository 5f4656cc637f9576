package daemon

import (
	"net/http"
	"strings"

	"tidy/internal/api"
	"tidy/internal/fileops"
	"tidy/internal/organizer"
)

func (s *apiServer) handleFiles(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			s.writeError(w, http.StatusBadRequest, "path parameter is required")
			return
		}
		entries, err := s.files.ListDir(path)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, entries)
	case http.MethodPut:
		var payload api.RenameRequest
		if err := decodeJSON(r, &payload); err != nil {
			s.fail(w, err)
			return
		}
		if strings.TrimSpace(payload.Path) == "" || strings.TrimSpace(payload.NewName) == "" {
			s.writeError(w, http.StatusBadRequest, "path and newName are required")
			return
		}
		if err := s.files.Rename(payload.Path, payload.NewName); err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	case http.MethodDelete:
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			s.writeError(w, http.StatusBadRequest, "path parameter is required")
			return
		}
		if err := s.files.Delete(path); err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleSidecar(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			s.writeError(w, http.StatusBadRequest, "path parameter is required")
			return
		}
		content, err := s.files.ReadSidecar(path)
		if err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.SidecarResponse{Content: content})
	case http.MethodPost:
		var payload api.SidecarRequest
		if err := decodeJSON(r, &payload); err != nil {
			s.fail(w, err)
			return
		}
		if strings.TrimSpace(payload.Path) == "" {
			s.writeError(w, http.StatusBadRequest, "path is required")
			return
		}
		if err := s.files.WriteSidecar(payload.Path, payload.Content); err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	case http.MethodDelete:
		path := strings.TrimSpace(r.URL.Query().Get("path"))
		if path == "" {
			s.writeError(w, http.StatusBadRequest, "path parameter is required")
			return
		}
		if err := s.files.DeleteSidecar(path); err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleValidatePath(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	path := strings.TrimSpace(r.URL.Query().Get("path"))
	if path == "" {
		s.writeError(w, http.StatusBadRequest, "path parameter is required")
		return
	}
	check := fileops.ValidatePath(path)
	s.writeJSON(w, http.StatusOK, api.PathValidation{Status: check.Status, Message: check.Message})
}

// handleCleanupEmptyDirs deletes the listed directories when they are
// still empty. Every path must sit inside the safety root.
func (s *apiServer) handleCleanupEmptyDirs(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload api.CleanupRequest
	if err := decodeJSON(r, &payload); err != nil {
		s.fail(w, err)
		return
	}
	if len(payload.Paths) == 0 {
		s.writeError(w, http.StatusBadRequest, "No paths provided")
		return
	}
	for _, path := range payload.Paths {
		if _, err := s.files.Resolve(path); err != nil {
			s.fail(w, err)
			return
		}
	}

	result := organizer.CleanupDirs(s.files.Root(), payload.Paths)
	s.writeJSON(w, http.StatusOK, api.FromCleanup(result))
}
