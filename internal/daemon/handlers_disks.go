package daemon

import (
	"fmt"
	"net/http"
	"os"
	"sort"
	"strings"

	"tidy/internal/api"
	"tidy/internal/fileops"
	"tidy/internal/logging"
	"tidy/internal/organizer"
	"tidy/internal/store"
)

func (s *apiServer) handleDisks(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		disks, err := s.daemon.store.ListDisks(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]api.Disk, 0, len(disks))
		for _, d := range disks {
			out = append(out, api.FromDisk(d))
		}
		s.writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var payload api.DiskRequest
		if err := decodeJSON(r, &payload); err != nil {
			s.fail(w, err)
			return
		}
		if !s.validateDiskPaths(w, payload.Source, payload.Sorted) {
			return
		}
		err := s.daemon.store.UpsertDisk(r.Context(), store.Disk{
			Name:      strings.TrimSpace(payload.Name),
			SourceDir: strings.TrimSpace(payload.Source),
			SortedDir: strings.TrimSpace(payload.Sorted),
			Schedule:  strings.TrimSpace(payload.Schedule),
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *apiServer) handleDiskByName(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/disks/")
	if rest == "" {
		s.writeError(w, http.StatusNotFound, "disk not found")
		return
	}

	if name, ok := strings.CutSuffix(rest, "/empty-dirs"); ok {
		s.handleDiskEmptyDirs(w, r, name)
		return
	}
	if strings.Contains(rest, "/") {
		s.writeError(w, http.StatusNotFound, "disk not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		var payload api.DiskRequest
		if err := decodeJSON(r, &payload); err != nil {
			s.fail(w, err)
			return
		}
		if !s.validateDiskPaths(w, payload.Source, payload.Sorted) {
			return
		}
		err := s.daemon.store.UpdateDisk(r.Context(), store.Disk{
			Name:      rest,
			SourceDir: strings.TrimSpace(payload.Source),
			SortedDir: strings.TrimSpace(payload.Sorted),
			Schedule:  strings.TrimSpace(payload.Schedule),
		})
		if err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	case http.MethodDelete:
		if err := s.daemon.store.DeleteDisk(r.Context(), rest); err != nil {
			s.fail(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleDiskEmptyDirs scans both of a disk's trees and returns the union
// of empty directories, sorted and deduplicated.
func (s *apiServer) handleDiskEmptyDirs(w http.ResponseWriter, r *http.Request, name string) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	disk, err := s.daemon.store.GetDisk(r.Context(), name)
	if err != nil {
		s.fail(w, err)
		return
	}
	if disk == nil {
		s.writeError(w, http.StatusNotFound, "disk not found")
		return
	}

	seen := map[string]struct{}{}
	var collected []string
	for _, root := range []string{disk.SourceDir, disk.SortedDir} {
		if root == "" {
			continue
		}
		if _, statErr := os.Stat(root); statErr != nil {
			continue
		}
		empty, scanErr := organizer.ScanEmptyDirs(root)
		if scanErr != nil {
			s.logger.Warn("empty-dir scan failed", logging.String("root", root), logging.Error(scanErr))
			continue
		}
		for _, dir := range empty {
			if _, dup := seen[dir]; dup {
				continue
			}
			seen[dir] = struct{}{}
			collected = append(collected, dir)
		}
	}
	sort.Strings(collected)
	if collected == nil {
		collected = []string{}
	}
	s.writeJSON(w, http.StatusOK, collected)
}

// validateDiskPaths enforces the precondition the settings screen relies
// on: both directories must exist and be usable before a disk is saved.
func (s *apiServer) validateDiskPaths(w http.ResponseWriter, paths ...string) bool {
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		check := fileops.ValidatePath(path)
		if check.Status == "ok" {
			continue
		}
		status := http.StatusBadRequest
		if strings.HasPrefix(check.Message, "Path is not readable") || strings.HasPrefix(check.Message, "Path is not writable") {
			status = http.StatusForbidden
		}
		s.writeError(w, status, fmt.Sprintf("%s: %s", strings.TrimSuffix(check.Message, "."), path))
		return false
	}
	return true
}
