package daemon

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"tidy/internal/api"
	"tidy/internal/logging"
	"tidy/internal/rules"
)

func (s *apiServer) handleKeywords(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		categories, err := s.daemon.store.ListCategories(r.Context())
		if err != nil {
			s.fail(w, err)
			return
		}
		out := make([]api.Category, 0, len(categories))
		for _, c := range categories {
			out = append(out, api.FromCategory(c))
		}
		s.writeJSON(w, http.StatusOK, out)
	case http.MethodPost:
		var payload api.CategoryRequest
		if err := decodeJSON(r, &payload); err != nil {
			s.fail(w, err)
			return
		}
		keywords := make([]string, 0, len(payload.Keywords))
		for _, kw := range payload.Keywords {
			if kw = strings.TrimSpace(kw); kw != "" {
				keywords = append(keywords, kw)
			}
		}
		err := s.daemon.store.UpsertCategory(r.Context(), rules.Category{
			Name:      strings.TrimSpace(payload.Name),
			Priority:  payload.Priority,
			TargetDir: strings.TrimSpace(payload.Target),
			Keywords:  keywords,
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

func (s *apiServer) handleKeywordByName(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := strings.TrimPrefix(r.URL.Path, "/api/keywords/")
	if name == "" || strings.Contains(name, "/") {
		s.writeError(w, http.StatusNotFound, "not found")
		return
	}
	if err := s.daemon.store.DeleteCategory(r.Context(), name); err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
}

// handleKeywordsExport serves the full rule set as a downloadable JSON
// document.
func (s *apiServer) handleKeywordsExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	categories, err := s.daemon.store.ListCategories(r.Context())
	if err != nil {
		s.fail(w, err)
		return
	}
	out := make([]api.Category, 0, len(categories))
	for _, c := range categories {
		out = append(out, api.FromCategory(c))
	}

	filename := fmt.Sprintf("tidy-keywords-%s.json", time.Now().Format("20060102-150405"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment;filename=%s", filename))
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		s.logger.Error("failed to encode export", logging.Error(err))
	}
}

// handleKeywordsImport loads a rule set from the request body. Mode
// "merge" (the default) upserts by name; mode "replace" swaps the whole
// set atomically.
func (s *apiServer) handleKeywordsImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var payload []api.Category
	if err := decodeJSON(r, &payload); err != nil {
		s.fail(w, err)
		return
	}
	categories := make([]rules.Category, 0, len(payload))
	for _, c := range payload {
		categories = append(categories, api.ToCategory(c))
	}

	mode := r.URL.Query().Get("mode")
	var err error
	switch mode {
	case "", "merge":
		err = s.daemon.store.MergeCategories(r.Context(), categories)
	case "replace":
		err = s.daemon.store.ReplaceAllCategories(r.Context(), categories)
	default:
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown import mode %q", mode))
		return
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, api.OK{Status: "ok"})
}
