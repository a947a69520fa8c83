// internal/server/import.go
//
// Publish-facing handlers: import, unpublish, listing, and settings.
//
// Context
// -------
// Only the authority calls these routes.  The import body is decoded
// leniently — unknown fields are ignored so the authority can grow its
// bundle shape ahead of the edge — while the bundle itself is validated
// strictly by the importer, which reports per-field errors.
package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pagelift/edge/internal/publish"
	"github.com/pagelift/edge/internal/store"
)

type importRequest struct {
	Page  *store.PublishedPage `json:"page"`
	Force bool                 `json:"force"`
}

// handleImport accepts one publish bundle.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Page == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	res, err := s.Importer.Import(r.Context(), req.Page, req.Force)
	if err != nil {
		var verr *publish.ValidationError
		if errors.As(err, &verr) {
			respondError(w, http.StatusBadRequest, "Validation failed", verr.Details)
			return
		}
		var conflict *publish.ConflictError
		if errors.As(err, &conflict) {
			respondError(w, http.StatusBadRequest, "Version conflict", conflict)
			return
		}
		respondError(w, http.StatusInternalServerError, "Import failed", nil)
		return
	}

	// Stored pages changed; drop any cached copies.
	_ = s.Cache.InvalidatePattern(r.Context(), "page:*")

	respondJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"slug":       res.Slug,
		"version":    res.Version,
		"previewUrl": publish.PreviewURL(s.PublicBaseURL, r, res.Slug),
	})
}

// handleUnpublish deletes by slug.  Idempotent: always 200.
func (s *Server) handleUnpublish(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	if err := s.Importer.Delete(r.Context(), slug); err != nil {
		respondError(w, http.StatusInternalServerError, "Delete failed", nil)
		return
	}
	_ = s.Cache.Invalidate(r.Context(), "page:"+slug)

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Page unpublished",
	})
}

// handleListPages returns slug, name, and version for every stored page.
func (s *Server) handleListPages(w http.ResponseWriter, r *http.Request) {
	pages, err := s.Store.ListPages(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "List failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "pages": pages})
}

/*──────────────────────────── settings ────────────────────────────────────*/

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.Store.GetProjectSettings(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Settings read failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}

// handleUpdateSettings accepts a superset of fields; anything the patch
// shape does not name is dropped by the decoder.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var patch store.SettingsPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	settings, err := s.Store.UpdateProjectSettings(r.Context(), patch)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Settings write failed", nil)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "settings": settings})
}
