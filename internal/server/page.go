// internal/server/page.go
//
// Page-serving handlers.
//
// Context
// -------
// The edge serves the stored bundle as JSON; turning layoutData into markup
// belongs to the rendering layer in front, not to this service.  The
// homepage route is the only one with a pull-publish fallback: a miss on an
// arbitrary slug is simply a 404, but a homepage miss after a cold boot
// triggers one synchronous authority fetch inside the request.  Concurrent
// first requests may race that fetch; the upsert is idempotent per page ID,
// so the race is benign and deliberately unguarded.
//
// Slug routes go through the read-through cache when one is configured;
// when it is not, or when the cache backend itself errors, the handler
// falls back to a direct store read rather than failing the request.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pagelift/edge/internal/metrics"
	"github.com/pagelift/edge/internal/store"
)

const pageCacheTTL = 60 * time.Second

var errPageNotFound = errors.New("page not found")

func (s *Server) handleHomepage(w http.ResponseWriter, r *http.Request) {
	page, err := s.Store.GetHomepage(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Store read failed", nil)
		return
	}

	if page == nil && s.Syncer != nil {
		// Cold-boot gap: pull the homepage from the authority now, store
		// it, and serve the freshly stored copy in this same request.
		page, err = s.Syncer.PullHomepage(r.Context())
		if err != nil {
			respondError(w, http.StatusServiceUnavailable, "Homepage unavailable", nil)
			return
		}
		if page != nil {
			metrics.PageServeTotal.WithLabelValues("pulled").Inc()
			s.servePage(w, page)
			return
		}
	}

	if page == nil {
		metrics.PageServeTotal.WithLabelValues("miss").Inc()
		respondError(w, http.StatusNotFound, "No homepage published", nil)
		return
	}

	metrics.PageServeTotal.WithLabelValues("hit").Inc()
	s.servePage(w, page)
}

func (s *Server) handlePage(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	if s.Cache.Enabled() {
		raw, err := s.Cache.Cached(r.Context(), "page:"+slug, pageCacheTTL,
			func(ctx context.Context) (any, error) {
				p, err := s.Store.GetPageBySlug(ctx, slug)
				if err != nil {
					return nil, err
				}
				if p == nil {
					return nil, errPageNotFound
				}
				return p, nil
			})
		switch {
		case err == nil:
			metrics.PageServeTotal.WithLabelValues("hit").Inc()
			w.Header().Set("Content-Type", "application/json; charset=utf-8")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"success":true,"page":`))
			w.Write(raw)
			w.Write([]byte("}\n"))
			return
		case errors.Is(err, errPageNotFound):
			metrics.PageServeTotal.WithLabelValues("miss").Inc()
			respondError(w, http.StatusNotFound, "Page not found", nil)
			return
		}
		// Cache backend error: fall through to a direct read.
	}

	page, err := s.Store.GetPageBySlug(r.Context(), slug)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Store read failed", nil)
		return
	}
	if page == nil {
		metrics.PageServeTotal.WithLabelValues("miss").Inc()
		respondError(w, http.StatusNotFound, "Page not found", nil)
		return
	}

	metrics.PageServeTotal.WithLabelValues("hit").Inc()
	s.servePage(w, page)
}

func (s *Server) servePage(w http.ResponseWriter, page *store.PublishedPage) {
	respondJSON(w, http.StatusOK, map[string]any{"success": true, "page": page})
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	url, err := s.Store.GetFaviconUrl(r.Context())
	if err != nil || url == "" || url == store.DefaultFaviconURL {
		http.NotFound(w, r)
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}
