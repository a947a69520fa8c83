// internal/server/router.go
//
// Route table and handler wiring.
//
// Context
// -------
// The router is a thin dispatch shim: every piece of logic lives behind it
// in the store, importer, syncer, adapter, and executor packages, all
// injected at construction so tests can substitute fakes.  No handler
// holds mutable state; the only shared objects are the store and the
// optional cache, both safe for concurrent use.
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pagelift/edge/internal/authority"
	"github.com/pagelift/edge/internal/cache"
	"github.com/pagelift/edge/internal/datarequest"
	"github.com/pagelift/edge/internal/middleware"
	"github.com/pagelift/edge/internal/publish"
	"github.com/pagelift/edge/internal/store"
)

// Server bundles every dependency the handlers need.
type Server struct {
	Store    store.Store
	Importer *publish.Importer
	Syncer   *authority.Syncer
	Exec     *datarequest.Executor
	Cache    *cache.Cache // nil when disabled

	// PublicBaseURL makes preview URLs absolute when set.
	PublicBaseURL string
}

// Router assembles the full route table.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLog)
	r.Use(chimw.Recoverer)
	r.Use(middleware.Security)

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/import", func(r chi.Router) {
		r.Get("/", s.handleListPages)
		r.Post("/", s.handleImport)
		r.Get("/settings", s.handleGetSettings)
		r.Post("/settings", s.handleUpdateSettings)
		r.Delete("/{slug}", s.handleUnpublish)
	})

	r.Route("/api/data", func(r chi.Router) {
		r.Post("/execute", s.handleDataExecute)
		r.Get("/{table}", s.handleDataQuery)
	})

	r.Get("/favicon.ico", s.handleFavicon)
	r.Get("/", s.handleHomepage)
	r.Get("/{slug}", s.handlePage)

	return r
}
