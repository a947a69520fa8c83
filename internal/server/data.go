// internal/server/data.go
//
// Live-data handlers.
//
// Context
// -------
// Two very different paths expose table data:
//
//   • GET /api/data/{table} runs a generic equality-filtered query through
//     the datasource adapter configured on the homepage bundle.  Adapter
//     failures surface as an empty, clearly-errored 200 — never a 500 —
//     so a listing component can render its empty state.
//   • POST /api/data/execute replays a DataRequest the authority compiled
//     at publish time.  Executor failures are real errors (the request
//     itself was malformed or the remote end refused it).
package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pagelift/edge/internal/datarequest"
	"github.com/pagelift/edge/internal/datasource"
	"github.com/pagelift/edge/internal/store"
)

func (s *Server) handleDataQuery(w http.ResponseWriter, r *http.Request) {
	table := chi.URLParam(r, "table")

	cfg, ok := s.firstDatasource(r)
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{
			"success": false,
			"data":    []any{},
			"count":   0,
			"error":   "no datasource configured",
		})
		return
	}

	adapter, err := datasource.New(cfg)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	defer adapter.Close()

	res := adapter.Query(r.Context(), queryOptions(table, r))

	body := map[string]any{
		"success": res.Err == nil,
		"data":    res.Data,
	}
	if res.Count != nil {
		body["count"] = *res.Count
	} else {
		body["count"] = len(res.Data)
	}
	if res.Err != nil {
		body["error"] = res.Err.Error()
	}
	respondJSON(w, http.StatusOK, body)
}

func (s *Server) handleDataExecute(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DataRequest *datarequest.DataRequest `json:"dataRequest"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.DataRequest == nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", nil)
		return
	}

	res, err := s.Exec.Execute(r.Context(), req.DataRequest)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error(), nil)
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"data":    res.Data,
		"count":   len(res.Data),
		"total":   res.Total,
	})
}

/*──────────────────────────── helpers ─────────────────────────────────────*/

// firstDatasource resolves the datasource for generic queries: the first
// descriptor on the homepage bundle.
func (s *Server) firstDatasource(r *http.Request) (store.DatasourceConfig, bool) {
	page, err := s.Store.GetHomepage(r.Context())
	if err != nil || page == nil || len(page.Datasources) == 0 {
		return store.DatasourceConfig{}, false
	}
	return page.Datasources[0], true
}

// Query-string keys with pagination or shaping meaning; everything else
// becomes an equality filter.
var reservedParams = map[string]bool{
	"select": true, "limit": true, "offset": true, "orderBy": true, "order": true,
}

// queryOptions maps the query string onto the generic adapter options.
func queryOptions(table string, r *http.Request) datasource.QueryOptions {
	q := r.URL.Query()

	opts := datasource.QueryOptions{
		Table:   table,
		OrderBy: q.Get("orderBy"),
		Order:   q.Get("order"),
	}
	if sel := q.Get("select"); sel != "" {
		opts.Select = strings.Split(sel, ",")
	}
	if n, err := strconv.Atoi(q.Get("limit")); err == nil && n > 0 {
		opts.Limit = n
	}
	if n, err := strconv.Atoi(q.Get("offset")); err == nil && n > 0 {
		opts.Offset = n
	}
	for k, vs := range q {
		if reservedParams[k] || len(vs) == 0 {
			continue
		}
		if opts.Filters == nil {
			opts.Filters = map[string]string{}
		}
		opts.Filters[k] = vs[0]
	}
	return opts
}
