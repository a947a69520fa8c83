// internal/datasource/postgrest.go
//
// Hosted-Postgres-REST backend (Supabase-style PostgREST gateway).
//
// Context
// -------
// This backend never speaks SQL.  QueryOptions become a REST query string
// (`select=`, `col=eq.val`, `limit=`, `offset=`, `order=`) and the total
// row count comes back in the Content-Range header as "<start>-<end>/<total>".
// Per the adapter contract, remote failures land in QueryResult.Err with an
// empty Data slice.
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pagelift/edge/internal/metrics"
	"github.com/pagelift/edge/internal/store"
)

type postgrest struct {
	baseURL string
	anonKey string
	hc      *http.Client
}

func newPostgREST(cfg store.DatasourceConfig) *postgrest {
	return &postgrest{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		anonKey: cfg.AnonKey,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

func (p *postgrest) Query(ctx context.Context, opts QueryOptions) QueryResult {
	q := url.Values{}
	if len(opts.Select) > 0 {
		q.Set("select", strings.Join(opts.Select, ","))
	} else {
		q.Set("select", "*")
	}
	for k, v := range opts.Filters {
		q.Set(k, "eq."+v)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	if opts.OrderBy != "" {
		dir := "asc"
		if strings.EqualFold(opts.Order, "desc") {
			dir = "desc"
		}
		q.Set("order", opts.OrderBy+"."+dir)
	}

	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", p.baseURL, url.PathEscape(opts.Table), q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return p.failed(err)
	}
	req.Header.Set("apikey", p.anonKey)
	req.Header.Set("Authorization", "Bearer "+p.anonKey)
	req.Header.Set("Prefer", "count=exact")

	resp, err := p.hc.Do(req)
	if err != nil {
		return p.failed(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return p.failed(fmt.Errorf("postgrest: HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var rows []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return p.failed(fmt.Errorf("postgrest: decode rows: %w", err))
	}

	out := QueryResult{Data: rows}
	if total, ok := parseContentRange(resp.Header.Get("Content-Range")); ok {
		out.Count = &total
	}
	return out
}

// Execute maps onto PostgREST's RPC endpoint.  Arbitrary SQL is not part
// of the gateway's surface, so params must name a stored procedure payload.
func (p *postgrest) Execute(ctx context.Context, sqlText string, params ...any) error {
	return fmt.Errorf("postgrest: raw execute is not supported by the REST gateway")
}

func (p *postgrest) Close() error { return nil }

func (p *postgrest) failed(err error) QueryResult {
	metrics.AdapterErrorTotal.WithLabelValues(store.DatasourceSupabase).Inc()
	return QueryResult{Data: []map[string]any{}, Err: err}
}

// parseContentRange extracts the total from "<start>-<end>/<total>".  A "*"
// total (unknown) reports false.
func parseContentRange(h string) (int64, bool) {
	if h == "" {
		return 0, false
	}
	i := strings.LastIndexByte(h, '/')
	if i == -1 {
		return 0, false
	}
	total := strings.TrimSpace(h[i+1:])
	if total == "" || total == "*" {
		return 0, false
	}
	n, err := strconv.ParseInt(total, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}
