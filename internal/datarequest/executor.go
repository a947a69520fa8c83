// internal/datarequest/executor.go
//
// Pre-computed data-request replay.
//
// Context
// -------
// The authority compiles a table/column selection into a DataRequest at
// publish time: a complete HTTP call description.  The edge only replays
// it — it never regenerates a query from a table name, which is what keeps
// query planning out of this service entirely.
//
// Execution steps, each independently testable:
//
//   1. Resolve {{ENV_VAR}} placeholders in the URL and headers against the
//      process environment.  Unset variables become empty strings; a
//      literal "{{X}}" must never reach the remote end.
//   2. Issue the call with the configured method, headers, and body.
//   3. Fail non-2xx with the status and a truncated body.
//   4. Resolve the total count: Content-Range "<range>/<total>", then a
//      "total" field in the body, then the row count.
//   5. Extract the row array at ResultPath (dot/bracket notation); a
//      single non-null value is wrapped into a one-element array.
//   6. Flatten one level of nested join objects into "<relation>.<column>"
//      keys unless disabled.  Only actual objects flatten — strings,
//      numbers, and arrays pass through untouched.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.
package datarequest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// DataRequest is the immutable call description built by the authority.
type DataRequest struct {
	URL     string            `json:"url"`
	Method  string            `json:"method"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    json.RawMessage   `json:"body,omitempty"`

	// ResultPath locates the row array inside the response body, e.g.
	// "results[0].rows".  Empty means the body root.
	ResultPath string `json:"resultPath,omitempty"`

	// FlattenRelations defaults to true; the authority sets false for
	// backends whose rows are already flat.
	FlattenRelations *bool `json:"flattenRelations,omitempty"`

	// QueryConfig is backend-specific and opaque to the edge.
	QueryConfig json.RawMessage `json:"queryConfig,omitempty"`
}

// Result carries the extracted rows and the resolved total.
type Result struct {
	Data  []any `json:"data"`
	Total int64 `json:"total"`
}

// maxErrorBody bounds how much of a failed response is echoed into the
// error, keeping error payloads from ballooning.
const maxErrorBody = 300

// Executor replays DataRequests.  The zero value is not usable; construct
// with New.
type Executor struct {
	hc *http.Client
}

// New returns an Executor with a conservative client timeout.  Callers
// pass a request-scoped context for per-call cancellation.
func New() *Executor {
	return &Executor{hc: &http.Client{Timeout: 20 * time.Second}}
}

// NewWithClient injects an HTTP client.  Used by tests.
func NewWithClient(hc *http.Client) *Executor { return &Executor{hc: hc} }

// Execute runs the full replay pipeline.
func (e *Executor) Execute(ctx context.Context, dr *DataRequest) (*Result, error) {
	method := dr.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if len(dr.Body) > 0 {
		body = bytes.NewReader(dr.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, ResolveEnv(dr.URL), body)
	if err != nil {
		return nil, fmt.Errorf("datarequest: build request: %w", err)
	}
	for k, v := range dr.Headers {
		req.Header.Set(k, ResolveEnv(v))
	}

	resp, err := e.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("datarequest: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("datarequest: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("datarequest: HTTP %d: %s",
			resp.StatusCode, truncate(raw, maxErrorBody))
	}

	rows := ExtractRows(raw, dr.ResultPath)
	if dr.FlattenRelations == nil || *dr.FlattenRelations {
		rows = FlattenRelations(rows)
	}

	return &Result{
		Data:  rows,
		Total: resolveTotal(resp.Header.Get("Content-Range"), raw, len(rows)),
	}, nil
}

/*──────────────────────────── step helpers ────────────────────────────────*/

var envPlaceholder = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// ResolveEnv replaces every {{VAR}} with the variable's current value.
// Unset variables resolve to "" so the placeholder never leaks downstream.
func ResolveEnv(s string) string {
	return envPlaceholder.ReplaceAllStringFunc(s, func(m string) string {
		name := envPlaceholder.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})
}

// ExtractRows pulls the row array out of the body.  Bracket indices are
// normalised to gjson's dot form ("results[0].rows" → "results.0.rows").
// A non-array, non-null value wraps into a one-element slice.
func ExtractRows(body []byte, path string) []any {
	target := gjson.ParseBytes(body)
	if path != "" {
		target = target.Get(bracketsToDots(path))
	}

	switch {
	case !target.Exists(), target.Type == gjson.Null:
		return []any{}
	case target.IsArray():
		out := make([]any, 0, 16)
		for _, el := range target.Array() {
			out = append(out, el.Value())
		}
		return out
	default:
		return []any{target.Value()}
	}
}

// FlattenRelations flattens one level of nested objects inside object rows
// into "<relation>.<column>" keys.  Scalars and arrays — including rows
// that are themselves plain strings — pass through untouched, so a list
// like ["Australia", "France"] never explodes into characters.
func FlattenRelations(rows []any) []any {
	out := make([]any, 0, len(rows))
	for _, r := range rows {
		obj, ok := r.(map[string]any)
		if !ok {
			out = append(out, r)
			continue
		}
		flat := make(map[string]any, len(obj))
		for k, v := range obj {
			nested, ok := v.(map[string]any)
			if !ok {
				flat[k] = v
				continue
			}
			for col, cv := range nested {
				flat[k+"."+col] = cv
			}
		}
		out = append(out, flat)
	}
	return out
}

// resolveTotal applies the three-step count fallback.
func resolveTotal(contentRange string, body []byte, rowCount int) int64 {
	if i := strings.LastIndexByte(contentRange, '/'); i != -1 {
		if n, err := strconv.ParseInt(strings.TrimSpace(contentRange[i+1:]), 10, 64); err == nil {
			return n
		}
	}
	if total := gjson.GetBytes(body, "total"); total.Exists() {
		return total.Int()
	}
	return int64(rowCount)
}

func bracketsToDots(path string) string {
	r := strings.NewReplacer("[", ".", "]", "")
	return r.Replace(path)
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
