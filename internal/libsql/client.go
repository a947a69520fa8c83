// internal/libsql/client.go
//
// Minimal libsql (sqld) HTTP client.
//
// Context
// -------
// Managed deployments keep edge state in a hosted libsql database reached
// over HTTPS instead of a local file.  sqld exposes a JSON pipeline
// endpoint (`POST /v2/pipeline`) that executes parameterised SQL; this
// client wraps exactly the subset the edge needs: one execute statement per
// round trip, typed argument encoding, and typed cell decoding.
//
// The same client backs two callers: the remote state-store backend and the
// Turso datasource adapter.
//
// Notes
// -----
//   • Cell values arrive tagged (`{"type":"integer","value":"42"}`);
//     integers are JSON strings to survive 64-bit precision.
//   • Errors from the remote end carry sqld's message verbatim.
//   • Oxford commas, two spaces after periods.
package libsql

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Client talks to one sqld endpoint.  Safe for concurrent use; every call
// is an independent HTTP round trip.
type Client struct {
	baseURL string
	token   string
	hc      *http.Client
}

// New returns a Client for the given endpoint.  The token may be empty for
// unauthenticated local sqld instances.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		hc:      &http.Client{Timeout: 15 * time.Second},
	}
}

// Result is one statement's outcome.
type Result struct {
	Columns      []string
	Rows         [][]any
	AffectedRows int64
}

/*──────────────────────────── wire types ──────────────────────────────────*/

type pipelineRequest struct {
	Requests []pipelineStep `json:"requests"`
}

type pipelineStep struct {
	Type string `json:"type"`
	Stmt *stmt  `json:"stmt,omitempty"`
}

type stmt struct {
	SQL  string     `json:"sql"`
	Args []argValue `json:"args,omitempty"`
}

type argValue struct {
	Type   string `json:"type"`
	Value  any    `json:"value,omitempty"`
	Base64 string `json:"base64,omitempty"`
}

type pipelineResponse struct {
	Results []struct {
		Type     string `json:"type"`
		Error    *struct {
			Message string `json:"message"`
		} `json:"error,omitempty"`
		Response *struct {
			Result *rawResult `json:"result"`
		} `json:"response,omitempty"`
	} `json:"results"`
}

type rawResult struct {
	Cols []struct {
		Name string `json:"name"`
	} `json:"cols"`
	Rows             [][]cellValue `json:"rows"`
	AffectedRowCount int64         `json:"affected_row_count"`
}

type cellValue struct {
	Type   string `json:"type"`
	Value  any    `json:"value"`
	Base64 string `json:"base64"`
}

/*──────────────────────────── execution ───────────────────────────────────*/

// Execute runs one parameterised statement and closes the stream in the
// same pipeline call.
func (c *Client) Execute(ctx context.Context, sql string, args ...any) (*Result, error) {
	encoded := make([]argValue, 0, len(args))
	for _, a := range args {
		v, err := encodeArg(a)
		if err != nil {
			return nil, err
		}
		encoded = append(encoded, v)
	}

	reqBody := pipelineRequest{Requests: []pipelineStep{
		{Type: "execute", Stmt: &stmt{SQL: sql, Args: encoded}},
		{Type: "close"},
	}}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v2/pipeline", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("libsql request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("libsql: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var pr pipelineResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("libsql: decode response: %w", err)
	}
	if len(pr.Results) == 0 {
		return nil, fmt.Errorf("libsql: empty pipeline response")
	}

	first := pr.Results[0]
	if first.Type == "error" && first.Error != nil {
		return nil, fmt.Errorf("libsql: %s", first.Error.Message)
	}
	if first.Response == nil || first.Response.Result == nil {
		return nil, fmt.Errorf("libsql: malformed execute result")
	}

	return decodeResult(first.Response.Result)
}

func decodeResult(raw *rawResult) (*Result, error) {
	out := &Result{AffectedRows: raw.AffectedRowCount}
	for _, c := range raw.Cols {
		out.Columns = append(out.Columns, c.Name)
	}
	for _, row := range raw.Rows {
		decoded := make([]any, 0, len(row))
		for _, cell := range row {
			v, err := decodeCell(cell)
			if err != nil {
				return nil, err
			}
			decoded = append(decoded, v)
		}
		out.Rows = append(out.Rows, decoded)
	}
	return out, nil
}

func decodeCell(c cellValue) (any, error) {
	switch c.Type {
	case "null":
		return nil, nil
	case "integer":
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("libsql: integer cell is not a string")
		}
		return strconv.ParseInt(s, 10, 64)
	case "float":
		f, ok := c.Value.(float64)
		if !ok {
			return nil, fmt.Errorf("libsql: float cell is not a number")
		}
		return f, nil
	case "text":
		s, ok := c.Value.(string)
		if !ok {
			return nil, fmt.Errorf("libsql: text cell is not a string")
		}
		return s, nil
	case "blob":
		return base64.StdEncoding.DecodeString(c.Base64)
	default:
		return nil, fmt.Errorf("libsql: unknown cell type %q", c.Type)
	}
}

func encodeArg(a any) (argValue, error) {
	switch v := a.(type) {
	case nil:
		return argValue{Type: "null"}, nil
	case int:
		return argValue{Type: "integer", Value: strconv.FormatInt(int64(v), 10)}, nil
	case int64:
		return argValue{Type: "integer", Value: strconv.FormatInt(v, 10)}, nil
	case float64:
		return argValue{Type: "float", Value: v}, nil
	case bool:
		n := int64(0)
		if v {
			n = 1
		}
		return argValue{Type: "integer", Value: strconv.FormatInt(n, 10)}, nil
	case string:
		return argValue{Type: "text", Value: v}, nil
	case []byte:
		return argValue{Type: "blob", Base64: base64.StdEncoding.EncodeToString(v)}, nil
	default:
		return argValue{}, fmt.Errorf("libsql: unsupported arg type %T", a)
	}
}
