// internal/libsql/client_test.go
//
// Wire-level tests against a fake sqld endpoint.
package libsql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecuteEncodesArgsAndDecodesRows(t *testing.T) {
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v2/pipeline", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results":[{"type":"ok","response":{"result":{
			"cols":[{"name":"id"},{"name":"title"},{"name":"score"}],
			"rows":[
				[{"type":"integer","value":"7"},{"type":"text","value":"hello"},{"type":"float","value":1.5}],
				[{"type":"integer","value":"8"},{"type":"null"},{"type":"float","value":2.5}]
			],
			"affected_row_count":0}}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok")
	res, err := c.Execute(context.Background(), "SELECT id, title, score FROM t WHERE id > ?", int64(5))
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "title", "score"}, res.Columns)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, int64(7), res.Rows[0][0])
	assert.Equal(t, "hello", res.Rows[0][1])
	assert.Equal(t, 1.5, res.Rows[0][2])
	assert.Nil(t, res.Rows[1][1])

	// Integer args must travel as strings.
	reqs := gotBody["requests"].([]any)
	stmt := reqs[0].(map[string]any)["stmt"].(map[string]any)
	args := stmt["args"].([]any)
	require.Len(t, args, 1)
	assert.Equal(t, "integer", args[0].(map[string]any)["type"])
	assert.Equal(t, "5", args[0].(map[string]any)["value"])
}

func TestExecuteSurfacesRemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"results":[{"type":"error","error":{"message":"no such table: missing"}}]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	_, err := c.Execute(context.Background(), "SELECT * FROM missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no such table")
}

func TestExecuteSurfacesHTTPFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "bad")
	_, err := c.Execute(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 401")
}
