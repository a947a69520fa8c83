// internal/datasource/turso_test.go
package datasource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/edge/internal/libsql"
)

func TestTursoQueryBuildsRowsFromCells(t *testing.T) {
	var stmts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Requests []struct {
				Stmt struct {
					SQL string `json:"sql"`
				} `json:"stmt"`
			} `json:"requests"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, req := range body.Requests {
			if req.Stmt.SQL != "" {
				stmts = append(stmts, req.Stmt.SQL)
			}
		}

		// First pipeline call answers the select, second the count.
		if len(stmts) == 1 {
			fmt.Fprint(w, `{"results":[{"type":"ok","response":{"result":{
				"cols":[{"name":"id"},{"name":"name"}],
				"rows":[[{"type":"integer","value":"1"},{"type":"text","value":"Widget"}]],
				"affected_row_count":0}}}]}`)
			return
		}
		fmt.Fprint(w, `{"results":[{"type":"ok","response":{"result":{
			"cols":[{"name":"c"}],
			"rows":[[{"type":"integer","value":"9"}]],
			"affected_row_count":0}}}]}`)
	}))
	defer srv.Close()

	a := newTursoWithClient(libsql.New(srv.URL, ""))
	res := a.Query(context.Background(), QueryOptions{
		Table:   "products",
		Filters: map[string]string{"active": "1"},
	})
	require.NoError(t, res.Err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, int64(1), res.Data[0]["id"])
	assert.Equal(t, "Widget", res.Data[0]["name"])
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(9), *res.Count)

	require.Len(t, stmts, 2)
	assert.Equal(t, "SELECT * FROM products WHERE active = '1'", stmts[0])
	assert.Equal(t, "SELECT COUNT(*) FROM products WHERE active = '1'", stmts[1])
}

func TestTursoQueryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	}))
	defer srv.Close()

	a := newTursoWithClient(libsql.New(srv.URL, "bad"))
	res := a.Query(context.Background(), QueryOptions{Table: "t"})
	require.Error(t, res.Err)
	assert.Empty(t, res.Data)
}
