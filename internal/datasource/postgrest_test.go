// internal/datasource/postgrest_test.go
package datasource

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/edge/internal/store"
)

func TestPostgRESTQueryTranslation(t *testing.T) {
	var gotReq *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r.Clone(context.Background())
		w.Header().Set("Content-Range", "0-19/125")
		w.Write([]byte(`[{"id":1,"name":"Widget"},{"id":2,"name":"Gadget"}]`))
	}))
	defer srv.Close()

	a := newPostgREST(store.DatasourceConfig{URL: srv.URL, AnonKey: "anon"})
	res := a.Query(context.Background(), QueryOptions{
		Table:   "products",
		Select:  []string{"id", "name"},
		Filters: map[string]string{"category": "tools"},
		Limit:   20,
		OrderBy: "name",
		Order:   "desc",
	})
	require.NoError(t, res.Err)
	require.Len(t, res.Data, 2)
	assert.Equal(t, "Widget", res.Data[0]["name"])

	// Content-Range supplies the exact total.
	require.NotNil(t, res.Count)
	assert.Equal(t, int64(125), *res.Count)

	// Request shape: table path plus PostgREST operators and auth headers.
	assert.Equal(t, "/rest/v1/products", gotReq.URL.Path)
	q := gotReq.URL.Query()
	assert.Equal(t, "id,name", q.Get("select"))
	assert.Equal(t, "eq.tools", q.Get("category"))
	assert.Equal(t, "20", q.Get("limit"))
	assert.Equal(t, "name.desc", q.Get("order"))
	assert.Equal(t, "anon", gotReq.Header.Get("apikey"))
	assert.Equal(t, "Bearer anon", gotReq.Header.Get("Authorization"))
	assert.Equal(t, "count=exact", gotReq.Header.Get("Prefer"))
}

func TestPostgRESTFailureYieldsEmptyErroredResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"permission denied"}`, http.StatusForbidden)
	}))
	defer srv.Close()

	a := newPostgREST(store.DatasourceConfig{URL: srv.URL})
	res := a.Query(context.Background(), QueryOptions{Table: "secret"})

	require.Error(t, res.Err)
	assert.Contains(t, res.Err.Error(), "HTTP 403")
	assert.NotNil(t, res.Data)
	assert.Empty(t, res.Data)
}

func TestPostgRESTExecuteUnsupported(t *testing.T) {
	a := newPostgREST(store.DatasourceConfig{URL: "http://db.example.com"})
	assert.Error(t, a.Execute(context.Background(), "DELETE FROM t"))
}

func TestParseContentRange(t *testing.T) {
	cases := []struct {
		in    string
		total int64
		ok    bool
	}{
		{"0-19/125", 125, true},
		{"*/7", 7, true},
		{"0-19/*", 0, false},
		{"", 0, false},
		{"garbage", 0, false},
	}
	for _, c := range cases {
		total, ok := parseContentRange(c.in)
		assert.Equal(t, c.ok, ok, c.in)
		if ok {
			assert.Equal(t, c.total, total, c.in)
		}
	}
}
