// internal/store/remote/remote_test.go
//
// Contract tests for the hosted backend against a fake sqld endpoint.
package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/edge/internal/libsql"
)

func cell(typ string, val any) string {
	if typ == "null" {
		return `{"type":"null"}`
	}
	if typ == "integer" {
		return fmt.Sprintf(`{"type":"integer","value":"%v"}`, val)
	}
	return fmt.Sprintf(`{"type":"%s","value":%q}`, typ, val)
}

func pageRowJSON() string {
	cells := []string{
		cell("text", "p1"),
		cell("text", "about"),
		cell("text", "About Us"),
		cell("text", ""),
		cell("text", ""),
		cell("text", `{"id":"root","type":"section"}`),
		cell("text", ""),
		cell("text", ""),
		cell("text", ""),
		cell("integer", 4),
		cell("text", "2026-08-01T10:00:00Z"),
		cell("integer", 1),
		cell("integer", 0),
	}
	out := "["
	for i, c := range cells {
		if i > 0 {
			out += ","
		}
		out += c
	}
	return out + "]"
}

func fakeSqld(t *testing.T, rows string, affected int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"results":[{"type":"ok","response":{"result":{
			"cols":[{"name":"c"}],"rows":%s,"affected_row_count":%d}}}]}`, rows, affected)
	}))
}

func TestNewRequiresURL(t *testing.T) {
	_, err := New("", "token")
	require.ErrorIs(t, err, ErrNoURL)
}

func TestGetPageBySlugDecodesRow(t *testing.T) {
	srv := fakeSqld(t, "["+pageRowJSON()+"]", 0)
	defer srv.Close()

	s := NewWithClient(libsql.New(srv.URL, ""))
	page, err := s.GetPageBySlug(context.Background(), "about")
	require.NoError(t, err)
	require.NotNil(t, page)

	assert.Equal(t, "p1", page.ID)
	assert.Equal(t, "about", page.Slug)
	assert.Equal(t, int64(4), page.Version)
	assert.Equal(t, `{"id":"root","type":"section"}`, string(page.LayoutData))
	assert.True(t, page.IsPublic)
	assert.False(t, page.IsHomepage)
	assert.Equal(t, 2026, page.PublishedAt.Year())
}

func TestGetHomepageMissIsNil(t *testing.T) {
	srv := fakeSqld(t, "[]", 0)
	defer srv.Close()

	s := NewWithClient(libsql.New(srv.URL, ""))
	page, err := s.GetHomepage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestDeletePageReportsAffectedRows(t *testing.T) {
	srv := fakeSqld(t, "[]", 1)
	defer srv.Close()

	s := NewWithClient(libsql.New(srv.URL, ""))
	removed, err := s.DeletePage(context.Background(), "about")
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestSettingsDefaultsOnEmptyTable(t *testing.T) {
	srv := fakeSqld(t, "[]", 0)
	defer srv.Close()

	s := NewWithClient(libsql.New(srv.URL, ""))
	set, err := s.GetProjectSettings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "default", set.ID)
}
