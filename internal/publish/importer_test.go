// internal/publish/importer_test.go
package publish

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/edge/internal/store"
	"github.com/pagelift/edge/internal/store/sqlite"
)

func newImporter(t *testing.T) (*Importer, store.Store) {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := sqlite.NewWithDB(db)
	require.NoError(t, st.Init(context.Background()))
	return New(st), st
}

func bundle(id, slug string, version int64) *store.PublishedPage {
	return &store.PublishedPage{
		ID:         id,
		Slug:       slug,
		Name:       "Page",
		LayoutData: json.RawMessage(`{"id":"root"}`),
		Version:    version,
	}
}

func TestImportValidBundle(t *testing.T) {
	imp, st := newImporter(t)
	ctx := context.Background()

	res, err := imp.Import(ctx, bundle("p1", "pricing", 1), false)
	require.NoError(t, err)
	assert.Equal(t, "pricing", res.Slug)
	assert.Equal(t, int64(1), res.Version)

	got, err := st.GetPageBySlug(ctx, "pricing")
	require.NoError(t, err)
	require.NotNil(t, got)
}

func TestImportReportsFieldErrors(t *testing.T) {
	imp, _ := newImporter(t)

	bad := &store.PublishedPage{
		Slug:    "x",
		Version: 0, // invalid
		Datasources: []store.DatasourceConfig{
			{ID: "d1", Type: "oracle", URL: "http://db"},
		},
	}
	_, err := imp.Import(context.Background(), bad, false)

	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	paths := make(map[string]string, len(verr.Details))
	for _, d := range verr.Details {
		paths[d.Path] = d.Message
	}
	assert.Equal(t, "is required", paths["id"])
	assert.Equal(t, "is required", paths["name"])
	assert.Equal(t, "is required", paths["layoutData"])
	assert.Contains(t, paths, "version")
	// Nested descriptors report wire paths too.
	assert.Contains(t, paths, "datasources[0].type")
}

func TestImportVersionGuard(t *testing.T) {
	imp, _ := newImporter(t)
	ctx := context.Background()

	_, err := imp.Import(ctx, bundle("p1", "a", 3), false)
	require.NoError(t, err)

	// Same version, no force → conflict with both numbers.
	_, err = imp.Import(ctx, bundle("p1", "a", 3), false)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, int64(3), conflict.ExistingVersion)
	assert.Equal(t, int64(3), conflict.NewVersion)

	// Lower version, no force → conflict.
	_, err = imp.Import(ctx, bundle("p1", "a", 2), false)
	require.ErrorAs(t, err, &conflict)

	// Same version with force → overwrite.
	res, err := imp.Import(ctx, bundle("p1", "a", 3), true)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Version)

	// Higher version, no force → accepted.
	res, err = imp.Import(ctx, bundle("p1", "a", 4), false)
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Version)
}

func TestDeleteIsIdempotent(t *testing.T) {
	imp, _ := newImporter(t)
	ctx := context.Background()

	_, err := imp.Import(ctx, bundle("p1", "temp", 1), false)
	require.NoError(t, err)

	require.NoError(t, imp.Delete(ctx, "temp"))
	require.NoError(t, imp.Delete(ctx, "temp"))
	require.NoError(t, imp.Delete(ctx, "never-existed"))
}

/*──────────────────────────── preview URLs ────────────────────────────────*/

func TestPreviewURLPublicBase(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/import", nil)
	got := PreviewURL("https://acme.example.com/", r, "pricing")
	assert.Equal(t, "https://acme.example.com/pricing", got)
}

func TestPreviewURLFromRequestHost(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/import", nil)
	r.Host = "edge.acme.dev"
	r.Header.Set("X-Forwarded-Proto", "https")
	got := PreviewURL("", r, "pricing")
	assert.Equal(t, "https://edge.acme.dev/pricing", got)
}

func TestPreviewURLInternalHostCollapsesToPath(t *testing.T) {
	r := httptest.NewRequest("POST", "/api/import", nil)
	r.Host = "edge-app.internal:8080"
	got := PreviewURL("", r, "pricing")
	assert.Equal(t, "/pricing", got)
}
