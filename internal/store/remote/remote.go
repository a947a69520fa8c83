// internal/store/remote/remote.go
//
// Remote hosted state-store backend.
//
// Context
// -------
// Managed/cloud deployments point many stateless edge processes at one
// shared libsql database over HTTPS.  This backend mirrors the embedded
// SQLite backend statement-for-statement — same DDL, same upsert, same
// homepage demotion — so switching deployment modes is a data copy, not a
// migration, and callers cannot tell the backends apart.
//
// Failure semantics: construction fails fast when the endpoint URL is
// missing (fatal configuration error, never retried); per-call network
// failures propagate to the caller as errors, since every call sits inside
// either a request or a retried sync loop.
//
// Notes
// -----
//   • Homepage demotion here is two statements, not one transaction; the
//     importer is the only writer, so the window is acceptable and matches
//     the authority's sequential publish model.
//   • Oxford commas, two spaces after periods.
package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pagelift/edge/internal/libsql"
	"github.com/pagelift/edge/internal/store"
)

// ErrNoURL is returned by New when the endpoint is not configured.
var ErrNoURL = errors.New("remote store: URL is required in remote mode")

// Store is the hosted backend.
type Store struct {
	client *libsql.Client
}

var _ store.Store = (*Store)(nil)

// New fails fast on a missing URL — continuing would silently serve from
// the wrong store.
func New(url, token string) (*Store, error) {
	if url == "" {
		return nil, ErrNoURL
	}
	return &Store{client: libsql.New(url, token)}, nil
}

// NewWithClient wraps an existing client.  Used by tests.
func NewWithClient(c *libsql.Client) *Store { return &Store{client: c} }

func (s *Store) Init(ctx context.Context) error {
	_, err := s.client.Execute(ctx, store.DDLPages)
	return err
}

func (s *Store) InitSettings(ctx context.Context) error {
	_, err := s.client.Execute(ctx, store.DDLSettings)
	return err
}

// Close is a no-op; the client holds no persistent connection.
func (s *Store) Close() error { return nil }

/*──────────────────────────── pages ───────────────────────────────────────*/

const upsertPageSQL = `
	INSERT INTO published_page
		(id, slug, name, title, description, layout_data, seo_data,
		 datasources, css_bundle, version, published_at, is_public, is_homepage)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		slug         = excluded.slug,
		name         = excluded.name,
		title        = excluded.title,
		description  = excluded.description,
		layout_data  = excluded.layout_data,
		seo_data     = excluded.seo_data,
		datasources  = excluded.datasources,
		css_bundle   = excluded.css_bundle,
		version      = excluded.version,
		published_at = excluded.published_at,
		is_public    = excluded.is_public,
		is_homepage  = excluded.is_homepage`

func (s *Store) UpsertPage(ctx context.Context, page *store.PublishedPage) (int64, error) {
	row, err := store.EncodePage(page)
	if err != nil {
		return 0, err
	}

	if page.IsHomepage {
		if _, err := s.client.Execute(ctx,
			`UPDATE published_page SET is_homepage = 0 WHERE id <> ?`, page.ID); err != nil {
			return 0, fmt.Errorf("demote homepage: %w", err)
		}
	}

	_, err = s.client.Execute(ctx, upsertPageSQL,
		row.ID, row.Slug, row.Name, row.Title, row.Description,
		row.LayoutData, row.SEOData, row.Datasources, row.CSSBundle,
		row.Version, row.PublishedAt, row.IsPublic, row.IsHomepage)
	if err != nil {
		return 0, fmt.Errorf("upsert page %q: %w", page.ID, err)
	}
	return page.Version, nil
}

const selectPageCols = `
	id, slug, name, title, description, layout_data,
	COALESCE(seo_data, ''), COALESCE(datasources, ''),
	css_bundle, version, published_at, is_public, is_homepage`

func (s *Store) GetPageBySlug(ctx context.Context, slug string) (*store.PublishedPage, error) {
	q := `SELECT ` + selectPageCols + ` FROM published_page WHERE slug = ? LIMIT 1`
	return s.getPage(ctx, q, slug)
}

func (s *Store) GetPageByID(ctx context.Context, id string) (*store.PublishedPage, error) {
	q := `SELECT ` + selectPageCols + ` FROM published_page WHERE id = ? LIMIT 1`
	return s.getPage(ctx, q, id)
}

func (s *Store) GetHomepage(ctx context.Context) (*store.PublishedPage, error) {
	q := `SELECT ` + selectPageCols + ` FROM published_page WHERE is_homepage = 1 LIMIT 1`
	return s.getPage(ctx, q)
}

func (s *Store) getPage(ctx context.Context, q string, args ...any) (*store.PublishedPage, error) {
	res, err := s.client.Execute(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return nil, nil
	}
	row, err := pageRowFromCells(res.Rows[0])
	if err != nil {
		return nil, err
	}
	return store.DecodePage(row)
}

func (s *Store) DeletePage(ctx context.Context, slug string) (bool, error) {
	res, err := s.client.Execute(ctx,
		`DELETE FROM published_page WHERE slug = ?`, slug)
	if err != nil {
		return false, err
	}
	return res.AffectedRows > 0, nil
}

func (s *Store) ListPages(ctx context.Context) ([]store.PageSummary, error) {
	res, err := s.client.Execute(ctx,
		`SELECT slug, name, version FROM published_page ORDER BY slug`)
	if err != nil {
		return nil, err
	}
	out := make([]store.PageSummary, 0, len(res.Rows))
	for _, r := range res.Rows {
		if len(r) != 3 {
			return nil, fmt.Errorf("remote store: malformed summary row")
		}
		out = append(out, store.PageSummary{
			Slug:    asString(r[0]),
			Name:    asString(r[1]),
			Version: asInt(r[2]),
		})
	}
	return out, nil
}

/*──────────────────────────── settings ────────────────────────────────────*/

func (s *Store) GetProjectSettings(ctx context.Context) (*store.ProjectSettings, error) {
	res, err := s.client.Execute(ctx,
		`SELECT id, favicon_url, logo_url, site_name, site_description,
		        public_app_url, updated_at
		   FROM project_settings WHERE id = ? LIMIT 1`, store.SettingsID)
	if err != nil {
		return nil, err
	}
	if len(res.Rows) == 0 {
		return store.Defaults(), nil
	}
	r := res.Rows[0]
	if len(r) != 7 {
		return nil, fmt.Errorf("remote store: malformed settings row")
	}
	out := &store.ProjectSettings{
		ID:              asString(r[0]),
		FaviconURL:      asString(r[1]),
		LogoURL:         asString(r[2]),
		SiteName:        asString(r[3]),
		SiteDescription: asString(r[4]),
		PublicAppURL:    asString(r[5]),
	}
	if ts, err := time.Parse(time.RFC3339, asString(r[6])); err == nil {
		out.UpdatedAt = ts
	}
	return out, nil
}

func (s *Store) GetFaviconUrl(ctx context.Context) (string, error) {
	set, err := s.GetProjectSettings(ctx)
	if err != nil {
		return "", err
	}
	if set.FaviconURL == "" {
		return store.DefaultFaviconURL, nil
	}
	return set.FaviconURL, nil
}

func (s *Store) UpdateProjectSettings(ctx context.Context, patch store.SettingsPatch) (*store.ProjectSettings, error) {
	cur, err := s.GetProjectSettings(ctx)
	if err != nil {
		return nil, err
	}
	cur.Apply(patch)
	cur.UpdatedAt = time.Now().UTC()

	const q = `
	INSERT INTO project_settings
		(id, favicon_url, logo_url, site_name, site_description, public_app_url, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(id) DO UPDATE SET
		favicon_url      = excluded.favicon_url,
		logo_url         = excluded.logo_url,
		site_name        = excluded.site_name,
		site_description = excluded.site_description,
		public_app_url   = excluded.public_app_url,
		updated_at       = excluded.updated_at`
	_, err = s.client.Execute(ctx, q,
		store.SettingsID, cur.FaviconURL, cur.LogoURL, cur.SiteName,
		cur.SiteDescription, cur.PublicAppURL,
		cur.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return cur, nil
}

/*──────────────────────────── cell helpers ────────────────────────────────*/

func pageRowFromCells(cells []any) (*store.PageRow, error) {
	if len(cells) != 13 {
		return nil, fmt.Errorf("remote store: malformed page row (%d cells)", len(cells))
	}
	return &store.PageRow{
		ID:          asString(cells[0]),
		Slug:        asString(cells[1]),
		Name:        asString(cells[2]),
		Title:       asString(cells[3]),
		Description: asString(cells[4]),
		LayoutData:  asString(cells[5]),
		SEOData:     asString(cells[6]),
		Datasources: asString(cells[7]),
		CSSBundle:   asString(cells[8]),
		Version:     asInt(cells[9]),
		PublishedAt: asString(cells[10]),
		IsPublic:    asInt(cells[11]),
		IsHomepage:  asInt(cells[12]),
	}, nil
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asInt(v any) int64 {
	n, _ := v.(int64)
	return n
}
