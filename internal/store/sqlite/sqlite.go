// internal/store/sqlite/sqlite.go
//
// Embedded state-store backend.
//
// Context
// -------
// Self-hosted single-node deployments keep published pages in one SQLite
// file next to the binary.  The pool comes from internal/database (WAL
// mode, one writer); queries are small parameterised statements in the
// repository style.
//
// Notes
// -----
//   • Upsert runs in a transaction so homepage demotion and the row write
//     land atomically.
//   • Oxford commas, two spaces after periods.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/pagelift/edge/internal/database"
	"github.com/pagelift/edge/internal/store"
)

// Store is the embedded backend.  Safe for concurrent use; SQLite
// serialises writers underneath.
type Store struct {
	db *sqlx.DB
}

var _ store.Store = (*Store)(nil)

// New opens (and creates, if needed) the SQLite file at path.
func New(path string) (*Store, error) {
	db, err := database.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing pool.  Used by tests with :memory:.
func NewWithDB(db *sqlx.DB) *Store { return &Store{db: db} }

func (s *Store) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, store.DDLPages)
	return err
}

func (s *Store) InitSettings(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, store.DDLSettings)
	return err
}

func (s *Store) Close() error { return s.db.Close() }

/*──────────────────────────── pages ───────────────────────────────────────*/

const upsertPageSQL = `
	INSERT INTO published_page
		(id, slug, name, title, description, layout_data, seo_data,
		 datasources, css_bundle, version, published_at, is_public, is_homepage)
	VALUES
		(:id, :slug, :name, :title, :description, :layout_data, :seo_data,
		 :datasources, :css_bundle, :version, :published_at, :is_public, :is_homepage)
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

// UpsertPage writes the row keyed by ID.  When the incoming page is the
// homepage, any other row carrying the flag is demoted first so at most one
// homepage exists after commit.
func (s *Store) UpsertPage(ctx context.Context, page *store.PublishedPage) (int64, error) {
	row, err := store.EncodePage(page)
	if err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if page.IsHomepage {
		if _, err := tx.ExecContext(ctx,
			`UPDATE published_page SET is_homepage = 0 WHERE id <> ?`, page.ID); err != nil {
			return 0, fmt.Errorf("demote homepage: %w", err)
		}
	}

	if _, err := tx.NamedExecContext(ctx, upsertPageSQL, row); err != nil {
		return 0, fmt.Errorf("upsert page %q: %w", page.ID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return page.Version, nil
}

const selectPageCols = `
	id, slug, name, title, description, layout_data,
	COALESCE(seo_data, '')    AS seo_data,
	COALESCE(datasources, '') AS datasources,
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
	var row store.PageRow
	if err := s.db.GetContext(ctx, &row, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return store.DecodePage(&row)
}

// DeletePage removes the slug.  Returns false when nothing was deleted.
func (s *Store) DeletePage(ctx context.Context, slug string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM published_page WHERE slug = ?`, slug)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) ListPages(ctx context.Context) ([]store.PageSummary, error) {
	const q = `SELECT slug, name, version FROM published_page ORDER BY slug`
	out := make([]store.PageSummary, 0, 16)
	if err := s.db.SelectContext(ctx, &out, q); err != nil {
		return nil, err
	}
	return out, nil
}

/*──────────────────────────── settings ────────────────────────────────────*/

type settingsRow struct {
	ID              string `db:"id"`
	FaviconURL      string `db:"favicon_url"`
	LogoURL         string `db:"logo_url"`
	SiteName        string `db:"site_name"`
	SiteDescription string `db:"site_description"`
	PublicAppURL    string `db:"public_app_url"`
	UpdatedAt       string `db:"updated_at"`
}

func (s *Store) GetProjectSettings(ctx context.Context) (*store.ProjectSettings, error) {
	const q = `SELECT id, favicon_url, logo_url, site_name, site_description,
	                  public_app_url, updated_at
	             FROM project_settings WHERE id = ? LIMIT 1`
	var row settingsRow
	if err := s.db.GetContext(ctx, &row, q, store.SettingsID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Defaults(), nil
		}
		return nil, err
	}
	return settingsFromRow(&row), nil
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

// UpdateProjectSettings merges the patch over current values and writes the
// singleton row, creating it on first write.
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
	_, err = s.db.ExecContext(ctx, q,
		store.SettingsID, cur.FaviconURL, cur.LogoURL, cur.SiteName,
		cur.SiteDescription, cur.PublicAppURL,
		cur.UpdatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, err
	}
	return cur, nil
}

func settingsFromRow(r *settingsRow) *store.ProjectSettings {
	out := &store.ProjectSettings{
		ID:              r.ID,
		FaviconURL:      r.FaviconURL,
		LogoURL:         r.LogoURL,
		SiteName:        r.SiteName,
		SiteDescription: r.SiteDescription,
		PublicAppURL:    r.PublicAppURL,
	}
	if ts, err := time.Parse(time.RFC3339, r.UpdatedAt); err == nil {
		out.UpdatedAt = ts
	}
	return out
}
