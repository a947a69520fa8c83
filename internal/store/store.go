// internal/store/store.go
//
// State-store contract.
//
// Context
// -------
// The edge persists two tables — published pages and the singleton project
// settings — behind one interface with two interchangeable backends: an
// embedded SQLite file for self-hosted single-node deployment, and a remote
// libsql-over-HTTP store for managed deployment.  The backend is selected
// once at process start; swapping it must not change any caller-visible
// behavior.  Both backends share identical DDL, so moving between them is a
// copy, not a migration.
//
// Lookup misses return (nil, nil), not an error: "page absent" is a normal
// outcome the caller routes on (404 or pull-publish), while a non-nil error
// always means the backend itself failed.
//
// Notes
// -----
//   • Upsert is keyed on page ID; the version guard lives in the importer,
//     not here.  The one invariant the store does enforce is homepage
//     uniqueness: upserting a homepage demotes any previous homepage row in
//     the same transaction.
//   • Oxford commas, two spaces after periods.
package store

import "context"

// Store is the seam between request handlers and persistence.
type Store interface {
	// Init creates the published_page table when absent.
	Init(ctx context.Context) error

	// InitSettings creates the project_settings table when absent.
	InitSettings(ctx context.Context) error

	// UpsertPage inserts or replaces the page keyed by ID and returns the
	// stored version.  A page flagged IsHomepage demotes any other
	// homepage in the same transaction.
	UpsertPage(ctx context.Context, page *PublishedPage) (int64, error)

	// GetPageBySlug returns the page or (nil, nil) when absent.
	GetPageBySlug(ctx context.Context, slug string) (*PublishedPage, error)

	// GetPageByID returns the page or (nil, nil) when absent.
	GetPageByID(ctx context.Context, id string) (*PublishedPage, error)

	// GetHomepage returns the page flagged is_homepage, or (nil, nil).
	GetHomepage(ctx context.Context) (*PublishedPage, error)

	// DeletePage removes the page by slug.  Returns false when the slug
	// was not present; that is not an error.
	DeletePage(ctx context.Context, slug string) (bool, error)

	// ListPages returns slug, name, and version for every stored page.
	ListPages(ctx context.Context) ([]PageSummary, error)

	// GetProjectSettings returns the singleton row, or Defaults() when no
	// row has been written yet.
	GetProjectSettings(ctx context.Context) (*ProjectSettings, error)

	// GetFaviconUrl is a convenience read that never fails the request:
	// missing row or missing value falls back to DefaultFaviconURL.
	GetFaviconUrl(ctx context.Context) (string, error)

	// UpdateProjectSettings applies a partial update, creating the row on
	// first write, and returns the merged result.
	UpdateProjectSettings(ctx context.Context, patch SettingsPatch) (*ProjectSettings, error)

	// Close releases the backend connection.
	Close() error
}

//
// Shared DDL
//

// Identical across backends — both speak the SQLite dialect.
const (
	DDLPages = `
	CREATE TABLE IF NOT EXISTS published_page (
		id           TEXT PRIMARY KEY,
		slug         TEXT NOT NULL UNIQUE,
		name         TEXT NOT NULL,
		title        TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT '',
		layout_data  TEXT NOT NULL,
		seo_data     TEXT,
		datasources  TEXT,
		css_bundle   TEXT NOT NULL DEFAULT '',
		version      INTEGER NOT NULL DEFAULT 1,
		published_at TEXT NOT NULL,
		is_public    INTEGER NOT NULL DEFAULT 1,
		is_homepage  INTEGER NOT NULL DEFAULT 0
	)`

	DDLSettings = `
	CREATE TABLE IF NOT EXISTS project_settings (
		id               TEXT PRIMARY KEY,
		favicon_url      TEXT NOT NULL DEFAULT '',
		logo_url         TEXT NOT NULL DEFAULT '',
		site_name        TEXT NOT NULL DEFAULT '',
		site_description TEXT NOT NULL DEFAULT '',
		public_app_url   TEXT NOT NULL DEFAULT '',
		updated_at       TEXT NOT NULL
	)`
)
