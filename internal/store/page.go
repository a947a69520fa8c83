// internal/store/page.go
//
// Published-page and settings models.
//
// Context
// -------
// A PublishedPage is the unit the authority pushes to the edge: one
// versioned, self-contained snapshot of a page.  `LayoutData` and `SEOData`
// are opaque JSON blobs — the edge round-trips them byte-for-byte and never
// inspects their contents.  `Datasources` is typed because the data API
// needs to pick an adapter from it, but it is publish-safe by construction:
// a descriptor carries a URL, an anon key, or the *name* of an environment
// variable, never a raw secret.
//
// Notes
// -----
//   • JSON tags mirror the authority's wire shape (camelCase).
//   • `validate` tags drive the importer's per-field error reporting.
//   • Oxford commas, two spaces after periods.
package store

import (
	"encoding/json"
	"time"
)

//
// Datasource descriptors
//

// Datasource backend types.  Closed enum; the adapter factory rejects
// anything else at construction time.
const (
	DatasourceSupabase    = "supabase"    // hosted Postgres behind a REST gateway
	DatasourceNeon        = "neon"        // serverless Postgres
	DatasourcePlanetScale = "planetscale" // serverless MySQL
	DatasourceTurso       = "turso"       // embedded SQLite over HTTP
)

// DatasourceConfig is a publish-safe connection descriptor.
type DatasourceConfig struct {
	ID        string `json:"id"        validate:"required"`
	Type      string `json:"type"      validate:"required,oneof=supabase neon planetscale turso"`
	Name      string `json:"name"`
	URL       string `json:"url"       validate:"required"`
	AnonKey   string `json:"anonKey,omitempty"`
	SecretEnv string `json:"secretEnv,omitempty"` // env var holding the real credential
}

//
// Published page
//

// PublishedPage mirrors one row in the `published_page` table.
type PublishedPage struct {
	ID          string             `json:"id"    validate:"required"`
	Slug        string             `json:"slug"  validate:"required,max=200"`
	Name        string             `json:"name"  validate:"required"`
	Title       string             `json:"title,omitempty"`
	Description string             `json:"description,omitempty"`
	LayoutData  json.RawMessage    `json:"layoutData" validate:"required"`
	SEOData     json.RawMessage    `json:"seoData,omitempty"`
	Datasources []DatasourceConfig `json:"datasources,omitempty" validate:"omitempty,dive"`
	CSSBundle   string             `json:"cssBundle,omitempty"`
	Version     int64              `json:"version" validate:"required,gt=0"`
	PublishedAt time.Time          `json:"publishedAt"`
	IsPublic    bool               `json:"isPublic"`
	IsHomepage  bool               `json:"isHomepage"`
}

// PageSummary is the light listing shape returned by ListPages.
type PageSummary struct {
	Slug    string `json:"slug" db:"slug"`
	Name    string `json:"name" db:"name"`
	Version int64  `json:"version" db:"version"`
}

//
// Project settings
//

// DefaultFaviconURL is served when no settings row exists yet.
const DefaultFaviconURL = "/favicon.ico"

// SettingsID is the fixed primary key of the singleton settings row.
const SettingsID = "default"

// ProjectSettings is the singleton site-wide settings row, created lazily
// on first write.  Reads against an empty table return Defaults().
type ProjectSettings struct {
	ID              string    `json:"id"`
	FaviconURL      string    `json:"faviconUrl"`
	LogoURL         string    `json:"logoUrl"`
	SiteName        string    `json:"siteName"`
	SiteDescription string    `json:"siteDescription"`
	PublicAppURL    string    `json:"publicAppUrl"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// SettingsPatch is a partial update; nil fields are left untouched.  The
// HTTP writer accepts a superset of fields and drops unknown ones before
// this struct is ever populated.
type SettingsPatch struct {
	FaviconURL      *string `json:"faviconUrl"`
	LogoURL         *string `json:"logoUrl"`
	SiteName        *string `json:"siteName"`
	SiteDescription *string `json:"siteDescription"`
	PublicAppURL    *string `json:"publicAppUrl"`
}

// Defaults returns the settings served before the first write.
func Defaults() *ProjectSettings {
	return &ProjectSettings{
		ID:         SettingsID,
		FaviconURL: DefaultFaviconURL,
	}
}

// Apply copies non-nil patch fields onto s.
func (s *ProjectSettings) Apply(p SettingsPatch) {
	if p.FaviconURL != nil {
		s.FaviconURL = *p.FaviconURL
	}
	if p.LogoURL != nil {
		s.LogoURL = *p.LogoURL
	}
	if p.SiteName != nil {
		s.SiteName = *p.SiteName
	}
	if p.SiteDescription != nil {
		s.SiteDescription = *p.SiteDescription
	}
	if p.PublicAppURL != nil {
		s.PublicAppURL = *p.PublicAppURL
	}
}
