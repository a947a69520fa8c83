// internal/store/row.go
//
// Row codec shared by both store backends.
//
// Context
// -------
// The JSON-blob columns (`layout_data`, `seo_data`, `datasources`) are
// marshalled exactly once, here, at the store boundary.  Backends never
// touch blob contents; they move PageRow values in and out of SQL.  Keeping
// the codec in one place is what guarantees the round-trip property: a page
// written through either backend reads back byte-equal.
package store

import (
	"encoding/json"
	"fmt"
	"time"
)

// PageRow is the flat, SQL-facing shape of a PublishedPage.  Timestamps are
// RFC 3339 strings and booleans are 0/1 integers so the same row scans
// identically from SQLite and from the remote store's JSON row encoding.
type PageRow struct {
	ID          string `db:"id"`
	Slug        string `db:"slug"`
	Name        string `db:"name"`
	Title       string `db:"title"`
	Description string `db:"description"`
	LayoutData  string `db:"layout_data"`
	SEOData     string `db:"seo_data"`
	Datasources string `db:"datasources"`
	CSSBundle   string `db:"css_bundle"`
	Version     int64  `db:"version"`
	PublishedAt string `db:"published_at"`
	IsPublic    int64  `db:"is_public"`
	IsHomepage  int64  `db:"is_homepage"`
}

// EncodePage converts the wire struct into its SQL row.
func EncodePage(p *PublishedPage) (*PageRow, error) {
	if len(p.LayoutData) == 0 {
		return nil, fmt.Errorf("page %q: empty layoutData", p.ID)
	}

	row := &PageRow{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Title:       p.Title,
		Description: p.Description,
		LayoutData:  string(p.LayoutData),
		SEOData:     string(p.SEOData),
		CSSBundle:   p.CSSBundle,
		Version:     p.Version,
		PublishedAt: p.PublishedAt.UTC().Format(time.RFC3339),
		IsPublic:    boolToInt(p.IsPublic),
		IsHomepage:  boolToInt(p.IsHomepage),
	}
	if len(p.Datasources) > 0 {
		b, err := json.Marshal(p.Datasources)
		if err != nil {
			return nil, fmt.Errorf("page %q: marshal datasources: %w", p.ID, err)
		}
		row.Datasources = string(b)
	}
	return row, nil
}

// DecodePage converts a SQL row back into the wire struct.
func DecodePage(r *PageRow) (*PublishedPage, error) {
	p := &PublishedPage{
		ID:          r.ID,
		Slug:        r.Slug,
		Name:        r.Name,
		Title:       r.Title,
		Description: r.Description,
		LayoutData:  json.RawMessage(r.LayoutData),
		CSSBundle:   r.CSSBundle,
		Version:     r.Version,
		IsPublic:    r.IsPublic != 0,
		IsHomepage:  r.IsHomepage != 0,
	}
	if r.SEOData != "" {
		p.SEOData = json.RawMessage(r.SEOData)
	}
	if r.Datasources != "" {
		if err := json.Unmarshal([]byte(r.Datasources), &p.Datasources); err != nil {
			return nil, fmt.Errorf("page %q: unmarshal datasources: %w", r.ID, err)
		}
	}
	if r.PublishedAt != "" {
		ts, err := time.Parse(time.RFC3339, r.PublishedAt)
		if err != nil {
			return nil, fmt.Errorf("page %q: parse published_at: %w", r.ID, err)
		}
		p.PublishedAt = ts
	}
	return p, nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
