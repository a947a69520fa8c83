// internal/authority/client.go
//
// HTTP client for the authoring backend.
//
// Context
// -------
// The authority is the system of record.  The edge talks to it in exactly
// two situations — startup sync and the pull-publish fallback — and never
// during a normal page request.  Two endpoints matter:
//
//	GET /api/edge/cache-settings → {enabled, url, token}
//	GET /api/edge/homepage       → one page bundle
//
// Unreachability is an expected condition, not an exception: callers wrap
// these methods in bounded retries and degrade when they exhaust.
package authority

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pagelift/edge/internal/store"
)

// CacheSettings is the authority's cache-backend descriptor.
type CacheSettings struct {
	Enabled bool   `json:"enabled"`
	URL     string `json:"url"`
	Token   string `json:"token"`
}

// Client talks to one authority.  Safe for concurrent use.
type Client struct {
	baseURL string
	hc      *http.Client
}

// NewClient returns a Client, or nil when baseURL is empty — a nil Client
// means "no authority configured" and callers must treat every fetch as a
// miss.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		return nil
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		hc:      &http.Client{Timeout: 10 * time.Second},
	}
}

// FetchCacheSettings pulls the cache-backend descriptor.
func (c *Client) FetchCacheSettings(ctx context.Context) (*CacheSettings, error) {
	var out CacheSettings
	if err := c.getJSON(ctx, "/api/edge/cache-settings", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// FetchHomepage pulls the current homepage bundle.
func (c *Client) FetchHomepage(ctx context.Context) (*store.PublishedPage, error) {
	var out struct {
		Page *store.PublishedPage `json:"page"`
	}
	if err := c.getJSON(ctx, "/api/edge/homepage", &out); err != nil {
		return nil, err
	}
	if out.Page == nil {
		return nil, fmt.Errorf("authority: homepage response carried no page")
	}
	return out.Page, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("authority %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("authority %s: HTTP %d: %s",
			path, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
