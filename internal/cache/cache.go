// internal/cache/cache.go
//
// Read-through cache, queue, and rate-limit primitives over a remote
// key-value store reached via HTTP (Upstash-compatible Redis REST).
//
// Context
// -------
// The cache is strictly optional: the authority may hand the edge a cache
// endpoint at startup sync, or not.  A nil *Cache is the "never
// initialized" state — invalidation calls no-op silently (nothing to
// evict), while operations whose entire purpose is the backend (Cached,
// the queue, RateLimit) fail with ErrNotConfigured so misuse is loud.
//
// Every command is one POST of a JSON array (["GET","k"]) with a bearer
// token; the store replies {"result": …} or {"error": …}.  Values are
// JSON-encoded before SET so arbitrary structs round-trip.
//
// Notes
// -----
//   • Cached dedupes concurrent recomputes of the same key through
//     singleflight; losing that race costs nothing but a duplicate GET.
//   • RateLimit is a fixed-window counter: INCR plus a one-time EXPIRE
//     when the counter is fresh.
//   • Oxford commas, two spaces after periods.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pagelift/edge/internal/metrics"
)

// ErrNotConfigured is returned by backend-requiring operations on a nil
// Cache.
var ErrNotConfigured = errors.New("cache: not configured")

// Cache talks to one Redis REST endpoint.  Safe for concurrent use.
type Cache struct {
	baseURL string
	token   string
	hc      *http.Client
	sfg     singleflight.Group
}

// New returns a Cache, or nil when url is empty — nil is the valid
// "disabled" state, not an error.
func New(url, token string) *Cache {
	if url == "" {
		return nil
	}
	return &Cache{
		baseURL: strings.TrimRight(url, "/"),
		token:   token,
		hc:      &http.Client{Timeout: 5 * time.Second},
	}
}

// Enabled reports whether a backend is configured.
func (c *Cache) Enabled() bool { return c != nil }

/*──────────────────────────── read-through ────────────────────────────────*/

// Cached returns the stored value for key, or computes it with fn, stores
// it for ttl, and returns it.  The computed value is JSON-round-tripped, so
// hit and miss paths yield identical shapes.
func (c *Cache) Cached(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (any, error)) (json.RawMessage, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}

	if raw, ok, err := c.get(ctx, key); err != nil {
		return nil, err
	} else if ok {
		metrics.CacheHitTotal.Inc()
		return raw, nil
	}
	metrics.CacheMissTotal.Inc()

	v, err, _ := c.sfg.Do(key, func() (any, error) {
		val, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		raw, err := json.Marshal(val)
		if err != nil {
			return nil, fmt.Errorf("cache: marshal %q: %w", key, err)
		}
		if err := c.set(ctx, key, string(raw), ttl); err != nil {
			return nil, err
		}
		return json.RawMessage(raw), nil
	})
	if err != nil {
		return nil, err
	}
	return v.(json.RawMessage), nil
}

// Invalidate evicts one key.  No-op when the cache is disabled.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	if c == nil {
		return nil
	}
	_, err := c.do(ctx, "DEL", key)
	return err
}

// InvalidatePattern evicts every key matching the glob, scanning in
// batches so huge keyspaces do not block the store.
func (c *Cache) InvalidatePattern(ctx context.Context, glob string) error {
	if c == nil {
		return nil
	}

	cursor := "0"
	for {
		res, err := c.do(ctx, "SCAN", cursor, "MATCH", glob, "COUNT", "100")
		if err != nil {
			return err
		}
		page, ok := res.([]any)
		if !ok || len(page) != 2 {
			return fmt.Errorf("cache: malformed SCAN reply")
		}
		cursor, _ = page[0].(string)

		if keys, ok := page[1].([]any); ok && len(keys) > 0 {
			args := make([]string, 0, len(keys)+1)
			args = append(args, "DEL")
			for _, k := range keys {
				if s, ok := k.(string); ok {
					args = append(args, s)
				}
			}
			if len(args) > 1 {
				if _, err := c.do(ctx, args...); err != nil {
					return err
				}
			}
		}

		if cursor == "0" || cursor == "" {
			return nil
		}
	}
}

/*──────────────────────────── queue ───────────────────────────────────────*/

// Enqueue appends a JSON-encoded value to the named list.
func (c *Cache) Enqueue(ctx context.Context, queue string, val any) error {
	if c == nil {
		return ErrNotConfigured
	}
	raw, err := json.Marshal(val)
	if err != nil {
		return fmt.Errorf("cache: marshal queue item: %w", err)
	}
	_, err = c.do(ctx, "RPUSH", queue, string(raw))
	return err
}

// Dequeue pops the oldest item, or (nil, nil) when the queue is empty.
func (c *Cache) Dequeue(ctx context.Context, queue string) (json.RawMessage, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}
	res, err := c.do(ctx, "LPOP", queue)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, nil
	}
	s, ok := res.(string)
	if !ok {
		return nil, fmt.Errorf("cache: malformed LPOP reply")
	}
	return json.RawMessage(s), nil
}

// QueueLength returns the number of waiting items.
func (c *Cache) QueueLength(ctx context.Context, queue string) (int64, error) {
	if c == nil {
		return 0, ErrNotConfigured
	}
	res, err := c.do(ctx, "LLEN", queue)
	if err != nil {
		return 0, err
	}
	return asInt(res)
}

/*──────────────────────────── rate limit ──────────────────────────────────*/

// RateLimit implements a fixed-window counter.  Returns false when key has
// exceeded limit within the current window.
func (c *Cache) RateLimit(ctx context.Context, key string, limit int64, window time.Duration) (bool, error) {
	if c == nil {
		return false, ErrNotConfigured
	}

	res, err := c.do(ctx, "INCR", key)
	if err != nil {
		return false, err
	}
	n, err := asInt(res)
	if err != nil {
		return false, err
	}

	// First hit in the window owns the expiry.
	if n == 1 {
		secs := int64(window / time.Second)
		if secs < 1 {
			secs = 1
		}
		if _, err := c.do(ctx, "EXPIRE", key, strconv.FormatInt(secs, 10)); err != nil {
			return false, err
		}
	}
	return n <= limit, nil
}

/*──────────────────────────── REST transport ──────────────────────────────*/

func (c *Cache) get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	res, err := c.do(ctx, "GET", key)
	if err != nil {
		return nil, false, err
	}
	if res == nil {
		return nil, false, nil
	}
	s, ok := res.(string)
	if !ok {
		return nil, false, fmt.Errorf("cache: malformed GET reply")
	}
	return json.RawMessage(s), true, nil
}

func (c *Cache) set(ctx context.Context, key, val string, ttl time.Duration) error {
	secs := int64(ttl / time.Second)
	if secs < 1 {
		secs = 1
	}
	_, err := c.do(ctx, "SET", key, val, "EX", strconv.FormatInt(secs, 10))
	return err
}

// do posts one command array and returns the decoded "result" value.
func (c *Cache) do(ctx context.Context, cmd ...string) (any, error) {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("cache: HTTP %d: %s",
			resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var reply struct {
		Result any    `json:"result"`
		Error  string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		return nil, fmt.Errorf("cache: decode reply: %w", err)
	}
	if reply.Error != "" {
		return nil, fmt.Errorf("cache: %s", reply.Error)
	}
	return reply.Result, nil
}

func asInt(v any) (int64, error) {
	switch n := v.(type) {
	case float64:
		return int64(n), nil
	case string:
		return strconv.ParseInt(n, 10, 64)
	default:
		return 0, fmt.Errorf("cache: unexpected integer reply %T", v)
	}
}
