// internal/cache/cache_test.go
//
// Runs against a tiny in-process Redis REST fake that implements just the
// commands the Cache issues.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRedis implements the command-over-POST protocol in memory.
type fakeRedis struct {
	mu     sync.Mutex
	data   map[string]string
	lists  map[string][]string
	counts map[string]int64
	cmds   []string
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{
		data:   map[string]string{},
		lists:  map[string][]string{},
		counts: map[string]int64{},
	}
}

func (f *fakeRedis) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var cmd []string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&cmd))
		require.NotEmpty(t, cmd)

		f.mu.Lock()
		defer f.mu.Unlock()
		f.cmds = append(f.cmds, cmd[0])

		var result any
		switch cmd[0] {
		case "GET":
			if v, ok := f.data[cmd[1]]; ok {
				result = v
			}
		case "SET":
			f.data[cmd[1]] = cmd[2]
			result = "OK"
		case "DEL":
			var n int64
			for _, k := range cmd[1:] {
				if _, ok := f.data[k]; ok {
					delete(f.data, k)
					n++
				}
			}
			result = n
		case "SCAN":
			keys := []any{}
			for k := range f.data {
				if ok, _ := path.Match(cmd[3], k); ok {
					keys = append(keys, k)
				}
			}
			result = []any{"0", keys}
		case "RPUSH":
			f.lists[cmd[1]] = append(f.lists[cmd[1]], cmd[2])
			result = len(f.lists[cmd[1]])
		case "LPOP":
			if q := f.lists[cmd[1]]; len(q) > 0 {
				result = q[0]
				f.lists[cmd[1]] = q[1:]
			}
		case "LLEN":
			result = len(f.lists[cmd[1]])
		case "INCR":
			f.counts[cmd[1]]++
			result = f.counts[cmd[1]]
		case "EXPIRE":
			result = 1
		default:
			t.Fatalf("fake redis: unhandled command %v", cmd)
		}

		json.NewEncoder(w).Encode(map[string]any{"result": result})
	}
}

func newTestCache(t *testing.T) (*Cache, *fakeRedis) {
	t.Helper()
	f := newFakeRedis()
	srv := httptest.NewServer(f.handler(t))
	t.Cleanup(srv.Close)
	return New(srv.URL, "tok"), f
}

func (f *fakeRedis) commandLog() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.cmds...)
}

/*──────────────────────────── disabled state ──────────────────────────────*/

func TestNilCacheSemantics(t *testing.T) {
	var c *Cache
	ctx := context.Background()

	assert.False(t, c.Enabled())
	assert.Nil(t, New("", "token"))

	// Backend-requiring operations fail loudly.
	_, err := c.Cached(ctx, "k", time.Minute, func(context.Context) (any, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.ErrorIs(t, c.Enqueue(ctx, "q", 1), ErrNotConfigured)
	_, err = c.RateLimit(ctx, "k", 1, time.Minute)
	assert.ErrorIs(t, err, ErrNotConfigured)

	// Invalidation has nothing to evict and no-ops.
	assert.NoError(t, c.Invalidate(ctx, "k"))
	assert.NoError(t, c.InvalidatePattern(ctx, "page:*"))
}

/*──────────────────────────── read-through ────────────────────────────────*/

func TestCachedMissComputesAndStores(t *testing.T) {
	c, f := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (any, error) {
		calls++
		return map[string]string{"slug": "about"}, nil
	}

	raw, err := c.Cached(ctx, "page:about", time.Minute, fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"slug":"about"}`, string(raw))
	assert.Equal(t, 1, calls)

	// Second read is a pure hit.
	raw, err = c.Cached(ctx, "page:about", time.Minute, fn)
	require.NoError(t, err)
	assert.JSONEq(t, `{"slug":"about"}`, string(raw))
	assert.Equal(t, 1, calls)

	log := f.commandLog()
	assert.Equal(t, []string{"GET", "SET", "GET"}, log)
}

func TestCachedPropagatesComputeError(t *testing.T) {
	c, _ := newTestCache(t)

	_, err := c.Cached(context.Background(), "k", time.Minute,
		func(context.Context) (any, error) { return nil, fmt.Errorf("upstream down") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upstream down")
}

func TestInvalidateEvicts(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	calls := 0
	fn := func(context.Context) (any, error) { calls++; return calls, nil }

	_, err := c.Cached(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "k"))

	raw, err := c.Cached(ctx, "k", time.Minute, fn)
	require.NoError(t, err)
	assert.Equal(t, "2", string(raw))
}

func TestInvalidatePattern(t *testing.T) {
	c, f := newTestCache(t)
	ctx := context.Background()

	for _, k := range []string{"page:a", "page:b", "settings"} {
		_, err := c.Cached(ctx, k, time.Minute, func(context.Context) (any, error) { return k, nil })
		require.NoError(t, err)
	}

	require.NoError(t, c.InvalidatePattern(ctx, "page:*"))

	f.mu.Lock()
	defer f.mu.Unlock()
	assert.NotContains(t, f.data, "page:a")
	assert.NotContains(t, f.data, "page:b")
	assert.Contains(t, f.data, "settings")
}

/*──────────────────────────── queue ───────────────────────────────────────*/

func TestQueueRoundTrip(t *testing.T) {
	c, _ := newTestCache(t)
	ctx := context.Background()

	require.NoError(t, c.Enqueue(ctx, "jobs", map[string]string{"op": "warm"}))
	require.NoError(t, c.Enqueue(ctx, "jobs", map[string]string{"op": "purge"}))

	n, err := c.QueueLength(ctx, "jobs")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	item, err := c.Dequeue(ctx, "jobs")
	require.NoError(t, err)
	assert.JSONEq(t, `{"op":"warm"}`, string(item))

	// Draining past empty returns (nil, nil).
	_, err = c.Dequeue(ctx, "jobs")
	require.NoError(t, err)
	item, err = c.Dequeue(ctx, "jobs")
	require.NoError(t, err)
	assert.Nil(t, item)
}

/*──────────────────────────── rate limit ──────────────────────────────────*/

func TestRateLimitWindow(t *testing.T) {
	c, f := newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := c.RateLimit(ctx, "ip:1.2.3.4", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d within limit", i+1)
	}

	ok, err := c.RateLimit(ctx, "ip:1.2.3.4", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// Only the first hit sets the window expiry.
	expires := 0
	for _, cmd := range f.commandLog() {
		if cmd == "EXPIRE" {
			expires++
		}
	}
	assert.Equal(t, 1, expires)
}

func TestDoSurfacesBackendError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "WRONGTYPE key holds a list"})
	}))
	defer srv.Close()

	c := New(srv.URL, "")
	err := c.Invalidate(context.Background(), "k")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "WRONGTYPE")
}

func TestAsInt(t *testing.T) {
	n, err := asInt(float64(7))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	n, err = asInt("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)

	_, err = asInt([]any{})
	assert.Error(t, err)
}
