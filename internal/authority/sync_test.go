// internal/authority/sync_test.go
package authority

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/juju/clock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pagelift/edge/internal/publish"
	"github.com/pagelift/edge/internal/store"
	"github.com/pagelift/edge/internal/store/sqlite"
)

/*──────────────────────────── fake clock ──────────────────────────────────*/

// fakeClock satisfies clock.Clock without real timers: every wait fires
// immediately, so retry loops run at full speed.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return ch
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) clock.Timer {
	c.now = c.now.Add(d)
	f()
	return &firedTimer{}
}

func (c *fakeClock) NewTimer(d time.Duration) clock.Timer {
	c.now = c.now.Add(d)
	ch := make(chan time.Time, 1)
	ch <- c.now
	return &firedTimer{ch: ch}
}

type firedTimer struct{ ch chan time.Time }

func (t *firedTimer) Chan() <-chan time.Time   { return t.ch }
func (t *firedTimer) Reset(time.Duration) bool { return false }
func (t *firedTimer) Stop() bool               { return false }

/*──────────────────────────── fixtures ────────────────────────────────────*/

func newStore(t *testing.T) store.Store {
	t.Helper()
	db, err := sqlx.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	st := sqlite.NewWithDB(db)
	require.NoError(t, st.Init(context.Background()))
	return st
}

func newSyncer(st store.Store, baseURL string) *Syncer {
	s := NewSyncer(NewClient(baseURL), st, publish.New(st))
	s.Clock = &fakeClock{now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)}
	s.Attempts = 3
	s.Delay = time.Second
	return s
}

func homepageBundle(version int64) *store.PublishedPage {
	return &store.PublishedPage{
		ID:         "home-1",
		Slug:       "home",
		Name:       "Home",
		LayoutData: json.RawMessage(`{"id":"root"}`),
		Version:    version,
		IsHomepage: true,
		IsPublic:   true,
	}
}

// fakeAuthority serves both sync endpoints with canned payloads.
func fakeAuthority(t *testing.T, settings *CacheSettings, page *store.PublishedPage) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/edge/cache-settings":
			if settings == nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(settings)
		case "/api/edge/homepage":
			if page == nil {
				http.Error(w, "not found", http.StatusNotFound)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{"page": page})
		default:
			http.NotFound(w, r)
		}
	}))
}

/*──────────────────────────── startup sync ────────────────────────────────*/

func TestRunWithoutAuthorityIsNoop(t *testing.T) {
	st := newStore(t)
	s := newSyncer(st, "")

	assert.Nil(t, s.Run(context.Background()))
}

func TestRunSyncsSettingsAndHomepage(t *testing.T) {
	st := newStore(t)
	srv := fakeAuthority(t, &CacheSettings{Enabled: true, URL: "https://kv.example.com", Token: "tok"}, homepageBundle(7))
	defer srv.Close()

	settings := newSyncer(st, srv.URL).Run(context.Background())
	require.NotNil(t, settings)
	assert.Equal(t, "https://kv.example.com", settings.URL)

	hp, err := st.GetHomepage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, hp)
	assert.Equal(t, "home", hp.Slug)
	assert.Equal(t, int64(7), hp.Version)
}

func TestRunSurvivesUnreachableAuthority(t *testing.T) {
	st := newStore(t)
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := newSyncer(st, srv.URL)
	settings := s.Run(context.Background())

	// Boot degrades instead of failing: no settings, no homepage, and the
	// retry ceiling held for both steps.
	assert.Nil(t, settings)
	hp, err := st.GetHomepage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, hp)
	assert.Equal(t, int32(2*s.Attempts), atomic.LoadInt32(&hits))
}

func TestRunSkipsHomepageWhenPresent(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	existing := homepageBundle(9)
	_, err := st.UpsertPage(ctx, existing)
	require.NoError(t, err)

	// The authority offers an older bundle; sync must not touch the store.
	srv := fakeAuthority(t, &CacheSettings{}, homepageBundle(2))
	defer srv.Close()

	newSyncer(st, srv.URL).Run(ctx)

	hp, err := st.GetHomepage(ctx)
	require.NoError(t, err)
	require.NotNil(t, hp)
	assert.Equal(t, int64(9), hp.Version)
}

func TestRunDisabledCacheSettings(t *testing.T) {
	st := newStore(t)
	srv := fakeAuthority(t, &CacheSettings{Enabled: false, URL: "https://kv.example.com"}, homepageBundle(1))
	defer srv.Close()

	assert.Nil(t, newSyncer(st, srv.URL).Run(context.Background()))
}

/*──────────────────────────── pull-publish ────────────────────────────────*/

func TestPullHomepageStoresAndReturns(t *testing.T) {
	st := newStore(t)
	bundle := homepageBundle(0) // authority may omit the version
	srv := fakeAuthority(t, nil, bundle)
	defer srv.Close()

	s := newSyncer(st, srv.URL)
	page, err := s.PullHomepage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, page)

	// Unversioned pulls land at version 1 and are flagged as homepage.
	hp, err := st.GetHomepage(context.Background())
	require.NoError(t, err)
	require.NotNil(t, hp)
	assert.Equal(t, int64(1), hp.Version)
	assert.True(t, hp.IsHomepage)
	assert.False(t, hp.PublishedAt.IsZero())
}

func TestPullHomepageWithoutAuthority(t *testing.T) {
	s := newSyncer(newStore(t), "")
	page, err := s.PullHomepage(context.Background())
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestPullHomepageLosingRaceIsSuccess(t *testing.T) {
	st := newStore(t)
	ctx := context.Background()

	// A concurrent racer already stored the same page at the same version.
	_, err := st.UpsertPage(ctx, homepageBundle(1))
	require.NoError(t, err)

	srv := fakeAuthority(t, nil, homepageBundle(1))
	defer srv.Close()

	page, err := newSyncer(st, srv.URL).PullHomepage(ctx)
	require.NoError(t, err)
	require.NotNil(t, page)
}

func TestPullHomepageSurfacesFetchError(t *testing.T) {
	st := newStore(t)
	srv := fakeAuthority(t, nil, nil) // homepage endpoint 404s
	defer srv.Close()

	_, err := newSyncer(st, srv.URL).PullHomepage(context.Background())
	require.Error(t, err)
}
