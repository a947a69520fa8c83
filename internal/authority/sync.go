// internal/authority/sync.go
//
// Startup sync and pull-publish fallback.
//
// Context
// -------
// Boot runs two sequential steps against the authority, each with the same
// bounded-retry policy (fixed attempts, fixed delay, per-attempt timeout):
//
//   1. Cache settings.  Failure after the ceiling is logged and non-fatal:
//      the edge boots without a cache and only performance degrades.
//   2. Homepage.  Skipped when the store already has one (idempotent
//      re-entry).  Failure after the ceiling is also non-fatal — the
//      pull-publish fallback covers the gap on the first real request.
//
// The two steps are independent failure domains, which is why the homepage
// gets a request-time safety net and the cache does not.
//
// PullHomepage is that safety net: a single synchronous fetch-and-store,
// no retries, run inline inside the request that found the store empty.
// Concurrent requests may race it; the upsert is idempotent per page ID, so
// losing the race only costs a duplicate fetch.
//
// Notes
// -----
//   • retry.Call with an injectable clock keeps the loop unit-testable
//     without real timers.
//   • Oxford commas, two spaces after periods.
package authority

import (
	"context"
	"errors"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"go.uber.org/zap"

	"github.com/pagelift/edge/internal/metrics"
	"github.com/pagelift/edge/internal/publish"
	"github.com/pagelift/edge/internal/store"
)

// Retry policy defaults.  Fixed ceiling, fixed delay — nothing in the edge
// retries indefinitely.
const (
	DefaultAttempts       = 5
	DefaultDelay          = 2 * time.Second
	DefaultAttemptTimeout = 5 * time.Second
)

// Syncer owns the boot-time authority conversation and the request-time
// homepage fallback.
type Syncer struct {
	Client   *Client // nil when no authority is configured
	Store    store.Store
	Importer *publish.Importer

	Clock          clock.Clock
	Attempts       int
	Delay          time.Duration
	AttemptTimeout time.Duration
}

// NewSyncer builds a Syncer with the default retry policy.
func NewSyncer(c *Client, st store.Store, imp *publish.Importer) *Syncer {
	return &Syncer{
		Client:         c,
		Store:          st,
		Importer:       imp,
		Clock:          clock.WallClock,
		Attempts:       DefaultAttempts,
		Delay:          DefaultDelay,
		AttemptTimeout: DefaultAttemptTimeout,
	}
}

// Run executes both sync steps and returns the cache settings when the
// authority provided usable ones.  Run never fails the boot: every error
// path degrades and logs instead.
func (s *Syncer) Run(ctx context.Context) *CacheSettings {
	if s.Client == nil {
		zap.S().Infow("startup sync skipped, no authority configured")
		return nil
	}

	settings := s.syncCacheSettings(ctx)
	s.syncHomepage(ctx)
	return settings
}

func (s *Syncer) syncCacheSettings(ctx context.Context) *CacheSettings {
	var settings *CacheSettings
	err := s.call(ctx, "cache-settings", func(ctx context.Context) error {
		got, err := s.Client.FetchCacheSettings(ctx)
		if err != nil {
			return err
		}
		settings = got
		return nil
	})
	if err != nil {
		zap.S().Warnw("cache settings unavailable, booting without cache", "err", err)
		return nil
	}
	if settings == nil || !settings.Enabled || settings.URL == "" {
		zap.S().Infow("cache disabled by authority settings")
		return nil
	}
	return settings
}

func (s *Syncer) syncHomepage(ctx context.Context) {
	existing, err := s.Store.GetHomepage(ctx)
	if err != nil {
		zap.S().Errorw("homepage lookup failed during sync", "err", err)
		return
	}
	if existing != nil {
		zap.S().Debugw("homepage already present, sync skipped", "slug", existing.Slug)
		return
	}

	var page *store.PublishedPage
	err = s.call(ctx, "homepage", func(ctx context.Context) error {
		got, err := s.Client.FetchHomepage(ctx)
		if err != nil {
			return err
		}
		page = got
		return nil
	})
	if err != nil {
		zap.S().Warnw("homepage unavailable at boot, relying on pull-publish", "err", err)
		return
	}

	if err := s.storePulled(ctx, page); err != nil {
		zap.S().Errorw("homepage store failed during sync", "err", err)
		return
	}
	zap.S().Infow("homepage synced", "slug", page.Slug)
}

// PullHomepage is the request-time fallback: one fetch, one store, no
// retries, caller's context.  Returns the freshly stored page.
func (s *Syncer) PullHomepage(ctx context.Context) (*store.PublishedPage, error) {
	if s.Client == nil {
		return nil, nil
	}

	metrics.PullPublishTotal.Inc()
	page, err := s.Client.FetchHomepage(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.storePulled(ctx, page); err != nil {
		return nil, err
	}
	zap.S().Infow("homepage pull-published", "slug", page.Slug)
	return page, nil
}

// storePulled normalizes a fetched bundle and imports it.  First pulls are
// stored at version 1; a concurrent racer winning the upsert surfaces as a
// conflict, which is success from this caller's point of view.
func (s *Syncer) storePulled(ctx context.Context, page *store.PublishedPage) error {
	page.IsHomepage = true
	if page.Version <= 0 {
		page.Version = 1
	}
	if page.PublishedAt.IsZero() {
		page.PublishedAt = s.Clock.Now().UTC()
	}

	_, err := s.Importer.Import(ctx, page, false)
	var conflict *publish.ConflictError
	if errors.As(err, &conflict) {
		return nil // someone else stored it first
	}
	return err
}

/*──────────────────────────── retry plumbing ──────────────────────────────*/

// call runs fn under the bounded-retry policy with a per-attempt timeout
// independent of any caller deadline.
func (s *Syncer) call(ctx context.Context, what string, fn func(context.Context) error) error {
	return retry.Call(retry.CallArgs{
		Func: func() error {
			attemptCtx, cancel := context.WithTimeout(ctx, s.AttemptTimeout)
			defer cancel()
			return fn(attemptCtx)
		},
		NotifyFunc: func(err error, attempt int) {
			metrics.SyncRetryTotal.Inc()
			zap.S().Debugw("authority call failed",
				"what", what, "attempt", attempt, "err", err)
		},
		Attempts: s.Attempts,
		Delay:    s.Delay,
		Clock:    s.Clock,
		Stop:     ctx.Done(),
	})
}
