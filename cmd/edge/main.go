// cmd/edge/main.go
//
// Edge replica – HTTP entry point.
//
// Boot sequence
// -------------
//
//  1. Load configuration (conf/.env → conf/edge.yaml → EDGE_* env).
//
//  2. Start daily rotating logger (tees to console when running in a TTY).
//
//  3. Open the state store for the configured deployment mode and create
//     both tables.  A remote mode without a store URL dies here, before
//     the listener ever opens.
//
//  4. Startup sync: pull cache settings and, if no homepage exists
//     locally, the homepage bundle, each under a bounded retry policy.
//     Neither failure aborts the boot — the service comes up degraded and
//     the pull-publish fallback covers the content gap.
//
//  5. Wire handlers and serve.
//
package main

import (
	"context"
	"log"
	"os"

	"github.com/pagelift/edge/internal/authority"
	"github.com/pagelift/edge/internal/cache"
	"github.com/pagelift/edge/internal/config"
	"github.com/pagelift/edge/internal/datarequest"
	"github.com/pagelift/edge/internal/logger"
	"github.com/pagelift/edge/internal/publish"
	"github.com/pagelift/edge/internal/server"
	"github.com/pagelift/edge/internal/store"
	"github.com/pagelift/edge/internal/store/remote"
	"github.com/pagelift/edge/internal/store/sqlite"
)

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logOut, err := logger.New(cfg.Paths.Root, runningInTTY())
	if err != nil {
		log.Fatalf("start logger: %v", err)
	}
	defer logOut.Sync()

	ctx := context.Background()

	//
	// ── 1.  State store ─────────────────────────────────────────────────
	//
	st, err := openStore(cfg)
	if err != nil {
		logOut.Fatalw("open state store", "mode", cfg.Store.Mode, "err", err)
	}
	defer st.Close()

	if err := st.Init(ctx); err != nil {
		logOut.Fatalw("init page table", "err", err)
	}
	if err := st.InitSettings(ctx); err != nil {
		logOut.Fatalw("init settings table", "err", err)
	}
	logOut.Infow("state store online", "mode", cfg.Store.Mode)

	//
	// ── 2.  Startup sync (degrades, never aborts) ───────────────────────
	//
	importer := publish.New(st)
	syncer := authority.NewSyncer(authority.NewClient(cfg.Authority.BaseURL), st, importer)

	var kv *cache.Cache
	if settings := syncer.Run(ctx); settings != nil {
		kv = cache.New(settings.URL, settings.Token)
		logOut.Infow("cache online", "url", settings.URL)
	} else if cfg.Cache.URL != "" {
		// Static cache configuration wins when the authority offered none.
		kv = cache.New(cfg.Cache.URL, cfg.Cache.Token)
		logOut.Infow("cache online (static config)", "url", cfg.Cache.URL)
	}

	//
	// ── 3.  HTTP surface ────────────────────────────────────────────────
	//
	srv := &server.Server{
		Store:         st,
		Importer:      importer,
		Syncer:        syncer,
		Exec:          datarequest.New(),
		Cache:         kv,
		PublicBaseURL: cfg.HTTP.PublicBaseURL,
	}

	httpSrv := server.NewHTTPServer(cfg.HTTP.ListenAddr, srv.Router())
	logOut.Infow("listening", "addr", cfg.HTTP.ListenAddr)
	if err := httpSrv.ListenAndServe(); err != nil {
		logOut.Fatalw("http server", "err", err)
	}
}

// openStore selects the backend for the configured deployment mode.
func openStore(cfg *config.Config) (store.Store, error) {
	if cfg.Store.Mode == config.StoreModeRemote {
		return remote.New(cfg.Store.URL, cfg.Store.Token)
	}
	return sqlite.New(cfg.Store.Path)
}
