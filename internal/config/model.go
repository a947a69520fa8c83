// internal/config/model.go
//
// Typed configuration model for the edge replica.
//
// Context
// -------
// These structs define the shape of the configuration tree that
// `internal/config/loader.go` builds from three overlay layers:
//
//   • optional `conf/.env`                   – dotenv values,
//   • `conf/edge.yaml`                       – primary static file,
//   • `EDGE_`-prefixed environment overrides – highest precedence.
//
// Validation happens immediately after unmarshal; the process fails fast if
// required fields are missing.  In particular, `store.mode: remote` without
// a remote URL is a fatal configuration error — booting anyway would
// silently serve from the wrong store.
//
// Notes
// -----
//   • Struct tags use `koanf:"…"`, not `yaml:"…"` — Koanf ignores `yaml`
//     tags unless configured otherwise.
//   • The `Paths` block is filled at runtime; YAML must not try to set it.
//   • Oxford commas, two spaces after periods.

package config

//
// HTTP section
//

// HTTP holds web-server tunables.
type HTTP struct {
	ListenAddr string `koanf:"listen_addr" validate:"required,hostname_port"`
	// PublicBaseURL, when set, makes preview URLs absolute regardless of
	// the requesting host.
	PublicBaseURL string `koanf:"public_base_url" validate:"omitempty,url"`
}

//
// Store section
//

// Store mode constants.  The mode is chosen once at process start; both
// backends expose identical behavior through store.Store.
const (
	StoreModeLocal  = "local"
	StoreModeRemote = "remote"
)

// Store selects and parameterizes the state-store backend.
type Store struct {
	Mode string `koanf:"mode" validate:"required,oneof=local remote"`

	// Local embedded backend: SQLite file location.
	Path string `koanf:"path"`

	// Remote hosted backend: libsql-over-HTTP endpoint plus bearer token.
	// URL is required when Mode == remote.
	URL   string `koanf:"url"   validate:"required_if=Mode remote,omitempty,url"`
	Token string `koanf:"token"`
}

//
// Authority section
//

// Authority points at the authoring backend used by startup sync and the
// pull-publish fallback.  Empty means "never call home" — the edge then
// serves only what was pushed to it.
type Authority struct {
	BaseURL string `koanf:"base_url" validate:"omitempty,url"`
}

//
// Cache section
//

// Cache points at an optional Upstash-style Redis REST endpoint.  Absent
// URL silently disables every cache feature.
type Cache struct {
	URL   string `koanf:"url" validate:"omitempty,url"`
	Token string `koanf:"token"`
}

//
// Paths section (runtime only)
//

// Paths is resolved at runtime — never set in YAML or env.
type Paths struct {
	Root string // EDGE_ROOT or discovered parent
}

//
// Root aggregate
//

// Config is the immutable aggregate returned by Load() and cached in an
// atomic.Pointer for lock-free reads throughout the process lifetime.
type Config struct {
	HTTP      HTTP      `koanf:"http"`
	Store     Store     `koanf:"store"`
	Authority Authority `koanf:"authority"`
	Cache     Cache     `koanf:"cache"`
	Paths     Paths     `koanf:"-"` // not loaded from config files
}
