// internal/datasource/datasource.go
//
// Uniform query contract over four remote database families.
//
// Context
// -------
// Published pages carry datasource descriptors; the data API turns one
// descriptor into an Adapter and runs generic queries through it.  The
// generic surface is deliberately tiny — select columns, equality filters,
// limit/offset, one order column — so each backend's translation stays
// mechanical and auditable.  Anything richer travels as a pre-computed
// DataRequest instead (see internal/datarequest).
//
// Query never panics and, by contract, never fails the request: remote
// errors are captured in the result's Err field so a listing endpoint can
// return an empty, clearly-errored result instead of a 500.
//
// Notes
// -----
//   • The factory is the single exhaustive switch over the backend enum; an
//     unrecognised type is a hard construction error, never a silent no-op.
//   • Oxford commas, two spaces after periods.
package datasource

import (
	"context"
	"fmt"
	"os"

	"github.com/pagelift/edge/internal/store"
)

// QueryOptions is the generic query shape shared by all four backends.
// Filters are equality-only by design.
type QueryOptions struct {
	Table   string
	Select  []string
	Filters map[string]string
	Limit   int
	Offset  int
	OrderBy string
	Order   string // "asc" or "desc"; empty means backend default
}

// QueryResult carries rows plus an optional total count.  Err is set in
// place of a thrown error when the remote call failed.
type QueryResult struct {
	Data  []map[string]any
	Count *int64
	Err   error
}

// Adapter is implemented once per backend family.
type Adapter interface {
	// Query translates opts into the backend's native protocol.
	Query(ctx context.Context, opts QueryOptions) QueryResult

	// Execute runs a raw statement (DDL, writes) against the backend.
	Execute(ctx context.Context, sql string, params ...any) error

	// Close releases any pooled connections.
	Close() error
}

// New maps a descriptor to its concrete adapter.  The switch is exhaustive
// over the closed enum in internal/store.
func New(cfg store.DatasourceConfig) (Adapter, error) {
	switch cfg.Type {
	case store.DatasourceSupabase:
		return newPostgREST(cfg), nil
	case store.DatasourceNeon:
		return newPostgres(cfg)
	case store.DatasourcePlanetScale:
		return newMySQL(cfg)
	case store.DatasourceTurso:
		return newTurso(cfg), nil
	default:
		return nil, fmt.Errorf("datasource: unknown backend type %q", cfg.Type)
	}
}

// resolveDSN returns the connection string for SQL-speaking backends.  A
// descriptor never carries a raw secret; when SecretEnv names a variable
// that is set, its value replaces the publish-safe URL.
func resolveDSN(cfg store.DatasourceConfig) string {
	if cfg.SecretEnv != "" {
		if v := os.Getenv(cfg.SecretEnv); v != "" {
			return v
		}
	}
	return cfg.URL
}
