// internal/datasource/turso.go
//
// Embedded-SQLite-over-HTTP backend (Turso / sqld).
//
// Context
// -------
// Reuses the libsql pipeline client that also backs the remote state
// store.  SQLite identifiers need no quoting for the column names the
// builder emits, so this backend uses the bare quoting style.
package datasource

import (
	"context"

	"github.com/pagelift/edge/internal/libsql"
	"github.com/pagelift/edge/internal/metrics"
	"github.com/pagelift/edge/internal/store"
)

type turso struct {
	client *libsql.Client
}

func newTurso(cfg store.DatasourceConfig) *turso {
	token := cfg.AnonKey
	if dsn := resolveDSN(cfg); dsn != cfg.URL {
		// SecretEnv supplied a real token for this database.
		token = dsn
	}
	return &turso{client: libsql.New(cfg.URL, token)}
}

// newTursoWithClient wraps an existing client.  Used by tests.
func newTursoWithClient(c *libsql.Client) *turso { return &turso{client: c} }

func (t *turso) Query(ctx context.Context, opts QueryOptions) QueryResult {
	stmt := buildSelect(opts, quoteNone)

	res, err := t.client.Execute(ctx, stmt)
	if err != nil {
		return t.failed(err)
	}

	data := make([]map[string]any, 0, len(res.Rows))
	for _, cells := range res.Rows {
		row := make(map[string]any, len(cells))
		for i, v := range cells {
			if i < len(res.Columns) {
				row[res.Columns[i]] = v
			}
		}
		data = append(data, row)
	}

	out := QueryResult{Data: data}

	var total int64
	if cres, err := t.client.Execute(ctx, buildCount(opts, quoteNone)); err == nil {
		if len(cres.Rows) == 1 && len(cres.Rows[0]) == 1 {
			if n, ok := cres.Rows[0][0].(int64); ok {
				total = n
				out.Count = &total
			}
		}
	}
	return out
}

func (t *turso) Execute(ctx context.Context, sqlText string, params ...any) error {
	_, err := t.client.Execute(ctx, sqlText, params...)
	return err
}

func (t *turso) Close() error { return nil }

func (t *turso) failed(err error) QueryResult {
	metrics.AdapterErrorTotal.WithLabelValues(store.DatasourceTurso).Inc()
	return QueryResult{Data: []map[string]any{}, Err: err}
}
