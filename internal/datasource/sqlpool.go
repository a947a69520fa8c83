// internal/datasource/sqlpool.go
//
// Pooled-SQL backends: serverless Postgres (Neon) and serverless MySQL
// (PlanetScale).
//
// Context
// -------
// Both backends share one implementation over sqlx; only the driver name
// and the identifier-quoting style differ.  The DSN comes through
// resolveDSN, so a descriptor's SecretEnv reference is honoured without the
// descriptor ever carrying a credential.
//
// Pools are opened lazily-small (two connections) because a page rarely
// issues more than one data query per request, and serverless databases
// bill for idle connections.
package datasource

import (
	"context"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/pagelift/edge/internal/metrics"
	"github.com/pagelift/edge/internal/store"
)

type sqlPool struct {
	db      *sqlx.DB
	backend string
	quote   quoteFunc
}

func newPostgres(cfg store.DatasourceConfig) (*sqlPool, error) {
	return openPool("postgres", store.DatasourceNeon, quoteDouble, cfg)
}

func newMySQL(cfg store.DatasourceConfig) (*sqlPool, error) {
	return openPool("mysql", store.DatasourcePlanetScale, quoteBacktick, cfg)
}

func openPool(driver, backend string, quote quoteFunc, cfg store.DatasourceConfig) (*sqlPool, error) {
	db, err := sqlx.Open(driver, resolveDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("%s: open: %w", backend, err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	return &sqlPool{db: db, backend: backend, quote: quote}, nil
}

// newPoolWithDB wraps an existing pool.  Used by tests with sqlmock.
func newPoolWithDB(db *sqlx.DB, backend string, quote quoteFunc) *sqlPool {
	return &sqlPool{db: db, backend: backend, quote: quote}
}

func (p *sqlPool) Query(ctx context.Context, opts QueryOptions) QueryResult {
	stmt := buildSelect(opts, p.quote)

	rows, err := p.db.QueryxContext(ctx, stmt)
	if err != nil {
		return p.failed(err)
	}
	defer rows.Close()

	data := make([]map[string]any, 0, 16)
	for rows.Next() {
		row := map[string]any{}
		if err := rows.MapScan(row); err != nil {
			return p.failed(err)
		}
		data = append(data, normalizeRow(row))
	}
	if err := rows.Err(); err != nil {
		return p.failed(err)
	}

	out := QueryResult{Data: data}

	// Total count is best-effort; a failed count never fails the query.
	var total int64
	if err := p.db.GetContext(ctx, &total, buildCount(opts, p.quote)); err == nil {
		out.Count = &total
	}
	return out
}

func (p *sqlPool) Execute(ctx context.Context, sqlText string, params ...any) error {
	_, err := p.db.ExecContext(ctx, sqlText, params...)
	return err
}

func (p *sqlPool) Close() error { return p.db.Close() }

func (p *sqlPool) failed(err error) QueryResult {
	metrics.AdapterErrorTotal.WithLabelValues(p.backend).Inc()
	return QueryResult{Data: []map[string]any{}, Err: err}
}

// normalizeRow converts driver []byte values into strings so rows JSON-
// encode as text instead of base64.
func normalizeRow(row map[string]any) map[string]any {
	for k, v := range row {
		if b, ok := v.([]byte); ok {
			row[k] = string(b)
		}
	}
	return row
}
