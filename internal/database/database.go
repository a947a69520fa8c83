// Package database centralises sqlx connection helpers for the embedded
// store.  The driver is mattn/go-sqlite3; the DSN is a plain file path plus
// pragmas that keep a single-writer web workload healthy.
//
// Public entry points:
//
//	Open(path)                      – quick helper with conservative pool sizes.
//	OpenWithOptions(path, mo, mi)   – fine-grained control.
//
// Both helpers Ping the database before returning so callers can fail fast
// during bootstrap.  Callers should Close() the returned *sqlx.DB when no
// longer needed.
package database

import (
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Open returns a *sqlx.DB with sane defaults: one writer connection and a
// 30-minute connection lifetime.  SQLite serialises writes anyway, so a
// larger pool only buys lock contention.
func Open(path string) (*sqlx.DB, error) {
	return OpenWithOptions(path, 1, 1)
}

// OpenWithOptions lets callers tune maxOpen and maxIdle per pool.  The
// parent directory is created on demand so first boot on a fresh volume
// works without an install step.
func OpenWithOptions(path string, maxOpen, maxIdle int) (*sqlx.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(maxOpen)
	db.SetMaxIdleConns(maxIdle)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, err
	}
	return db, nil
}
