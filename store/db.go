// Package store implements the per-network persistent schema described in
// the watchtower's data model: registered vaults, their trigger
// transactions, bound commitments, notification delivery bookkeeping, and
// the per-network cycle-resumption height.
//
// The one multi-row mutation, RegisterVault, runs inside a single *sql.Tx,
// mirroring the way channeldb wraps bolt buckets in a single db.Update per
// public method; every other exported mutation is a single SQL statement,
// which SQLite applies atomically. A caller never observes a partially
// applied write.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// busyTimeout is the SQLite busy_timeout, absorbing the rare contention
// between the HTTP registration handlers and the monitor's own writes.
const busyTimeout = 10 * time.Second

// DB is a thin transactional wrapper around a per-network SQLite file.
type DB struct {
	sqlDB *sql.DB
}

// Open opens (creating if necessary) the watchtower database file for the
// given network inside dbFolder, in WAL mode with a busy timeout, and
// ensures the schema exists.
func Open(dbFolder, networkID string) (*DB, error) {
	path := filepath.Join(dbFolder, fmt.Sprintf("watchtower.%s.sqlite", networkID))
	dsn := fmt.Sprintf(
		"file:%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on&_txlock=immediate",
		path, busyTimeout.Milliseconds(),
	)

	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("store: migrate %s: %w", path, err)
	}

	return &DB{sqlDB: sqlDB}, nil
}

// memSeq distinguishes in-memory databases from one another; a bare
// cache=shared memory DSN would hand every caller the same database.
var memSeq uint64

// OpenMemory opens an in-memory store, used by tests in place of a file on
// disk, the way watchtower/wtmock stands in for wtdb. Each call returns an
// independent database.
func OpenMemory() (*DB, error) {
	name := fmt.Sprintf("memdb%d", atomic.AddUint64(&memSeq, 1))
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=10000&_txlock=immediate", name)
	sqlDB, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &DB{sqlDB: sqlDB}, nil
}

// Close releases the underlying SQLite handle.
func (db *DB) Close() error {
	return db.sqlDB.Close()
}

// withTx runs fn inside a single transaction (BEGIN IMMEDIATE via the
// _txlock DSN parameter), committing on success and rolling back on any
// error, including a panic that it reraises.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("store: %w (rollback failed: %v)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit tx: %w", err)
	}

	return nil
}
