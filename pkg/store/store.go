// Package store is the embedded, single-writer/many-reader time-series
// store. It is a single relocatable sqlite file opened in WAL mode: one
// connection owns all writes, a separate read-only pool serves concurrent
// queries without blocking ingestion (§4.2).
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/kernelsight/kernelsight/pkg/kernsight"
)

// Store wraps two *sql.DB handles against the same file: a single-
// connection writer and a read-only pool. Both are opened against the
// same DSN so WAL keeps them consistent without an in-process mutex.
type Store struct {
	path    string
	writeDB *sql.DB
	readDB  *sql.DB
	clock   kernsight.Clock
}

// Open opens (creating if absent) the sqlite file at path and configures
// WAL + busy_timeout, but does not run migrations — call Init for that.
func Open(path string, clock kernsight.Clock) (*Store, error) {
	if clock == nil {
		clock = kernsight.SystemClock{}
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	writeDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, kernsight.Fatal("store.Open.write", err)
	}
	writeDB.SetMaxOpenConns(1)
	writeDB.SetMaxIdleConns(1)

	readDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		writeDB.Close()
		return nil, kernsight.Fatal("store.Open.read", err)
	}
	readDB.SetMaxOpenConns(4)

	s := &Store{path: path, writeDB: writeDB, readDB: readDB, clock: clock}
	return s, nil
}

// Init applies the schema, idempotently, up to schemaVersion. Safe to
// call on every process start (§4.2, §6.2).
func (s *Store) Init(ctx context.Context) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return kernsight.Retryable("store.Init", err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return kernsight.Fatal("store.Init", fmt.Errorf("applying ddl: %w", err))
		}
	}

	var current int
	row := tx.QueryRowContext(ctx, `SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`)
	if err := row.Scan(&current); err != nil {
		current = 0
	}
	if current < schemaVersion {
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_version (version, applied_at) VALUES (?, ?)`,
			schemaVersion, s.clock.Now().Unix()); err != nil {
			return kernsight.Fatal("store.Init", fmt.Errorf("recording schema version: %w", err))
		}
	}

	if err := tx.Commit(); err != nil {
		return kernsight.Fatal("store.Init", fmt.Errorf("committing migration: %w", err))
	}
	return nil
}

// Close releases both handles.
func (s *Store) Close() error {
	werr := s.writeDB.Close()
	rerr := s.readDB.Close()
	if werr != nil {
		return werr
	}
	return rerr
}

// Path returns the sqlite file path the store was opened against.
func (s *Store) Path() string { return s.path }

// TableStats returns a row count per raw table plus signal_metadata,
// used by the "query stats" / doctor surface (§6.3).
func (s *Store) TableStats(ctx context.Context) (map[string]int64, error) {
	tables := []string{
		"raw_syscall", "raw_pagefault", "raw_io", "raw_sched", "raw_meminfo",
		"raw_loadavg", "raw_blockstats", "raw_net_interface", "raw_tcp_stats",
		"raw_tcp_retransmits", "signal_metadata", "reasoning_traces",
	}
	out := make(map[string]int64, len(tables))
	for _, t := range tables {
		var n int64
		err := s.readDB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM %s`, t)).Scan(&n)
		if err != nil {
			return nil, kernsight.Retryable("store.TableStats", err)
		}
		out[t] = n
	}
	return out, nil
}

// Snapshot returns a handle for isolated reads against the read-only
// pool: queries issued through it never block on, or are blocked by, an
// in-flight writer transaction (§4.2 "Snapshot handle").
func (s *Store) Snapshot() *Snapshot {
	return &Snapshot{db: s.readDB}
}

// withWriteTx runs fn inside a single write transaction, translating
// sqlite busy/locked errors to Retryable and everything else to Fatal.
func (s *Store) withWriteTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.writeDB.BeginTx(ctx, nil)
	if err != nil {
		return kernsight.Retryable(op, err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		if _, ok := err.(*kernsight.Error); ok {
			return err
		}
		msg := err.Error()
		if strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "SQLITE_LOCKED") ||
			strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
			return kernsight.Retryable(op, err)
		}
		return kernsight.Fatal(op, err)
	}
	if err := tx.Commit(); err != nil {
		return kernsight.Retryable(op, fmt.Errorf("commit: %w", err))
	}
	return nil
}
