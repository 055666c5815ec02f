// Package postgres provides a Postgres-backed document store that mirrors
// the in-memory semantics while snapshotting state as JSONB rows.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"farmcore/internal/infra/persistence/document"
	"farmcore/internal/infra/persistence/memory"
	"farmcore/pkg/record"
)

var _ document.Store = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/farmcore?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists the document collections to Postgres while reusing the
// in-memory driver for reads and working state.
type Store struct {
	*memory.Store
	db *sql.DB
	mu sync.Mutex
}

// NewStore opens a Postgres-backed store using the provided DSN (falls back
// to defaultDSN), ensures the snapshot table exists, and hydrates the
// in-memory state from any existing snapshot.
func NewStore(dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	ctx := context.Background()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		payload JSONB NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure collections table: %w", err)
	}
	snapshot, err := loadSnapshot(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	mem := memory.NewStore()
	if len(snapshot) > 0 {
		mem.ImportState(snapshot)
	}
	return &Store{Store: mem, db: db}, nil
}

func loadSnapshot(ctx context.Context, db *sql.DB) (memory.Snapshot, error) {
	rows, err := db.QueryContext(ctx, `SELECT name, payload FROM collections`)
	if err != nil {
		return nil, fmt.Errorf("select collections: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return nil, fmt.Errorf("scan collections: %w", err)
		}
		if len(payload) == 0 {
			continue
		}
		var docs []record.Record
		if err := json.Unmarshal(payload, &docs); err != nil {
			return nil, fmt.Errorf("decode %s: %w", name, err)
		}
		snapshot[name] = docs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collections: %w", err)
	}
	return snapshot, nil
}

func (s *Store) persist(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	for name, docs := range snapshot {
		data, err := json.Marshal(docs)
		if err != nil {
			return fmt.Errorf("encode %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO collections(name,payload) VALUES($1,$2) ON CONFLICT(name) DO UPDATE SET payload=EXCLUDED.payload`, name, data); err != nil {
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// Insert stores a document and snapshots the state to Postgres.
func (s *Store) Insert(ctx context.Context, collection string, doc record.Record) (record.Record, error) {
	stored, err := s.Store.Insert(ctx, collection, doc)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// Update merges fields over the matching document and snapshots the state.
func (s *Store) Update(ctx context.Context, collection string, key document.Key, fields record.Record) (record.Record, bool, error) {
	updated, ok, err := s.Store.Update(ctx, collection, key, fields)
	if err != nil || !ok {
		return updated, ok, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, false, err
	}
	return updated, true, nil
}

// UpsertFirst merges fields over the singleton document and snapshots the
// state.
func (s *Store) UpsertFirst(ctx context.Context, collection string, fields record.Record) (record.Record, error) {
	stored, err := s.Store.UpsertFirst(ctx, collection, fields)
	if err != nil {
		return nil, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// Delete removes the matching document and snapshots the state.
func (s *Store) Delete(ctx context.Context, collection string, key document.Key) (record.Record, bool, error) {
	deleted, ok, err := s.Store.Delete(ctx, collection, key)
	if err != nil || !ok {
		return deleted, ok, err
	}
	if err := s.persist(ctx); err != nil {
		return nil, false, err
	}
	return deleted, true, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore
// function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
