// Package sqlite persists the document store to an embedded SQLite file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"farmcore/internal/infra/persistence/document"
	"farmcore/internal/infra/persistence/memory"
	"farmcore/pkg/record"
)

// Store wraps the in-memory driver and snapshots every collection to a
// single SQLite table as a JSON blob after each successful mutation.
type Store struct {
	*memory.Store
	db   *sql.DB
	mu   sync.Mutex
	path string
}

var _ document.Store = (*Store)(nil)

// NewStore opens (or creates) the database at path and hydrates the working
// state from any existing snapshot.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = "farmcore.db"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil && !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("create dirs: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS collections (
		name TEXT PRIMARY KEY,
		payload BLOB NOT NULL
	)`); err != nil {
		return nil, fmt.Errorf("create collections table: %w", err)
	}
	s := &Store{Store: memory.NewStore(), db: db, path: path}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	rows, err := s.db.Query(`SELECT name, payload FROM collections`)
	if err != nil {
		return fmt.Errorf("select collections: %w", err)
	}
	defer func() { _ = rows.Close() }()
	snapshot := memory.Snapshot{}
	for rows.Next() {
		var name string
		var payload []byte
		if err := rows.Scan(&name, &payload); err != nil {
			return fmt.Errorf("scan: %w", err)
		}
		var docs []record.Record
		if err := json.Unmarshal(payload, &docs); err != nil {
			return fmt.Errorf("decode %s: %w", name, err)
		}
		snapshot[name] = docs
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate collections: %w", err)
	}
	if len(snapshot) > 0 {
		s.ImportState(snapshot)
	}
	return nil
}

func (s *Store) persist() (retErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snapshot := s.ExportState()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if retErr != nil {
			_ = tx.Rollback()
		}
	}()
	for name, docs := range snapshot {
		data, err := json.Marshal(docs)
		if err != nil {
			retErr = fmt.Errorf("encode %s: %w", name, err)
			return retErr
		}
		if _, err := tx.Exec(`INSERT INTO collections(name,payload) VALUES(?,?) ON CONFLICT(name) DO UPDATE SET payload=excluded.payload`, name, data); err != nil {
			retErr = fmt.Errorf("upsert %s: %w", name, err)
			return retErr
		}
	}
	return tx.Commit()
}

// Insert stores a document and snapshots the state to SQLite.
func (s *Store) Insert(ctx context.Context, collection string, doc record.Record) (record.Record, error) {
	stored, err := s.Store.Insert(ctx, collection, doc)
	if err != nil {
		return nil, err
	}
	if err := s.persist(); err != nil {
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
	if err := s.persist(); err != nil {
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
	if err := s.persist(); err != nil {
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
	if err := s.persist(); err != nil {
		return nil, false, err
	}
	return deleted, true, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
