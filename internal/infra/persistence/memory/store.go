// Package memory provides the in-process document store used directly for
// tests and as the working state behind the durable drivers.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"farmcore/internal/infra/persistence/document"
	"farmcore/pkg/record"
)

// Store keeps every collection in process memory. Documents are cloned on
// the way in and out so callers can never alias internal state.
type Store struct {
	mu    sync.RWMutex
	state map[string][]record.Record
}

var _ document.Store = (*Store)(nil)

// NewStore constructs an empty in-memory document store.
func NewStore() *Store {
	return &Store{state: make(map[string][]record.Record)}
}

// Snapshot is a full copy of the store state, keyed by collection name.
type Snapshot map[string][]record.Record

// ExportState returns a deep copy of all collections.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(Snapshot, len(s.state))
	for name, docs := range s.state {
		out[name] = cloneDocs(docs)
	}
	return out
}

// ImportState replaces the store state with the given snapshot.
func (s *Store) ImportState(snapshot Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = make(map[string][]record.Record, len(snapshot))
	for name, docs := range snapshot {
		s.state[name] = cloneDocs(docs)
	}
}

func cloneDocs(docs []record.Record) []record.Record {
	out := make([]record.Record, len(docs))
	for i, d := range docs {
		out[i] = d.Clone()
	}
	return out
}

// Collections lists every collection that has been written to, including
// ones whose documents have since been deleted.
func (s *Store) Collections(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.state))
	for name := range s.state {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// List returns all documents of a collection ordered by createdAt, newest
// first.
func (s *Store) List(_ context.Context, collection string) ([]record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := cloneDocs(s.state[collection])
	sort.SliceStable(docs, func(i, j int) bool {
		return createdAt(docs[i]).After(createdAt(docs[j]))
	})
	return docs, nil
}

func createdAt(doc record.Record) time.Time {
	raw, _ := doc["createdAt"].(string)
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// PrefixedIDs returns the application-level ids with the given prefix in
// descending lexicographic order.
func (s *Store) PrefixedIDs(_ context.Context, collection, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var ids []string
	for _, doc := range s.state[collection] {
		if id, ok := doc["id"].(string); ok && len(id) >= len(prefix) && id[:len(prefix)] == prefix {
			ids = append(ids, id)
		}
	}
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// FindOne returns the first document matching key.
func (s *Store) FindOne(_ context.Context, collection string, key document.Key) (record.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, doc := range s.state[collection] {
		if key.Matches(doc) {
			return doc.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// First returns the collection's first document, used by singletons.
func (s *Store) First(_ context.Context, collection string) (record.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := s.state[collection]
	if len(docs) == 0 {
		return nil, false, nil
	}
	return docs[0].Clone(), true, nil
}

// Insert appends a document, assigning a native id when absent.
func (s *Store) Insert(_ context.Context, collection string, doc record.Record) (record.Record, error) {
	stored := doc.Clone()
	if stored == nil {
		stored = record.Record{}
	}
	if _, ok := stored[record.NativeIDField]; !ok {
		stored[record.NativeIDField] = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state[collection] = append(s.state[collection], stored)
	return stored.Clone(), nil
}

// Update merges fields over the document matching key.
func (s *Store) Update(_ context.Context, collection string, key document.Key, fields record.Record) (record.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, doc := range s.state[collection] {
		if key.Matches(doc) {
			merged := doc.Merge(fields)
			s.state[collection][i] = merged
			return merged.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// UpsertFirst merges fields over the collection's single document, creating
// it when empty.
func (s *Store) UpsertFirst(_ context.Context, collection string, fields record.Record) (record.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.state[collection]
	if len(docs) == 0 {
		stored := fields.Clone()
		if stored == nil {
			stored = record.Record{}
		}
		if _, ok := stored[record.NativeIDField]; !ok {
			stored[record.NativeIDField] = uuid.NewString()
		}
		s.state[collection] = append(docs, stored)
		return stored.Clone(), nil
	}
	merged := docs[0].Merge(fields)
	s.state[collection][0] = merged
	return merged.Clone(), nil
}

// Delete removes the document matching key and returns it.
func (s *Store) Delete(_ context.Context, collection string, key document.Key) (record.Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	docs := s.state[collection]
	for i, doc := range docs {
		if key.Matches(doc) {
			s.state[collection] = append(docs[:i:i], docs[i+1:]...)
			return doc.Clone(), true, nil
		}
	}
	return nil, false, nil
}

// Close is a no-op for the in-memory driver.
func (s *Store) Close() error { return nil }
