// Package document defines the storage abstraction the record layer runs on:
// named collections of schemaless documents with the per-collection
// operations the resource services need.
package document

import (
	"context"

	"github.com/google/uuid"

	"farmcore/pkg/record"
)

// Key identifies one document within a collection. It matches on the
// application-level "id" field and, when the identifier is a syntactically
// valid native document id, also on the store-assigned identifier. Legacy
// documents created before prefixed ids were introduced only carry the
// native id.
type Key struct {
	Identifier string
}

// Matches reports whether the key selects the given document.
func (k Key) Matches(doc record.Record) bool {
	if id, ok := doc["id"].(string); ok && id == k.Identifier {
		return true
	}
	if _, err := uuid.Parse(k.Identifier); err == nil {
		if native, ok := doc[record.NativeIDField].(string); ok && native == k.Identifier {
			return true
		}
	}
	return false
}

// Store is the contract every persistence driver implements. Drivers are the
// sole point of shared mutable state; each call is individually atomic but
// no multi-call transaction is offered.
type Store interface {
	// Collections enumerates the collection names that currently exist.
	Collections(ctx context.Context) ([]string, error)

	// List returns every document of a collection, newest createdAt first.
	List(ctx context.Context, collection string) ([]record.Record, error)

	// PrefixedIDs returns the application-level ids starting with prefix in
	// descending lexicographic order.
	PrefixedIDs(ctx context.Context, collection, prefix string) ([]string, error)

	// FindOne returns the first document matching key.
	FindOne(ctx context.Context, collection string, key Key) (record.Record, bool, error)

	// First returns an arbitrary single document, used by singleton
	// collections such as settings.
	First(ctx context.Context, collection string) (record.Record, bool, error)

	// Insert stores a new document, assigning a native id when absent, and
	// returns the stored form.
	Insert(ctx context.Context, collection string, doc record.Record) (record.Record, error)

	// Update merges fields over the document matching key and returns the
	// result. The boolean reports whether a document matched.
	Update(ctx context.Context, collection string, key Key, fields record.Record) (record.Record, bool, error)

	// UpsertFirst merges fields over the collection's single document,
	// creating it when the collection is empty.
	UpsertFirst(ctx context.Context, collection string, fields record.Record) (record.Record, error)

	// Delete removes the document matching key and returns it.
	Delete(ctx context.Context, collection string, key Key) (record.Record, bool, error)

	// Close releases driver resources.
	Close() error
}
