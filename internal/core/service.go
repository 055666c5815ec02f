package core

import (
	"context"
	"fmt"
	"time"

	"farmcore/internal/infra/persistence/document"
	"farmcore/pkg/record"
)

// Service exposes the record operations shared by every resource type. It is
// stateless apart from the store handle; concurrent requests may execute in
// parallel and the store is the sole point of shared mutable state.
type Service struct {
	store   document.Store
	metrics MetricsRecorder
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches a metrics recorder observing every operation.
func WithMetrics(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// NewService constructs a service backed by the supplied document store.
func NewService(store document.Store, opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store returns the underlying document store.
func (s *Service) Store() document.Store { return s.store }

func (s *Service) observe(ctx context.Context, op string, start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(ctx, op, err == nil, time.Since(start))
}

// resolve maps a canonical resource name to the physical collection,
// honoring legacy naming of pre-existing buckets.
func (s *Service) resolve(ctx context.Context, canonical string) (string, error) {
	existing, err := s.store.Collections(ctx)
	if err != nil {
		return "", fmt.Errorf("list collections: %w", err)
	}
	return record.ResolveCollection(existing, canonical), nil
}

// collectionScanner adapts a store collection to the allocator's view.
type collectionScanner struct {
	store      document.Store
	collection string
}

func (c collectionScanner) PrefixedIDs(ctx context.Context, prefix string) ([]string, error) {
	return c.store.PrefixedIDs(ctx, c.collection, prefix)
}

// List returns every record of a resource, newest first.
func (s *Service) List(ctx context.Context, res Resource) (out []record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, res.Name+".list", start, err) }()
	collection, err := s.resolve(ctx, res.Name)
	if err != nil {
		return nil, err
	}
	docs, err := s.store.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out = make([]record.Record, len(docs))
	for i, doc := range docs {
		out[i] = record.Normalize(doc)
	}
	return out, nil
}

// Get returns the record matching the identifier. The identifier may be
// either an allocated id or a native document id.
func (s *Service) Get(ctx context.Context, res Resource, id string) (out record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, res.Name+".get", start, err) }()
	collection, err := s.resolve(ctx, res.Name)
	if err != nil {
		return nil, err
	}
	doc, ok, err := s.store.FindOne(ctx, collection, document.Key{Identifier: id})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Resource: res.Label, ID: id}
	}
	return record.Normalize(doc), nil
}

// Create validates the payload, allocates the next identifier, stamps
// timestamps, applies the derived-state rule where configured, persists, and
// returns the normalized record.
func (s *Service) Create(ctx context.Context, res Resource, payload record.Record) (out record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, res.Name+".create", start, err) }()
	var missing []string
	for _, field := range res.Required {
		if _, ok := payload[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, ValidationError{Resource: res.Label, Missing: missing}
	}

	collection, err := s.resolve(ctx, res.Name)
	if err != nil {
		return nil, err
	}
	id, err := record.NextID(ctx, collectionScanner{store: s.store, collection: collection}, res.Prefix, res.Width)
	if err != nil {
		return nil, err
	}

	doc := payload.Clone()
	if doc == nil {
		doc = record.Record{}
	}
	if res.DerivedStatus {
		applyStockStatus(doc, payload, nil)
	}
	created, updated := record.TimestampPair()
	doc["id"] = id
	doc["createdAt"] = created
	doc["updatedAt"] = updated

	stored, err := s.store.Insert(ctx, collection, doc)
	if err != nil {
		return nil, err
	}
	return record.Normalize(stored), nil
}

// Update merges the payload over the existing record, refreshes updatedAt,
// and reapplies the derived-state rule where configured. The identifier and
// creation timestamp of a record are immutable.
func (s *Service) Update(ctx context.Context, res Resource, id string, payload record.Record) (out record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, res.Name+".update", start, err) }()
	if len(payload) == 0 {
		return nil, ValidationError{Resource: res.Label, Reason: "No data provided"}
	}
	collection, err := s.resolve(ctx, res.Name)
	if err != nil {
		return nil, err
	}
	key := document.Key{Identifier: id}
	existing, ok, err := s.store.FindOne(ctx, collection, key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Resource: res.Label, ID: id}
	}

	updates := payload.Clone()
	stripImmutable(updates)
	if res.DerivedStatus {
		applyStockStatus(updates, payload, existing)
	}
	updates["updatedAt"] = record.NowISO()

	merged, ok, err := s.store.Update(ctx, collection, key, updates)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Resource: res.Label, ID: id}
	}
	return record.Normalize(merged), nil
}

// Delete removes the record matching the identifier and returns its
// normalized final state. The delete is hard; the identifier is never
// reused.
func (s *Service) Delete(ctx context.Context, res Resource, id string) (out record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, res.Name+".delete", start, err) }()
	collection, err := s.resolve(ctx, res.Name)
	if err != nil {
		return nil, err
	}
	deleted, ok, err := s.store.Delete(ctx, collection, document.Key{Identifier: id})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, NotFoundError{Resource: res.Label, ID: id}
	}
	return record.Normalize(deleted), nil
}

// GetSettings returns the facility settings singleton, installing the
// default document on first read.
func (s *Service) GetSettings(ctx context.Context) (out record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "settings.get", start, err) }()
	collection, err := s.resolve(ctx, SettingsCollection)
	if err != nil {
		return nil, err
	}
	doc, ok, err := s.store.First(ctx, collection)
	if err != nil {
		return nil, err
	}
	if !ok {
		doc = DefaultSettings()
		created, updated := record.TimestampPair()
		doc["createdAt"] = created
		doc["updatedAt"] = updated
		if doc, err = s.store.Insert(ctx, collection, doc); err != nil {
			return nil, err
		}
	}
	return record.Normalize(doc), nil
}

// UpdateSettings upserts the settings singleton unconditionally; there is no
// not-found case.
func (s *Service) UpdateSettings(ctx context.Context, payload record.Record) (out record.Record, err error) {
	start := time.Now()
	defer func() { s.observe(ctx, "settings.update", start, err) }()
	collection, err := s.resolve(ctx, SettingsCollection)
	if err != nil {
		return nil, err
	}
	updates := payload.Clone()
	if updates == nil {
		updates = record.Record{}
	}
	stripImmutable(updates)
	updates["updatedAt"] = record.NowISO()
	stored, err := s.store.UpsertFirst(ctx, collection, updates)
	if err != nil {
		return nil, err
	}
	return record.Normalize(stored), nil
}

// stripImmutable drops the fields a client may never overwrite through an
// update payload.
func stripImmutable(updates record.Record) {
	delete(updates, "id")
	delete(updates, "createdAt")
	delete(updates, record.NativeIDField)
	delete(updates, record.RevisionField)
}

// applyStockStatus coerces quantity and reorderLevel to numbers, falling
// back to the previously stored values (or zero) on malformed input, and
// recomputes the stock status. The computed status always wins over a
// client-submitted one.
func applyStockStatus(target, payload, existing record.Record) {
	baseQuantity := 0.0
	baseReorder := 0.0
	if existing != nil {
		baseQuantity = record.CoerceNumber(existing["quantity"], 0)
		baseReorder = record.CoerceNumber(existing["reorderLevel"], 0)
	}
	quantity := baseQuantity
	if v, ok := payload["quantity"]; ok {
		quantity = record.CoerceNumber(v, baseQuantity)
	}
	reorder := baseReorder
	if v, ok := payload["reorderLevel"]; ok {
		reorder = record.CoerceNumber(v, baseReorder)
	}
	target["quantity"] = quantity
	target["reorderLevel"] = reorder
	target["status"] = record.ComputeStatus(quantity, reorder)
}
