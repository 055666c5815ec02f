// Package backup snapshots every collection into a JSON archive on a blob
// store and stamps the settings singleton with the backup time.
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"farmcore/internal/blob"
	"farmcore/internal/core"
	"farmcore/pkg/record"
)

// ObjectStore is the blob surface the runner writes archives to. Any
// blob.Store satisfies it.
type ObjectStore interface {
	Put(ctx context.Context, key string, r io.Reader, opts blob.PutOptions) (blob.Info, error)
}

// Archive is the serialized form of one full backup.
type Archive struct {
	ExportedAt  string                     `json:"exportedAt"`
	Collections map[string][]record.Record `json:"collections"`
}

// Result summarizes a completed backup run.
type Result struct {
	Key         string `json:"key"`
	SizeBytes   int64  `json:"sizeBytes"`
	Collections int    `json:"collections"`
	Documents   int    `json:"documents"`
	ExportedAt  string `json:"exportedAt"`
}

// Runner performs backups against a record service and an object store.
type Runner struct {
	service *core.Service
	objects ObjectStore
	nowFn   func() time.Time
}

// NewRunner constructs a backup runner.
func NewRunner(service *core.Service, objects ObjectStore) *Runner {
	return &Runner{
		service: service,
		objects: objects,
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

// Run exports every collection to a single JSON archive keyed by the export
// time, then records the time as lastBackup in settings. Documents are
// archived in stored form, native identifiers included, so an archive can
// rehydrate a store losslessly.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	store := r.service.Store()
	names, err := store.Collections(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("list collections: %w", err)
	}
	now := r.nowFn()
	archive := Archive{
		ExportedAt:  now.Format(time.RFC3339Nano),
		Collections: make(map[string][]record.Record, len(names)),
	}
	documents := 0
	for _, name := range names {
		docs, err := store.List(ctx, name)
		if err != nil {
			return Result{}, fmt.Errorf("export %s: %w", name, err)
		}
		archive.Collections[name] = docs
		documents += len(docs)
	}

	payload, err := json.Marshal(archive)
	if err != nil {
		return Result{}, fmt.Errorf("encode archive: %w", err)
	}
	key := fmt.Sprintf("backups/%s.json", now.Format("20060102T150405Z"))
	info, err := r.objects.Put(ctx, key, bytes.NewReader(payload), blob.PutOptions{ContentType: "application/json"})
	if err != nil {
		return Result{}, fmt.Errorf("store archive: %w", err)
	}
	if _, err := r.service.UpdateSettings(ctx, record.Record{"lastBackup": archive.ExportedAt}); err != nil {
		return Result{}, fmt.Errorf("stamp lastBackup: %w", err)
	}
	size := info.Size
	if size == 0 {
		size = int64(len(payload))
	}
	return Result{
		Key:         key,
		SizeBytes:   size,
		Collections: len(names),
		Documents:   documents,
		ExportedAt:  archive.ExportedAt,
	}, nil
}
