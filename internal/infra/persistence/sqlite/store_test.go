package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"farmcore/internal/infra/persistence/document"
	"farmcore/pkg/record"
)

func TestStateSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Insert(ctx, "animals", record.Record{"id": "A001", "name": "Rex"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, "staff", record.Record{"id": "S001"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	doc, ok, err := reopened.FindOne(ctx, "animals", document.Key{Identifier: "A001"})
	if err != nil || !ok {
		t.Fatalf("FindOne after reopen: ok=%v err=%v", ok, err)
	}
	if doc["name"] != "Rex" {
		t.Fatalf("unexpected document: %v", doc)
	}
	names, err := reopened.Collections(ctx)
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected both collections hydrated, got %v", names)
	}
}

func TestMutationsPersistIndividually(t *testing.T) {
	path := filepath.Join(t.TempDir(), "farm.db")
	ctx := context.Background()

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Insert(ctx, "animals", record.Record{"id": "A001", "status": "Healthy"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok, err := store.Update(ctx, "animals", document.Key{Identifier: "A001"}, record.Record{"status": "Adopted"}); err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	if _, err := store.Insert(ctx, "animals", record.Record{"id": "A002"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, ok, err := store.Delete(ctx, "animals", document.Key{Identifier: "A002"}); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if _, err := store.UpsertFirst(ctx, "settings", record.Record{"facilityName": "Green Valley"}); err != nil {
		t.Fatalf("UpsertFirst: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := NewStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	doc, ok, _ := reopened.FindOne(ctx, "animals", document.Key{Identifier: "A001"})
	if !ok || doc["status"] != "Adopted" {
		t.Fatalf("update not persisted: %v", doc)
	}
	if _, ok, _ := reopened.FindOne(ctx, "animals", document.Key{Identifier: "A002"}); ok {
		t.Fatalf("delete not persisted")
	}
	settings, ok, _ := reopened.First(ctx, "settings")
	if !ok || settings["facilityName"] != "Green Valley" {
		t.Fatalf("upsert not persisted: %v", settings)
	}
}

func TestCreatesNestedDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "farm.db")

	store, err := NewStore(path)
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	defer func() { _ = store.Close() }()
	if store.Path() != path {
		t.Fatalf("expected path %s, got %s", path, store.Path())
	}
	if store.DB() == nil {
		t.Fatalf("expected live database handle")
	}
}
