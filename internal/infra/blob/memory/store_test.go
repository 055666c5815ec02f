package memory

import (
	"context"
	"io"
	"strings"
	"testing"

	"farmcore/internal/blob/core"
)

func TestRoundTrip(t *testing.T) {
	store := New()
	ctx := context.Background()

	info, err := store.Put(ctx, "backups/a.json", strings.NewReader("payload"), core.PutOptions{ContentType: "application/json"})
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if info.Size != int64(len("payload")) || info.ContentType != "application/json" {
		t.Fatalf("unexpected info: %+v", info)
	}

	got, rc, err := store.Get(ctx, "backups/a.json")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "payload" || got.Key != "backups/a.json" {
		t.Fatalf("content mismatch: %q %+v", data, got)
	}
	if _, err := store.Head(ctx, "backups/a.json"); err != nil {
		t.Fatalf("Head: %v", err)
	}
}

func TestPutRefusesOverwrite(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Put(ctx, "k", strings.NewReader("one"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if _, err := store.Put(ctx, "k", strings.NewReader("two"), core.PutOptions{}); err == nil {
		t.Fatalf("expected duplicate key to fail")
	}
}

func TestDeleteReportsExistence(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Put(ctx, "k", strings.NewReader("x"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if existed, err := store.Delete(ctx, "k"); err != nil || !existed {
		t.Fatalf("Delete: existed=%v err=%v", existed, err)
	}
	if existed, err := store.Delete(ctx, "k"); err != nil || existed {
		t.Fatalf("second delete: existed=%v err=%v", existed, err)
	}
}

func TestListSortedByKeyWithPrefix(t *testing.T) {
	store := New()
	ctx := context.Background()

	for _, key := range []string{"b", "a", "backups/x"} {
		if _, err := store.Put(ctx, key, strings.NewReader("x"), core.PutOptions{}); err != nil {
			t.Fatalf("Put %s: %v", key, err)
		}
	}
	infos, err := store.List(ctx, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 3 || infos[0].Key != "a" || infos[1].Key != "b" || infos[2].Key != "backups/x" {
		t.Fatalf("unexpected listing: %+v", infos)
	}
	filtered, err := store.List(ctx, "backups/")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(filtered) != 1 || filtered[0].Key != "backups/x" {
		t.Fatalf("unexpected filtered listing: %+v", filtered)
	}
}

func TestGetReturnsIndependentCopy(t *testing.T) {
	store := New()
	ctx := context.Background()

	if _, err := store.Put(ctx, "k", strings.NewReader("stable"), core.PutOptions{}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	_, rc, err := store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	buf := make([]byte, 1)
	if _, err := rc.Read(buf); err != nil {
		t.Fatalf("read: %v", err)
	}
	_ = rc.Close()

	_, rc, err = store.Get(ctx, "k")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	data, _ := io.ReadAll(rc)
	_ = rc.Close()
	if string(data) != "stable" {
		t.Fatalf("stored content was aliased: %q", data)
	}
}

func TestDriverIdentifier(t *testing.T) {
	if New().Driver() != core.DriverMemory {
		t.Fatalf("unexpected driver")
	}
}
