package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"farmcore/internal/infra/persistence/document"
	"farmcore/pkg/record"
)

// stubConn emulates just enough of the postgres wire surface for the
// snapshot store: the DDL exec, the upsert, and the hydration select.
type stubConn struct {
	mu        sync.Mutex
	execs     []string
	payloads  map[string][]byte
	failPing  bool
	failExec  bool
	failBegin bool
}

func newStubDB(t *testing.T) (*sql.DB, *stubConn) {
	t.Helper()
	conn := &stubConn{payloads: make(map[string][]byte)}
	name := fmt.Sprintf("stubpg%d", time.Now().UnixNano())
	sql.Register(name, &stubDriver{conn: conn})
	db, err := sql.Open(name, "stub")
	if err != nil {
		t.Fatalf("open stub: %v", err)
	}
	return db, conn
}

type stubDriver struct {
	conn *stubConn
}

func (d *stubDriver) Open(string) (driver.Conn, error) { return d.conn, nil }

func (c *stubConn) Prepare(string) (driver.Stmt, error) {
	return nil, fmt.Errorf("not implemented")
}

func (c *stubConn) Close() error { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) Ping(context.Context) error {
	if c.failPing {
		return fmt.Errorf("ping fail")
	}
	return nil
}

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.failBegin {
		return nil, fmt.Errorf("begin fail")
	}
	return stubTx{}, nil
}

func (c *stubConn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, query)
	if c.failExec {
		return nil, fmt.Errorf("exec fail")
	}
	if strings.HasPrefix(strings.ToUpper(strings.TrimSpace(query)), "INSERT INTO") {
		if len(args) != 2 {
			return nil, fmt.Errorf("expected name and payload, got %d args", len(args))
		}
		name, ok := args[0].Value.(string)
		if !ok {
			return nil, fmt.Errorf("collection name must be a string, got %T", args[0].Value)
		}
		payload, ok := args[1].Value.([]byte)
		if !ok {
			return nil, fmt.Errorf("payload must be bytes, got %T", args[1].Value)
		}
		c.payloads[name] = append([]byte(nil), payload...)
	}
	return driver.RowsAffected(1), nil
}

func (c *stubConn) QueryContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Rows, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !strings.Contains(strings.ToUpper(query), "FROM COLLECTIONS") {
		return nil, fmt.Errorf("unexpected query: %s", query)
	}
	rows := make([][]driver.Value, 0, len(c.payloads))
	for name, payload := range c.payloads {
		rows = append(rows, []driver.Value{name, append([]byte(nil), payload...)})
	}
	return &stubRows{cols: []string{"name", "payload"}, rows: rows}, nil
}

func (c *stubConn) snapshot(t *testing.T, collection string) []record.Record {
	t.Helper()
	c.mu.Lock()
	payload, ok := c.payloads[collection]
	c.mu.Unlock()
	if !ok {
		t.Fatalf("no snapshot written for %s", collection)
	}
	var docs []record.Record
	if err := json.Unmarshal(payload, &docs); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	return docs
}

type stubTx struct{}

func (stubTx) Commit() error   { return nil }
func (stubTx) Rollback() error { return nil }

type stubRows struct {
	cols []string
	rows [][]driver.Value
	idx  int
}

func (r *stubRows) Columns() []string { return r.cols }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.idx >= len(r.rows) {
		return io.EOF
	}
	copy(dest, r.rows[r.idx])
	r.idx++
	return nil
}

func TestNewStoreAppliesDDLAndHydrates(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB(t)
	seed, err := json.Marshal([]record.Record{{"id": "A001", "name": "Rex"}})
	if err != nil {
		t.Fatalf("marshal seed: %v", err)
	}
	conn.payloads["animals"] = seed

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	doc, ok, err := store.FindOne(ctx, "animals", document.Key{Identifier: "A001"})
	if err != nil || !ok {
		t.Fatalf("expected seeded document hydrated, ok=%v err=%v", ok, err)
	}
	if doc["name"] != "Rex" {
		t.Fatalf("unexpected document: %v", doc)
	}
	var sawDDL bool
	for _, stmt := range conn.execs {
		if strings.Contains(strings.ToUpper(stmt), "CREATE TABLE") {
			sawDDL = true
			break
		}
	}
	if !sawDDL {
		t.Fatalf("expected table DDL, got execs: %v", conn.execs)
	}
}

func TestMutationsWriteSnapshotRows(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB(t)

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("ignored")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	if _, err := store.Insert(ctx, "animals", record.Record{"id": "A001", "status": "Healthy"}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	docs := conn.snapshot(t, "animals")
	if len(docs) != 1 || docs[0]["id"] != "A001" {
		t.Fatalf("unexpected snapshot after insert: %v", docs)
	}

	if _, ok, err := store.Update(ctx, "animals", document.Key{Identifier: "A001"}, record.Record{"status": "Adopted"}); err != nil || !ok {
		t.Fatalf("Update: ok=%v err=%v", ok, err)
	}
	docs = conn.snapshot(t, "animals")
	if docs[0]["status"] != "Adopted" {
		t.Fatalf("update not snapshotted: %v", docs)
	}

	if _, ok, err := store.Delete(ctx, "animals", document.Key{Identifier: "A001"}); err != nil || !ok {
		t.Fatalf("Delete: ok=%v err=%v", ok, err)
	}
	if docs := conn.snapshot(t, "animals"); len(docs) != 0 {
		t.Fatalf("delete not snapshotted: %v", docs)
	}

	if _, err := store.UpsertFirst(ctx, "settings", record.Record{"facilityName": "Green Valley"}); err != nil {
		t.Fatalf("UpsertFirst: %v", err)
	}
	if docs := conn.snapshot(t, "settings"); len(docs) != 1 || docs[0]["facilityName"] != "Green Valley" {
		t.Fatalf("upsert not snapshotted: %v", docs)
	}
}

func TestNewStoreFailsWhenPingFails(t *testing.T) {
	db, conn := newStubDB(t)
	conn.failPing = true

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected ping failure to surface")
	}
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("expected handle closed after failed open, got %v", err)
	}
}

func TestNewStoreFailsWhenDDLFails(t *testing.T) {
	db, conn := newStubDB(t)
	conn.failExec = true

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected DDL failure to surface")
	}
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("expected handle closed after failed open, got %v", err)
	}
}

func TestNewStoreFailsWhenSnapshotCorrupt(t *testing.T) {
	db, conn := newStubDB(t)
	conn.payloads["animals"] = []byte("{not json")

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	if _, err := NewStore(""); err == nil {
		t.Fatalf("expected hydration failure to surface")
	}
	if err := db.Ping(); err == nil || !strings.Contains(err.Error(), "closed") {
		t.Fatalf("expected handle closed after failed open, got %v", err)
	}
}

func TestInsertSurfacesPersistFailure(t *testing.T) {
	ctx := context.Background()
	db, conn := newStubDB(t)

	restore := OverrideSQLOpen(func(_, _ string) (*sql.DB, error) { return db, nil })
	defer restore()

	store, err := NewStore("")
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	conn.failBegin = true
	if _, err := store.Insert(ctx, "animals", record.Record{"id": "A001"}); err == nil {
		t.Fatalf("expected persist failure to surface")
	}
}
