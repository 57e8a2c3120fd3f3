package audit

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pagekeep/pagekeep/internal/store"
)

func openTempStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), store.StoreFileName))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func createAuditTable(t *testing.T, st *store.Store) {
	t.Helper()
	_, err := st.DB.Exec(`CREATE TABLE audit_log (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		uuid TEXT NOT NULL UNIQUE,
		user_id INTEGER NULL,
		user_uuid TEXT NULL,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL DEFAULT '',
		entity_id INTEGER NULL,
		entity_uuid TEXT NULL,
		details TEXT NULL,
		ip_address TEXT NOT NULL DEFAULT 'CLI',
		created_at TEXT NOT NULL
	)`)
	if err != nil {
		t.Fatalf("create audit_log: %v", err)
	}
}

func TestRecordFallsBackToFileWhenTableMissing(t *testing.T) {
	st := openTempStore(t)
	dir := t.TempDir()
	tr := New(st, dir)
	ctx := context.Background()

	if err := tr.Record(ctx, "migration.apply", "migration", nil, map[string]any{"unit": "create_tables"}, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}

	entries, err := tr.FileEntries(time.Now())
	if err != nil {
		t.Fatalf("FileEntries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("file sink entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.Action != "migration.apply" || e.IPAddress != CLISentinel || e.UUID == "" {
		t.Fatalf("unexpected entry: %+v", e)
	}
	if e.UserID != nil {
		t.Fatalf("system entry carries a user id: %+v", e)
	}
	if e.Details["unit"] != "create_tables" {
		t.Fatalf("details not preserved: %+v", e.Details)
	}
}

func TestRecordUsesDatabaseWhenTablePresent(t *testing.T) {
	st := openTempStore(t)
	dir := t.TempDir()
	tr := New(st, dir)
	ctx := context.Background()
	createAuditTable(t, st)

	if err := tr.Record(ctx, "document.upload", "document", nil, nil, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := tr.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Action != "document.upload" {
		t.Fatalf("db sink entries = %+v", got)
	}
	// the file sink must stay untouched
	fileEntries, err := tr.FileEntries(time.Now())
	if err != nil {
		t.Fatalf("FileEntries: %v", err)
	}
	if len(fileEntries) != 0 {
		t.Fatalf("entry duplicated into file sink: %+v", fileEntries)
	}
}

func TestNoCrossSinkBackfill(t *testing.T) {
	st := openTempStore(t)
	tr := New(st, t.TempDir())
	ctx := context.Background()

	if err := tr.Record(ctx, "early", "system", nil, nil, nil); err != nil {
		t.Fatalf("Record (degraded): %v", err)
	}
	createAuditTable(t, st)
	if err := tr.Record(ctx, "late", "system", nil, nil, nil); err != nil {
		t.Fatalf("Record (steady): %v", err)
	}

	dbEntries, err := tr.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(dbEntries) != 1 || dbEntries[0].Action != "late" {
		t.Fatalf("db sink = %+v, want only the late entry", dbEntries)
	}
	fileEntries, err := tr.FileEntries(time.Now())
	if err != nil {
		t.Fatalf("FileEntries: %v", err)
	}
	if len(fileEntries) != 1 || fileEntries[0].Action != "early" {
		t.Fatalf("file sink = %+v, want only the early entry", fileEntries)
	}
}

func TestFileSinkAccumulatesWithinDay(t *testing.T) {
	st := openTempStore(t)
	tr := New(st, t.TempDir())
	ctx := context.Background()

	for _, action := range []string{"one", "two", "three"} {
		if err := tr.Record(ctx, action, "system", nil, nil, nil); err != nil {
			t.Fatalf("Record(%s): %v", action, err)
		}
	}
	entries, err := tr.FileEntries(time.Now())
	if err != nil {
		t.Fatalf("FileEntries: %v", err)
	}
	if len(entries) != 3 || entries[0].Action != "one" || entries[2].Action != "three" {
		t.Fatalf("file sink order/content wrong: %+v", entries)
	}
}

func TestActorAndEntityResolution(t *testing.T) {
	st := openTempStore(t)
	tr := New(st, t.TempDir())
	ctx := context.Background()
	createAuditTable(t, st)
	if _, err := st.DB.Exec(`CREATE TABLE documents (id INTEGER PRIMARY KEY, uuid TEXT NOT NULL)`); err != nil {
		t.Fatalf("create documents: %v", err)
	}
	if _, err := st.DB.Exec(`INSERT INTO documents(id, uuid) VALUES(5, 'doc-uuid-5')`); err != nil {
		t.Fatalf("insert document: %v", err)
	}

	docID := int64(5)
	actor := &Actor{ID: 9, UUID: "user-uuid-9", IPAddress: "10.0.0.9"}
	if err := tr.Record(ctx, "document.delete", "document", &docID, nil, actor); err != nil {
		t.Fatalf("Record: %v", err)
	}

	got, err := tr.List(ctx, Filter{Action: "document.delete"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("entries = %d, want 1", len(got))
	}
	e := got[0]
	if e.UserID == nil || *e.UserID != 9 || e.UserUUID == nil || *e.UserUUID != "user-uuid-9" {
		t.Fatalf("actor not resolved: %+v", e)
	}
	if e.EntityUUID == nil || *e.EntityUUID != "doc-uuid-5" {
		t.Fatalf("entity uuid not resolved: %+v", e)
	}
	if e.IPAddress != "10.0.0.9" {
		t.Fatalf("ip = %q", e.IPAddress)
	}
}

func TestEntityLookupMissBestEffort(t *testing.T) {
	st := openTempStore(t)
	tr := New(st, t.TempDir())
	ctx := context.Background()
	createAuditTable(t, st)

	id := int64(404)
	// documents table does not even exist; lookup must miss quietly
	if err := tr.Record(ctx, "document.view", "document", &id, nil, nil); err != nil {
		t.Fatalf("Record: %v", err)
	}
	got, err := tr.List(ctx, Filter{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if got[0].EntityUUID != nil {
		t.Fatalf("expected nil entity uuid on miss, got %v", *got[0].EntityUUID)
	}
	if got[0].EntityID == nil || *got[0].EntityID != 404 {
		t.Fatalf("entity id lost: %+v", got[0])
	}
}

func TestListDetailsFilter(t *testing.T) {
	st := openTempStore(t)
	tr := New(st, t.TempDir())
	ctx := context.Background()
	createAuditTable(t, st)

	for _, unit := range []string{"create_tables", "add_s3_settings"} {
		if err := tr.Record(ctx, "migration.apply", "migration", nil, map[string]any{"unit": unit}, nil); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}
	got, err := tr.List(ctx, Filter{DetailsPath: "unit", DetailsValue: "add_s3_settings"})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 1 || got[0].Details["unit"] != "add_s3_settings" {
		t.Fatalf("filtered entries = %+v", got)
	}
}

func TestRecordUnrelatedErrorNotDiverted(t *testing.T) {
	st := openTempStore(t)
	dir := t.TempDir()
	tr := New(st, dir)
	ctx := context.Background()
	// a broken audit_log shape: inserts fail, but not with "no such table"
	if _, err := st.DB.Exec(`CREATE TABLE audit_log (only_col TEXT)`); err != nil {
		t.Fatalf("create broken table: %v", err)
	}

	err := tr.Record(ctx, "x", "system", nil, nil, nil)
	if err == nil {
		t.Fatalf("expected Record to fail against broken table")
	}
	// the failure must not be masked as a degraded-path write
	files, _ := os.ReadDir(dir)
	if len(files) != 0 {
		t.Fatalf("unrelated error diverted to file sink: %v", files)
	}
}
