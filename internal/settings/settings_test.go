package settings

import (
	"context"
	"path/filepath"
	"testing"

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

func createTables(t *testing.T, st *store.Store) {
	t.Helper()
	for _, q := range []string{
		`CREATE TABLE settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'text',
			is_public INTEGER NOT NULL DEFAULT 0,
			is_editable INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE system_variables (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			is_encrypted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	} {
		if _, err := st.DB.Exec(q); err != nil {
			t.Fatalf("create tables: %v", err)
		}
	}
}

func TestGetDefaultsWhenTableMissing(t *testing.T) {
	st := openTempStore(t)
	s := New(st, nil)
	ctx := context.Background()

	if v := s.Get(ctx, "app.title", "fallback"); v != "fallback" {
		t.Fatalf("Get on missing table = %q, want fallback", v)
	}
	if v := s.GetInt(ctx, "upload.max_size_mb", 50); v != 50 {
		t.Fatalf("GetInt on missing table = %d, want 50", v)
	}
	if _, outcome := s.Lookup(ctx, "app.title"); outcome != OutcomeUnavailable {
		t.Fatalf("Lookup outcome = %v, want unavailable", outcome)
	}
	if out := s.SetVariable(ctx, "k", "v"); out != OutcomeUnavailable {
		t.Fatalf("SetVariable outcome = %v, want unavailable", out)
	}
}

func TestSetUpsertAndGet(t *testing.T) {
	st := openTempStore(t)
	s := New(st, nil)
	ctx := context.Background()
	createTables(t, st)

	if !s.Set(ctx, "app.title", "My Docs") {
		t.Fatalf("Set (insert) failed")
	}
	if !s.Set(ctx, "app.title", "Renamed") {
		t.Fatalf("Set (update) failed")
	}
	if v := s.Get(ctx, "app.title", ""); v != "Renamed" {
		t.Fatalf("Get = %q, want Renamed", v)
	}
	// key uniqueness: the upsert must not have created a second row
	var n int
	if err := st.DB.QueryRow(`SELECT COUNT(*) FROM settings WHERE key = 'app.title'`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("rows for key = %d, want 1", n)
	}
}

func TestTypedGetters(t *testing.T) {
	st := openTempStore(t)
	s := New(st, nil)
	ctx := context.Background()
	createTables(t, st)

	s.Set(ctx, "upload.max_size_mb", "75")
	s.Set(ctx, "feature.enabled", "true")
	s.Set(ctx, "feature.broken", "not-a-number")

	if v := s.GetInt(ctx, "upload.max_size_mb", 0); v != 75 {
		t.Fatalf("GetInt = %d, want 75", v)
	}
	if !s.GetBool(ctx, "feature.enabled", false) {
		t.Fatalf("GetBool = false, want true")
	}
	if v := s.GetInt(ctx, "feature.broken", 7); v != 7 {
		t.Fatalf("GetInt on unparseable value = %d, want default 7", v)
	}
	if v := s.GetBool(ctx, "feature.absent", true); !v {
		t.Fatalf("GetBool absent = false, want default true")
	}
}

func TestLookupAndList(t *testing.T) {
	st := openTempStore(t)
	s := New(st, nil)
	ctx := context.Background()
	createTables(t, st)

	if _, err := st.DB.Exec(`INSERT INTO settings(key, value, description, type, is_public, is_editable, updated_at)
		VALUES('admin.email', 'ops@example.org', 'Contact', 'email', 1, 0, 'now')`); err != nil {
		t.Fatalf("seed: %v", err)
	}
	got, outcome := s.Lookup(ctx, "admin.email")
	if outcome != OutcomeOK {
		t.Fatalf("Lookup outcome = %v", outcome)
	}
	if got.Type != TypeEmail || !got.IsPublic || got.IsEditable {
		t.Fatalf("Lookup row = %+v", got)
	}

	all, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 1 || all[0].Key != "admin.email" {
		t.Fatalf("List = %+v", all)
	}
}

func TestSystemVariables(t *testing.T) {
	st := openTempStore(t)
	s := New(st, nil)
	ctx := context.Background()
	createTables(t, st)

	if out := s.SetVariable(ctx, "backup.last_run", "2026-01-01T00:00:00Z"); out != OutcomeOK {
		t.Fatalf("SetVariable = %v", out)
	}
	if out := s.SetVariable(ctx, "backup.last_run", "2026-02-01T00:00:00Z"); out != OutcomeOK {
		t.Fatalf("SetVariable (update) = %v", out)
	}
	if v := s.Variable(ctx, "backup.last_run", ""); v != "2026-02-01T00:00:00Z" {
		t.Fatalf("Variable = %q", v)
	}
	if v := s.Variable(ctx, "absent", "def"); v != "def" {
		t.Fatalf("Variable absent = %q, want def", v)
	}
}

func TestMaintenanceMode(t *testing.T) {
	st := openTempStore(t)
	s := New(st, nil)
	ctx := context.Background()
	createTables(t, st)

	if s.MaintenanceMode(ctx) {
		t.Fatalf("fresh installation reports maintenance mode")
	}
	if out := s.SetMaintenanceMode(ctx, true); out != OutcomeOK {
		t.Fatalf("SetMaintenanceMode(true) = %v", out)
	}
	if !s.MaintenanceMode(ctx) {
		t.Fatalf("maintenance flag not read back")
	}
	if out := s.SetMaintenanceMode(ctx, false); out != OutcomeOK {
		t.Fatalf("SetMaintenanceMode(false) = %v", out)
	}
	if s.MaintenanceMode(ctx) {
		t.Fatalf("maintenance flag still set after clearing")
	}
}
