package pagekeep_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/pagekeep/pagekeep"
)

func TestBootstrapEmptyStore(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, pagekeep.StoreFileName)

	st, eng, err := pagekeep.Bootstrap(ctx, dbPath, filepath.Join(dir, "audit"), 0)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	defer func() { _ = st.Close() }()

	status, err := eng.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 0 {
		t.Fatalf("pending after bootstrap = %d (%v)", status.PendingCount, status.Pending)
	}
	if status.TotalApplied != len(pagekeep.DefaultUnits()) {
		t.Fatalf("applied = %d, want %d", status.TotalApplied, len(pagekeep.DefaultUnits()))
	}

	sets := pagekeep.NewSettings(st, nil)
	if v := sets.Get(ctx, "app.title", ""); v != "PageKeep" {
		t.Fatalf("seeded app.title = %q", v)
	}
}

func TestBootstrapTwiceIsNoOp(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, pagekeep.StoreFileName)
	auditDir := filepath.Join(dir, "audit")

	st1, _, err := pagekeep.Bootstrap(ctx, dbPath, auditDir, 0)
	if err != nil {
		t.Fatalf("first Bootstrap: %v", err)
	}
	if err := st1.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	st2, eng2, err := pagekeep.Bootstrap(ctx, dbPath, auditDir, 0)
	if err != nil {
		t.Fatalf("second Bootstrap: %v", err)
	}
	defer func() { _ = st2.Close() }()

	status, err := eng2.Status(ctx)
	if err != nil {
		t.Fatalf("Status: %v", err)
	}
	if status.PendingCount != 0 || status.LastApplied != "add_s3_settings" {
		t.Fatalf("second bootstrap status: %+v", status)
	}
}

func TestBackupRestoreThroughFacade(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, pagekeep.StoreFileName)

	st, _, err := pagekeep.Bootstrap(ctx, dbPath, filepath.Join(dir, "audit"), 0)
	if err != nil {
		t.Fatalf("Bootstrap: %v", err)
	}
	defer func() { _ = st.Close() }()

	backupDir := filepath.Join(dir, "backups")
	mgr := pagekeep.NewBackupManager(st, nil, nil, backupDir)
	art, err := mgr.Backup(ctx)
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}

	listed, err := pagekeep.ListBackups(backupDir)
	if err != nil {
		t.Fatalf("ListBackups: %v", err)
	}
	if len(listed) != 1 || listed[0].Filename != art.Filename {
		t.Fatalf("ListBackups = %+v", listed)
	}
}
