package backup

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pagekeep/pagekeep/internal/audit"
	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/pagekeep/pagekeep/internal/constants"
	"github.com/pagekeep/pagekeep/internal/settings"
	"github.com/pagekeep/pagekeep/internal/store"
)

// Artifact is a full copy of the store file. Artifacts are immutable, never
// tracked in the database, and survive a full store reset.
type Artifact struct {
	Path      string
	Filename  string
	Size      int64
	CreatedAt time.Time
}

// Manager snapshots and restores the store file. It is the safety net the
// engine and destructive admin operations gate on: restore and reset refuse
// to run when the safety backup cannot be taken.
type Manager struct {
	store    *store.Store
	trail    *audit.Trail
	settings *settings.Store
	// Dir receives backup artifacts, including the safety copies taken
	// before restore and reset.
	Dir string
}

// New creates a Manager writing artifacts to dir. trail and sets may be nil.
func New(st *store.Store, trail *audit.Trail, sets *settings.Store, dir string) *Manager {
	return &Manager{store: st, trail: trail, settings: sets, Dir: dir}
}

// Backup copies the live store file to a timestamped artifact in m.Dir. On
// success it audits the action and updates the last-backup system variable;
// both are best-effort.
func (m *Manager) Backup(ctx context.Context) (*Artifact, error) {
	logger := common.GetLogger().WithComponent("backup")

	if err := os.MkdirAll(m.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create backup directory %s: %w", m.Dir, err)
	}

	now := time.Now().UTC()
	name := constants.BackupFilePrefix + now.Format(constants.BackupTimeFormat) + constants.BackupFileExt
	dst := filepath.Join(m.Dir, name)

	size, err := copyFile(m.store.Path(), dst)
	if err != nil {
		return nil, fmt.Errorf("failed to back up store file: %w", err)
	}
	logger.Info("backup created", "artifact", dst, "size", size)

	if m.trail != nil {
		if err := m.trail.Record(ctx, "store.backup", "backup", nil,
			map[string]any{"artifact": name, "size": size}, nil); err != nil {
			logger.Warn("backup created but audit write failed", "error", err)
		}
	}
	if m.settings != nil {
		if m.settings.SetVariable(ctx, constants.VarLastBackup, now.Format(time.RFC3339)) == settings.OutcomeFailed {
			logger.Warn("backup created but last-backup variable not updated")
		}
	}
	return &Artifact{Path: dst, Filename: name, Size: size, CreatedAt: now}, nil
}

// Restore replaces the live store file with the artifact at path. A safety
// backup of the current file is taken first; if it cannot be taken the
// restore refuses to proceed. The store handle is reopened on the new file.
func (m *Manager) Restore(ctx context.Context, artifactPath string) error {
	logger := common.GetLogger().WithComponent("backup")

	if _, err := os.Stat(artifactPath); err != nil {
		return fmt.Errorf("backup artifact not readable: %w", err)
	}

	safety, err := m.Backup(ctx)
	if err != nil {
		return fmt.Errorf("refusing to restore without a safety backup: %w", err)
	}
	logger.Info("safety backup taken before restore", "artifact", safety.Filename)

	// stage the copy next to the store so a failed read never touches the
	// live file; only the rename below replaces it
	staged := m.store.Path() + ".restore"
	if _, err := copyFile(artifactPath, staged); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to stage restore copy: %w", err)
	}

	if err := m.store.Close(); err != nil {
		_ = os.Remove(staged)
		return fmt.Errorf("failed to release store handle: %w", err)
	}
	if err := os.Rename(staged, m.store.Path()); err != nil {
		_ = os.Remove(staged)
		// reconnect on the untouched file so the handle stays usable
		if rerr := m.store.Reopen(); rerr != nil {
			logger.Error("store handle not reopened after failed restore", "error", rerr)
		}
		return fmt.Errorf("failed to replace store file: %w", err)
	}
	if err := m.store.Reopen(); err != nil {
		return fmt.Errorf("failed to reconnect after restore: %w", err)
	}

	if m.trail != nil {
		if err := m.trail.Record(ctx, "store.restore", "backup", nil,
			map[string]any{"artifact": filepath.Base(artifactPath), "safety": safety.Filename}, nil); err != nil {
			logger.Warn("restore completed but audit write failed", "error", err)
		}
	}
	logger.Info("store restored", "artifact", artifactPath)
	return nil
}

// Reset is restore-to-empty: safety backup, delete the store file, reconnect.
// The reopened store is empty; the caller re-runs migrations to rebuild it.
func (m *Manager) Reset(ctx context.Context) error {
	logger := common.GetLogger().WithComponent("backup")

	safety, err := m.Backup(ctx)
	if err != nil {
		return fmt.Errorf("refusing to reset without a safety backup: %w", err)
	}
	logger.Info("safety backup taken before reset", "artifact", safety.Filename)

	if err := m.store.Close(); err != nil {
		return fmt.Errorf("failed to release store handle: %w", err)
	}
	if err := os.Remove(m.store.Path()); err != nil && !os.IsNotExist(err) {
		if rerr := m.store.Reopen(); rerr != nil {
			logger.Error("store handle not reopened after failed reset", "error", rerr)
		}
		return fmt.Errorf("failed to remove store file: %w", err)
	}
	if err := m.store.Reopen(); err != nil {
		return fmt.Errorf("failed to reconnect after reset: %w", err)
	}

	if m.trail != nil {
		// audit table is gone with the file; this lands in the file sink
		if err := m.trail.Record(ctx, "store.reset", "backup", nil,
			map[string]any{"safety": safety.Filename}, nil); err != nil {
			logger.Warn("reset completed but audit write failed", "error", err)
		}
	}
	logger.Info("store reset to empty")
	return nil
}

// List enumerates backup artifacts in dir, newest first. CreatedAt is parsed
// from the filename timestamp, falling back to the file's mtime.
func List(dir string) ([]Artifact, error) {
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory %s: %w", dir, err)
	}

	var out []Artifact
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, constants.BackupFilePrefix) || !strings.HasSuffix(name, constants.BackupFileExt) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, Artifact{
			Path:      filepath.Join(dir, name),
			Filename:  name,
			Size:      info.Size(),
			CreatedAt: artifactTime(name, info.ModTime()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func artifactTime(name string, fallback time.Time) time.Time {
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, constants.BackupFilePrefix), constants.BackupFileExt)
	if ts, err := time.Parse(constants.BackupTimeFormat, stamp); err == nil {
		return ts
	}
	return fallback
}

func copyFile(src, dst string) (int64, error) {
	in, err := os.Open(filepath.Clean(src))
	if err != nil {
		return 0, err
	}
	defer func() { _ = in.Close() }()

	out, err := os.OpenFile(filepath.Clean(dst), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, in)
	if err != nil {
		_ = out.Close()
		return 0, err
	}
	if err := out.Sync(); err != nil {
		_ = out.Close()
		return 0, err
	}
	return n, out.Close()
}
