package pagekeep

import (
	"context"
	"time"

	"github.com/pagekeep/pagekeep/internal/audit"
	"github.com/pagekeep/pagekeep/internal/backup"
	imig "github.com/pagekeep/pagekeep/internal/migration"
	"github.com/pagekeep/pagekeep/internal/schema"
	"github.com/pagekeep/pagekeep/internal/settings"
	"github.com/pagekeep/pagekeep/internal/store"
)

// Re-export commonly used types for public API

// Store is the single handle to the sqlite data file.
type Store = store.Store

// StoreFileName is the default sqlite filename for the application database.
const StoreFileName = store.StoreFileName

// Open connects to (or creates) the store at the given path.
func Open(path string) (*Store, error) { return store.Open(path) }

// Engine applies pending migration units and tracks applied history.
type Engine = imig.Engine

// EngineOptions tunes lock path, per-unit timeout, and the settings
// bootstrap unit name.
type EngineOptions = imig.Options

// MigrationUnit is a registered migration.
type MigrationUnit = imig.Unit

// MigrationStatus is the engine's status snapshot.
type MigrationStatus = imig.Status

// Settings reads and writes typed configuration and system variables.
type Settings = settings.Store

// SettingOutcome distinguishes a successful settings write from "table not
// yet bootstrapped" and a real failure.
type SettingOutcome = settings.Outcome

const (
	OutcomeOK          = settings.OutcomeOK
	OutcomeUnavailable = settings.OutcomeUnavailable
	OutcomeFailed      = settings.OutcomeFailed
)

// Trail is the dual-sink audit log.
type Trail = audit.Trail

// Actor identifies who performed an audited action; nil means system/CLI.
type Actor = audit.Actor

// BackupManager snapshots and restores the store file.
type BackupManager = backup.Manager

// BackupArtifact describes one backup copy on disk.
type BackupArtifact = backup.Artifact

// DefaultUnits returns the registered migration units for the pagekeep
// schema.
func DefaultUnits() []MigrationUnit { return schema.Registry() }

// NewTrail creates an audit trail over st with a file fallback under dir.
func NewTrail(st *Store, fallbackDir string) *Trail { return audit.New(st, fallbackDir) }

// NewSettings creates a settings store; trail may be nil.
func NewSettings(st *Store, trail *Trail) *Settings { return settings.New(st, trail) }

// NewEngine creates a migration engine over the default unit registry.
func NewEngine(st *Store, sets *Settings, trail *Trail, opts EngineOptions) *Engine {
	return imig.New(st, sets, trail, DefaultUnits(), opts)
}

// NewBackupManager creates a backup manager writing artifacts to dir.
func NewBackupManager(st *Store, trail *Trail, sets *Settings, dir string) *BackupManager {
	return backup.New(st, trail, sets, dir)
}

// ListBackups enumerates artifacts in dir, newest first.
func ListBackups(dir string) ([]BackupArtifact, error) { return backup.List(dir) }

// Bootstrap opens the store, initializes the engine, and applies all pending
// migrations: the normal application start path. On a failed run the store
// and engine are still returned so callers can inspect Status before halting.
func Bootstrap(ctx context.Context, path, auditDir string, unitTimeout time.Duration) (*Store, *Engine, error) {
	st, err := Open(path)
	if err != nil {
		return nil, nil, err
	}
	trail := NewTrail(st, auditDir)
	sets := NewSettings(st, trail)
	eng := NewEngine(st, sets, trail, EngineOptions{UnitTimeout: unitTimeout})
	if err := eng.Initialize(ctx); err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	if err := eng.Run(ctx); err != nil {
		return st, eng, err
	}
	return st, eng, nil
}
