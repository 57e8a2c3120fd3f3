package migration

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/pagekeep/pagekeep/internal/audit"
	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/pagekeep/pagekeep/internal/constants"
	"github.com/pagekeep/pagekeep/internal/settings"
	"github.com/pagekeep/pagekeep/internal/store"
)

// State tracks the engine lifecycle: Uninitialized → Initialized → {Idle,
// Applying, Failed}.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateIdle
	StateApplying
	StateFailed
)

// DefaultSettingsUnitName is the derived name of the unit that creates the
// settings table. The post-commit settings reconciliation is skipped for that
// unit: there is nothing to reconcile into a table created moments ago.
const DefaultSettingsUnitName = "create_settings_table"

// Options tunes engine behavior beyond its collaborators.
type Options struct {
	// LockPath is the advisory lock file guarding against a second process
	// running migrations against the same store file. Defaults to the store
	// path with a ".lock" suffix.
	LockPath string
	// UnitTimeout bounds a single unit's apply via a context deadline.
	// Zero disables the deadline (a hung unit then blocks the run).
	UnitTimeout time.Duration
	// SettingsUnit overrides the derived name of the settings bootstrap unit.
	SettingsUnit string
}

// Engine applies pending migration units, each in its own transaction, and
// owns the schema_migrations bookkeeping table. Settings and audit are
// advisory collaborators: their tables may not exist yet when the engine
// needs them, so every interaction with them is best-effort.
type Engine struct {
	store    *store.Store
	settings *settings.Store
	trail    *audit.Trail
	units    []Unit

	catalog []OrderedUnit
	state   State
	opts    Options
}

// New creates an engine over the given store and registered units. sets and
// trail may be nil; the corresponding post-commit side effects are skipped.
func New(st *store.Store, sets *settings.Store, trail *audit.Trail, units []Unit, opts Options) *Engine {
	if opts.LockPath == "" {
		opts.LockPath = st.Path() + ".lock"
	}
	if opts.SettingsUnit == "" {
		opts.SettingsUnit = DefaultSettingsUnitName
	}
	return &Engine{store: st, settings: sets, trail: trail, units: units, opts: opts}
}

// State returns the engine's current lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Initialize ensures the bookkeeping table exists and orders the catalog.
// It never fails because downstream tables (settings, audit) are absent —
// those are created by migrations this engine has yet to apply.
func (e *Engine) Initialize(ctx context.Context) error {
	_, err := e.store.DB.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			name TEXT PRIMARY KEY,
			applied_at TEXT NOT NULL
		)`, constants.DefaultSchemaMigrationsTable))
	if err != nil {
		return &InitError{Err: err}
	}

	catalog, err := Discover(e.units)
	if err != nil {
		return fmt.Errorf("catalog discovery failed: %w", err)
	}
	e.catalog = catalog
	e.state = StateInitialized

	common.GetLogger().WithComponent("engine").Debug("engine initialized", "available", len(catalog))
	return nil
}

// Run applies all pending units in catalog order, stopping at the first
// failure. A failed run is reported as an error value, not a crash: per-unit
// transactions leave the store consistent, so halting is safe.
func (e *Engine) Run(ctx context.Context) error {
	if e.state == StateUninitialized {
		return fmt.Errorf("engine not initialized")
	}
	logger := common.GetLogger().WithComponent("engine")

	unlock, err := e.acquireLock()
	if err != nil {
		return err
	}
	defer unlock()

	applied, err := e.loadApplied(ctx)
	if err != nil {
		return fmt.Errorf("failed to load applied migrations: %w", err)
	}

	var pending []OrderedUnit
	for _, ou := range e.catalog {
		if _, ok := applied[ou.Name]; !ok {
			pending = append(pending, ou)
		}
	}
	if len(pending) == 0 {
		e.state = StateIdle
		logger.Info("no pending migrations")
		return nil
	}

	e.state = StateApplying
	logger.Info("applying pending migrations", "count", len(pending))
	for _, ou := range pending {
		if err := e.applyOne(ctx, ou); err != nil {
			// later units may assume state left by this one; stop here
			e.state = StateFailed
			logger.WithUnit(ou.Name).Error("migration run stopped", "error", err)
			return err
		}
	}
	e.state = StateIdle
	logger.Info("migration run complete", "applied", len(pending))
	return nil
}

// applyOne runs a single unit inside one transaction. The bookkeeping record
// is inserted in the same transaction: a unit without its record is not
// applied, so a record-write failure rolls the unit back too. The audit and
// settings side effects run after commit and are advisory only.
func (e *Engine) applyOne(ctx context.Context, ou OrderedUnit) error {
	logger := common.GetLogger().WithComponent("engine").WithUnit(ou.Name)

	runCtx := ctx
	if e.opts.UnitTimeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.opts.UnitTimeout)
		defer cancel()
	}

	tx, err := e.store.Begin(runCtx)
	if err != nil {
		return &UnitApplyError{Name: ou.Name, Err: err}
	}

	if err := ou.Unit.Apply(runCtx, tx); err != nil {
		_ = tx.Rollback()
		return &UnitApplyError{Name: ou.Name, Err: err}
	}

	if _, err := tx.ExecContext(runCtx, fmt.Sprintf(
		`INSERT INTO %s(name, applied_at) VALUES(?, ?)`,
		constants.DefaultSchemaMigrationsTable), ou.Name, store.Now()); err != nil {
		_ = tx.Rollback()
		return &BookkeepingError{Name: ou.Name, Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &BookkeepingError{Name: ou.Name, Err: err}
	}
	logger.Info("migration applied")

	// Post-commit side effects. Neither can undo the applied unit.
	if e.trail != nil {
		if err := e.trail.Record(ctx, "migration.apply", "migration", nil,
			map[string]any{"unit": ou.Name, "raw": ou.Unit.Raw}, nil); err != nil {
			logger.Warn("audit write for applied migration failed", "error", err)
		}
	}
	if e.settings != nil && ou.Name != e.opts.SettingsUnit {
		switch e.settings.SetVariable(ctx, constants.VarLastMigration, ou.Name) {
		case settings.OutcomeUnavailable:
			logger.Debug("settings table not yet present, skipping last-migration reconciliation")
		case settings.OutcomeFailed:
			logger.Warn("failed to reconcile last-migration variable")
		}
	}
	return nil
}

func (e *Engine) loadApplied(ctx context.Context) (map[string]struct{}, error) {
	rows, err := e.store.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT name FROM %s`, constants.DefaultSchemaMigrationsTable))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	applied := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = struct{}{}
	}
	return applied, rows.Err()
}

// Status is a point-in-time view of the catalog against the bookkeeping
// table.
type Status struct {
	TotalAvailable int
	TotalApplied   int
	PendingCount   int
	LastApplied    string
	Available      []string
	Applied        []string
	Pending        []string
}

// Status reads the current migration state. Pure read; safe to call any time
// after Initialize.
func (e *Engine) Status(ctx context.Context) (Status, error) {
	if e.state == StateUninitialized {
		return Status{}, fmt.Errorf("engine not initialized")
	}

	rows, err := e.store.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT name FROM %s ORDER BY rowid`, constants.DefaultSchemaMigrationsTable))
	if err != nil {
		return Status{}, fmt.Errorf("failed to read applied migrations: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var appliedList []string
	appliedSet := map[string]struct{}{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return Status{}, err
		}
		appliedList = append(appliedList, name)
		appliedSet[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return Status{}, err
	}

	st := Status{
		TotalAvailable: len(e.catalog),
		TotalApplied:   len(appliedList),
		Applied:        appliedList,
	}
	if len(appliedList) > 0 {
		st.LastApplied = appliedList[len(appliedList)-1]
	}
	for _, ou := range e.catalog {
		st.Available = append(st.Available, ou.Name)
		if _, ok := appliedSet[ou.Name]; !ok {
			st.Pending = append(st.Pending, ou.Name)
		}
	}
	st.PendingCount = len(st.Pending)
	return st, nil
}

// acquireLock takes the advisory cross-process lock. There is no automatic
// stale-lock recovery: an operator removes the file after a crashed run.
func (e *Engine) acquireLock() (func(), error) {
	f, err := os.OpenFile(e.opts.LockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrLocked, e.opts.LockPath)
		}
		return nil, fmt.Errorf("failed to create lock file %s: %w", e.opts.LockPath, err)
	}
	_, _ = fmt.Fprintf(f, "%d\n", os.Getpid())
	_ = f.Close()

	path := e.opts.LockPath
	return func() { _ = os.Remove(path) }, nil
}
