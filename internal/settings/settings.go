package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/pagekeep/pagekeep/internal/audit"
	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/pagekeep/pagekeep/internal/constants"
	"github.com/pagekeep/pagekeep/internal/store"
)

// Type tags how a stored value should be interpreted by readers. Values are
// always stored as text.
type Type string

const (
	TypeText    Type = "text"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeEmail   Type = "email"
)

// Setting is an operator-facing configuration row.
type Setting struct {
	Key         string
	Value       string
	Description string
	Type        Type
	IsPublic    bool
	IsEditable  bool
	UpdatedAt   string
}

// Variable is a machine-maintained state row (installation id, last backup
// timestamp, maintenance flag). Same shape as Setting, different audience.
type Variable struct {
	Key         string
	Value       string
	Description string
	IsEncrypted bool
	CreatedAt   string
	UpdatedAt   string
}

// Outcome distinguishes "written" from "table not yet bootstrapped" from
// "write failed". Callers that run before the settings migration treat
// Unavailable as a non-event; Failed is logged as a real problem.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeUnavailable
	OutcomeFailed
)

// Store reads and writes the settings and system_variables tables. Both are
// created by a migration, so every operation tolerates their absence.
type Store struct {
	store *store.Store
	trail *audit.Trail
}

// New creates a settings store. trail may be nil; Set then skips its audit
// side effect.
func New(st *store.Store, trail *audit.Trail) *Store {
	return &Store{store: st, trail: trail}
}

// Get returns the stored value for key, or def when the key is absent or the
// read fails for any reason. It never returns an error: configuration reads
// degrade to defaults.
func (s *Store) Get(ctx context.Context, key, def string) string {
	var v string
	err := s.store.DB.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT value FROM %s WHERE key = ?`, constants.DefaultSettingsTable), key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return def
	}
	if err != nil {
		if !store.IsTableMissing(err) {
			common.GetLogger().WithComponent("settings").Warn("failed to read setting, using default", "key", key, "error", err)
		}
		return def
	}
	return v
}

// GetInt reads a number-typed setting, falling back to def on any parse or
// read failure.
func (s *Store) GetInt(ctx context.Context, key string, def int) int {
	raw := s.Get(ctx, key, "")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		common.GetLogger().WithComponent("settings").Warn("setting is not a number, using default", "key", key, "value", raw)
		return def
	}
	return n
}

// GetBool reads a boolean-typed setting, falling back to def.
func (s *Store) GetBool(ctx context.Context, key string, def bool) bool {
	raw := s.Get(ctx, key, "")
	switch raw {
	case "true", "1", "yes":
		return true
	case "false", "0", "no":
		return false
	default:
		return def
	}
}

// Lookup returns the full setting row. OutcomeUnavailable means the settings
// table has not been created yet.
func (s *Store) Lookup(ctx context.Context, key string) (Setting, Outcome) {
	var st Setting
	var isPublic, isEditable int
	var typ string
	err := s.store.DB.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT key, value, description, type, is_public, is_editable, updated_at FROM %s WHERE key = ?`,
		constants.DefaultSettingsTable), key).
		Scan(&st.Key, &st.Value, &st.Description, &typ, &isPublic, &isEditable, &st.UpdatedAt)
	if err != nil {
		if store.IsTableMissing(err) {
			return Setting{}, OutcomeUnavailable
		}
		return Setting{}, OutcomeFailed
	}
	st.Type = Type(typ)
	st.IsPublic = isPublic != 0
	st.IsEditable = isEditable != 0
	return st, OutcomeOK
}

// List returns all settings ordered by key.
func (s *Store) List(ctx context.Context) ([]Setting, error) {
	rows, err := s.store.DB.QueryContext(ctx, fmt.Sprintf(
		`SELECT key, value, description, type, is_public, is_editable, updated_at FROM %s ORDER BY key`,
		constants.DefaultSettingsTable))
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Setting
	for rows.Next() {
		var st Setting
		var isPublic, isEditable int
		var typ string
		if err := rows.Scan(&st.Key, &st.Value, &st.Description, &typ, &isPublic, &isEditable, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		st.Type = Type(typ)
		st.IsPublic = isPublic != 0
		st.IsEditable = isEditable != 0
		out = append(out, st)
	}
	return out, rows.Err()
}

// Set upserts a setting value and reports success as a boolean: callers treat
// configuration persistence as best-effort. A successful write is audited.
func (s *Store) Set(ctx context.Context, key, value string) bool {
	logger := common.GetLogger().WithComponent("settings")
	_, err := s.store.DB.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s(key, value, description, type, is_public, is_editable, updated_at)
		 VALUES(?,?,?,?,0,1,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		constants.DefaultSettingsTable), key, value, "", string(TypeText), store.Now())
	if err != nil {
		logger.Error("failed to write setting", "key", key, "error", err)
		return false
	}

	if s.trail != nil {
		if err := s.trail.Record(ctx, "setting.update", "setting", nil,
			map[string]any{"key": key, "value": value}, nil); err != nil {
			logger.Warn("setting updated but audit write failed", "key", key, "error", err)
		}
	}
	return true
}

// Variable returns a system variable value, or def when absent or unreadable.
func (s *Store) Variable(ctx context.Context, key, def string) string {
	var v string
	err := s.store.DB.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT value FROM %s WHERE key = ?`, constants.DefaultSystemVariablesTable), key).Scan(&v)
	if err != nil {
		return def
	}
	return v
}

// MaintenanceMode reports whether the operator has flagged the installation
// as down for maintenance. Absent or unreadable means not in maintenance.
func (s *Store) MaintenanceMode(ctx context.Context) bool {
	return s.Variable(ctx, constants.VarMaintenanceMode, "off") == "on"
}

// SetMaintenanceMode toggles the maintenance flag.
func (s *Store) SetMaintenanceMode(ctx context.Context, on bool) Outcome {
	v := "off"
	if on {
		v = "on"
	}
	return s.SetVariable(ctx, constants.VarMaintenanceMode, v)
}

// SetVariable upserts a system variable. The tri-state outcome lets the
// migration engine tell "settings not bootstrapped yet" (skip silently) from
// a real write failure (log it).
func (s *Store) SetVariable(ctx context.Context, key, value string) Outcome {
	now := store.Now()
	_, err := s.store.DB.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s(key, value, description, is_encrypted, created_at, updated_at)
		 VALUES(?,?,?,0,?,?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		constants.DefaultSystemVariablesTable), key, value, "", now, now)
	if err != nil {
		if store.IsTableMissing(err) {
			return OutcomeUnavailable
		}
		common.GetLogger().WithComponent("settings").Error("failed to write system variable", "key", key, "error", err)
		return OutcomeFailed
	}
	return OutcomeOK
}
