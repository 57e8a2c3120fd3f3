package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/pagekeep/pagekeep/internal/constants"
	"github.com/pagekeep/pagekeep/internal/store"
	"github.com/tidwall/gjson"
)

// CLISentinel is recorded as the ip address when no actor is present:
// system-initiated work (migrations, CLI commands) has no request context.
const CLISentinel = "CLI"

// Entry is a single append-only activity record. Nil UserID means the actor
// was the system or a CLI operator rather than a logged-in user.
type Entry struct {
	ID         int64          `yaml:"-"`
	UUID       string         `yaml:"uuid"`
	UserID     *int64         `yaml:"user_id,omitempty"`
	UserUUID   *string        `yaml:"user_uuid,omitempty"`
	Action     string         `yaml:"action"`
	EntityType string         `yaml:"entity_type"`
	EntityID   *int64         `yaml:"entity_id,omitempty"`
	EntityUUID *string        `yaml:"entity_uuid,omitempty"`
	Details    map[string]any `yaml:"details,omitempty"`
	IPAddress  string         `yaml:"ip_address"`
	CreatedAt  string         `yaml:"created_at"`
}

// Actor identifies who performed an action. A nil *Actor in Record means
// system/CLI.
type Actor struct {
	ID        int64
	UUID      string
	IPAddress string
}

// Filter narrows List results. DetailsPath/DetailsValue match a gjson path
// into the serialized details blob (e.g. path "unit", value "create_tables").
type Filter struct {
	Action       string
	EntityType   string
	Limit        int
	DetailsPath  string
	DetailsValue string
}

// entityTables maps known entity kinds to the table a uuid can be resolved
// from. Lookups are best-effort; unknown kinds and misses yield a nil uuid.
var entityTables = map[string]string{
	"user":     "users",
	"document": "documents",
}

// Trail writes activity records to the audit_log table, falling back to a
// per-day yaml file while the table does not exist (notably during the
// migration run that creates it). The two sinks are never merged.
type Trail struct {
	store *store.Store
	dir   string
}

// New creates a Trail writing to st and falling back to files under dir.
func New(st *store.Store, fallbackDir string) *Trail {
	return &Trail{store: st, dir: fallbackDir}
}

// Record appends an activity entry. actor == nil records a system/CLI entry.
// The database sink is tried first; only the specific "table missing"
// condition diverts the entry to the file sink. Any other insert failure is
// returned to the caller unrecorded.
func (t *Trail) Record(ctx context.Context, action, entityType string, entityID *int64, details map[string]any, actor *Actor) error {
	logger := common.GetLogger().WithComponent("audit")

	e := Entry{
		UUID:       uuid.NewString(),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
		IPAddress:  CLISentinel,
		CreatedAt:  store.Now(),
	}
	if actor != nil {
		id := actor.ID
		e.UserID = &id
		if actor.UUID != "" {
			u := actor.UUID
			e.UserUUID = &u
		}
		if actor.IPAddress != "" {
			e.IPAddress = actor.IPAddress
		}
	}
	e.EntityUUID = t.lookupEntityUUID(ctx, entityType, entityID)

	err := t.insert(ctx, e)
	if err == nil {
		return nil
	}
	if !store.IsTableMissing(err) {
		logger.WithSink("database").Error("failed to record audit entry", "action", action, "error", err)
		return fmt.Errorf("failed to record audit entry: %w", err)
	}

	logger.WithSink("file").Debug("audit table not yet present, using file sink", "action", action)
	if ferr := t.appendToFile(e); ferr != nil {
		logger.WithSink("file").Error("failed to record audit entry", "action", action, "error", ferr)
		return fmt.Errorf("failed to record audit entry to file sink: %w", ferr)
	}
	return nil
}

func (t *Trail) insert(ctx context.Context, e Entry) error {
	var detailsJSON *string
	if len(e.Details) > 0 {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		s := string(b)
		detailsJSON = &s
	}

	_, err := t.store.DB.ExecContext(ctx, fmt.Sprintf(
		`INSERT INTO %s(uuid, user_id, user_uuid, action, entity_type, entity_id, entity_uuid, details, ip_address, created_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)`, constants.DefaultAuditLogTable),
		e.UUID, e.UserID, e.UserUUID, e.Action, e.EntityType, e.EntityID, e.EntityUUID, detailsJSON, e.IPAddress, e.CreatedAt)
	return err
}

// lookupEntityUUID resolves the uuid of a known entity kind. Best-effort: a
// missing table, unknown kind, or absent row all yield nil.
func (t *Trail) lookupEntityUUID(ctx context.Context, entityType string, entityID *int64) *string {
	if entityID == nil {
		return nil
	}
	table, ok := entityTables[entityType]
	if !ok {
		return nil
	}
	var u string
	err := t.store.DB.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT uuid FROM %s WHERE id = ?`, table), *entityID).Scan(&u)
	if err != nil {
		return nil
	}
	return &u
}

// List reads entries from the database sink, newest first. It never consults
// the file sink: file entries are the record of the degraded period only.
func (t *Trail) List(ctx context.Context, f Filter) ([]Entry, error) {
	q := fmt.Sprintf(`SELECT id, uuid, user_id, user_uuid, action, entity_type, entity_id, entity_uuid, details, ip_address, created_at FROM %s`,
		constants.DefaultAuditLogTable)
	var args []any
	where := ""
	if f.Action != "" {
		where = " WHERE action = ?"
		args = append(args, f.Action)
	}
	if f.EntityType != "" {
		if where == "" {
			where = " WHERE entity_type = ?"
		} else {
			where += " AND entity_type = ?"
		}
		args = append(args, f.EntityType)
	}
	q += where + " ORDER BY id DESC"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := t.store.DB.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var e Entry
		var details sql.NullString
		if err := rows.Scan(&e.ID, &e.UUID, &e.UserID, &e.UserUUID, &e.Action, &e.EntityType,
			&e.EntityID, &e.EntityUUID, &details, &e.IPAddress, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		if details.Valid && details.String != "" {
			if f.DetailsPath != "" && gjson.Get(details.String, f.DetailsPath).String() != f.DetailsValue {
				continue
			}
			var m map[string]any
			if err := json.Unmarshal([]byte(details.String), &m); err == nil {
				e.Details = m
			}
		} else if f.DetailsPath != "" {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
