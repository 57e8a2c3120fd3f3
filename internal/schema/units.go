// Package schema registers the migration units that build the pagekeep
// database. Units are identified by the name derived from their numeric-prefix
// identifier; the prefix orders them and is never persisted, so units can be
// renumbered as long as names stay stable.
package schema

import (
	"context"
	"database/sql"

	"github.com/pagekeep/pagekeep/internal/migration"
)

// Registry returns all known migration units in registration order. The
// catalog re-orders them by prefix, so the order here is not load-bearing.
func Registry() []migration.Unit {
	return []migration.Unit{
		{Raw: "000_create_settings_table", Apply: createSettingsTable},
		{Raw: "001_create_tables", Apply: createTables},
		{Raw: "002_create_share_links", Apply: createShareLinks},
		{Raw: "003_add_document_checksum", Apply: addDocumentChecksum},
		{Raw: "007_update_document_table", Apply: updateDocumentTable},
		{Raw: "008_add_s3_settings", Apply: addS3Settings},
	}
}

func exec(ctx context.Context, tx *sql.Tx, stmts ...string) error {
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// createSettingsTable bootstraps the settings and system_variables tables and
// seeds operator-facing defaults. The installation id is seeded here so every
// install is distinguishable from its first boot.
func createSettingsTable(ctx context.Context, tx *sql.Tx) error {
	if err := exec(ctx, tx,
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			type TEXT NOT NULL DEFAULT 'text',
			is_public INTEGER NOT NULL DEFAULT 0,
			is_editable INTEGER NOT NULL DEFAULT 1,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS system_variables (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			is_encrypted INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
	); err != nil {
		return err
	}

	seed := []struct {
		key, value, desc string
		typ              string
		public           bool
	}{
		{"app.title", "PageKeep", "Site title shown in the header", "text", true},
		{"app.description", "Self-hosted document sharing", "Short site description", "text", true},
		{"admin.email", "", "Contact address for operator notifications", "email", false},
		{"upload.max_size_mb", "50", "Maximum upload size in megabytes", "number", false},
		{"upload.allowed_extensions", "pdf,png,jpg,docx,txt", "Comma-separated list of accepted extensions", "text", false},
		{"links.default_expiry_days", "30", "Default lifetime of share links", "number", true},
	}
	for _, s := range seed {
		public := 0
		if s.public {
			public = 1
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings(key, value, description, type, is_public, is_editable, updated_at)
			 VALUES(?,?,?,?,?,1, strftime('%Y-%m-%dT%H:%M:%fZ','now'))`,
			s.key, s.value, s.desc, s.typ, public); err != nil {
			return err
		}
	}

	_, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO system_variables(key, value, description, is_encrypted, created_at, updated_at)
		 VALUES('system.installation_id', lower(hex(randomblob(16))), 'Unique id of this installation', 0,
		        strftime('%Y-%m-%dT%H:%M:%fZ','now'), strftime('%Y-%m-%dT%H:%M:%fZ','now'))`)
	return err
}

// createTables builds the core document-sharing schema, including the
// audit_log table the Trail's database sink writes to. Audit entries recorded
// before this unit commits live in the file sink.
func createTables(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			username TEXT NOT NULL UNIQUE,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			is_admin INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS documents (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			owner_id INTEGER REFERENCES users(id) ON DELETE SET NULL,
			title TEXT NOT NULL,
			filename TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS document_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			url TEXT NOT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS audit_log (
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
		)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_action ON audit_log(action)`,
	)
}

func createShareLinks(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`CREATE TABLE IF NOT EXISTS share_links (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			uuid TEXT NOT NULL UNIQUE,
			document_id INTEGER NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			expires_at TEXT NULL,
			created_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_share_links_token ON share_links(token)`,
	)
}

func addDocumentChecksum(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`ALTER TABLE documents ADD COLUMN checksum TEXT NOT NULL DEFAULT ''`,
	)
}

// updateDocumentTable reworks document metadata: mime type and byte size move
// into first-class columns so listings stop stat-ing files on disk.
func updateDocumentTable(ctx context.Context, tx *sql.Tx) error {
	return exec(ctx, tx,
		`ALTER TABLE documents ADD COLUMN mime_type TEXT NOT NULL DEFAULT 'application/octet-stream'`,
		`ALTER TABLE documents ADD COLUMN size_bytes INTEGER NOT NULL DEFAULT 0`,
		`CREATE INDEX IF NOT EXISTS idx_documents_owner ON documents(owner_id)`,
	)
}

// addS3Settings seeds the object-storage settings consumed by the (external)
// transfer collaborator. Empty bucket means transfers stay disabled.
func addS3Settings(ctx context.Context, tx *sql.Tx) error {
	seed := [][3]string{
		{"s3.bucket", "", "Object storage bucket; empty disables transfers"},
		{"s3.region", "", "Object storage region"},
		{"s3.endpoint", "", "Custom S3-compatible endpoint"},
	}
	for _, s := range seed {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO settings(key, value, description, type, is_public, is_editable, updated_at)
			 VALUES(?,?,?,'text',0,1, strftime('%Y-%m-%dT%H:%M:%fZ','now'))`,
			s[0], s[1], s[2]); err != nil {
			return err
		}
	}
	return nil
}
