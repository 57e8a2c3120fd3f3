package constants

import "time"

// Database Constants
const (
	// Connection pool settings
	DefaultSQLiteMaxConnections = 1 // SQLite allows only one writer
	DefaultSQLiteMaxIdleConns   = 1

	// Default table names
	DefaultSchemaMigrationsTable = "schema_migrations"
	DefaultSettingsTable         = "settings"
	DefaultSystemVariablesTable  = "system_variables"
	DefaultAuditLogTable         = "audit_log"
)

// Time and Duration Constants
const (
	DefaultSQLiteLifetime = 10 * time.Minute
	DefaultSQLiteIdleTime = 5 * time.Minute
)

// File layout constants
const (
	// DefaultStoreFileName is the sqlite file holding all application state.
	DefaultStoreFileName = "pagekeep.db"

	// BackupFilePrefix and BackupTimeFormat shape backup artifact names:
	// pagekeep-20060102-150405.db
	BackupFilePrefix = "pagekeep-"
	BackupFileExt    = ".db"
	BackupTimeFormat = "20060102-150405"

	// AuditFilePrefix shapes fallback audit file names: audit-2006-01-02.yaml
	AuditFilePrefix     = "audit-"
	AuditFileExt        = ".yaml"
	AuditFileDateFormat = "2006-01-02"
)

// Well-known settings and system variable keys
const (
	VarInstallationID  = "system.installation_id"
	VarLastMigration   = "migration.last_applied"
	VarLastBackup      = "backup.last_run"
	VarMaintenanceMode = "system.maintenance"
)
