package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pagekeep/pagekeep/internal/common"
	"github.com/pagekeep/pagekeep/internal/constants"
	_ "modernc.org/sqlite"
)

// StoreFileName is the default filename for the application database.
const StoreFileName = constants.DefaultStoreFileName

// Store owns the single connection to the sqlite data file. All tables
// (settings, system variables, audit log, migration bookkeeping) live in this
// one file; components receive the handle explicitly rather than reading a
// package-level global.
type Store struct {
	DB   *sql.DB
	path string
}

// Open connects to the sqlite file at path, creating the containing directory
// if absent. Foreign-key enforcement is enabled on connect.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory %s: %w", dir, err)
		}
	}

	db, err := connect(path)
	if err != nil {
		return nil, err
	}

	logger := common.GetLogger().WithStore("sqlite")
	logger.Info("database connection established", "path", path)
	return &Store{DB: db, path: path}, nil
}

func connect(path string) (*sql.DB, error) {
	// _pragma applies per connection, so foreign keys stay on even when the
	// pool recycles its connection
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite connection: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	// SQLite allows only one writer; keep the pool to a single connection.
	db.SetMaxOpenConns(constants.DefaultSQLiteMaxConnections)
	db.SetMaxIdleConns(constants.DefaultSQLiteMaxIdleConns)
	db.SetConnMaxLifetime(constants.DefaultSQLiteLifetime)
	db.SetConnMaxIdleTime(constants.DefaultSQLiteIdleTime)

	return db, nil
}

// Path returns the location of the underlying data file.
func (s *Store) Path() string {
	return s.path
}

// Begin starts a transaction on the store.
func (s *Store) Begin(ctx context.Context) (*sql.Tx, error) {
	return s.DB.BeginTx(ctx, nil)
}

// Close releases the database handle. Safe to call on a nil or closed store.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	err := s.DB.Close()
	s.DB = nil
	return err
}

// Reopen re-establishes the connection after the underlying file has been
// replaced or removed (restore and reset swap the file out from under the
// handle). Any previous connection must have been closed first.
func (s *Store) Reopen() error {
	if s.DB != nil {
		_ = s.Close()
	}
	db, err := connect(s.path)
	if err != nil {
		return err
	}
	s.DB = db
	common.GetLogger().WithStore("sqlite").Info("database connection re-established", "path", s.path)
	return nil
}

// TableExists reports whether a table is present in the schema.
func (s *Store) TableExists(ctx context.Context, name string) (bool, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT 1 FROM sqlite_master WHERE type = 'table' AND name = ?`, name)
	var one int
	err := row.Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return err == nil, err
}

// Now returns the canonical timestamp representation stored in text columns.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}

// IsTableMissing reports whether err is sqlite's "no such table" condition.
// Callers use it to tell "sink/table not yet bootstrapped" apart from real
// failures; only this condition may trigger degraded-path fallbacks.
func IsTableMissing(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "no such table")
}
