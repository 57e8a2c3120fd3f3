package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"gopkg.in/yaml.v3"
)

type StoreConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type BackupConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

type AuditConfig struct {
	FallbackDir string `mapstructure:"fallback_dir" yaml:"fallback_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`   // error, warn, info, debug
	Format string `mapstructure:"format" yaml:"format"` // text, json
}

type MigrationConfig struct {
	// UnitTimeout bounds a single migration unit (e.g. "2m"); empty or 0
	// disables the deadline.
	UnitTimeout string `mapstructure:"unit_timeout" yaml:"unit_timeout"`
	LockPath    string `mapstructure:"lock_path" yaml:"lock_path"`
}

// ConfigDoc is the yaml configuration document for the CLI.
type ConfigDoc struct {
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Backup    BackupConfig    `mapstructure:"backup" yaml:"backup"`
	Audit     AuditConfig     `mapstructure:"audit" yaml:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging" yaml:"logging"`
	Migration MigrationConfig `mapstructure:"migration" yaml:"migration"`
}

// Load reads the yaml document at path. A missing file is not an error: the
// defaults cover a fresh checkout.
func (d *ConfigDoc) Load(path string) error {
	d.applyDefaults()
	clean := filepath.Clean(path)
	// #nosec G304 -- path comes from the --config flag
	b, err := os.ReadFile(clean)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read config %s: %w", clean, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("failed to parse config %s: %w", clean, err)
	}
	if err := mapstructure.Decode(raw, d); err != nil {
		return fmt.Errorf("failed to decode config %s: %w", clean, err)
	}
	d.applyDefaults()
	return nil
}

func (d *ConfigDoc) applyDefaults() {
	if d.Store.Path == "" {
		d.Store.Path = filepath.Join("data", "pagekeep.db")
	}
	if d.Backup.Dir == "" {
		d.Backup.Dir = filepath.Join("data", "backups")
	}
	if d.Audit.FallbackDir == "" {
		d.Audit.FallbackDir = filepath.Join("data", "audit")
	}
	if d.Logging.Level == "" {
		d.Logging.Level = "info"
	}
	if d.Logging.Format == "" {
		d.Logging.Format = "text"
	}
}

// UnitTimeoutDuration parses the configured per-unit timeout; invalid or
// empty values disable it.
func (d *ConfigDoc) UnitTimeoutDuration() time.Duration {
	if d.Migration.UnitTimeout == "" {
		return 0
	}
	t, err := time.ParseDuration(d.Migration.UnitTimeout)
	if err != nil {
		return 0
	}
	return t
}
