package audit

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pagekeep/pagekeep/internal/constants"
	"gopkg.in/yaml.v3"
)

// The file sink keeps one yaml document per calendar day. Every append reads
// the existing list, appends, and rewrites the whole file. Volumes on this
// path are tiny (it only carries entries made while the audit table was
// unavailable), so the rewrite cost is irrelevant.

func (t *Trail) fileForDay(day time.Time) string {
	name := constants.AuditFilePrefix + day.UTC().Format(constants.AuditFileDateFormat) + constants.AuditFileExt
	return filepath.Join(t.dir, name)
}

func (t *Trail) appendToFile(e Entry) error {
	if t.dir == "" {
		return fmt.Errorf("no fallback directory configured")
	}
	if err := os.MkdirAll(t.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create audit fallback directory: %w", err)
	}

	path := t.fileForDay(time.Now())
	entries, err := readEntryFile(path)
	if err != nil {
		return err
	}
	entries = append(entries, e)

	b, err := yaml.Marshal(entries)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entries: %w", err)
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return fmt.Errorf("failed to write audit fallback file: %w", err)
	}
	return nil
}

// FileEntries returns the entries recorded to the fallback sink on the given
// day. A day with no fallback file yields an empty list.
func (t *Trail) FileEntries(day time.Time) ([]Entry, error) {
	return readEntryFile(t.fileForDay(day))
}

func readEntryFile(path string) ([]Entry, error) {
	clean := filepath.Clean(path)
	// #nosec G304 -- path is derived from the configured fallback directory
	b, err := os.ReadFile(clean)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audit fallback file: %w", err)
	}
	var entries []Entry
	if err := yaml.Unmarshal(b, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode audit fallback file %s: %w", clean, err)
	}
	return entries, nil
}
