package migration

import (
	"errors"
	"fmt"
)

// ErrLocked is returned by Run when another migration run holds the lock file.
var ErrLocked = errors.New("another migration run is in progress (lock file present)")

// InitError reports that the bookkeeping table could not be created. It is
// fatal to startup: nothing about the schema can be trusted without it.
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("migration engine initialization failed: %v", e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

// UnitApplyError reports that a unit's apply logic failed. The unit's
// transaction was rolled back; no partial effect of the unit persists.
type UnitApplyError struct {
	Name string
	Err  error
}

func (e *UnitApplyError) Error() string {
	return fmt.Sprintf("migration %s failed: %v", e.Name, e.Err)
}

func (e *UnitApplyError) Unwrap() error { return e.Err }

// BookkeepingError reports that a unit applied cleanly but its record could
// not be written (or committed). The transaction is rolled back: a unit
// without its record is not durably applied.
type BookkeepingError struct {
	Name string
	Err  error
}

func (e *BookkeepingError) Error() string {
	return fmt.Sprintf("recording migration %s failed: %v", e.Name, e.Err)
}

func (e *BookkeepingError) Unwrap() error { return e.Err }
