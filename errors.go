package casedb

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the migration, rollback and backup operations.
// Callers match them with errors.Is; operations that carry extra detail wrap
// them in the typed errors below.
var (
	// ErrMigrationFileNotFound indicates a migration name with no
	// corresponding file in the migrations directory.
	ErrMigrationFileNotFound = errors.New("migration file not found")

	// ErrNoDownSection indicates a rollback request for a migration whose
	// file has no DOWN block. Such migrations are rollback-ineligible.
	ErrNoDownSection = errors.New("migration has no DOWN section")

	// ErrNotApplied indicates a rollback request for a migration that has no
	// ledger entry in applied status.
	ErrNotApplied = errors.New("migration is not in applied status")

	// ErrChecksumMismatch indicates a migration file whose content no longer
	// matches the checksum recorded when it was applied.
	ErrChecksumMismatch = errors.New("migration checksum mismatch")

	// ErrSourceNotFound indicates a backup or restore whose source file does
	// not exist.
	ErrSourceNotFound = errors.New("source database file not found")
)

// ChecksumError reports a drifted migration: the ledger recorded one
// checksum at application time and the file on disk now hashes to another.
type ChecksumError struct {
	Name     string // migration file name
	Recorded string // checksum stored in the ledger
	Actual   string // checksum of the file's current content
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch for migration %q: ledger has %s, file has %s",
		e.Name, e.Recorded, e.Actual)
}

// Is reports ErrChecksumMismatch so callers can match the sentinel.
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}

// ExecError wraps a database error raised while executing a migration's UP
// or DOWN section.
type ExecError struct {
	Migration string    // migration file name
	Direction Direction // section that was executing
	Err       error
}

func (e *ExecError) Error() string {
	return fmt.Sprintf("migration %q: %s section failed: %v", e.Migration, e.Direction, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}
