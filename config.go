package casedb

import (
	"os/user"
	"path/filepath"
)

// Config holds settings for the migration engine and its utilities.
type Config struct {
	// DatabasePath is the path to the SQLite database file.
	DatabasePath string

	// MigrationsDir is the directory holding *.sql migration files
	// (default "migrations").
	MigrationsDir string

	// BackupDir is the directory for timestamped database backups. When
	// empty, a "backups" directory next to the database file is used.
	BackupDir string

	// LedgerTable is the name of the table tracking applied migrations
	// (default "migrations").
	LedgerTable string

	// AppliedBy is the actor tag recorded on ledger rows. When empty, the
	// current OS username is recorded.
	AppliedBy string

	// Newline, when set, normalizes line endings ("LF", "CR" or "CRLF")
	// before checksumming so checkouts on different platforms hash alike.
	Newline string

	// AllowChecksumDrift downgrades checksum mismatches from errors to
	// warnings. The default is fail-closed: an edited migration file stops
	// the engine.
	AllowChecksumDrift bool
}

// DefaultConfig provides default values for configuration.
var DefaultConfig = Config{
	MigrationsDir: "migrations",
	LedgerTable:   "migrations",
}

// ResolveBackupDir returns the configured backup directory, or the "backups"
// sibling of the database file when none is configured.
func (c Config) ResolveBackupDir() string {
	if c.BackupDir != "" {
		return c.BackupDir
	}
	return filepath.Join(filepath.Dir(c.DatabasePath), "backups")
}

func (c Config) withDefaults() Config {
	if c.MigrationsDir == "" {
		c.MigrationsDir = DefaultConfig.MigrationsDir
	}
	if c.LedgerTable == "" {
		c.LedgerTable = DefaultConfig.LedgerTable
	}
	if c.AppliedBy == "" {
		if u, err := user.Current(); err == nil {
			c.AppliedBy = u.Username
		}
	}
	return c
}
