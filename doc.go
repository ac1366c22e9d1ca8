// SPDX-License-Identifier: MIT

// Package casedb implements the database migration and versioning engine
// behind Justice Companion's local SQLite case store. It loads *.sql
// migration files with UP/DOWN sections, tracks application state in a
// ledger table with content checksums, applies pending migrations inside
// per-migration transactions, and rolls migrations back behind an automatic
// pre-rollback backup of the database file.
//
// # Install
//
//	go get github.com/justice-companion/casedb@latest
//
// # Quick start
//
//	import (
//	    "context"
//
//	    "github.com/jmoiron/sqlx"
//	    _ "github.com/mattn/go-sqlite3"
//
//	    "github.com/justice-companion/casedb"
//	)
//
//	func main() {
//	    db, _ := sqlx.Open("sqlite3", "./data/justice.db")
//	    cfg := casedb.Config{
//	        DatabasePath:  "./data/justice.db",
//	        MigrationsDir: "migrations",
//	    }
//
//	    e, _ := casedb.New(cfg, db)
//	    e.ApplyPending(context.Background())
//	}
//
// # Configuration
//
// Use Config to tweak behaviour:
//
//   - DatabasePath       - the SQLite file both engines operate on
//   - MigrationsDir      - directory of *.sql migration files (default "migrations")
//   - BackupDir          - backup directory (default: "backups" next to the database)
//   - LedgerTable        - table that stores migration state (default "migrations")
//   - AppliedBy          - actor tag on ledger rows (default: OS username)
//   - Newline            - line-ending normalization before checksumming
//   - AllowChecksumDrift - downgrade checksum mismatches to warnings
//
// You can merge Config with your own JSON file or set it inline.
//
// # Migration files
//
// A migration is one file named with a sortable numeric prefix:
//
//	003_audit_logs.sql
//
// Inside, a line of the form "-- UP" (case-insensitive) begins the forward
// SQL and an optional "-- DOWN" line begins the reverse SQL. A file without
// markers is treated as all UP; a migration without a DOWN section cannot be
// rolled back. The CLI's new command scaffolds these files for you.
//
// # Programmatic API
//
//	New(cfg, db)                      → *Engine
//	(*Engine).ApplyPending(ctx)       → *ApplyResult, error
//	(*Engine).Rollback(ctx, name)     → *RollbackResult, error
//	(*Engine).Status(ctx)             → *StatusReport, error
//	(*Engine).Verify(ctx)             → []Drift, error
//	(*Engine).Seed(ctx)               → int, error
//	CreateBackup(source, dir)         → backup path, error
//	ListBackups(dir)                  → []BackupRecord, total size, error
//	RestoreBackup(backup, target)     → safety copy path, error
//
// Database operations are context-aware; cancel the context to abort long
// runs. Engine operations log through the context logger installed with
// ContextWithLogger, defaulting to slog.Default.
//
// # Safety model
//
// Each migration's UP (or rollback's DOWN) runs in a single transaction
// together with its ledger write, so the schema and the ledger cannot drift
// apart on failure. Rollbacks always copy the database file aside before any
// DOWN SQL runs; a failed DOWN leaves the ledger untouched and the backup on
// disk. Checksums recorded at application time are re-verified on every run
// and mismatches fail closed unless configured otherwise.
//
// # CLI helper
//
// If you prefer shell commands, install the companion binary:
//
//	go install github.com/justice-companion/casedb/cmd/casedb@latest
//
// See the cmd/casedb package doc for commands and flags.
//
// # Exit codes
//
// The library returns errors; the CLI exits with non-zero status on any
// failure. ChecksumError and ExecError carry the migration name for easy
// triage.
//
// # Versioning
//
// A semantic version string is exposed as:
//
//	var Version = "vX.Y.Z"
//
// Embed it in your own commands to surface casedb's build version.
//
// Generated documentation; update whenever public API or CLI flags change.
package casedb
