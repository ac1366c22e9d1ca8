// SPDX-License-Identifier: MIT

// Package main provides casedb, the command-line interface for the casedb
// migration and backup library behind Justice Companion's SQLite case store.
//
// # Install
//
//	go install github.com/justice-companion/casedb/cmd/casedb@latest
//
// # Synopsis
//
//	casedb [command] [arguments] [options]
//
// # Commands
//
//	migrate             Apply every pending migration in prefix order.
//	rollback <name>     Roll back one applied migration by file name.
//	status              Show ledger history and the migrations still pending.
//	verify              Re-checksum applied migrations and run integrity_check.
//	backup              Copy the database file into the backup directory.
//	backups             List backups, newest first, with sizes and a total.
//	restore <file>      Replace the database file with a backup (safety copy first).
//	seed                Load development fixtures into a migrated, empty database.
//	new <desc>          Scaffold an empty migration file labelled desc.
//
// # Global flags
//
//	-db string          Path to the SQLite database file. Overrides $CASEDB_PATH
//	                    and the "databasePath" field in -config.
//	-config string      Optional JSON file that mirrors casedb.Config.
//	-migrations string  Directory of *.sql migrations (default "migrations").
//	-backups string     Backup directory (default "backups" next to the database).
//	-table string       Table used to track migration state (default "migrations").
//	-applied-by string  Actor recorded on ledger rows (default: OS username).
//	-newline string     Normalize line endings before checksumming: LF, CR or CRLF.
//	-mode string        Numbering mode for new: "int" or "timestamp" (default "int").
//	-allow-drift        Warn instead of failing when applied files have changed.
//	-verbose            Log at debug level.
//	-help               Show built-in help.
//	-version            Print casedb version and commit.
//
// Precedence: -db flag, then $CASEDB_PATH, then "databasePath" in -config.
// Other flags passed explicitly on the command line override the config file.
//
// # Environment
//
//	CASEDB_PATH  Database path used when -db is omitted; overrides the
//	             "databasePath" value defined in a JSON config file.
//
// # Examples
//
//	# Apply every migration in ./migrations
//	casedb -db ./data/justice.db migrate
//
//	# Roll back one migration by file name
//	casedb -db ./data/justice.db rollback 003_audit_logs.sql
//
//	# Snapshot the database, then list what's on disk
//	casedb -db ./data/justice.db backup
//	casedb -db ./data/justice.db backups
//
//	# Create a timestamp-numbered migration called add_case_tags
//	casedb -mode timestamp new "add case tags"
//
// # Configuration file
//
// A JSON config file can replace most flags:
//
//	{
//	  "databasePath":  "./data/justice.db",
//	  "migrationsDir": "migrations",
//	  "backupDir":     "./data/backups",
//	  "ledgerTable":   "migrations"
//	}
//
// Load it with:
//
//	casedb -config ./casedb.json migrate
//
// # Exit status
//
// The program exits non-zero on any error: failed SQL, checksum drift,
// missing files, or a missing database path. Each command runs with a
// context that times out after ten minutes.
//
// For the programmatic API see the root casedb package.
//
// Generated documentation; update when flags or behaviour change.
package main
