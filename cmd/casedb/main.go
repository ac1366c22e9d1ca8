// Package main implements the casedb CLI, the migration and backup tool for
// Justice Companion's SQLite case database. It accepts the database path via
// the -db flag or CASEDB_PATH environment variable (typically a file path
// like "./data/justice.db") along with options for migrations and backups.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/justice-companion/casedb"
)

var versionString = casedb.Version

// usage prints the help text.
func usage() {
	header := `Usage:
  casedb [command] [arguments] [options]

Commands:
  migrate             Apply every pending migration in prefix order.
  rollback <name>     Roll back one applied migration by file name.
  status              Show ledger history and pending migrations.
  verify              Check ledger checksums and database integrity.
  backup              Copy the database file into the backup directory.
  backups             List backups, newest first, with sizes.
  restore <file>      Replace the database file with a backup.
  seed                Load development fixtures into a migrated database.
  new <desc>          Create a new migration file with the provided description.

Options:`
	fmt.Fprintln(os.Stderr, header)
	flag.PrintDefaults()
}

func main() {
	// Define global flags.
	dbPath := flag.String("db", "", "Path to the SQLite database file (e.g., \"./data/justice.db\"). Can also be set via CASEDB_PATH env var.")
	configPath := flag.String("config", "", "Path to JSON configuration file (optional)")
	migrationsDir := flag.String("migrations", "migrations", "Directory holding *.sql migration files")
	backupDir := flag.String("backups", "", "Directory for backups (default: \"backups\" next to the database)")
	ledgerTable := flag.String("table", "migrations", "Name of the migration ledger table")
	appliedBy := flag.String("applied-by", "", "Actor recorded on ledger rows (default: OS username)")
	newline := flag.String("newline", "", "Normalize line endings before checksumming (\"LF\", \"CR\" or \"CRLF\")")
	mode := flag.String("mode", "int", "Migration numbering mode (\"int\" or \"timestamp\") for new command")
	allowDrift := flag.Bool("allow-drift", false, "Warn instead of failing when applied migration files have changed")
	verbose := flag.Bool("verbose", false, "Log at debug level")
	helpFlag := flag.Bool("help", false, "Show help message")
	versionFlag := flag.Bool("version", false, "Show version")

	flag.Usage = usage
	flag.Parse()

	// Safeguard: check for any flag-like arguments after positional arguments.
	for _, arg := range flag.Args() {
		if strings.HasPrefix(arg, "-") {
			fmt.Fprintln(os.Stderr, "Error: Flags must be specified before the command. Please reorder your arguments.")
			usage()
			os.Exit(1)
		}
	}

	// Process global flags.
	if *helpFlag {
		usage()
		os.Exit(0)
	}
	if *versionFlag {
		fmt.Printf("casedb version: %s (commit %s)\n", versionString, casedb.GitCommit)
		os.Exit(0)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	// Load configuration from file if provided. Flags passed explicitly on
	// the command line win over values from the file.
	cliConfig := casedb.Config{
		DatabasePath:       *dbPath,
		MigrationsDir:      *migrationsDir,
		BackupDir:          *backupDir,
		LedgerTable:        *ledgerTable,
		AppliedBy:          *appliedBy,
		Newline:            *newline,
		AllowChecksumDrift: *allowDrift,
	}
	if *configPath != "" {
		if err := loadConfig(*configPath, &cliConfig); err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config file: %v\n", err)
			os.Exit(1)
		}
		flag.Visit(func(f *flag.Flag) {
			switch f.Name {
			case "migrations":
				cliConfig.MigrationsDir = *migrationsDir
			case "backups":
				cliConfig.BackupDir = *backupDir
			case "table":
				cliConfig.LedgerTable = *ledgerTable
			case "applied-by":
				cliConfig.AppliedBy = *appliedBy
			case "newline":
				cliConfig.Newline = *newline
			case "allow-drift":
				cliConfig.AllowChecksumDrift = *allowDrift
			}
		})
	}

	// Process positional arguments.
	args := flag.Args()
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "Error: no command provided.")
		usage()
		os.Exit(1)
	}
	command := args[0]

	switch command {
	case "migrate":
		withDB(cliConfig, *dbPath, logger, func(e *casedb.Engine, db *sqlx.DB, ctx context.Context) {
			fmt.Printf("[%s] Applying pending migrations...\n", time.Now().Format(time.Kitchen))
			res, err := e.ApplyPending(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Migration error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("[%s] Applied %d migration(s):\n", time.Now().Format(time.Kitchen), res.AppliedCount)
			for _, en := range res.Entries {
				fmt.Printf("  - %s (%d ms)\n", en.Name, en.DurationMS)
			}
		})
	case "rollback":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: a migration name is required for the rollback command.")
			usage()
			os.Exit(1)
		}
		name := args[1]
		withDB(cliConfig, *dbPath, logger, func(e *casedb.Engine, db *sqlx.DB, ctx context.Context) {
			fmt.Printf("[%s] Rolling back %s...\n", time.Now().Format(time.Kitchen), name)
			res, err := e.Rollback(ctx, name)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Rollback error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("[%s] Rolled back %s in %d ms.\n", time.Now().Format(time.Kitchen), name, res.DurationMS)
			fmt.Printf("  - Backup: %s\n", res.BackupPath)
		})
	case "status":
		withDB(cliConfig, *dbPath, logger, func(e *casedb.Engine, db *sqlx.DB, ctx context.Context) {
			report, err := e.Status(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Status error: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Ledger:")
			if len(report.Entries) == 0 {
				fmt.Println("  (empty)")
			}
			for _, en := range report.Entries {
				by := "-"
				if en.AppliedBy.Valid {
					by = en.AppliedBy.String
				}
				fmt.Printf("  %-11s %s  %s  by %s (%d ms)\n", en.Status, en.Name, en.AppliedAt, by, en.DurationMS)
			}
			fmt.Println("Pending:")
			if len(report.Pending) == 0 {
				fmt.Println("  (none)")
			}
			for _, m := range report.Pending {
				fmt.Printf("  %s\n", m.Name)
			}
		})
	case "verify":
		withDB(cliConfig, *dbPath, logger, func(e *casedb.Engine, db *sqlx.DB, ctx context.Context) {
			drifts, err := e.Verify(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Verify error: %v\n", err)
				os.Exit(1)
			}
			var integrity string
			if err := db.GetContext(ctx, &integrity, "PRAGMA integrity_check"); err != nil {
				fmt.Fprintf(os.Stderr, "Integrity check error: %v\n", err)
				os.Exit(1)
			}
			type indexRow struct {
				Name  string `db:"name"`
				Table string `db:"tbl_name"`
			}
			var indexes []indexRow
			if err := db.SelectContext(ctx, &indexes,
				"SELECT name, tbl_name FROM sqlite_master WHERE type = 'index' AND name NOT LIKE 'sqlite_%' ORDER BY tbl_name, name"); err != nil {
				fmt.Fprintf(os.Stderr, "Error listing indexes: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("Integrity check: %s\n", integrity)
			fmt.Printf("Indexes (%d):\n", len(indexes))
			for _, ix := range indexes {
				fmt.Printf("  - %s on %s\n", ix.Name, ix.Table)
			}
			if len(drifts) == 0 && integrity == "ok" {
				fmt.Printf("[%s] Verified: ledger matches the migration files.\n", time.Now().Format(time.Kitchen))
				return
			}
			for _, d := range drifts {
				if d.Missing {
					fmt.Fprintf(os.Stderr, "Drift: %s is applied but its file is missing\n", d.Name)
				} else {
					fmt.Fprintf(os.Stderr, "Drift: %s recorded checksum %s, file is now %s\n", d.Name, d.Recorded, d.Actual)
				}
			}
			os.Exit(1)
		})
	case "backup":
		cfg := resolveDatabase(cliConfig, *dbPath)
		fmt.Printf("[%s] Backing up %s...\n", time.Now().Format(time.Kitchen), cfg.DatabasePath)
		path, err := casedb.CreateBackup(cfg.DatabasePath, cfg.ResolveBackupDir())
		if err != nil {
			fmt.Fprintf(os.Stderr, "Backup error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[%s] Backup created: %s\n", time.Now().Format(time.Kitchen), path)
		if info, err := os.Stat(path); err == nil {
			fmt.Printf("  - Size: %s\n", humanize.IBytes(uint64(info.Size())))
		}
	case "backups":
		dir := cliConfig.BackupDir
		if dir == "" {
			dir = resolveDatabase(cliConfig, *dbPath).ResolveBackupDir()
		}
		records, total, err := casedb.ListBackups(dir)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error listing backups: %v\n", err)
			os.Exit(1)
		}
		if len(records) == 0 {
			fmt.Printf("No backups in %s.\n", dir)
			return
		}
		fmt.Printf("Backups in %s (newest first):\n", dir)
		for _, r := range records {
			fmt.Printf("  %s  %9s  %s\n", r.CreatedAt.UTC().Format(time.RFC3339), humanize.IBytes(uint64(r.Size)), r.Name)
		}
		fmt.Printf("Total: %d backup(s), %s\n", len(records), humanize.IBytes(uint64(total)))
	case "restore":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: a backup file is required for the restore command.")
			usage()
			os.Exit(1)
		}
		backupFile := args[1]
		cfg := resolveDatabase(cliConfig, *dbPath)
		fmt.Printf("[%s] Restoring %s from %s...\n", time.Now().Format(time.Kitchen), cfg.DatabasePath, backupFile)
		safety, err := casedb.RestoreBackup(backupFile, cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Restore error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[%s] Database restored.\n", time.Now().Format(time.Kitchen))
		if safety != "" {
			fmt.Printf("  - Previous database saved to: %s\n", safety)
		}
	case "seed":
		withDB(cliConfig, *dbPath, logger, func(e *casedb.Engine, db *sqlx.DB, ctx context.Context) {
			fmt.Printf("[%s] Seeding development fixtures...\n", time.Now().Format(time.Kitchen))
			n, err := e.Seed(ctx)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Seed error: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("[%s] Seeded %d row(s).\n", time.Now().Format(time.Kitchen), n)
		})
	case "new":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "Error: a description is required for the new command.")
			usage()
			os.Exit(1)
		}
		description := args[1]
		fmt.Printf("[%s] Creating new migration with description '%s' in %s mode...\n", time.Now().Format(time.Kitchen), description, *mode)
		path, err := casedb.CreateMigration(cliConfig, description, *mode)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating new migration: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("[%s] Created %s\n", time.Now().Format(time.Kitchen), path)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		usage()
		os.Exit(1)
	}
}

// resolveDatabase settles the database path: the -db flag wins, then the
// CASEDB_PATH environment variable, then the config file value. A blank
// result is fatal.
func resolveDatabase(cliConfig casedb.Config, flagPath string) casedb.Config {
	path := flagPath
	if path == "" {
		path = os.Getenv("CASEDB_PATH")
	}
	if path == "" {
		path = cliConfig.DatabasePath
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "Error: database path must be provided via -db flag, CASEDB_PATH environment variable, or a config file")
		usage()
		os.Exit(1)
	}
	cliConfig.DatabasePath = path
	return cliConfig
}

func withDB(cliConfig casedb.Config, flagPath string, logger *slog.Logger, f func(e *casedb.Engine, db *sqlx.DB, ctx context.Context)) {
	cfg := resolveDatabase(cliConfig, flagPath)

	db, err := sqlx.Open("sqlite3", cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	e, err := casedb.New(cfg, db)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing casedb: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx = casedb.ContextWithLogger(ctx, logger)

	f(e, db, ctx)
}

func loadConfig(path string, cfg *casedb.Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return json.NewDecoder(f).Decode(cfg)
}
