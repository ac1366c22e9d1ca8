package casedb

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Engine orchestrates migration application, verification and rollback
// against a single SQLite database file.
//
// It loads migration files from the store, validates recorded checksums
// against the files' current content, applies pending migrations in prefix
// order inside per-migration transactions, and keeps the ledger in step with
// every schema change.
type Engine struct {
	cfg    Config
	db     *sqlx.DB
	ledger *Ledger
}

// New creates an Engine from the configuration and an open connection.
// Zero-valued configuration fields are merged with DefaultConfig. The
// connection is owned by the caller and is never closed by the engine.
func New(cfg Config, db *sqlx.DB) (*Engine, error) {
	cfg = cfg.withDefaults()
	if cfg.Newline != "" {
		if _, err := convertLineEnding("", cfg.Newline); err != nil {
			return nil, err
		}
	}
	return &Engine{
		cfg:    cfg,
		db:     db,
		ledger: NewLedger(db, cfg.LedgerTable),
	}, nil
}

// ApplyResult reports one ApplyPending run.
type ApplyResult struct {
	// AppliedCount is the number of migrations applied by this run.
	AppliedCount int

	// Entries holds the ledger rows written for those migrations, in
	// application order.
	Entries []LedgerEntry
}

// ApplyPending applies every pending migration in prefix order. Pending
// means: present in the store with no ledger row, or with a row in
// rolled_back or failed status. Each migration's UP section and its ledger
// row are committed in one transaction, so a later migration's failure never
// undoes an earlier migration's success. Running again with nothing pending
// applies zero migrations and returns no error.
//
// Before anything is applied, every applied ledger row is checked against
// its file's current checksum. A mismatch stops the run with an error
// matching ErrChecksumMismatch, unless Config.AllowChecksumDrift downgrades
// it to a warning.
//
// Application is fail-fast: the first failing migration halts the run, its
// transaction is rolled back leaving the schema untouched, and a failed
// ledger row is recorded for it. The result returned alongside the error
// covers the migrations that did apply.
func (e *Engine) ApplyPending(ctx context.Context) (*ApplyResult, error) {
	log := loggerFrom(ctx)
	if err := e.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(e.cfg)
	if err != nil {
		return nil, err
	}
	entries, err := e.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]LedgerEntry, len(entries))
	for _, en := range entries {
		recorded[en.Name] = en
	}
	if err := e.validateChecksums(ctx, migrations, recorded); err != nil {
		return nil, err
	}

	result := &ApplyResult{}
	for _, m := range migrations {
		if en, ok := recorded[m.Name]; ok && en.Status == StatusApplied {
			continue
		}
		entry, err := e.applyOne(ctx, m)
		if err != nil {
			return result, err
		}
		result.AppliedCount++
		result.Entries = append(result.Entries, entry)
		log.Info("applied migration", "name", m.Name, "duration_ms", entry.DurationMS)
	}
	if result.AppliedCount == 0 {
		log.Debug("no pending migrations")
	}
	return result, nil
}

// validateChecksums compares each applied ledger row against the current
// content of its migration file. An applied row whose file has vanished from
// the store is logged at Warn and reported by Verify.
func (e *Engine) validateChecksums(ctx context.Context, migrations []Migration, recorded map[string]LedgerEntry) error {
	log := loggerFrom(ctx)
	byName := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byName[m.Name] = m
	}
	for _, m := range migrations {
		en, ok := recorded[m.Name]
		if !ok || en.Status != StatusApplied {
			continue
		}
		if m.Checksum == en.Checksum {
			continue
		}
		if e.cfg.AllowChecksumDrift {
			log.Warn("migration file changed after application",
				"name", m.Name, "recorded", en.Checksum, "actual", m.Checksum)
			continue
		}
		return &ChecksumError{Name: m.Name, Recorded: en.Checksum, Actual: m.Checksum}
	}
	for name, en := range recorded {
		if en.Status != StatusApplied {
			continue
		}
		if _, ok := byName[name]; !ok {
			log.Warn("applied migration file missing from store", "name", name)
		}
	}
	return nil
}

// applyOne runs a single migration's UP section and its ledger upsert in one
// transaction. On failure the transaction is rolled back, leaving the schema
// untouched, and a failed ledger row is recorded outside the transaction.
func (e *Engine) applyOne(ctx context.Context, m Migration) (LedgerEntry, error) {
	entry := LedgerEntry{
		Name:      m.Name,
		Checksum:  m.Checksum,
		AppliedAt: time.Now().UTC().Format(time.RFC3339),
		AppliedBy: actor(e.cfg.AppliedBy),
		Status:    StatusApplied,
	}

	loggerFrom(ctx).Debug("executing up section", "name", m.Name, "bytes", len(m.Up))
	start := time.Now()
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return LedgerEntry{}, err
	}
	if m.Up != "" {
		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			entry.DurationMS = time.Since(start).Milliseconds()
			entry.Status = StatusFailed
			e.recordFailure(ctx, &entry)
			return LedgerEntry{}, &ExecError{Migration: m.Name, Direction: DirectionUp, Err: err}
		}
	}
	entry.DurationMS = time.Since(start).Milliseconds()
	if err := e.ledger.Upsert(ctx, tx, &entry); err != nil {
		tx.Rollback()
		return LedgerEntry{}, fmt.Errorf("recording migration %s: %w", m.Name, err)
	}
	if err := tx.Commit(); err != nil {
		return LedgerEntry{}, fmt.Errorf("committing migration %s: %w", m.Name, err)
	}
	return entry, nil
}

// recordFailure writes the failed ledger row after a migration's transaction
// has been rolled back. Failed rows stay pending, so a retry needs no manual
// cleanup.
func (e *Engine) recordFailure(ctx context.Context, entry *LedgerEntry) {
	if err := e.ledger.Upsert(ctx, e.db, entry); err != nil {
		loggerFrom(ctx).Warn("could not record failed migration",
			"name", entry.Name, "error", err)
	}
}

// StatusReport pairs the full ledger with the migrations still pending in
// the store.
type StatusReport struct {
	Entries []LedgerEntry
	Pending []Migration
}

// Status reports every ledger row plus the migrations ApplyPending would run
// next.
func (e *Engine) Status(ctx context.Context) (*StatusReport, error) {
	if err := e.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(e.cfg)
	if err != nil {
		return nil, err
	}
	entries, err := e.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}
	recorded := make(map[string]LedgerEntry, len(entries))
	for _, en := range entries {
		recorded[en.Name] = en
	}
	report := &StatusReport{Entries: entries}
	for _, m := range migrations {
		if en, ok := recorded[m.Name]; !ok || en.Status != StatusApplied {
			report.Pending = append(report.Pending, m)
		}
	}
	return report, nil
}

// Drift describes one applied migration whose store content no longer
// matches the ledger: the file hashes differently, or it is gone.
type Drift struct {
	Name     string
	Recorded string // checksum stored in the ledger
	Actual   string // current file checksum; empty when the file is missing
	Missing  bool
}

// Verify re-checksums every applied migration against the store and reports
// drifted or missing files. An empty report means the store matches the
// ledger.
func (e *Engine) Verify(ctx context.Context) ([]Drift, error) {
	if err := e.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}
	migrations, err := LoadMigrations(e.cfg)
	if err != nil {
		return nil, err
	}
	byName := make(map[string]Migration, len(migrations))
	for _, m := range migrations {
		byName[m.Name] = m
	}
	entries, err := e.ledger.Entries(ctx)
	if err != nil {
		return nil, err
	}
	var drifts []Drift
	for _, en := range entries {
		if en.Status != StatusApplied {
			continue
		}
		m, ok := byName[en.Name]
		if !ok {
			drifts = append(drifts, Drift{Name: en.Name, Recorded: en.Checksum, Missing: true})
			continue
		}
		if m.Checksum != en.Checksum {
			drifts = append(drifts, Drift{Name: en.Name, Recorded: en.Checksum, Actual: m.Checksum})
		}
	}
	return drifts, nil
}

func actor(appliedBy string) sql.NullString {
	return sql.NullString{String: appliedBy, Valid: appliedBy != ""}
}
