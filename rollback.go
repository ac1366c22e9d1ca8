package casedb

import (
	"context"
	"fmt"
	"time"
)

// RollbackResult reports one rollback.
type RollbackResult struct {
	// DurationMS is the wall-clock cost of the DOWN execution.
	DurationMS int64

	// BackupPath is the pre-rollback backup written before any DOWN SQL ran.
	BackupPath string
}

// Rollback reverts one applied migration by file name.
//
// Preconditions are checked in order: the ledger must hold the name in
// applied status (ErrNotApplied), the file must still exist in the store
// (ErrMigrationFileNotFound), and it must contain a DOWN section
// (ErrNoDownSection). The file's checksum is then compared against the
// recorded one; drift fails the rollback unless Config.AllowChecksumDrift is
// set, since a drifted DOWN no longer reverses what was applied.
//
// Side effects run in strict order: a timestamped backup of the database
// file is written first, then the DOWN section and the ledger flip to
// rolled_back commit in one transaction. A failing DOWN aborts the
// transaction, leaves the ledger untouched, and keeps the backup on disk as
// the recovery artifact.
func (e *Engine) Rollback(ctx context.Context, name string) (*RollbackResult, error) {
	log := loggerFrom(ctx)
	if err := e.ledger.EnsureTable(ctx); err != nil {
		return nil, err
	}
	entry, err := e.ledger.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != StatusApplied {
		return nil, fmt.Errorf("%s: %w", name, ErrNotApplied)
	}
	m, err := loadMigrationByName(e.cfg, name)
	if err != nil {
		return nil, err
	}
	if m.Down == "" {
		return nil, fmt.Errorf("%s: %w", name, ErrNoDownSection)
	}
	if m.Checksum != entry.Checksum {
		if !e.cfg.AllowChecksumDrift {
			return nil, &ChecksumError{Name: name, Recorded: entry.Checksum, Actual: m.Checksum}
		}
		log.Warn("rolling back a migration whose file changed after application", "name", name)
	}

	backupPath, err := CreateBackup(e.cfg.DatabasePath, e.cfg.ResolveBackupDir())
	if err != nil {
		return nil, fmt.Errorf("pre-rollback backup: %w", err)
	}
	log.Info("pre-rollback backup created", "path", backupPath)

	log.Debug("executing down section", "name", name, "bytes", len(m.Down))
	start := time.Now()
	tx, err := e.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, m.Down); err != nil {
		tx.Rollback()
		log.Warn("rollback failed; ledger untouched, backup kept",
			"name", name, "backup", backupPath)
		return nil, &ExecError{Migration: name, Direction: DirectionDown, Err: err}
	}
	durationMS := time.Since(start).Milliseconds()
	if err := e.ledger.UpdateStatus(ctx, tx, name, StatusRolledBack, durationMS); err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating ledger for %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing rollback of %s: %w", name, err)
	}
	log.Info("rolled back migration", "name", name, "duration_ms", durationMS)
	return &RollbackResult{DurationMS: durationMS, BackupPath: backupPath}, nil
}
