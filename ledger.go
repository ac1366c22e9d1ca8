package casedb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Status is the lifecycle state of a ledger entry.
type Status string

const (
	StatusApplied    Status = "applied"
	StatusRolledBack Status = "rolled_back"
	StatusFailed     Status = "failed"
)

// LedgerEntry is one row of the migration ledger: the persisted record of a
// migration's application. Names are unique; history is kept by updating the
// row's status, never by deleting it.
type LedgerEntry struct {
	ID         int64          `db:"id"`
	Name       string         `db:"name"`
	Checksum   string         `db:"checksum"`
	AppliedAt  string         `db:"applied_at"` // RFC 3339, UTC
	AppliedBy  sql.NullString `db:"applied_by"`
	DurationMS int64          `db:"duration_ms"`
	Status     Status         `db:"status"`
}

// Ledger reads and writes the migration ledger table.
type Ledger struct {
	db    *sqlx.DB
	table string
}

// NewLedger returns a Ledger backed by the given connection and table name.
func NewLedger(db *sqlx.DB, table string) *Ledger {
	return &Ledger{db: db, table: table}
}

// hasColumn checks for a column name (case insensitive).
func hasColumn(columns []string, name string) bool {
	for _, col := range columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// EnsureTable creates the ledger table when it is missing. Ledgers written by
// earlier application builds may predate the applied_by, duration_ms and
// status columns; those are added in place so history survives upgrades.
// SQLite's ALTER TABLE cannot attach the CHECK constraint the fresh schema
// puts on status, so on upgraded ledgers the status values are constrained
// only by this package's writes.
func (l *Ledger) EnsureTable(ctx context.Context) error {
	rows, err := l.db.QueryContext(ctx,
		fmt.Sprintf("SELECT name FROM pragma_table_info('%s');", l.table))
	if err != nil {
		return err
	}
	var columns []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			rows.Close()
			return err
		}
		columns = append(columns, col)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	rows.Close()

	var queries []string
	if len(columns) == 0 {
		queries = append(queries, fmt.Sprintf(`
          CREATE TABLE %s (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            name TEXT NOT NULL UNIQUE,
            checksum TEXT NOT NULL,
            applied_at TEXT NOT NULL DEFAULT CURRENT_TIMESTAMP,
            applied_by TEXT,
            duration_ms INTEGER NOT NULL DEFAULT 0,
            status TEXT NOT NULL DEFAULT 'applied'
              CHECK (status IN ('applied', 'rolled_back', 'failed'))
          );`, l.table))
	} else {
		if !hasColumn(columns, "applied_by") {
			queries = append(queries, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN applied_by TEXT;`, l.table))
		}
		if !hasColumn(columns, "duration_ms") {
			queries = append(queries, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN duration_ms INTEGER NOT NULL DEFAULT 0;`, l.table))
		}
		if !hasColumn(columns, "status") {
			queries = append(queries, fmt.Sprintf(`ALTER TABLE %s ADD COLUMN status TEXT NOT NULL DEFAULT 'applied';`, l.table))
		}
	}

	for _, q := range queries {
		if _, err := l.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the ledger entry for a migration name, or nil when the
// migration has never been recorded.
func (l *Ledger) Get(ctx context.Context, name string) (*LedgerEntry, error) {
	var e LedgerEntry
	query := fmt.Sprintf(
		`SELECT id, name, checksum, applied_at, applied_by, duration_ms, status
           FROM %s WHERE name = ?;`, l.table)
	if err := l.db.GetContext(ctx, &e, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &e, nil
}

// Entries returns every ledger row, oldest first.
func (l *Ledger) Entries(ctx context.Context) ([]LedgerEntry, error) {
	var entries []LedgerEntry
	query := fmt.Sprintf(
		`SELECT id, name, checksum, applied_at, applied_by, duration_ms, status
           FROM %s ORDER BY id;`, l.table)
	if err := l.db.SelectContext(ctx, &entries, query); err != nil {
		return nil, err
	}
	return entries, nil
}

// Upsert inserts a ledger entry or, when the name is already recorded,
// replaces the row's checksum, timestamp, actor, duration and status in
// place. It runs on ex so the write can share a migration's transaction.
func (l *Ledger) Upsert(ctx context.Context, ex sqlx.ExtContext, e *LedgerEntry) error {
	query := fmt.Sprintf(`
      INSERT INTO %s (name, checksum, applied_at, applied_by, duration_ms, status)
      VALUES (?, ?, ?, ?, ?, ?)
      ON CONFLICT(name) DO UPDATE SET
        checksum = excluded.checksum,
        applied_at = excluded.applied_at,
        applied_by = excluded.applied_by,
        duration_ms = excluded.duration_ms,
        status = excluded.status;`, l.table)
	_, err := ex.ExecContext(ctx, query,
		e.Name, e.Checksum, e.AppliedAt, e.AppliedBy, e.DurationMS, e.Status)
	return err
}

// UpdateStatus flips an entry's status and records the duration of the
// operation that flipped it.
func (l *Ledger) UpdateStatus(ctx context.Context, ex sqlx.ExtContext, name string, status Status, durationMS int64) error {
	query := fmt.Sprintf(`UPDATE %s SET status = ?, duration_ms = ? WHERE name = ?;`, l.table)
	res, err := ex.ExecContext(ctx, query, status, durationMS, name)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", name, ErrNotApplied)
	}
	return nil
}
