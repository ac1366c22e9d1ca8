package casedb_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/justice-companion/casedb"
)

// tableExists checks whether a table exists in the SQLite database.
func tableExists(t *testing.T, db *sqlx.DB, name string) bool {
	t.Helper()
	var cnt int
	err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`, name).Scan(&cnt)
	if err != nil {
		t.Fatalf("failed to query sqlite_master: %v", err)
	}
	return cnt > 0
}

// ledgerStatus reads a migration's recorded status straight from the default
// ledger table; empty string means no row.
func ledgerStatus(t *testing.T, db *sqlx.DB, name string) string {
	t.Helper()
	var status string
	err := db.QueryRow(`SELECT status FROM migrations WHERE name = ?`, name).Scan(&status)
	if err != nil {
		return ""
	}
	return status
}

// newEngine builds an engine over a fresh file-backed database.
func newEngine(t *testing.T, cfg casedb.Config) (*casedb.Engine, *sqlx.DB) {
	t.Helper()
	db, path := openTestDB(t)
	cfg.DatabasePath = path
	e, err := casedb.New(cfg, db)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return e, db
}

// TestApplyPendingChain runs the three-file store in testdata/migrations and
// checks ordering, ledger rows and idempotence.
func TestApplyPendingChain(t *testing.T) {
	ctx := context.Background()
	e, db := newEngine(t, casedb.Config{MigrationsDir: "testdata/migrations"})

	res, err := e.ApplyPending(ctx)
	if err != nil {
		t.Fatalf("ApplyPending failed: %v", err)
	}
	if res.AppliedCount != 3 {
		t.Fatalf("expected 3 applied migrations, got %d", res.AppliedCount)
	}
	wantOrder := []string{"001_init.sql", "002_add_col.sql", "003_index.sql"}
	for i, want := range wantOrder {
		if res.Entries[i].Name != want {
			t.Errorf("expected entry %d to be %s, got %s", i, want, res.Entries[i].Name)
		}
		if res.Entries[i].Status != casedb.StatusApplied {
			t.Errorf("expected %s to be applied, got %s", want, res.Entries[i].Status)
		}
		if res.Entries[i].Checksum == "" {
			t.Errorf("expected a checksum on %s", want)
		}
	}
	if !tableExists(t, db, "widgets") {
		t.Error("expected widgets table after migration")
	}

	t.Run("Second Run Applies Nothing", func(t *testing.T) {
		res, err := e.ApplyPending(ctx)
		if err != nil {
			t.Fatalf("second ApplyPending failed: %v", err)
		}
		if res.AppliedCount != 0 {
			t.Errorf("expected 0 applied migrations on rerun, got %d", res.AppliedCount)
		}
	})

	t.Run("Status Shows Nothing Pending", func(t *testing.T) {
		report, err := e.Status(ctx)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		if len(report.Entries) != 3 {
			t.Errorf("expected 3 ledger rows, got %d", len(report.Entries))
		}
		if len(report.Pending) != 0 {
			t.Errorf("expected nothing pending, got %d", len(report.Pending))
		}
		for _, en := range report.Entries {
			if !en.AppliedBy.Valid || en.AppliedBy.String == "" {
				t.Errorf("expected an actor on %s", en.Name)
			}
		}
	})

	t.Run("Verify Reports No Drift", func(t *testing.T) {
		drifts, err := e.Verify(ctx)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if len(drifts) != 0 {
			t.Errorf("expected no drift, got %+v", drifts)
		}
	})
}

// TestApplyPendingFailFast verifies that a failing migration halts the run,
// leaves the schema untouched by the failed section, and records a failed
// ledger row that stays pending for retry.
func TestApplyPendingFailFast(t *testing.T) {
	ctx := context.Background()
	e, db := newEngine(t, casedb.Config{MigrationsDir: "testdata/failMigrations"})

	res, err := e.ApplyPending(ctx)
	if err == nil {
		t.Fatal("expected the broken migration to fail the run")
	}
	var execErr *casedb.ExecError
	if !errors.As(err, &execErr) {
		t.Fatalf("expected an ExecError, got %T: %v", err, err)
	}
	if execErr.Migration != "002_broken.sql" || execErr.Direction != casedb.DirectionUp {
		t.Errorf("unexpected failure detail: %+v", execErr)
	}
	if res.AppliedCount != 1 {
		t.Errorf("expected the run to stop after 1 applied migration, got %d", res.AppliedCount)
	}

	// 001 committed, 002's partial work rolled back with its transaction.
	if !tableExists(t, db, "widgets") {
		t.Error("expected widgets from the first migration to survive")
	}
	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM widgets`).Scan(&rows); err != nil {
		t.Fatalf("failed to count widgets: %v", err)
	}
	if rows != 0 {
		t.Errorf("expected no rows in widgets after the failed migration, got %d", rows)
	}

	if got := ledgerStatus(t, db, "002_broken.sql"); got != "failed" {
		t.Errorf("expected a failed ledger row for 002_broken.sql, got %q", got)
	}

	t.Run("Failed Row Stays Pending", func(t *testing.T) {
		report, err := e.Status(ctx)
		if err != nil {
			t.Fatalf("Status failed: %v", err)
		}
		found := false
		for _, m := range report.Pending {
			if m.Name == "002_broken.sql" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected 002_broken.sql to stay pending, got %+v", report.Pending)
		}
	})
}

// TestApplyPendingDuplicatePrefix verifies a store with two files sharing a
// numeric prefix refuses to run.
func TestApplyPendingDuplicatePrefix(t *testing.T) {
	ctx := context.Background()
	e, _ := newEngine(t, casedb.Config{MigrationsDir: "testdata/duplicateMigrations"})
	if _, err := e.ApplyPending(ctx); err == nil {
		t.Fatal("expected a duplicate prefix error, got none")
	}
}

// TestChecksumDriftFailsClosed verifies that editing an applied migration
// blocks later runs until the drift is allowed explicitly.
func TestChecksumDriftFailsClosed(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMigrationFile(t, dir, "001_tables.sql", "-- UP\nCREATE TABLE drifted (id INTEGER);\n-- DOWN\nDROP TABLE drifted;\n")

	e, db := newEngine(t, casedb.Config{MigrationsDir: dir})
	if _, err := e.ApplyPending(ctx); err != nil {
		t.Fatalf("ApplyPending failed: %v", err)
	}

	// Edit the applied file so its checksum no longer matches the ledger.
	writeMigrationFile(t, dir, "001_tables.sql", "-- UP\nCREATE TABLE drifted (id INTEGER, edited TEXT);\n-- DOWN\nDROP TABLE drifted;\n")
	writeMigrationFile(t, dir, "002_more.sql", "-- UP\nCREATE TABLE more (id INTEGER);\n")

	_, err := e.ApplyPending(ctx)
	if !errors.Is(err, casedb.ErrChecksumMismatch) {
		t.Fatalf("expected a checksum mismatch, got %v", err)
	}
	var ce *casedb.ChecksumError
	if !errors.As(err, &ce) || ce.Name != "001_tables.sql" {
		t.Errorf("expected the drifted file to be named, got %v", err)
	}
	if tableExists(t, db, "more") {
		t.Error("expected the run to stop before applying 002_more.sql")
	}

	t.Run("Verify Names The Drift", func(t *testing.T) {
		drifts, err := e.Verify(ctx)
		if err != nil {
			t.Fatalf("Verify failed: %v", err)
		}
		if len(drifts) != 1 || drifts[0].Name != "001_tables.sql" || drifts[0].Missing {
			t.Fatalf("expected one drift for 001_tables.sql, got %+v", drifts)
		}
		if drifts[0].Recorded == drifts[0].Actual {
			t.Errorf("expected recorded and actual checksums to differ")
		}
	})

	t.Run("AllowChecksumDrift Downgrades To Warning", func(t *testing.T) {
		lenient, err := casedb.New(casedb.Config{
			MigrationsDir:      dir,
			AllowChecksumDrift: true,
		}, db)
		if err != nil {
			t.Fatalf("failed to create lenient engine: %v", err)
		}
		res, err := lenient.ApplyPending(ctx)
		if err != nil {
			t.Fatalf("expected the lenient engine to proceed, got %v", err)
		}
		if res.AppliedCount != 1 {
			t.Errorf("expected 002_more.sql to apply, got %d applied", res.AppliedCount)
		}
		if !tableExists(t, db, "more") {
			t.Error("expected more table after lenient run")
		}
	})
}

// TestVerifyMissingFile verifies that deleting an applied migration's file
// surfaces as a missing drift from Verify while ApplyPending keeps working.
func TestVerifyMissingFile(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMigrationFile(t, dir, "001_tables.sql", "-- UP\nCREATE TABLE vanished (id INTEGER);\n-- DOWN\nDROP TABLE vanished;\n")

	e, _ := newEngine(t, casedb.Config{MigrationsDir: dir})
	if _, err := e.ApplyPending(ctx); err != nil {
		t.Fatalf("ApplyPending failed: %v", err)
	}
	if err := os.Remove(filepath.Join(dir, "001_tables.sql")); err != nil {
		t.Fatalf("failed to remove migration file: %v", err)
	}

	drifts, err := e.Verify(ctx)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if len(drifts) != 1 {
		t.Fatalf("expected one drift for the vanished file, got %+v", drifts)
	}
	if drifts[0].Name != "001_tables.sql" || !drifts[0].Missing {
		t.Errorf("expected 001_tables.sql reported as missing, got %+v", drifts[0])
	}
	if drifts[0].Recorded == "" || drifts[0].Actual != "" {
		t.Errorf("expected the recorded checksum and no actual one, got %+v", drifts[0])
	}

	t.Run("ApplyPending Still Proceeds", func(t *testing.T) {
		// The vanished file warns; it must not block later migrations.
		writeMigrationFile(t, dir, "002_more.sql", "-- UP\nCREATE TABLE survives (id INTEGER);\n")
		res, err := e.ApplyPending(ctx)
		if err != nil {
			t.Fatalf("ApplyPending failed after file removal: %v", err)
		}
		if res.AppliedCount != 1 {
			t.Errorf("expected 002_more.sql to apply, got %d applied", res.AppliedCount)
		}
	})
}

// TestReapplyAfterRollback verifies the apply, roll back, re-apply cycle
// keeps a single ledger row per name, flipping its status in place.
func TestReapplyAfterRollback(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMigrationFile(t, dir, "001_tables.sql", "-- UP\nCREATE TABLE cycle (id INTEGER);\n-- DOWN\nDROP TABLE cycle;\n")

	e, db := newEngine(t, casedb.Config{MigrationsDir: dir, BackupDir: t.TempDir()})
	if _, err := e.ApplyPending(ctx); err != nil {
		t.Fatalf("ApplyPending failed: %v", err)
	}
	if _, err := e.Rollback(ctx, "001_tables.sql"); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}
	if got := ledgerStatus(t, db, "001_tables.sql"); got != "rolled_back" {
		t.Fatalf("expected rolled_back after rollback, got %q", got)
	}

	res, err := e.ApplyPending(ctx)
	if err != nil {
		t.Fatalf("re-apply failed: %v", err)
	}
	if res.AppliedCount != 1 {
		t.Fatalf("expected the rolled-back migration to re-apply, got %d", res.AppliedCount)
	}

	var rows int
	if err := db.QueryRow(`SELECT COUNT(*) FROM migrations WHERE name = ?`, "001_tables.sql").Scan(&rows); err != nil {
		t.Fatalf("failed to count ledger rows: %v", err)
	}
	if rows != 1 {
		t.Errorf("expected exactly one ledger row for the name, got %d", rows)
	}
	if got := ledgerStatus(t, db, "001_tables.sql"); got != "applied" {
		t.Errorf("expected applied after re-apply, got %q", got)
	}
	if !tableExists(t, db, "cycle") {
		t.Error("expected cycle table after re-apply")
	}
}

// TestNewRejectsBadNewline verifies constructor validation of the newline
// style.
func TestNewRejectsBadNewline(t *testing.T) {
	db, path := openTestDB(t)
	_, err := casedb.New(casedb.Config{DatabasePath: path, Newline: "UNIX"}, db)
	if err == nil {
		t.Fatal("expected an error for an unknown newline style")
	}
}
