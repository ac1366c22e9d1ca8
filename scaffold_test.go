package casedb_test

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/justice-companion/casedb"
)

// TestCreateMigrationIntMode verifies that integer mode continues the
// zero-padded sequence and writes the UP/DOWN template.
func TestCreateMigrationIntMode(t *testing.T) {
	dir := t.TempDir()
	cfg := casedb.Config{MigrationsDir: dir}

	path, err := casedb.CreateMigration(cfg, "Add case tags", "int")
	if err != nil {
		t.Fatalf("CreateMigration failed: %v", err)
	}
	if filepath.Base(path) != "001_add_case_tags.sql" {
		t.Errorf("expected 001_add_case_tags.sql, got %s", filepath.Base(path))
	}

	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read scaffolded migration: %v", err)
	}
	if !strings.Contains(string(content), "-- UP") || !strings.Contains(string(content), "-- DOWN") {
		t.Errorf("expected UP and DOWN markers in the template, got:\n%s", content)
	}
	if !strings.Contains(string(content), "SQL applied when this migration runs.") {
		t.Errorf("template content not as expected: %s", content)
	}

	// The next scaffold continues from the highest existing prefix.
	path2, err := casedb.CreateMigration(cfg, "drop case tags", "int")
	if err != nil {
		t.Fatalf("second CreateMigration failed: %v", err)
	}
	if filepath.Base(path2) != "002_drop_case_tags.sql" {
		t.Errorf("expected 002_drop_case_tags.sql, got %s", filepath.Base(path2))
	}
}

// TestCreateMigrationTimestampMode verifies that timestamp mode uses the
// current Unix time as the prefix.
func TestCreateMigrationTimestampMode(t *testing.T) {
	dir := t.TempDir()
	cfg := casedb.Config{MigrationsDir: dir}

	path, err := casedb.CreateMigration(cfg, "Fix bug", "timestamp")
	if err != nil {
		t.Fatalf("CreateMigration failed: %v", err)
	}
	base := filepath.Base(path)
	if !strings.HasSuffix(base, "_fix_bug.sql") {
		t.Errorf("unexpected scaffold name %s", base)
	}
	prefix := strings.SplitN(base, "_", 2)[0]
	stamp, err := strconv.ParseInt(prefix, 10, 64)
	if err != nil {
		t.Fatalf("expected a numeric timestamp prefix, got %s", prefix)
	}
	if time.Since(time.Unix(stamp, 0)) > time.Minute {
		t.Errorf("timestamp %d seems too old", stamp)
	}
}

// TestCreateMigrationScaffoldLoads verifies the store accepts a scaffolded
// file as-is.
func TestCreateMigrationScaffoldLoads(t *testing.T) {
	dir := t.TempDir()
	cfg := casedb.Config{MigrationsDir: dir}
	if _, err := casedb.CreateMigration(cfg, "add case tags", "int"); err != nil {
		t.Fatalf("CreateMigration failed: %v", err)
	}
	migrations, err := casedb.LoadMigrations(cfg)
	if err != nil {
		t.Fatalf("LoadMigrations failed: %v", err)
	}
	if len(migrations) != 1 || migrations[0].Sequence != 1 {
		t.Fatalf("expected the scaffold to load with sequence 1, got %+v", migrations)
	}
}

// TestCreateMigrationBadDescription verifies a description with no usable
// characters is rejected.
func TestCreateMigrationBadDescription(t *testing.T) {
	_, err := casedb.CreateMigration(casedb.Config{MigrationsDir: t.TempDir()}, "///", "int")
	if err == nil {
		t.Fatal("expected an error for an unusable description")
	}
}

// TestCreateMigrationCreatesDir verifies the migrations directory is created
// on demand.
func TestCreateMigrationCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "migrations")
	path, err := casedb.CreateMigration(casedb.Config{MigrationsDir: dir}, "first", "int")
	if err != nil {
		t.Fatalf("CreateMigration failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected the scaffold on disk: %v", err)
	}
}
