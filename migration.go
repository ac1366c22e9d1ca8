package casedb

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
)

// Direction identifies which section of a migration is executing.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// Migration represents a single parsed migration file.
type Migration struct {
	// Sequence is the numeric prefix parsed from the file name.
	Sequence int

	// Name is the file name, e.g. "003_audit_logs.sql". It is the
	// migration's identity in the ledger.
	Name string

	// Path is the location of the file on disk.
	Path string

	// Checksum is the SHA-256 hash of the file content.
	Checksum string

	// Up is the forward SQL section.
	Up string

	// Down is the reverse SQL section. It is empty when the file has no
	// DOWN marker, which makes the migration rollback-ineligible.
	Down string
}

// Migration file names carry a numeric prefix, an underscore and a
// descriptive suffix: 003_audit_logs.sql.
var migrationNameRe = regexp.MustCompile(`^(\d+)_.+\.sql$`)

// LoadMigrations scans the migrations directory and returns every parsed
// migration ordered by numeric prefix, ascending. Files that do not match
// the <prefix>_<description>.sql convention are ignored. Two files sharing
// one numeric prefix are a configuration error.
func LoadMigrations(cfg Config) ([]Migration, error) {
	entries, err := os.ReadDir(cfg.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}
	var migrations []Migration
	seen := make(map[int]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		match := migrationNameRe.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		seq, err := strconv.Atoi(match[1])
		if err != nil {
			return nil, fmt.Errorf("migration %s: invalid numeric prefix: %w", entry.Name(), err)
		}
		if prev, ok := seen[seq]; ok {
			return nil, fmt.Errorf("duplicate migration prefix %d: %s and %s", seq, prev, entry.Name())
		}
		seen[seq] = entry.Name()
		m, err := loadMigration(filepath.Join(cfg.MigrationsDir, entry.Name()), cfg.Newline)
		if err != nil {
			return nil, err
		}
		m.Sequence = seq
		migrations = append(migrations, m)
	}
	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].Sequence < migrations[j].Sequence
	})
	return migrations, nil
}

// loadMigration reads and parses one migration file.
func loadMigration(path, newline string) (Migration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Migration{}, err
	}
	content := string(data)
	sum, err := checksum(content, newline)
	if err != nil {
		return Migration{}, err
	}
	up, down := ParseSections(content)
	return Migration{
		Name:     filepath.Base(path),
		Path:     path,
		Checksum: sum,
		Up:       up,
		Down:     down,
	}, nil
}

// loadMigrationByName loads a single migration from the store by file name.
func loadMigrationByName(cfg Config, name string) (Migration, error) {
	m, err := loadMigration(filepath.Join(cfg.MigrationsDir, name), cfg.Newline)
	if errors.Is(err, os.ErrNotExist) {
		return Migration{}, fmt.Errorf("%s: %w", name, ErrMigrationFileNotFound)
	}
	if err != nil {
		return Migration{}, err
	}
	if match := migrationNameRe.FindStringSubmatch(name); match != nil {
		if seq, err := strconv.Atoi(match[1]); err == nil {
			m.Sequence = seq
		}
	}
	return m, nil
}
