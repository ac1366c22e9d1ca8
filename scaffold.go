package casedb

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// migrationTemplate is the scaffold content for new migration files.
const migrationTemplate = `-- UP
-- SQL applied when this migration runs.


-- DOWN
-- SQL applied when this migration is rolled back.
`

// CreateMigration scaffolds a new migration file in the migrations directory
// (created on demand) and returns its path. The description is snake-cased
// into the file name's descriptive suffix. mode selects the numeric prefix:
// "int" (default) continues the zero-padded sequence, "timestamp" uses the
// current Unix timestamp.
func CreateMigration(cfg Config, description, mode string) (string, error) {
	cfg = cfg.withDefaults()
	desc := snakeCase(description)
	if desc == "" {
		return "", fmt.Errorf("description must contain at least one letter or digit")
	}
	if err := os.MkdirAll(cfg.MigrationsDir, 0755); err != nil {
		return "", fmt.Errorf("creating migrations directory: %w", err)
	}

	var prefix string
	if strings.ToLower(mode) == "timestamp" {
		prefix = strconv.FormatInt(time.Now().Unix(), 10)
	} else {
		// Default: integer mode with triple zero-padding.
		entries, err := os.ReadDir(cfg.MigrationsDir)
		if err != nil {
			return "", fmt.Errorf("failed to scan migration files: %w", err)
		}
		max := 0
		for _, entry := range entries {
			match := migrationNameRe.FindStringSubmatch(entry.Name())
			if match == nil {
				continue
			}
			num, err := strconv.Atoi(match[1])
			if err != nil {
				continue
			}
			if num > max {
				max = num
			}
		}
		prefix = fmt.Sprintf("%03d", max+1)
	}

	path := filepath.Join(cfg.MigrationsDir, fmt.Sprintf("%s_%s.sql", prefix, desc))
	if err := os.WriteFile(path, []byte(migrationTemplate), 0644); err != nil {
		return "", fmt.Errorf("failed to create migration file %s: %w", path, err)
	}
	return path, nil
}

// snakeCase converts a description to snake_case for use in file names.
func snakeCase(s string) string {
	// Lowercase and trim spaces.
	s = strings.ToLower(strings.TrimSpace(s))
	// Replace any non-alphanumeric sequence with a single underscore.
	re := regexp.MustCompile("[^a-z0-9]+")
	s = re.ReplaceAllString(s, "_")
	// Trim any underscores from the beginning or end.
	return strings.Trim(s, "_")
}

// CreateMigration scaffolds a new migration using the engine's
// configuration.
func (e *Engine) CreateMigration(description, mode string) (string, error) {
	return CreateMigration(e.cfg, description, mode)
}
