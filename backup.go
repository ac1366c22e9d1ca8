package casedb

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupRecord describes one backup file. Records are derived from the
// filesystem; backups are immutable once written.
type BackupRecord struct {
	Path      string
	Name      string
	Size      int64
	CreatedAt time.Time
}

// backupStamp formats t the way backup names embed it: ISO 8601 with colons
// and periods replaced by hyphens, so the name stays filesystem-safe across
// platforms and lexical order matches chronological order.
func backupStamp(t time.Time) string {
	stamp := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	return strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
}

// CreateBackup copies the database file at sourcePath into backupDir,
// creating the directory on demand. The backup is named
// <source-stem>_<timestamp>.db and is byte-identical to the source at the
// moment of copy. A missing source fails with ErrSourceNotFound. No locking
// is performed; the single-writer model means the caller must not be
// mid-write when the copy is taken.
func CreateBackup(sourcePath, backupDir string) (string, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", sourcePath, ErrSourceNotFound)
		}
		return "", err
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s: source is a directory", sourcePath)
	}
	if err := os.MkdirAll(backupDir, 0755); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}
	stem := strings.TrimSuffix(filepath.Base(sourcePath), filepath.Ext(sourcePath))
	backupPath := filepath.Join(backupDir, fmt.Sprintf("%s_%s.db", stem, backupStamp(time.Now())))
	// O_EXCL keeps existing backups immutable even on a timestamp collision.
	if err := copyFile(sourcePath, backupPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL); err != nil {
		return "", fmt.Errorf("writing backup: %w", err)
	}
	return backupPath, nil
}

// ListBackups enumerates the .db files in backupDir, newest first, together
// with their aggregate size in bytes. A missing directory yields an empty
// listing, not an error.
func ListBackups(backupDir string) ([]BackupRecord, int64, error) {
	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, err
	}
	var records []BackupRecord
	var total int64
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".db" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			return nil, 0, err
		}
		records = append(records, BackupRecord{
			Path:      filepath.Join(backupDir, entry.Name()),
			Name:      entry.Name(),
			Size:      info.Size(),
			CreatedAt: info.ModTime(),
		})
		total += info.Size()
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].Name > records[j].Name
		}
		return records[i].CreatedAt.After(records[j].CreatedAt)
	})
	return records, total, nil
}

// RestoreBackup copies a backup over the database file at targetPath. When a
// current database exists it is backed up first, into the backup's own
// directory, and that safety copy's path is returned. Callers must hold no
// open connection to the target while restoring.
func RestoreBackup(backupPath, targetPath string) (string, error) {
	if _, err := os.Stat(backupPath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", backupPath, ErrSourceNotFound)
		}
		return "", err
	}
	var safetyPath string
	if _, err := os.Stat(targetPath); err == nil {
		safetyPath, err = CreateBackup(targetPath, filepath.Dir(backupPath))
		if err != nil {
			return "", fmt.Errorf("pre-restore backup: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return safetyPath, err
	}
	if err := copyFile(backupPath, targetPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC); err != nil {
		return safetyPath, fmt.Errorf("restoring database: %w", err)
	}
	return safetyPath, nil
}

func copyFile(src, dst string, flag int) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.OpenFile(dst, flag, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// CreateBackup backs up the engine's database file into the configured
// backup directory.
func (e *Engine) CreateBackup() (string, error) {
	return CreateBackup(e.cfg.DatabasePath, e.cfg.ResolveBackupDir())
}

// ListBackups lists the backups in the engine's configured backup directory.
func (e *Engine) ListBackups() ([]BackupRecord, int64, error) {
	return ListBackups(e.cfg.ResolveBackupDir())
}
