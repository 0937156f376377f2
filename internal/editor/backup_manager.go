// Package editor saves documents to disk, keeping timestamped backups of the
// files it overwrites.
package editor

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"pdf-editor/internal/logger"
)

// backupTimeFormat sorts lexicographically in time order.
const backupTimeFormat = "20060102_150405.000"

// BackupManager manages document backups for safe saving
type BackupManager struct {
	backupDir string
	now       func() time.Time
}

// NewBackupManager creates a new BackupManager
// If backupDir is empty, backups are created in the same directory as the original file
func NewBackupManager(backupDir string) *BackupManager {
	return &BackupManager{
		backupDir: backupDir,
		now:       time.Now,
	}
}

// WriteDocument writes data to path. An existing file is backed up first and
// old backups beyond keepCount are removed; keepCount <= 0 keeps them all.
// The write goes through a temp file in the same directory so a failed save
// never leaves a truncated document behind. It returns the backup path, or
// "" when there was nothing to back up.
func (m *BackupManager) WriteDocument(path string, data []byte, keepCount int) (string, error) {
	if len(data) == 0 {
		return "", fmt.Errorf("refusing to write an empty document to %s", path)
	}

	var backupPath string
	if info, err := os.Stat(path); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("path is a directory: %s", path)
		}
		if backupPath, err = m.CreateBackup(path); err != nil {
			return "", err
		}
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return backupPath, fmt.Errorf("failed to create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return backupPath, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return backupPath, fmt.Errorf("failed to write document: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return backupPath, fmt.Errorf("failed to sync document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return backupPath, fmt.Errorf("failed to close document: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return backupPath, fmt.Errorf("failed to replace document: %w", err)
	}

	logger.Info("document saved",
		logger.String("path", path),
		logger.Int("bytes", len(data)),
		logger.Bool("backedUp", backupPath != ""))

	if backupPath != "" && keepCount > 0 {
		if err := m.CleanupBackups(path, keepCount); err != nil {
			logger.Warn("backup cleanup failed", logger.Err(err), logger.String("path", path))
		}
	}
	return backupPath, nil
}

// CreateBackup creates a backup of the specified file
// Returns the path to the backup file
func (m *BackupManager) CreateBackup(path string) (string, error) {
	logger.Debug("creating backup", logger.String("path", path))

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("file does not exist: %s", path)
	}

	timestamp := m.now().Format(backupTimeFormat)
	backupName := fmt.Sprintf("%s.backup_%s", filepath.Base(path), timestamp)

	var backupPath string
	if m.backupDir != "" {
		if err := os.MkdirAll(m.backupDir, 0755); err != nil {
			logger.Error("failed to create backup directory", err)
			return "", fmt.Errorf("failed to create backup directory: %w", err)
		}
		backupPath = filepath.Join(m.backupDir, backupName)
	} else {
		backupPath = filepath.Join(filepath.Dir(path), backupName)
	}

	if err := copyFile(path, backupPath); err != nil {
		logger.Error("failed to copy file", err)
		return "", fmt.Errorf("failed to copy file: %w", err)
	}

	logger.Info("backup created successfully", logger.String("backupPath", backupPath))
	return backupPath, nil
}

// Restore restores a file from its backup
func (m *BackupManager) Restore(backupPath string, originalPath string) error {
	logger.Debug("restoring from backup",
		logger.String("backupPath", backupPath),
		logger.String("originalPath", originalPath))

	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file does not exist: %s", backupPath)
	}

	if err := copyFile(backupPath, originalPath); err != nil {
		logger.Error("failed to restore backup", err)
		return fmt.Errorf("failed to restore backup: %w", err)
	}

	logger.Info("file restored from backup successfully")
	return nil
}

// ListBackups lists all backups for a given file, newest first
func (m *BackupManager) ListBackups(path string) ([]string, error) {
	searchDir := m.backupDir
	if searchDir == "" {
		searchDir = filepath.Dir(path)
	}

	entries, err := os.ReadDir(searchDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	var backups []string
	prefix := filepath.Base(path) + ".backup_"
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), prefix) {
			backups = append(backups, filepath.Join(searchDir, entry.Name()))
		}
	}

	sort.Sort(sort.Reverse(sort.StringSlice(backups)))
	return backups, nil
}

// CleanupBackups removes old backups, keeping only the most recent N backups
func (m *BackupManager) CleanupBackups(path string, keepCount int) error {
	logger.Debug("cleaning up backups",
		logger.String("path", path),
		logger.Int("keepCount", keepCount))

	backups, err := m.ListBackups(path)
	if err != nil {
		return err
	}

	removed := 0
	for i := keepCount; i < len(backups); i++ {
		if err := os.Remove(backups[i]); err != nil {
			logger.Warn("failed to remove backup", logger.Err(err), logger.String("path", backups[i]))
			continue
		}
		removed++
	}

	logger.Info("backup cleanup completed",
		logger.Int("totalBackups", len(backups)),
		logger.Int("kept", min(len(backups), keepCount)),
		logger.Int("removed", removed))
	return nil
}

// DeleteBackup deletes a specific backup file
func (m *BackupManager) DeleteBackup(backupPath string) error {
	if err := os.Remove(backupPath); err != nil {
		return fmt.Errorf("failed to delete backup: %w", err)
	}
	logger.Info("backup deleted", logger.String("backupPath", backupPath))
	return nil
}

// GetLatestBackup returns the path to the most recent backup for a file
func (m *BackupManager) GetLatestBackup(path string) (string, error) {
	backups, err := m.ListBackups(path)
	if err != nil {
		return "", err
	}
	if len(backups) == 0 {
		return "", fmt.Errorf("no backups found for file: %s", path)
	}
	return backups[0], nil
}

// copyFile copies a file from src to dst
func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}
	defer sourceFile.Close()

	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}
	if err := destFile.Sync(); err != nil {
		return err
	}

	sourceInfo, err := os.Stat(src)
	if err != nil {
		return err
	}
	return os.Chmod(dst, sourceInfo.Mode())
}
