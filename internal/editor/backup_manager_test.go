package editor

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// steppingClock returns a time one second later on every call.
func steppingClock() func() time.Time {
	t := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestWriteDocument_NewFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "doc.pdf")

	m := NewBackupManager("")
	backup, err := m.WriteDocument(path, []byte("%PDF-1.7 one"), 3)
	if err != nil {
		t.Fatalf("WriteDocument() error = %v", err)
	}
	if backup != "" {
		t.Errorf("expected no backup for a new file, got %s", backup)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "%PDF-1.7 one" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteDocument_BacksUpAndCleansUp(t *testing.T) {
	dir := t.TempDir()
	backupDir := filepath.Join(dir, "backups")
	path := filepath.Join(dir, "doc.pdf")
	if err := os.WriteFile(path, []byte("v0"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewBackupManager(backupDir)
	m.now = steppingClock()

	var last string
	for i := 1; i <= 4; i++ {
		backup, err := m.WriteDocument(path, []byte{'v', byte('0' + i)}, 2)
		if err != nil {
			t.Fatalf("WriteDocument(%d) error = %v", i, err)
		}
		if backup == "" {
			t.Fatalf("WriteDocument(%d) made no backup", i)
		}
		last = backup
	}

	backups, err := m.ListBackups(path)
	if err != nil {
		t.Fatalf("ListBackups() error = %v", err)
	}
	if len(backups) != 2 {
		t.Fatalf("expected 2 backups after cleanup, got %d: %v", len(backups), backups)
	}
	if backups[0] != last {
		t.Errorf("newest backup = %s, want %s", backups[0], last)
	}

	// the newest backup holds the content that was overwritten last
	data, err := os.ReadFile(backups[0])
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "v3" {
		t.Errorf("newest backup content = %q, want v3", data)
	}

	latest, err := m.GetLatestBackup(path)
	if err != nil || latest != last {
		t.Errorf("GetLatestBackup() = %s, %v", latest, err)
	}

	if err := m.Restore(latest, path); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	data, _ = os.ReadFile(path)
	if string(data) != "v3" {
		t.Errorf("restored content = %q, want v3", data)
	}

	if err := m.DeleteBackup(latest); err != nil {
		t.Fatalf("DeleteBackup() error = %v", err)
	}
	backups, _ = m.ListBackups(path)
	if len(backups) != 1 {
		t.Errorf("expected 1 backup after delete, got %d", len(backups))
	}
}

func TestWriteDocument_Rejects(t *testing.T) {
	dir := t.TempDir()
	m := NewBackupManager("")

	if _, err := m.WriteDocument(filepath.Join(dir, "a.pdf"), nil, 1); err == nil {
		t.Error("expected error for empty data")
	}
	if _, err := m.WriteDocument(dir, []byte("x"), 1); err == nil {
		t.Error("expected error when path is a directory")
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 0 {
		t.Errorf("rejected writes left files behind: %v", entries)
	}
}

func TestCreateBackup_MissingFile(t *testing.T) {
	m := NewBackupManager("")
	if _, err := m.CreateBackup(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := m.GetLatestBackup(filepath.Join(t.TempDir(), "missing.pdf")); err == nil {
		t.Error("expected error when there are no backups")
	}
}
