package logger

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestLogger creates a debug-level logger writing into a temp directory
func newTestLogger(t *testing.T, maxSize int64) (*DefaultLogger, string) {
	t.Helper()
	logPath := filepath.Join(t.TempDir(), "editor.log")

	l, err := NewDefaultLogger(&Config{
		LogFilePath: logPath,
		MaxFileSize: maxSize,
		MaxBackups:  2,
		Level:       LevelDebug,
	})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return l, logPath
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	return string(content)
}

func TestNewDefaultLogger(t *testing.T) {
	l, logPath := newTestLogger(t, 1024)
	defer l.Close()

	if _, err := os.Stat(logPath); os.IsNotExist(err) {
		t.Error("Log file was not created")
	}
}

func TestLogLevelsAndFields(t *testing.T) {
	l, logPath := newTestLogger(t, 1024*1024)

	l.Debug("render queued", Page(3))
	l.Info("document loaded", Int("pages", 12), String("name", "report.pdf"))
	l.Warn("zoom clamped", Float64("zoom", 0.25))
	l.Error("mutation failed", errors.New("boom"), Bool("restored", true))
	l.Close()

	content := readLog(t, logPath)
	for _, want := range []string{
		"[DEBUG] render queued page=3",
		"[INFO] document loaded pages=12 name=report.pdf",
		"[WARN] zoom clamped zoom=0.25",
		`[ERROR] mutation failed error="boom" restored=true`,
		"Stack trace:",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q\n%s", want, content)
		}
	}
}

func TestLogLevelFiltering(t *testing.T) {
	l, logPath := newTestLogger(t, 1024*1024)
	l.SetLevel(LevelWarn)

	l.Debug("hidden debug")
	l.Info("hidden info")
	l.Warn("visible warn")
	l.Close()

	content := readLog(t, logPath)
	if strings.Contains(content, "hidden") {
		t.Errorf("entries below the level were written:\n%s", content)
	}
	if !strings.Contains(content, "visible warn") {
		t.Error("warn entry missing")
	}
}

func TestWithAddsFields(t *testing.T) {
	l, logPath := newTestLogger(t, 1024*1024)

	scoped := l.With(String("component", "render"))
	scoped.With(Int("generation", 4)).Info("frame presented", Page(1))
	// closing a scoped logger must not close the file
	scoped.Close()
	l.Info("still open")
	l.Close()

	content := readLog(t, logPath)
	if !strings.Contains(content, "frame presented component=render generation=4 page=1") {
		t.Errorf("scoped fields missing:\n%s", content)
	}
	if !strings.Contains(content, "still open") {
		t.Error("parent logger closed by scoped Close")
	}
}

func TestLogRotation(t *testing.T) {
	l, logPath := newTestLogger(t, 120)

	for i := 0; i < 30; i++ {
		l.Info("page rendered at the requested zoom level", Int("i", i))
	}
	l.Close()

	if _, err := os.Stat(logPath + ".1"); os.IsNotExist(err) {
		t.Error("Backup log file was not created after rotation")
	}
	if _, err := os.Stat(logPath + ".3"); err == nil {
		t.Error("rotation kept more backups than configured")
	}
}

func TestWriteAfterCloseIsIgnored(t *testing.T) {
	l, logPath := newTestLogger(t, 1024)
	l.Close()
	l.Info("after close")

	if strings.Contains(readLog(t, logPath), "after close") {
		t.Error("entry written after Close")
	}
}

func TestGlobalAndNamedLogger(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "global.log")

	// created before Init on purpose
	named := Named("session")

	if err := Init(&Config{LogFilePath: logPath, MaxFileSize: 1 << 20, MaxBackups: 1, Level: LevelDebug}); err != nil {
		t.Fatalf("Failed to initialize global logger: %v", err)
	}

	Debug("global debug")
	Warn("global warn")
	named.Info("undo applied", Int("index", 2))
	Close()

	content := readLog(t, logPath)
	for _, want := range []string{"global debug", "global warn", "undo applied component=session index=2"} {
		if !strings.Contains(content, want) {
			t.Errorf("global log missing %q", want)
		}
	}
}

func TestNoopLogger(t *testing.T) {
	SetGlobalLogger(nil)

	Debug("test")
	Info("test")
	Error("test", nil)
	Named("tool").With(Page(1)).Warn("test")

	if GetLogger() == nil {
		t.Error("GetLogger should return noop logger, not nil")
	}
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.LogFilePath != "pdf-editor.log" {
		t.Errorf("LogFilePath = %q", config.LogFilePath)
	}
	if config.Level != LevelInfo {
		t.Errorf("Level = %v, want INFO", config.Level)
	}
	if config.MaxFileSize <= 0 || config.MaxBackups <= 0 {
		t.Error("rotation limits should be positive")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{" WARN ", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"info", LevelInfo},
		{"verbose", LevelInfo},
		{"", LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}

	if Level(99).String() != "UNKNOWN" {
		t.Error("unknown level should stringify as UNKNOWN")
	}
}

func TestFieldHelpers(t *testing.T) {
	if f := Err(nil); f.Key != "error" || f.Value != nil {
		t.Errorf("Err(nil) = %+v", f)
	}
	if f := Duration("took", 1500*time.Microsecond); f.Value != "1.5ms" {
		t.Errorf("Duration = %v, want 1.5ms", f.Value)
	}
	if f := Uint64("gen", 7); f.Value != uint64(7) {
		t.Errorf("Uint64 = %v", f.Value)
	}
}

func TestLogDirectoryCreation(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "logs", "editor.log")

	l, err := NewDefaultLogger(&Config{LogFilePath: logPath, Level: LevelInfo})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	defer l.Close()

	if _, err := os.Stat(filepath.Dir(logPath)); os.IsNotExist(err) {
		t.Error("Log directory was not created")
	}
}

func TestConsoleOnlyLogger(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	l, err := NewDefaultLogger(&Config{Level: LevelError, EnableConsole: true})
	if err != nil {
		t.Fatalf("console-only logger failed: %v", err)
	}
	l.Debug("filtered")
	if err := l.Close(); err != nil {
		t.Errorf("Close() returned error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("console-only logger created files: %v", entries)
	}
}
