package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"pdf-editor/internal/types"
)

func TestNewConfigManager(t *testing.T) {
	t.Run("with custom path", func(t *testing.T) {
		customPath := filepath.Join(t.TempDir(), "custom.json")
		cm, err := NewConfigManager(customPath)
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if cm.GetConfigPath() != customPath {
			t.Errorf("expected config path %s, got %s", customPath, cm.GetConfigPath())
		}
	})

	t.Run("with empty path uses default", func(t *testing.T) {
		cm, err := NewConfigManager("")
		if err != nil {
			t.Fatalf("NewConfigManager failed: %v", err)
		}
		if filepath.Base(cm.GetConfigPath()) != DefaultConfigFileName {
			t.Errorf("unexpected default config path %s", cm.GetConfigPath())
		}
	})
}

func TestConfigManager_LoadSave(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "nested", "test-config.json")

	t.Run("Load with non-existent file uses defaults", func(t *testing.T) {
		cm, _ := NewConfigManager(configPath)
		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		config := cm.GetConfig()
		if config.HistoryLimit != DefaultHistoryLimit {
			t.Errorf("expected history limit %d, got %d", DefaultHistoryLimit, config.HistoryLimit)
		}
		if config.ViewMode != DefaultViewMode {
			t.Errorf("expected view mode %s, got %s", DefaultViewMode, config.ViewMode)
		}
	})

	t.Run("Save creates config file", func(t *testing.T) {
		cm, _ := NewConfigManager(configPath)
		cm.SetConfig(&types.Config{
			DefaultZoom:  1.5,
			ViewMode:     "grid",
			HistoryLimit: 20,
			Rasterizer:   "poppler",
			FontSize:     11,
		})
		if err := cm.Save(); err != nil {
			t.Fatalf("Save failed: %v", err)
		}

		info, err := os.Stat(configPath)
		if err != nil {
			t.Fatalf("config file not created: %v", err)
		}
		if info.Mode().Perm() != 0600 {
			t.Errorf("expected mode 0600, got %v", info.Mode().Perm())
		}
	})

	t.Run("Load reads saved values and fills the rest", func(t *testing.T) {
		cm, _ := NewConfigManager(configPath)
		if err := cm.Load(); err != nil {
			t.Fatalf("Load failed: %v", err)
		}

		config := cm.GetConfig()
		if config.DefaultZoom != 1.5 || config.ViewMode != "grid" || config.HistoryLimit != 20 {
			t.Errorf("saved values not loaded: %+v", config)
		}
		if config.FontName != DefaultFontName {
			t.Errorf("expected font %s to be defaulted, got %q", DefaultFontName, config.FontName)
		}
		if config.StrokeWidth != DefaultStrokeWidth {
			t.Errorf("expected stroke width default, got %v", config.StrokeWidth)
		}
	})
}

func TestConfigManager_InvalidFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "broken.json")
	if err := os.WriteFile(configPath, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}

	cm, _ := NewConfigManager(configPath)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load should fall back to defaults, got %v", err)
	}
	if cm.GetRasterizer() != DefaultRasterizer && os.Getenv(EnvRasterizer) == "" {
		t.Errorf("expected default rasterizer, got %s", cm.GetRasterizer())
	}
}

func TestConfigManager_OutOfRangeZoom(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "zoom.json")
	data, _ := json.Marshal(map[string]interface{}{"default_zoom": 12.0})
	if err := os.WriteFile(configPath, data, 0600); err != nil {
		t.Fatal(err)
	}

	cm, _ := NewConfigManager(configPath)
	if err := cm.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cm.GetDefaultZoom() != DefaultZoom {
		t.Errorf("expected zoom %v, got %v", DefaultZoom, cm.GetDefaultZoom())
	}
}

func TestConfigManager_Getters(t *testing.T) {
	cm := &ConfigManager{}

	tests := []struct {
		name string
		got  interface{}
		want interface{}
	}{
		{"zoom", cm.GetDefaultZoom(), DefaultZoom},
		{"view mode", cm.GetViewMode(), DefaultViewMode},
		{"history", cm.GetHistoryLimit(), DefaultHistoryLimit},
		{"dpi", cm.GetRenderDPI(), DefaultRenderDPI},
		{"font", cm.GetFontName(), DefaultFontName},
		{"font size", cm.GetFontSize(), DefaultFontSize},
		{"color", cm.GetColor(), DefaultColor},
		{"stroke", cm.GetStrokeWidth(), DefaultStrokeWidth},
		{"backups", cm.GetBackupKeepCount(), DefaultBackupKeepCount},
		{"work dir", cm.GetWorkDirectory(), ""},
		{"last file", cm.GetLastFile(), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}
}

func TestConfigManager_RasterizerEnv(t *testing.T) {
	cm, _ := NewConfigManager(filepath.Join(t.TempDir(), "c.json"))

	t.Setenv(EnvRasterizer, "")
	if got := cm.GetRasterizer(); got != DefaultRasterizer {
		t.Errorf("expected %s, got %s", DefaultRasterizer, got)
	}

	t.Setenv(EnvRasterizer, " Poppler ")
	if got := cm.GetRasterizer(); got != "poppler" {
		t.Errorf("env override not applied, got %s", got)
	}
}

func TestConfigManager_UpdateConfig(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "update.json")
	cm, _ := NewConfigManager(configPath)

	if err := cm.UpdateConfig(2, "paired", "", 0, "Courier", 0, "#ff0000", 0, ""); err != nil {
		t.Fatalf("UpdateConfig failed: %v", err)
	}

	reloaded, _ := NewConfigManager(configPath)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c := reloaded.GetConfig()
	if c.DefaultZoom != 2 || c.ViewMode != "paired" || c.FontName != "Courier" || c.Color != "#ff0000" {
		t.Errorf("updated values not persisted: %+v", c)
	}
	if c.HistoryLimit != DefaultHistoryLimit {
		t.Errorf("zero history limit should keep default, got %d", c.HistoryLimit)
	}
}

func TestConfigManager_RecentFiles(t *testing.T) {
	cm, _ := NewConfigManager(filepath.Join(t.TempDir(), "recent.json"))

	for i := 0; i < MaxRecentFiles+3; i++ {
		cm.AddRecentFile(filepath.Join("docs", string(rune('a'+i))+".pdf"), i+1)
	}
	cm.AddRecentFile(filepath.Join("docs", "c.pdf"), 3)

	recent := cm.GetRecentFiles()
	if len(recent) != MaxRecentFiles {
		t.Fatalf("expected %d recent files, got %d", MaxRecentFiles, len(recent))
	}
	if recent[0].Path != filepath.Join("docs", "c.pdf") {
		t.Errorf("re-opened file should move to front, got %s", recent[0].Path)
	}
	seen := map[string]bool{}
	for _, f := range recent {
		if seen[f.Path] {
			t.Errorf("duplicate recent entry %s", f.Path)
		}
		seen[f.Path] = true
	}
	if cm.GetLastFile() != filepath.Join("docs", "c.pdf") {
		t.Errorf("last file not updated: %s", cm.GetLastFile())
	}

	if err := cm.ClearRecentFiles(); err != nil {
		t.Fatalf("ClearRecentFiles failed: %v", err)
	}
	if len(cm.GetRecentFiles()) != 0 || cm.GetLastFile() != "" {
		t.Error("recent files not cleared")
	}
}
