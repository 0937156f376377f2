// Package config provides configuration management for the PDF editor.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"pdf-editor/internal/logger"
	"pdf-editor/internal/types"
)

const (
	// DefaultConfigFileName is the default configuration file name
	DefaultConfigFileName = "pdf-editor-config.json"
	// EnvRasterizer overrides the configured rasterizer backend
	EnvRasterizer = "PDF_EDITOR_RASTERIZER"
	// DefaultZoom is the zoom a freshly opened document starts at
	DefaultZoom = 1.0
	// DefaultViewMode is the page layout used when none is configured
	DefaultViewMode = "continuous"
	// DefaultHistoryLimit is the number of undo snapshots kept per document
	DefaultHistoryLimit = 50
	// DefaultRasterizer is the page rendering backend
	DefaultRasterizer = "pdfium"
	// DefaultRenderDPI is used by the command line renderer
	DefaultRenderDPI = 150
	// DefaultFontName is a standard 14 font, always available to the stamper
	DefaultFontName = "Helvetica"
	// DefaultFontSize is in points
	DefaultFontSize = 14.0
	// DefaultColor is used for new text and drawings
	DefaultColor = "#000000"
	// DefaultStrokeWidth is in points
	DefaultStrokeWidth = 2.0
	// DefaultBackupKeepCount is how many backups SaveDocument keeps per file
	DefaultBackupKeepCount = 5
	// MaxRecentFiles bounds the recent file list
	MaxRecentFiles = 10
)

// ConfigManager manages application configuration
type ConfigManager struct {
	configPath string
	config     *types.Config
}

// NewConfigManager creates a new ConfigManager with the specified config path.
// If configPath is empty, it uses the default path in user's home directory.
func NewConfigManager(configPath string) (*ConfigManager, error) {
	if configPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			logger.Error("failed to get user home directory", err)
			return nil, types.NewAppError(types.ErrConfig, "failed to get user home directory", err)
		}
		configPath = filepath.Join(homeDir, ".config", "pdf-editor", DefaultConfigFileName)
	}

	logger.Info("ConfigManager initialized", logger.String("configPath", configPath))
	return &ConfigManager{
		configPath: configPath,
		config:     defaultConfig(),
	}, nil
}

// defaultConfig returns a Config with default values
func defaultConfig() *types.Config {
	return &types.Config{
		DefaultZoom:     DefaultZoom,
		ViewMode:        DefaultViewMode,
		HistoryLimit:    DefaultHistoryLimit,
		Rasterizer:      DefaultRasterizer,
		RenderDPI:       DefaultRenderDPI,
		FontName:        DefaultFontName,
		FontSize:        DefaultFontSize,
		Color:           DefaultColor,
		StrokeWidth:     DefaultStrokeWidth,
		BackupKeepCount: DefaultBackupKeepCount,
	}
}

// Load loads configuration from the config file.
// A missing or unparsable file leaves the defaults in place.
func (m *ConfigManager) Load() error {
	logger.Debug("loading configuration", logger.String("path", m.configPath))

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Info("config file not found, using defaults", logger.String("path", m.configPath))
			m.config = defaultConfig()
		} else {
			logger.Error("failed to read config file", err, logger.String("path", m.configPath))
			return types.NewAppError(types.ErrConfig, "failed to read config file", err)
		}
	} else {
		config := &types.Config{}
		if err := json.Unmarshal(data, config); err != nil {
			logger.Warn("invalid config file format, using defaults", logger.String("path", m.configPath), logger.Err(err))
			m.config = defaultConfig()
		} else {
			logger.Info("configuration loaded successfully",
				logger.String("path", m.configPath),
				logger.String("rasterizer", config.Rasterizer),
				logger.String("viewMode", config.ViewMode),
				logger.Int("recentFiles", len(config.RecentFiles)))
			m.config = config
		}
	}

	m.applyDefaults()
	return nil
}

// applyDefaults fills zero or out-of-range fields
func (m *ConfigManager) applyDefaults() {
	d := defaultConfig()
	c := m.config
	if c.DefaultZoom < 0.25 || c.DefaultZoom > 4 {
		c.DefaultZoom = d.DefaultZoom
	}
	if c.ViewMode == "" {
		c.ViewMode = d.ViewMode
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = d.HistoryLimit
	}
	if c.Rasterizer == "" {
		c.Rasterizer = d.Rasterizer
	}
	if c.RenderDPI <= 0 {
		c.RenderDPI = d.RenderDPI
	}
	if c.FontName == "" {
		c.FontName = d.FontName
	}
	if c.FontSize <= 0 {
		c.FontSize = d.FontSize
	}
	if c.Color == "" {
		c.Color = d.Color
	}
	if c.StrokeWidth <= 0 {
		c.StrokeWidth = d.StrokeWidth
	}
	if c.BackupKeepCount <= 0 {
		c.BackupKeepCount = d.BackupKeepCount
	}
}

// Save saves the current configuration to the config file.
func (m *ConfigManager) Save() error {
	logger.Debug("saving configuration", logger.String("path", m.configPath))

	dir := filepath.Dir(m.configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		logger.Error("failed to create config directory", err, logger.String("dir", dir))
		return types.NewAppError(types.ErrConfig, "failed to create config directory", err)
	}

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		logger.Error("failed to marshal config", err)
		return types.NewAppError(types.ErrConfig, "failed to marshal config", err)
	}

	if err := os.WriteFile(m.configPath, data, 0600); err != nil {
		logger.Error("failed to write config file", err, logger.String("path", m.configPath))
		return types.NewAppError(types.ErrConfig, "failed to write config file", err)
	}

	logger.Info("configuration saved successfully", logger.String("path", m.configPath))
	return nil
}

// GetConfig returns the current configuration.
func (m *ConfigManager) GetConfig() *types.Config {
	if m.config == nil {
		return defaultConfig()
	}
	return m.config
}

// SetConfig sets the entire configuration.
func (m *ConfigManager) SetConfig(config *types.Config) {
	m.config = config
}

// GetConfigPath returns the path to the config file.
func (m *ConfigManager) GetConfigPath() string {
	return m.configPath
}

// GetRasterizer returns the rendering backend name.
// The environment variable takes precedence over the config file.
func (m *ConfigManager) GetRasterizer() string {
	if env := strings.ToLower(strings.TrimSpace(os.Getenv(EnvRasterizer))); env != "" {
		return env
	}
	if m.config != nil && m.config.Rasterizer != "" {
		return m.config.Rasterizer
	}
	return DefaultRasterizer
}

// GetDefaultZoom returns the initial zoom for opened documents.
func (m *ConfigManager) GetDefaultZoom() float64 {
	if m.config != nil && m.config.DefaultZoom >= 0.25 && m.config.DefaultZoom <= 4 {
		return m.config.DefaultZoom
	}
	return DefaultZoom
}

// GetViewMode returns the configured page layout.
func (m *ConfigManager) GetViewMode() string {
	if m.config != nil && m.config.ViewMode != "" {
		return m.config.ViewMode
	}
	return DefaultViewMode
}

// GetHistoryLimit returns the undo snapshot cap.
func (m *ConfigManager) GetHistoryLimit() int {
	if m.config != nil && m.config.HistoryLimit > 0 {
		return m.config.HistoryLimit
	}
	return DefaultHistoryLimit
}

// GetRenderDPI returns the DPI for exported page images.
func (m *ConfigManager) GetRenderDPI() int {
	if m.config != nil && m.config.RenderDPI > 0 {
		return m.config.RenderDPI
	}
	return DefaultRenderDPI
}

// GetFontName returns the font used for baked text.
func (m *ConfigManager) GetFontName() string {
	if m.config != nil && m.config.FontName != "" {
		return m.config.FontName
	}
	return DefaultFontName
}

// GetFontSize returns the default text size in points.
func (m *ConfigManager) GetFontSize() float64 {
	if m.config != nil && m.config.FontSize > 0 {
		return m.config.FontSize
	}
	return DefaultFontSize
}

// GetColor returns the default annotation color.
func (m *ConfigManager) GetColor() string {
	if m.config != nil && m.config.Color != "" {
		return m.config.Color
	}
	return DefaultColor
}

// GetStrokeWidth returns the default drawing stroke width.
func (m *ConfigManager) GetStrokeWidth() float64 {
	if m.config != nil && m.config.StrokeWidth > 0 {
		return m.config.StrokeWidth
	}
	return DefaultStrokeWidth
}

// GetBackupKeepCount returns how many backups to keep per saved file.
func (m *ConfigManager) GetBackupKeepCount() int {
	if m.config != nil && m.config.BackupKeepCount > 0 {
		return m.config.BackupKeepCount
	}
	return DefaultBackupKeepCount
}

// GetWorkDirectory returns the work directory.
func (m *ConfigManager) GetWorkDirectory() string {
	if m.config != nil {
		return m.config.WorkDirectory
	}
	return ""
}

// UpdateConfig updates the editing defaults and saves them.
// Zero values leave the current setting unchanged.
func (m *ConfigManager) UpdateConfig(zoom float64, viewMode, rasterizer string, historyLimit int, fontName string, fontSize float64, color string, strokeWidth float64, workDir string) error {
	logger.Info("updating configuration")
	if m.config == nil {
		m.config = defaultConfig()
	}

	if zoom > 0 {
		m.config.DefaultZoom = zoom
	}
	if viewMode != "" {
		m.config.ViewMode = viewMode
	}
	if rasterizer != "" {
		m.config.Rasterizer = rasterizer
	}
	if historyLimit > 0 {
		m.config.HistoryLimit = historyLimit
	}
	if fontName != "" {
		m.config.FontName = fontName
	}
	if fontSize > 0 {
		m.config.FontSize = fontSize
	}
	if color != "" {
		m.config.Color = color
	}
	if strokeWidth > 0 {
		m.config.StrokeWidth = strokeWidth
	}
	if workDir != "" {
		m.config.WorkDirectory = workDir
	}
	m.applyDefaults()

	return m.Save()
}

// GetLastFile returns the last opened document path.
func (m *ConfigManager) GetLastFile() string {
	if m.config != nil {
		return m.config.LastFile
	}
	return ""
}

// AddRecentFile records path as the most recently opened document and saves.
// Save failures are logged and otherwise ignored.
func (m *ConfigManager) AddRecentFile(path string, pages int) {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.LastFile = path

	recent := []types.RecentFile{{Path: path, Pages: pages, Timestamp: time.Now().UnixMilli()}}
	for _, f := range m.config.RecentFiles {
		if f.Path != path && len(recent) < MaxRecentFiles {
			recent = append(recent, f)
		}
	}
	m.config.RecentFiles = recent

	_ = m.Save()
}

// GetRecentFiles returns recent documents, newest first.
func (m *ConfigManager) GetRecentFiles() []types.RecentFile {
	if m.config == nil {
		return nil
	}
	out := make([]types.RecentFile, len(m.config.RecentFiles))
	copy(out, m.config.RecentFiles)
	return out
}

// ClearRecentFiles empties the recent list and saves.
func (m *ConfigManager) ClearRecentFiles() error {
	if m.config == nil {
		m.config = defaultConfig()
	}
	m.config.RecentFiles = nil
	m.config.LastFile = ""
	return m.Save()
}
