// Package logger provides structured, leveled logging for the PDF editor.
// Entries go to a size-rotated log file and optionally to the console.
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents the severity level of a log message
type Level int

const (
	// LevelDebug is for detailed debugging information
	LevelDebug Level = iota
	// LevelInfo is for general informational messages
	LevelInfo
	// LevelWarn is for warning messages
	LevelWarn
	// LevelError is for error messages
	LevelError
)

// String returns the string representation of the log level
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel maps a level name to a Level. Unknown names map to LevelInfo.
func ParseLevel(name string) Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Field represents a key-value pair for structured logging
type Field struct {
	Key   string
	Value interface{}
}

// String creates a string field
func String(key string, value string) Field {
	return Field{Key: key, Value: value}
}

// Int creates an integer field
func Int(key string, value int) Field {
	return Field{Key: key, Value: value}
}

// Int64 creates an int64 field
func Int64(key string, value int64) Field {
	return Field{Key: key, Value: value}
}

// Uint64 creates an uint64 field
func Uint64(key string, value uint64) Field {
	return Field{Key: key, Value: value}
}

// Float64 creates a float64 field
func Float64(key string, value float64) Field {
	return Field{Key: key, Value: value}
}

// Bool creates a boolean field
func Bool(key string, value bool) Field {
	return Field{Key: key, Value: value}
}

// Page creates a field for a 1-based page number
func Page(page int) Field {
	return Field{Key: "page", Value: page}
}

// Duration creates a field for an elapsed time, rendered in milliseconds
func Duration(key string, d time.Duration) Field {
	return Field{Key: key, Value: fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)}
}

// Err creates an error field
func Err(err error) Field {
	if err == nil {
		return Field{Key: "error", Value: nil}
	}
	return Field{Key: "error", Value: err.Error()}
}

// Any creates a field with any value
func Any(key string, value interface{}) Field {
	return Field{Key: key, Value: value}
}

// Logger defines the logging interface
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, err error, fields ...Field)
	// With returns a logger that adds fields to every entry
	With(fields ...Field) Logger
	SetLevel(level Level)
	Close() error
}

// Config holds the configuration for the logger
type Config struct {
	// LogFilePath is the path to the log file
	LogFilePath string
	// MaxFileSize is the maximum size of a log file in bytes before rotation
	MaxFileSize int64
	// MaxBackups is the maximum number of rotated files to keep
	MaxBackups int
	// Level is the minimum log level to output
	Level Level
	// EnableConsole mirrors entries to stderr
	EnableConsole bool
}

// DefaultConfig returns a default logger configuration
func DefaultConfig() *Config {
	return &Config{
		LogFilePath:   "pdf-editor.log",
		MaxFileSize:   10 * 1024 * 1024, // 10 MB
		MaxBackups:    3,
		Level:         LevelInfo,
		EnableConsole: false,
	}
}

// DefaultLogger is the file-backed implementation of Logger
type DefaultLogger struct {
	config     *Config
	file       *os.File
	mu         sync.Mutex
	level      Level
	fileSize   int64
	writers    []io.Writer
	timeFormat string
}

// NewDefaultLogger creates a new DefaultLogger with the given configuration
func NewDefaultLogger(config *Config) (*DefaultLogger, error) {
	if config == nil {
		config = DefaultConfig()
	}

	l := &DefaultLogger{
		config:     config,
		level:      config.Level,
		timeFormat: "2006-01-02 15:04:05.000",
	}

	// an empty path logs to the console only
	if config.LogFilePath != "" {
		logDir := filepath.Dir(config.LogFilePath)
		if logDir != "" && logDir != "." {
			if err := os.MkdirAll(logDir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory: %w", err)
			}
		}

		if err := l.openLogFile(); err != nil {
			return nil, err
		}
	}
	l.setupWriters()

	return l, nil
}

func (l *DefaultLogger) openLogFile() error {
	file, err := os.OpenFile(l.config.LogFilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	l.file = file
	l.fileSize = info.Size()
	return nil
}

func (l *DefaultLogger) setupWriters() {
	l.writers = nil
	if l.file != nil {
		l.writers = append(l.writers, l.file)
	}
	if l.config.EnableConsole {
		l.writers = append(l.writers, os.Stderr)
	}
}

// Debug logs a debug message
func (l *DefaultLogger) Debug(msg string, fields ...Field) {
	l.log(LevelDebug, msg, nil, fields)
}

// Info logs an informational message
func (l *DefaultLogger) Info(msg string, fields ...Field) {
	l.log(LevelInfo, msg, nil, fields)
}

// Warn logs a warning message
func (l *DefaultLogger) Warn(msg string, fields ...Field) {
	l.log(LevelWarn, msg, nil, fields)
}

// Error logs an error message followed by a short stack trace
func (l *DefaultLogger) Error(msg string, err error, fields ...Field) {
	l.log(LevelError, msg, err, fields)
}

// With returns a child logger sharing this logger's output
func (l *DefaultLogger) With(fields ...Field) Logger {
	return &scopedLogger{parent: l, fields: fields}
}

// SetLevel sets the minimum log level
func (l *DefaultLogger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}

// Close closes the log file
func (l *DefaultLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.writers = nil
	if l.file != nil {
		err := l.file.Close()
		l.file = nil
		return err
	}
	return nil
}

func (l *DefaultLogger) log(level Level, msg string, err error, fields []Field) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level || len(l.writers) == 0 {
		return
	}

	entry := l.formatEntry(level, msg, err, fields)

	if l.shouldRotate(int64(len(entry))) {
		if rerr := l.rotate(); rerr != nil {
			fmt.Fprintf(os.Stderr, "logger: rotation failed: %v\n", rerr)
		}
	}

	for _, w := range l.writers {
		w.Write([]byte(entry))
	}
	l.fileSize += int64(len(entry))
}

func (l *DefaultLogger) formatEntry(level Level, msg string, err error, fields []Field) string {
	var sb strings.Builder

	sb.WriteString(time.Now().Format(l.timeFormat))
	sb.WriteString(" [")
	sb.WriteString(level.String())
	sb.WriteString("] ")
	sb.WriteString(msg)

	if err != nil {
		sb.WriteString(" error=\"")
		sb.WriteString(err.Error())
		sb.WriteString("\"")
	}

	for _, f := range fields {
		sb.WriteString(" ")
		sb.WriteString(f.Key)
		sb.WriteString("=")
		sb.WriteString(fmt.Sprintf("%v", f.Value))
	}

	if level == LevelError {
		sb.WriteString("\n")
		sb.WriteString(stackTrace())
	}

	sb.WriteString("\n")
	return sb.String()
}

// stackTrace returns the caller frames outside the logger, runtime and testing packages
func stackTrace() string {
	var sb strings.Builder
	sb.WriteString("Stack trace:\n")

	const skip = 4
	written := 0
	for i := skip; written < 10; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}

		funcName := "unknown"
		if fn := runtime.FuncForPC(pc); fn != nil {
			funcName = fn.Name()
		}
		if strings.Contains(funcName, "runtime.") || strings.Contains(funcName, "testing.") ||
			strings.Contains(funcName, "internal/logger.") {
			continue
		}

		sb.WriteString(fmt.Sprintf("  %s:%d %s\n", file, line, funcName))
		written++
	}

	return sb.String()
}

func (l *DefaultLogger) shouldRotate(additionalSize int64) bool {
	return l.file != nil && l.config.MaxFileSize > 0 && l.fileSize+additionalSize > l.config.MaxFileSize
}

// rotate shifts pdf-editor.log -> .1 -> .2 ... and drops anything past MaxBackups
func (l *DefaultLogger) rotate() error {
	if l.file != nil {
		l.file.Close()
	}

	base := l.config.LogFilePath
	for i := l.config.MaxBackups - 1; i >= 1; i-- {
		os.Rename(fmt.Sprintf("%s.%d", base, i), fmt.Sprintf("%s.%d", base, i+1))
	}
	if l.config.MaxBackups > 0 {
		if _, err := os.Stat(base); err == nil {
			os.Rename(base, base+".1")
		}
	} else {
		os.Remove(base)
	}
	os.Remove(fmt.Sprintf("%s.%d", base, l.config.MaxBackups+1))

	if err := l.openLogFile(); err != nil {
		return err
	}
	l.setupWriters()
	return nil
}

// scopedLogger prepends a fixed set of fields to every entry
type scopedLogger struct {
	parent Logger
	fields []Field
}

func (s *scopedLogger) merge(fields []Field) []Field {
	out := make([]Field, 0, len(s.fields)+len(fields))
	out = append(out, s.fields...)
	return append(out, fields...)
}

func (s *scopedLogger) Debug(msg string, fields ...Field) { s.parent.Debug(msg, s.merge(fields)...) }
func (s *scopedLogger) Info(msg string, fields ...Field)  { s.parent.Info(msg, s.merge(fields)...) }
func (s *scopedLogger) Warn(msg string, fields ...Field)  { s.parent.Warn(msg, s.merge(fields)...) }
func (s *scopedLogger) Error(msg string, err error, fields ...Field) {
	s.parent.Error(msg, err, s.merge(fields)...)
}
func (s *scopedLogger) With(fields ...Field) Logger {
	return &scopedLogger{parent: s.parent, fields: s.merge(fields)}
}
func (s *scopedLogger) SetLevel(level Level) { s.parent.SetLevel(level) }

// Close is a no-op; the parent owns the file
func (s *scopedLogger) Close() error { return nil }

var (
	globalLogger Logger
	globalMu     sync.RWMutex
)

// Init initializes the global logger with the given configuration
func Init(config *Config) error {
	l, err := NewDefaultLogger(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	defer globalMu.Unlock()
	if globalLogger != nil {
		globalLogger.Close()
	}
	globalLogger = l
	return nil
}

// GetLogger returns the global logger, or a no-op logger before Init
func GetLogger() Logger {
	globalMu.RLock()
	defer globalMu.RUnlock()

	if globalLogger == nil {
		return noopLogger{}
	}
	return globalLogger
}

// SetGlobalLogger replaces the global logger instance
func SetGlobalLogger(l Logger) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalLogger = l
}

// Close closes the global logger
func Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger != nil {
		err := globalLogger.Close()
		globalLogger = nil
		return err
	}
	return nil
}

// Named returns the global logger scoped to a component
func Named(component string) Logger {
	return &deferredLogger{fields: []Field{String("component", component)}}
}

// deferredLogger resolves the global logger on every call so that package-level
// loggers created before Init still reach the configured output.
type deferredLogger struct {
	fields []Field
}

func (d *deferredLogger) target() Logger { return GetLogger().With(d.fields...) }

func (d *deferredLogger) Debug(msg string, fields ...Field) { d.target().Debug(msg, fields...) }
func (d *deferredLogger) Info(msg string, fields ...Field)  { d.target().Info(msg, fields...) }
func (d *deferredLogger) Warn(msg string, fields ...Field)  { d.target().Warn(msg, fields...) }
func (d *deferredLogger) Error(msg string, err error, fields ...Field) {
	d.target().Error(msg, err, fields...)
}
func (d *deferredLogger) With(fields ...Field) Logger {
	merged := append(append([]Field{}, d.fields...), fields...)
	return &deferredLogger{fields: merged}
}
func (d *deferredLogger) SetLevel(level Level) { GetLogger().SetLevel(level) }
func (d *deferredLogger) Close() error         { return nil }

// Debug logs a debug message using the global logger
func Debug(msg string, fields ...Field) {
	GetLogger().Debug(msg, fields...)
}

// Info logs an informational message using the global logger
func Info(msg string, fields ...Field) {
	GetLogger().Info(msg, fields...)
}

// Warn logs a warning message using the global logger
func Warn(msg string, fields ...Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message using the global logger
func Error(msg string, err error, fields ...Field) {
	GetLogger().Error(msg, err, fields...)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...Field)        {}
func (noopLogger) Info(string, ...Field)         {}
func (noopLogger) Warn(string, ...Field)         {}
func (noopLogger) Error(string, error, ...Field) {}
func (noopLogger) With(...Field) Logger          { return noopLogger{} }
func (noopLogger) SetLevel(Level)                {}
func (noopLogger) Close() error                  { return nil }
