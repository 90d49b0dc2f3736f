// pattern: Imperative Shell

package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config holds configuration for the Manager.
type Config struct {
	FilePath   string // Path to log file
	MaxSizeMB  int    // Max size in MB before rotation
	MaxBackups int    // Max number of old log files to keep
	MaxAgeDays int    // Max days to keep old log files
	Level      string // Minimum log level (debug, info, warn, error)
}

// ScopedLogger is a structured logger bound to a hierarchical scope
// (e.g. "engine", "workspace", "snap.swift-fox").
type ScopedLogger struct {
	sugar *zap.SugaredLogger
	scope string
}

// Info logs at INFO level with alternating key-value context.
func (l *ScopedLogger) Info(msg string, args ...any) { l.sugar.Infow(msg, args...) }

// Debug logs at DEBUG level.
func (l *ScopedLogger) Debug(msg string, args ...any) { l.sugar.Debugw(msg, args...) }

// Warn logs at WARN level.
func (l *ScopedLogger) Warn(msg string, args ...any) { l.sugar.Warnw(msg, args...) }

// Error logs at ERROR level.
func (l *ScopedLogger) Error(msg string, args ...any) { l.sugar.Errorw(msg, args...) }

// With returns a ScopedLogger with the key-value pairs added to every entry.
func (l *ScopedLogger) With(args ...any) *ScopedLogger {
	return &ScopedLogger{sugar: l.sugar.With(args...), scope: l.scope}
}

// Scope returns the logger's hierarchical scope.
func (l *ScopedLogger) Scope() string { return l.scope }

// Manager owns the shared zap core and hands out cached scoped loggers.
type Manager struct {
	base       *zap.Logger
	fileWriter *lumberjack.Logger

	mu      sync.RWMutex
	loggers map[string]*ScopedLogger
}

// NewManager creates a manager writing JSON entries through lumberjack
// rotation at cfg.FilePath.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("FilePath is required")
	}
	if cfg.MaxSizeMB == 0 {
		cfg.MaxSizeMB = 10
	}
	if cfg.MaxBackups == 0 {
		cfg.MaxBackups = 3
	}
	if cfg.MaxAgeDays == 0 {
		cfg.MaxAgeDays = 7
	}

	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0o755); err != nil {
		return nil, err
	}

	fileWriter := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}

	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "ts"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderCfg),
		zapcore.AddSync(fileWriter),
		level,
	)

	return &Manager{
		base:       zap.New(core),
		fileWriter: fileWriter,
		loggers:    make(map[string]*ScopedLogger),
	}, nil
}

// For returns the logger for a scope. Loggers are cached and reused.
func (m *Manager) For(scope string) *ScopedLogger {
	m.mu.RLock()
	if logger, ok := m.loggers[scope]; ok {
		m.mu.RUnlock()
		return logger
	}
	m.mu.RUnlock()

	m.mu.Lock()
	defer m.mu.Unlock()
	if logger, ok := m.loggers[scope]; ok {
		return logger
	}

	logger := &ScopedLogger{
		sugar: m.base.Named(scope).Sugar(),
		scope: scope,
	}
	m.loggers[scope] = logger
	return logger
}

// Sync flushes buffered entries.
func (m *Manager) Sync() error {
	return m.base.Sync()
}

// Close syncs and closes the log file.
func (m *Manager) Close() error {
	_ = m.Sync()
	return m.fileWriter.Close()
}
