// Package logging provides structured logging for the auralization
// core using log/slog: a JSON handler to a rotated file and a
// human-readable text handler to stdout, both driven by one shared
// dynamic level.
package logging

import (
	"log/slog"
	"os"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu          sync.RWMutex
	fileLogger  *slog.Logger
	textLogger  *slog.Logger
	level       = new(slog.LevelVar)
	initialized bool
)

// Config controls where and how verbosely the core logs.
type Config struct {
	FilePath   string // rotated JSON log destination; empty disables file logging
	Level      slog.Level
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// DefaultConfig returns sane defaults matching the teacher's rotation policy.
func DefaultConfig() Config {
	return Config{
		FilePath:   "logs/va-core.log",
		Level:      slog.LevelInfo,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 28,
	}
}

// Init wires the global loggers. Safe to call more than once; the last
// call wins so config reloads (Debug.LogLevel) can re-init at a new level.
func Init(cfg Config) {
	mu.Lock()
	defer mu.Unlock()

	level.Set(cfg.Level)

	var fileHandler slog.Handler
	if cfg.FilePath != "" {
		writer := &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		fileHandler = slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level})
	} else {
		fileHandler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	}

	textHandler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})

	fileLogger = slog.New(fileHandler)
	textLogger = slog.New(textHandler)
	slog.SetDefault(fileLogger)
	initialized = true
}

// SetLevel adjusts the shared dynamic level without rebuilding handlers.
func SetLevel(l slog.Level) {
	level.Set(l)
}

// ForComponent returns a logger tagged with "component" so every
// subsystem's lines are attributable to a scene/renderer/driver etc.
func ForComponent(component string) *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		return slog.Default().With("component", component)
	}
	return fileLogger.With("component", component)
}

// ForConsole returns the human-readable text logger, used by cmd/vaserver
// for startup/shutdown banners a human is meant to read directly.
func ForConsole() *slog.Logger {
	mu.RLock()
	defer mu.RUnlock()
	if !initialized {
		return slog.Default()
	}
	return textLogger
}

// IsInitialized reports whether Init has run.
func IsInitialized() bool {
	mu.RLock()
	defer mu.RUnlock()
	return initialized
}
