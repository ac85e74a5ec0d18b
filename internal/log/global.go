package log

import (
	"log/slog"
	"sync"
)

var (
	defaultLogger *Logger
	loggerMu      sync.RWMutex
)

// SetDefaultLogger installs logger as the process-wide logger and as the
// slog default, so packages that log through slog directly end up in the
// same place. A nil logger resets to the built-in default on next use.
func SetDefaultLogger(logger *Logger) {
	loggerMu.Lock()
	defer loggerMu.Unlock()
	defaultLogger = logger
	if logger != nil {
		slog.SetDefault(logger.Slog())
	}
}

// DefaultLogger returns the process-wide logger, creating a console logger
// on stderr when none was installed
func DefaultLogger() *Logger {
	loggerMu.RLock()
	l := defaultLogger
	loggerMu.RUnlock()
	if l != nil {
		return l
	}

	loggerMu.Lock()
	defer loggerMu.Unlock()
	if defaultLogger == nil {
		defaultLogger = Default()
	}
	return defaultLogger
}
