package log

import (
	"log/slog"
	"strings"
)

// Level represents the severity of a log message
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

var levels = []struct {
	level Level
	name  string
	slog  slog.Level
}{
	{LevelDebug, "DEBUG", slog.LevelDebug},
	{LevelInfo, "INFO", slog.LevelInfo},
	{LevelWarn, "WARN", slog.LevelWarn},
	{LevelError, "ERROR", slog.LevelError},
}

// String returns the upper-case level name, UNKNOWN for invalid levels
func (l Level) String() string {
	for _, e := range levels {
		if e.level == l {
			return e.name
		}
	}
	return "UNKNOWN"
}

// ToSlogLevel converts l to its slog equivalent. Invalid levels map to info.
func (l Level) ToSlogLevel() slog.Level {
	for _, e := range levels {
		if e.level == l {
			return e.slog
		}
	}
	return slog.LevelInfo
}

// LookupLevel parses s case-insensitively. "warning" is accepted for warn.
func LookupLevel(s string) (Level, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "WARNING" {
		s = "WARN"
	}
	for _, e := range levels {
		if e.name == s {
			return e.level, true
		}
	}
	return LevelInfo, false
}

// ParseLevel is LookupLevel falling back to info
func ParseLevel(s string) Level {
	l, _ := LookupLevel(s)
	return l
}
