package log

import (
	"io"
	"os"
	"strings"
)

// Format represents the output format for logs
type Format int

const (
	// FormatJSON outputs logs in JSON format
	FormatJSON Format = iota
	// FormatText outputs logs in logfmt-style text
	FormatText
	// FormatConsole outputs colourised, human-readable lines
	FormatConsole
)

// String returns the string representation of the format
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatText:
		return "text"
	case FormatConsole:
		return "console"
	default:
		return "json"
	}
}

// LookupFormat parses s case-insensitively. "pretty" is accepted for console.
func LookupFormat(s string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, true
	case "text":
		return FormatText, true
	case "console", "pretty":
		return FormatConsole, true
	default:
		return FormatJSON, false
	}
}

// ParseFormat is LookupFormat falling back to JSON
func ParseFormat(s string) Format {
	f, _ := LookupFormat(s)
	return f
}

// Output represents where logs should be written
type Output struct {
	writer io.Writer
}

// Writer returns the underlying io.Writer
func (o Output) Writer() io.Writer {
	if o.writer == nil {
		return os.Stderr
	}
	return o.writer
}

// NewOutput creates an Output from an io.Writer
func NewOutput(w io.Writer) Output {
	return Output{writer: w}
}

// OutputStdout creates an Output that writes to stdout
func OutputStdout() Output {
	return Output{writer: os.Stdout}
}

// OutputStderr creates an Output that writes to stderr
func OutputStderr() Output {
	return Output{writer: os.Stderr}
}

// Config holds configuration for the logger
type Config struct {
	// Level is the minimum log level to output
	Level Level

	// Format is the output format
	Format Format

	// Output is where logs should be written
	Output Output

	// AddSource includes source file and line number in logs
	AddSource bool

	// NoColor disables ANSI colours in console format
	NoColor bool

	// ServiceName is attached to every JSON record
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string
}

// DefaultConfig returns the CLI default: INFO, console format, stderr.
// Stdout is left to the conversation itself.
func DefaultConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatConsole,
		Output:         OutputStderr(),
		ServiceName:    "stressguard",
		ServiceVersion: "dev",
	}
}

// DevelopmentConfig returns a configuration suitable for development
// Logs at DEBUG level with source location
func DevelopmentConfig() Config {
	cfg := DefaultConfig()
	cfg.Level = LevelDebug
	cfg.AddSource = true
	return cfg
}

// ProductionConfig returns a configuration suitable for the HTTP service
// Logs at INFO level in JSON format to stdout
func ProductionConfig() Config {
	return Config{
		Level:          LevelInfo,
		Format:         FormatJSON,
		Output:         OutputStdout(),
		ServiceName:    "stressguard",
		ServiceVersion: "unknown",
	}
}
