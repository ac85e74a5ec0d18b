package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/telemetry"
	"github.com/felixgeelhaar/stressguard/internal/tui"
	"github.com/felixgeelhaar/stressguard/internal/version"
)

// logFileName is the log written while a terminal UI owns the screen
const logFileName = "stressguard.log"

func setupLogging(cfg *config.Config, terminalUI bool) func() {
	info := version.GetInfo()

	output, toFile, cleanup := configureLogOutput(cfg, terminalUI)
	logger := log.New(log.Config{
		Level:          log.ParseLevel(getLogLevel(cfg)),
		Format:         log.ParseFormat(getLogFormat(cfg)),
		Output:         output,
		NoColor:        toFile || terminalUI,
		ServiceName:    version.Name,
		ServiceVersion: info.Version,
	})
	log.SetDefaultLogger(logger)
	return cleanup
}

// configureLogOutput sends logs to stderr, or to a file when a terminal UI
// would be corrupted by them. A log file that cannot be opened discards logs.
func configureLogOutput(cfg *config.Config, terminalUI bool) (log.Output, bool, func()) {
	path := cfg.Log.File
	if path == "" && terminalUI {
		path = filepath.Join(config.StateDir(), logFileName)
	}
	if path == "" {
		return log.OutputStderr(), false, func() {}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return discardOrStderr(terminalUI), false, func() {}
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return discardOrStderr(terminalUI), false, func() {}
	}
	return log.NewOutput(f), true, func() { _ = f.Close() }
}

func discardOrStderr(terminalUI bool) log.Output {
	if terminalUI {
		return log.NewOutput(io.Discard)
	}
	return log.OutputStderr()
}

func getLogLevel(cfg *config.Config) string {
	if flags.LogLevel != "" {
		return flags.LogLevel
	}
	if env := os.Getenv("STRESSGUARD_LOG_LEVEL"); env != "" {
		return env
	}
	if cfg != nil && cfg.Log.Level != "" {
		return cfg.Log.Level
	}
	return "info"
}

func getLogFormat(cfg *config.Config) string {
	if flags.LogFormat != "" {
		return flags.LogFormat
	}
	if env := os.Getenv("STRESSGUARD_LOG_FORMAT"); env != "" {
		return env
	}
	if cfg != nil && cfg.Log.Format != "" {
		return cfg.Log.Format
	}
	return "console"
}

// usesTerminalUI reports whether cmd will draw a bubbletea or huh screen
func usesTerminalUI(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "chat", "test":
		plain, _ := cmd.Flags().GetBool("plain")
		return !plain && tui.ShouldPrompt()
	case "listen":
		launch, _ := cmd.Flags().GetBool("launch-chat")
		return launch && tui.ShouldPrompt()
	default:
		return false
	}
}

// setupTelemetry starts tracing when enabled in config or by
// STRESSGUARD_TELEMETRY. The HTTP service always traces.
func setupTelemetry(ctx context.Context, cfg *config.Config, server bool) func() {
	if !server && !telemetryRequested(cfg) {
		return func() {}
	}

	info := version.GetInfo()
	telemCfg := telemetry.ServerConfig(info.Version, telemetryEndpoint(cfg), telemetrySampleRate(cfg))
	if !server {
		telemCfg.Environment = "cli"
	}

	shutdown, err := telemetry.InitProvider(ctx, telemCfg)
	if err != nil {
		log.DefaultLogger().Warn("Failed to initialize telemetry", "error", err)
		return func() {}
	}

	log.DefaultLogger().Debug("Telemetry enabled",
		"endpoint", telemCfg.Endpoint,
		"sample_rate", telemCfg.SampleRate,
	)

	return func() {
		if shutdown == nil {
			return
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := shutdown(shutdownCtx); err != nil {
			log.DefaultLogger().Warn("Failed to flush telemetry", "error", err)
		}
	}
}

func telemetryRequested(cfg *config.Config) bool {
	if val := strings.ToLower(os.Getenv("STRESSGUARD_TELEMETRY")); val != "" {
		return val == "on" || val == "true" || val == "1" || val == "enabled"
	}
	return cfg != nil && cfg.Telemetry.Enabled
}

func telemetryEndpoint(cfg *config.Config) string {
	if env := os.Getenv("STRESSGUARD_TELEMETRY_ENDPOINT"); env != "" {
		return env
	}
	if cfg != nil {
		return cfg.Telemetry.Endpoint
	}
	return ""
}

func telemetrySampleRate(cfg *config.Config) float64 {
	if env := os.Getenv("STRESSGUARD_TELEMETRY_SAMPLE_RATE"); env != "" {
		if v, err := strconv.ParseFloat(env, 64); err == nil {
			return clampSampleRate(v)
		}
	}
	if cfg != nil {
		return clampSampleRate(cfg.Telemetry.SampleRate)
	}
	return 1.0
}

func clampSampleRate(value float64) float64 {
	switch {
	case value <= 0:
		return 0.0
	case value >= 1:
		return 1.0
	default:
		return value
	}
}

// printBanner prints the program banner used by serve and version --verbose
func printBanner(w io.Writer, subtitle string) {
	fmt.Fprintln(w, "\n  ╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "  ║                     [ stressguard ]                          ║")
	fmt.Fprintf(w, "  ║  %-60s║\n", subtitle)
	fmt.Fprintln(w, "  ╚══════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w)
}
