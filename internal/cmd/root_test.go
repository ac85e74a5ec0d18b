package cmd

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/stressguard/internal/config"
)

// setHome points the state dir, and so the results database, at a temp dir
func setHome(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("STRESSGUARD_HOME", dir)
	return dir
}

// execute runs the root command with args and stdin. Call setHome first.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	t.Setenv("CI", "true")
	resetFlags(rootCmd)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		appConfig = config.Default()
	})

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(args)

	err := ExecuteContext(context.Background())
	return out.String(), err
}

// resetFlags restores every flag of c and its subcommands to its default
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func TestCommandsRegistered(t *testing.T) {
	want := []string{"chat", "test", "results", "listen", "simulate", "serve", "version"}
	for _, name := range want {
		t.Run(name, func(t *testing.T) {
			c, _, err := rootCmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, c.Name())
			assert.NotEmpty(t, c.Short)
		})
	}
}

func TestFlags(t *testing.T) {
	tests := []struct {
		command string
		flags   []string
	}{
		{"", []string{"config", "env", "log-level", "log-format"}},
		{"chat", []string{"mode", "plain", "voice"}},
		{"test", []string{"list", "plain"}},
		{"results", []string{"questionnaire", "limit", "json"}},
		{"listen", []string{"addr", "launch-chat"}},
		{"simulate", []string{"addr", "interval", "count", "seed", "stress-probability"}},
		{"serve", []string{"addr", "shutdown-timeout", "read-timeout", "write-timeout", "idle-timeout"}},
		{"version", []string{"json", "verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			c := rootCmd
			if tt.command != "" {
				found, _, err := rootCmd.Find([]string{tt.command})
				require.NoError(t, err)
				c = found
			}
			for _, name := range tt.flags {
				if c.Flags().Lookup(name) == nil && c.InheritedFlags().Lookup(name) == nil && c.PersistentFlags().Lookup(name) == nil {
					t.Errorf("%s: flag --%s not registered", c.Name(), name)
				}
			}
		})
	}
}

func TestClampSampleRate(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.25, 0.25},
		{1, 1},
		{3, 1},
	}
	for _, tt := range tests {
		if got := clampSampleRate(tt.in); got != tt.want {
			t.Errorf("clampSampleRate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLogSettingsPrecedence(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "warn"
	cfg.Log.Format = "json"

	assert.Equal(t, "warn", getLogLevel(cfg))
	assert.Equal(t, "json", getLogFormat(cfg))

	t.Setenv("STRESSGUARD_LOG_LEVEL", "error")
	t.Setenv("STRESSGUARD_LOG_FORMAT", "text")
	assert.Equal(t, "error", getLogLevel(cfg))
	assert.Equal(t, "text", getLogFormat(cfg))

	flags.LogLevel = "debug"
	t.Cleanup(func() { flags.LogLevel = "" })
	assert.Equal(t, "debug", getLogLevel(cfg))
}

func TestTelemetryRequested(t *testing.T) {
	cfg := config.Default()
	assert.False(t, telemetryRequested(cfg))

	cfg.Telemetry.Enabled = true
	assert.True(t, telemetryRequested(cfg))

	t.Setenv("STRESSGUARD_TELEMETRY", "off")
	assert.False(t, telemetryRequested(cfg))

	t.Setenv("STRESSGUARD_TELEMETRY", "on")
	assert.True(t, telemetryRequested(config.Default()))
}

func TestUsesTerminalUIDisabledInCI(t *testing.T) {
	t.Setenv("CI", "true")
	for _, name := range []string{"chat", "test", "listen", "results"} {
		c, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err)
		assert.False(t, usesTerminalUI(c), name)
	}
}
