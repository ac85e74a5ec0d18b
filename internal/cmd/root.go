package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/telemetry"
)

// globalFlags are the persistent flags shared by every command
type globalFlags struct {
	ConfigPath string
	EnvPath    string
	LogLevel   string
	LogFormat  string
}

var (
	flags globalFlags

	// appConfig is loaded before any command runs
	appConfig = config.Default()

	cleanups []func()
)

var rootCmd = &cobra.Command{
	Use:   "stressguard",
	Short: "Emotional-wellbeing chat with stress questionnaires",
	Long: `stressguard is a supportive chat companion. It talks with you through a
local or remote language model, administers the PSS-14 and physiological
stress questionnaires, and can open a conversation automatically when a
wearable sensor reports a stress episode.`,
	SilenceUsage:       true,
	PersistentPreRunE:  setup,
	PersistentPostRunE: teardown,
}

// Execute runs the root command
func Execute() error {
	return ExecuteContext(context.Background())
}

// ExecuteContext runs the root command with ctx, which is cancelled on
// SIGINT or SIGTERM by main
func ExecuteContext(ctx context.Context) error {
	defer runCleanups()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	addGlobalFlags(rootCmd.PersistentFlags(), &flags)
}

func addGlobalFlags(fs *pflag.FlagSet, f *globalFlags) {
	fs.StringVar(&f.ConfigPath, "config", "", "config file (default is ./"+config.DefaultFile+")")
	fs.StringVar(&f.EnvPath, "env", ".env", "dotenv file loaded before the config")
	fs.StringVar(&f.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&f.LogFormat, "log-format", "", "log format: console, text, json")
}

// setup loads the environment and configuration, then wires logging,
// metrics and tracing for the command about to run
func setup(cmd *cobra.Command, args []string) error {
	if err := config.LoadEnv(flags.EnvPath); err != nil {
		return err
	}
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	appConfig = cfg

	cleanups = append(cleanups, setupLogging(cfg, usesTerminalUI(cmd)))
	metrics.InitDefault()
	cleanups = append(cleanups, setupTelemetry(cmd.Context(), cfg, cmd.Name() == "serve"))
	return nil
}

func teardown(cmd *cobra.Command, args []string) error {
	runCleanups()
	return nil
}

func runCleanups() {
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i]()
	}
	cleanups = nil
}

// instrumented wraps a RunE with a command span and the command metrics
func instrumented(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, span := telemetry.StartCommandSpan(cmd.Context(), cmd.Name())
		defer span.End()
		cmd.SetContext(ctx)

		start := time.Now()
		err := run(cmd, args)
		metrics.GetDefault().ObserveCommand(cmd.Name(), time.Since(start), err)
		if err != nil {
			telemetry.RecordError(span, err)
		} else {
			telemetry.RecordSuccess(span)
		}
		return err
	}
}
