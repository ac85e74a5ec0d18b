package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/config"
	"github.com/felixgeelhaar/stressguard/internal/errors"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/provider"
	"github.com/felixgeelhaar/stressguard/internal/router"
	"github.com/felixgeelhaar/stressguard/internal/speech"
	"github.com/felixgeelhaar/stressguard/internal/store"
	"github.com/felixgeelhaar/stressguard/internal/tui"
	"github.com/felixgeelhaar/stressguard/internal/version"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start a supportive conversation",
	Long: `Start a conversation with StressGuard.

Type freely to talk, ask for "el test" to take a questionnaire, "salir" to
leave, or /voz to toggle spoken replies.

Modes:
  manual     greet and wait for you to start
  automatic  open with the stress alert greeting, as when a sensor fires

Example:
  stressguard chat
  stressguard chat --mode automatic --voice
  echo "hola" | stressguard chat --plain`,
	RunE: instrumented(runChat),
}

var (
	chatMode  string
	chatPlain bool
	chatVoice bool
)

func init() {
	chatCmd.Flags().StringVar(&chatMode, "mode", "", "greeting mode: manual or automatic (default from config)")
	chatCmd.Flags().BoolVar(&chatPlain, "plain", false, "use a line-oriented prompt instead of the full-screen UI")
	chatCmd.Flags().BoolVar(&chatVoice, "voice", false, "speak replies with espeak-ng")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := log.DefaultLogger()

	mode := chatMode
	if mode == "" {
		mode = appConfig.Chat.Mode
	}
	mode = strings.ToLower(mode)
	if mode != config.ModeManual && mode != config.ModeAutomatic {
		return errors.NewConfigInvalidError(fmt.Sprintf("unknown chat mode %q", mode)).
			WithSuggestion("Use --mode manual or --mode automatic")
	}

	db := openStore(appConfig, logger)
	if db != nil {
		defer db.Close()
	}

	client, err := newProvider(appConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	r, err := newRouter(appConfig, client, db, logger)
	if err != nil {
		return err
	}

	opts, wait := chatOptions(appConfig, chatVoice, logger)
	defer wait()
	if mode == config.ModeAutomatic {
		opts = append(opts, tui.WithGreeting(router.AlertGreeting))
	}

	return runConversation(ctx, r, chatPlain, cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
}

// newProvider builds the configured chat generator, identified by our user agent
func newProvider(cfg *config.Config) (provider.ProviderClient, error) {
	pcfg := cfg.Provider
	pcfg.UserAgent = version.GetInfo().UserAgent()
	return provider.New(pcfg)
}

// newRouter wires the router to the generator, prompts and store. db may be nil.
func newRouter(cfg *config.Config, gen router.Generator, db *store.Store, logger *log.Logger) (*router.Router, error) {
	prompts, err := cfg.ResolvePrompts()
	if err != nil {
		return nil, err
	}

	opts := []router.Option{
		router.WithGenerator(gen),
		router.WithPrompts(prompts),
		router.WithMaxHistory(cfg.Chat.MaxHistory),
		router.WithLogger(logger),
		router.WithMetrics(metrics.GetDefault()),
	}
	if db != nil {
		opts = append(opts, router.WithRecorder(db))
	}
	return router.New(opts...), nil
}

// openStore opens the results database. A database that cannot be opened
// is logged and the conversation continues without recording.
func openStore(cfg *config.Config, logger *log.Logger) *store.Store {
	if cfg.Storage.Path == "" {
		return nil
	}
	db, err := store.Open(cfg.Storage.Path, store.WithMkdirAll())
	if err != nil {
		logger.Warn("Results will not be saved", "path", cfg.Storage.Path, "error", err)
		return nil
	}
	return db
}

// chatOptions sets up the speaker. The returned func waits for speech to finish.
func chatOptions(cfg *config.Config, voiceFlag bool, logger *log.Logger) ([]tui.Option, func()) {
	voice := voiceFlag || cfg.Chat.Voice
	espeak := speech.NewEspeak(logger)
	if voice && !espeak.Available() {
		logger.Warn("espeak-ng not found, replies will not be spoken", "binary", espeak.Binary)
	}
	return []tui.Option{tui.WithSpeaker(espeak), tui.WithVoice(voice)}, espeak.Wait
}

// runConversation runs the full-screen chat, or the plain REPL when asked
// to or when there is no terminal
func runConversation(ctx context.Context, r *router.Router, plain bool, in io.Reader, out io.Writer, opts ...tui.Option) error {
	var handoff string
	if plain || !tui.ShouldPrompt() {
		target, err := tui.RunPlain(ctx, r, in, out, opts...)
		if err != nil {
			return err
		}
		handoff = target
	} else {
		p := tea.NewProgram(tui.NewModel(ctx, r, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
		final, err := p.Run()
		if err != nil {
			return fmt.Errorf("chat UI failed: %w", err)
		}
		if m, ok := final.(tui.Model); ok {
			handoff = m.Handoff()
		}
	}

	if handoff == router.HandoffTruthTable {
		fmt.Fprintln(out, "El evaluador de tablas de verdad es una herramienta aparte; ábrelo para continuar.")
	}
	return nil
}
