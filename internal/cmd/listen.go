package cmd

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/router"
	"github.com/felixgeelhaar/stressguard/internal/store"
	"github.com/felixgeelhaar/stressguard/internal/tui"
)

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Receive stress alerts from a biometric sensor",
	Long: `Listen for sensor readings over TCP, one JSON object per line:

  {"bvp": 2.1, "eda": 2.4, "temp": 32.9}

Every reading is classified by its EDA zone, logged and saved. With
--launch-chat the first reading in the stress zone opens the chat with the
stress alert greeting while alerts keep being recorded.

Example:
  stressguard listen
  stressguard listen --launch-chat
  stressguard simulate --count 30   # in another terminal`,
	Args: cobra.NoArgs,
	RunE: instrumented(runListen),
}

var (
	listenAddr       string
	listenLaunchChat bool
)

func init() {
	listenCmd.Flags().StringVar(&listenAddr, "addr", "", "address to listen on (default from config, "+alert.DefaultAddr+")")
	listenCmd.Flags().BoolVar(&listenLaunchChat, "launch-chat", false, "open the chat on the first stress alert")

	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	out := cmd.OutOrStdout()
	logger := log.DefaultLogger()

	addr := listenAddr
	if addr == "" {
		addr = appConfig.Alerts.Addr
	}

	db := openStore(appConfig, logger)
	if db != nil {
		defer db.Close()
	}

	launch := make(chan struct{})
	var launched atomic.Bool
	handler := alertHandler(db, logger, func(a alert.Alert) {
		if listenLaunchChat && a.Stressed() && launched.CompareAndSwap(false, true) {
			close(launch)
		}
	})

	receiver := alert.NewReceiver(addr, handler, alert.WithLogger(logger))
	errCh := make(chan error, 1)
	go func() { errCh <- receiver.ListenAndServe(ctx) }()

	fmt.Fprintf(out, "Esperando alertas en %s (Ctrl+C para salir)\n", addr)

	select {
	case err := <-errCh:
		return err
	case <-launch:
	}

	logger.Info("Stress detected, opening chat", "alerts", receiver.Count())
	if err := chatAfterAlert(ctx, cmd, db, logger); err != nil {
		cancel()
		<-errCh
		return err
	}
	cancel()
	return <-errCh
}

// alertHandler counts and saves every alert, then calls then. db may be nil.
func alertHandler(db *store.Store, logger *log.Logger, then func(alert.Alert)) alert.Handler {
	return func(ctx context.Context, a alert.Alert) {
		metrics.GetDefault().AlertsReceived.WithLabelValues(string(a.Zone)).Inc()
		if db != nil {
			if err := db.RecordAlert(ctx, a); err != nil {
				metrics.GetDefault().RecordError(err, "store")
				logger.WithError(err).Warn("Failed to save alert", "seq", a.Seq)
			}
		}
		if then != nil {
			then(a)
		}
	}
}

func chatAfterAlert(ctx context.Context, cmd *cobra.Command, db *store.Store, logger *log.Logger) error {
	client, err := newProvider(appConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	r, err := newRouter(appConfig, client, db, logger)
	if err != nil {
		return err
	}

	opts, wait := chatOptions(appConfig, false, logger)
	defer wait()
	opts = append(opts, tui.WithGreeting(router.AlertGreeting))

	return runConversation(ctx, r, !tui.ShouldPrompt(), cmd.InOrStdin(), cmd.OutOrStdout(), opts...)
}
