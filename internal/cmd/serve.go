package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stressguard/internal/health"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/server"
	"github.com/felixgeelhaar/stressguard/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `Start an HTTP server exposing the chat over a websocket, the
questionnaires, the results history and an alert intake, together with
Kubernetes-style health endpoints.

Endpoints:
  /ws                           - Websocket chat, one conversation per connection
  /api/v1/questionnaires[/{id}] - Questionnaire definitions
  /api/v1/results               - Saved results
  /api/v1/alerts                - POST a sensor reading
  /metrics                      - Prometheus metrics
  /health/live, /health/ready, /health/startup, /healthz

The server shuts down gracefully on SIGTERM or SIGINT, closing open chat
sessions and draining in-flight requests.

Example:
  # Start server on the configured address (default :8080)
  stressguard serve

  # Start server on a custom address
  stressguard serve --addr 127.0.0.1:9090

  # Start server with custom shutdown timeout
  stressguard serve --shutdown-timeout 60s`,
	Args: cobra.NoArgs,
	RunE: instrumented(runServe),
}

var (
	serveAddress         string
	serveShutdownTimeout time.Duration
	serveReadTimeout     time.Duration
	serveWriteTimeout    time.Duration
	serveIdleTimeout     time.Duration
)

func init() {
	serveCmd.Flags().StringVar(&serveAddress, "addr", "", "address to listen on (default from config, :8080)")
	serveCmd.Flags().DurationVar(&serveShutdownTimeout, "shutdown-timeout", 30*time.Second, "Maximum time to wait for connections to drain during shutdown")
	serveCmd.Flags().DurationVar(&serveReadTimeout, "read-timeout", 10*time.Second, "Maximum duration for reading the entire request")
	serveCmd.Flags().DurationVar(&serveWriteTimeout, "write-timeout", 10*time.Second, "Maximum duration before timing out writes of the response")
	serveCmd.Flags().DurationVar(&serveIdleTimeout, "idle-timeout", 60*time.Second, "Maximum amount of time to wait for the next request")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	logger := log.DefaultLogger()
	info := version.GetInfo()

	listenAddr := serveAddress
	if listenAddr == "" {
		listenAddr = appConfig.Server.Addr
	}

	client, err := newProvider(appConfig)
	if err != nil {
		return err
	}
	defer client.Close()

	pm := health.NewMonitor(info.Version)
	pm.AddOptional(health.NewProviderChecker(client))

	opts := []server.Option{
		server.WithMetrics(metrics.GetDefault(), metrics.Handler()),
		server.WithLogger(logger),
	}

	db := openStore(appConfig, logger)
	if db != nil {
		defer db.Close()
		pm.AddChecker(health.NewStoreChecker(db))
		opts = append(opts, server.WithResults(db), server.WithAlerts(db))
	}

	r, err := newRouter(appConfig, client, db, logger)
	if err != nil {
		return err
	}
	opts = append(opts, server.WithRouter(r))

	srv := server.NewServer(pm, server.Config{
		Address:         listenAddr,
		ShutdownTimeout: serveShutdownTimeout,
		ReadTimeout:     serveReadTimeout,
		WriteTimeout:    serveWriteTimeout,
		IdleTimeout:     serveIdleTimeout,
	}, opts...)

	printBanner(out, "Emotional-wellbeing chat service")
	fmt.Fprintf(out, "Version: %s\n", info.Version)
	fmt.Fprintf(out, "Listening on: %s\n\n", listenAddr)
	fmt.Fprintf(out, "Endpoints:\n")
	fmt.Fprintf(out, "  Chat:      ws://%s/ws\n", listenAddr)
	fmt.Fprintf(out, "  API:       http://%s/api/v1\n", listenAddr)
	fmt.Fprintf(out, "  Metrics:   http://%s/metrics\n", listenAddr)
	fmt.Fprintf(out, "  Readiness: http://%s/health/ready\n\n", listenAddr)
	fmt.Fprintf(out, "Press Ctrl+C to stop the server\n\n")

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)

	case <-ctx.Done():
		fmt.Fprintln(out, "\nInitiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), serveShutdownTimeout+5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}

		fmt.Fprintln(out, "Server stopped gracefully")
		return nil
	}
}
