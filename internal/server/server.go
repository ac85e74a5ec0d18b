// Package server exposes StressGuard over HTTP: health endpoints, a small JSON
// API over questionnaires, results and alerts, a websocket chat and the
// Prometheus endpoint.
//
// It provides:
//   - liveness, readiness and startup endpoints
//   - graceful shutdown that drains requests and closes chat sessions
//   - OpenTelemetry spans per request
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felixgeelhaar/stressguard/internal/alert"
	"github.com/felixgeelhaar/stressguard/internal/health"
	"github.com/felixgeelhaar/stressguard/internal/log"
	"github.com/felixgeelhaar/stressguard/internal/metrics"
	"github.com/felixgeelhaar/stressguard/internal/questionnaire"
	"github.com/felixgeelhaar/stressguard/internal/router"
	"github.com/felixgeelhaar/stressguard/internal/store"
)

// ResultLister reads stored questionnaire results
type ResultLister interface {
	ListResults(ctx context.Context, f store.ResultFilter) ([]*questionnaire.Result, error)
}

// AlertRecorder persists alerts posted to the API
type AlertRecorder interface {
	RecordAlert(ctx context.Context, a alert.Alert) error
}

// Server provides the HTTP service.
type Server struct {
	httpServer      *http.Server
	handler         http.Handler
	monitor         *health.Monitor
	inShutdown      atomic.Bool
	shutdownTimeout time.Duration

	router         *router.Router
	results        ResultLister
	alerts         AlertRecorder
	metrics        *metrics.Metrics
	metricsHandler http.Handler
	logger         *log.Logger

	alertSeq atomic.Int64

	// pongWait bounds how long a chat client may stay silent, pings included
	pongWait time.Duration

	// baseCtx is cancelled on Shutdown and bounds every chat session
	baseCtx    context.Context
	cancelBase context.CancelFunc
	sessionsMu sync.Mutex
	sessions   map[*websocket.Conn]struct{}
	sessionsWG sync.WaitGroup
}

// Config holds server configuration.
type Config struct {
	// Address is the listen address (e.g., ":8080", "127.0.0.1:8080")
	Address string

	// ShutdownTimeout is the maximum time to wait for connections to drain during shutdown.
	// Defaults to 30 seconds if not specified.
	ShutdownTimeout time.Duration

	// ReadTimeout is the maximum duration for reading the entire request.
	// Defaults to 10 seconds if not specified.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum duration before timing out writes of the response.
	// Defaults to 10 seconds if not specified. Websocket sessions set their
	// own per-frame deadlines once upgraded.
	WriteTimeout time.Duration

	// IdleTimeout is the maximum amount of time to wait for the next request.
	// Defaults to 60 seconds if not specified.
	IdleTimeout time.Duration
}

// Option configures a Server
type Option func(*Server)

// WithRouter enables the websocket chat
func WithRouter(r *router.Router) Option {
	return func(s *Server) { s.router = r }
}

// WithResults enables GET /api/v1/results
func WithResults(rl ResultLister) Option {
	return func(s *Server) { s.results = rl }
}

// WithAlerts stores alerts posted to POST /api/v1/alerts
func WithAlerts(ar AlertRecorder) Option {
	return func(s *Server) { s.alerts = ar }
}

// WithMetrics counts sessions and alerts in m and serves handler on /metrics
func WithMetrics(m *metrics.Metrics, handler http.Handler) Option {
	return func(s *Server) {
		s.metrics = m
		s.metricsHandler = handler
	}
}

// WithPongWait sets how long an idle chat connection survives without a
// pong. Pings are sent at nine tenths of it.
func WithPongWait(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.pongWait = d
		}
	}
}

// WithLogger sets the logger
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a new HTTP server.
func NewServer(monitor *health.Monitor, cfg Config, opts ...Option) *Server {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 60 * time.Second
	}

	baseCtx, cancel := context.WithCancel(context.Background())
	s := &Server{
		monitor:         monitor,
		shutdownTimeout: cfg.ShutdownTimeout,
		logger:          log.DefaultLogger(),
		baseCtx:         baseCtx,
		cancelBase:      cancel,
		sessions:        make(map[*websocket.Conn]struct{}),
		pongWait:        defaultPongWait,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handler = otelhttp.NewHandler(s.routes(), "stressguard",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health/live", s.handleLiveness)
	r.Get("/health/ready", s.handleReadiness)
	r.Get("/health/startup", s.handleStartup)
	// /healthz maps to readiness
	r.Get("/healthz", s.handleReadiness)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/questionnaires", s.handleListQuestionnaires)
		r.Get("/questionnaires/{id}", s.handleGetQuestionnaire)
		r.Get("/results", s.handleListResults)
		r.Post("/alerts", s.handlePostAlert)
	})

	r.Get("/ws", s.handleChat)

	if s.metricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", s.metricsHandler)
	}

	return r
}

// requestLogger logs one line per request at debug level
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

// Handler returns the complete HTTP handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the HTTP server.
// This is a blocking call that returns when the server is stopped or encounters an error.
// Returns http.ErrServerClosed when the server is shut down gracefully.
func (s *Server) Start() error {
	s.monitor.MarkInitialized()
	s.logger.Info("http server listening", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Serve is Start on an existing listener
func (s *Server) Serve(ln net.Listener) error {
	s.monitor.MarkInitialized()
	s.logger.Info("http server listening", "addr", ln.Addr().String())
	return s.httpServer.Serve(ln)
}

// Shutdown performs graceful shutdown of the HTTP server.
//
// It:
//  1. Marks the server as shutting down (readiness checks fail)
//  2. Disables HTTP keep-alives to stop accepting new requests
//  3. Closes open chat sessions, which are hijacked and not drained by http.Server
//  4. Waits for in-flight requests to drain (up to ShutdownTimeout)
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)
	s.monitor.MarkShutdown()

	s.httpServer.SetKeepAlivesEnabled(false)

	shutdownCtx, cancel := context.WithTimeout(ctx, s.shutdownTimeout)
	defer cancel()

	s.cancelBase()
	s.closeSessions()

	err := s.httpServer.Shutdown(shutdownCtx)

	done := make(chan struct{})
	go func() {
		s.sessionsWG.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-shutdownCtx.Done():
		if err == nil {
			err = shutdownCtx.Err()
		}
	}
	return err
}

// IsShuttingDown returns whether the server is shutting down.
func (s *Server) IsShuttingDown() bool {
	return s.inShutdown.Load()
}

// writeHealthResponse writes a health report, using unhealthyStatus when the
// result is unhealthy.
func (s *Server) writeHealthResponse(w http.ResponseWriter, result *health.Report, unhealthyStatus int) {
	status := http.StatusOK
	if result.Status == health.StatusUnhealthy {
		status = unhealthyStatus
	}
	writeJSON(w, status, result)
}

// handleLiveness handles GET /health/live.
// Liveness always answers 200, with a degraded status during shutdown.
func (s *Server) handleLiveness(w http.ResponseWriter, r *http.Request) {
	result := s.monitor.CheckLiveness(r.Context())
	s.writeHealthResponse(w, result, http.StatusOK)
}

// handleReadiness handles GET /health/ready.
// Returns 503 while shutting down or when a dependency is unhealthy.
func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	result := s.monitor.CheckReadiness(r.Context())
	s.writeHealthResponse(w, result, http.StatusServiceUnavailable)
}

// handleStartup handles GET /health/startup.
// Returns 503 until the server has started listening.
func (s *Server) handleStartup(w http.ResponseWriter, r *http.Request) {
	result := s.monitor.CheckStartup(r.Context())
	s.writeHealthResponse(w, result, http.StatusServiceUnavailable)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, fmt.Sprintf("Failed to encode response: %v", err), http.StatusInternalServerError)
	}
}
