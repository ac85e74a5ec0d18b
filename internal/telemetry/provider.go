package telemetry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

var (
	providerMu     sync.RWMutex
	globalProvider trace.TracerProvider
	globalShutdown func(context.Context) error
)

// ErrCollectorUnavailable is returned while the export breaker is open
var ErrCollectorUnavailable = errors.New("telemetry: collector unavailable, spans dropped")

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerTrial
)

// exportBreaker stops talking to a collector that keeps failing. After
// cooldown a single trial export is let through; its outcome decides
// whether the breaker closes again.
type exportBreaker struct {
	mu        sync.Mutex
	threshold int
	cooldown  time.Duration
	now       func() time.Time

	state    breakerState
	failures int
	openedAt time.Time
}

func newExportBreaker(threshold int, cooldown time.Duration) *exportBreaker {
	return &exportBreaker{threshold: threshold, cooldown: cooldown, now: time.Now}
}

func (b *exportBreaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case breakerOpen:
		if b.now().Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = breakerTrial
		return true
	case breakerTrial:
		// one trial in flight at a time
		return false
	default:
		return true
	}
}

func (b *exportBreaker) report(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err == nil {
		b.state = breakerClosed
		b.failures = 0
		return
	}
	b.failures++
	if b.state == breakerTrial || b.failures >= b.threshold {
		b.state = breakerOpen
		b.openedAt = b.now()
	}
}

// retryPolicy is a capped exponential backoff
type retryPolicy struct {
	attempts int
	first    time.Duration
	max      time.Duration
	factor   float64
}

var defaultRetry = retryPolicy{attempts: 4, first: 200 * time.Millisecond, max: 2 * time.Second, factor: 2}

func (p retryPolicy) delay(attempt int) time.Duration {
	d := p.first
	for i := 0; i < attempt; i++ {
		d = time.Duration(float64(d) * p.factor)
		if d >= p.max {
			return p.max
		}
	}
	return d
}

// guardedExporter retries transient collector errors and sheds spans while
// the breaker is open, so a missing collector never stalls the service
type guardedExporter struct {
	next    sdktrace.SpanExporter
	breaker *exportBreaker
	retry   retryPolicy
}

func guard(next sdktrace.SpanExporter) *guardedExporter {
	return &guardedExporter{
		next:    next,
		breaker: newExportBreaker(5, 30*time.Second),
		retry:   defaultRetry,
	}
}

func (g *guardedExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	if !g.breaker.allow() {
		return ErrCollectorUnavailable
	}

	var err error
	for attempt := 0; attempt < g.retry.attempts; attempt++ {
		if attempt > 0 {
			t := time.NewTimer(g.retry.delay(attempt - 1))
			select {
			case <-ctx.Done():
				t.Stop()
				g.breaker.report(ctx.Err())
				return ctx.Err()
			case <-t.C:
			}
		}
		if err = g.next.ExportSpans(ctx, spans); err == nil {
			break
		}
	}

	g.breaker.report(err)
	if err != nil {
		return fmt.Errorf("export %d spans: %w", len(spans), err)
	}
	return nil
}

func (g *guardedExporter) Shutdown(ctx context.Context) error {
	return g.next.Shutdown(ctx)
}

func createResource(cfg Config) (*resource.Resource, error) {
	return resource.New(
		context.Background(),
		resource.WithAttributes(
			semconv.ServiceNameKey.String(cfg.ServiceName),
			semconv.ServiceVersionKey.String(cfg.ServiceVersion),
			semconv.DeploymentEnvironmentKey.String(cfg.Environment),
		),
		resource.WithHost(),
		resource.WithTelemetrySDK(),
	)
}

// exporterOptions accepts either a bare host:port, exported over plain HTTP,
// or a full collector URL
func exporterOptions(endpoint string) []otlptracehttp.Option {
	opts := []otlptracehttp.Option{otlptracehttp.WithCompression(otlptracehttp.GzipCompression)}
	if strings.Contains(endpoint, "://") {
		return append(opts, otlptracehttp.WithEndpointURL(endpoint))
	}
	return append(opts, otlptracehttp.WithEndpoint(endpoint), otlptracehttp.WithInsecure())
}

func sampler(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1:
		return sdktrace.AlwaysSample()
	case rate <= 0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

func install(tp trace.TracerProvider, shutdown func(context.Context) error) {
	globalProvider = tp
	globalShutdown = shutdown
	otel.SetTracerProvider(tp)
}

// InitProvider installs the process tracer provider for cfg and returns its
// shutdown function. A disabled config installs a noop provider.
func InitProvider(ctx context.Context, cfg Config) (func(context.Context) error, error) {
	providerMu.Lock()
	defer providerMu.Unlock()

	if !cfg.Enabled {
		shutdown := func(context.Context) error { return nil }
		install(noop.NewTracerProvider(), shutdown)
		return shutdown, nil
	}

	res, err := createResource(cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry resource: %w", err)
	}

	opts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(cfg.SampleRate)),
	}
	if cfg.Endpoint != "" {
		exp, err := otlptracehttp.New(ctx, exporterOptions(cfg.Endpoint)...)
		if err != nil {
			return nil, fmt.Errorf("otlp exporter for %s: %w", cfg.Endpoint, err)
		}
		opts = append(opts, sdktrace.WithBatcher(guard(exp),
			sdktrace.WithBatchTimeout(5*time.Second),
			sdktrace.WithMaxExportBatchSize(256),
		))
	}

	tp := sdktrace.NewTracerProvider(opts...)
	install(tp, tp.Shutdown)
	return tp.Shutdown, nil
}

// Shutdown flushes and stops the installed provider, if any
func Shutdown(ctx context.Context) error {
	providerMu.RLock()
	shutdown := globalShutdown
	providerMu.RUnlock()

	if shutdown == nil {
		return nil
	}
	return shutdown(ctx)
}

// ForceFlush exports spans still queued in the batcher
func ForceFlush(ctx context.Context) error {
	if tp, ok := GetTracerProvider().(*sdktrace.TracerProvider); ok {
		return tp.ForceFlush(ctx)
	}
	return nil
}

// GetTracerProvider returns the installed provider or a noop one
func GetTracerProvider() trace.TracerProvider {
	providerMu.RLock()
	defer providerMu.RUnlock()

	if globalProvider == nil {
		return noop.NewTracerProvider()
	}
	return globalProvider
}
