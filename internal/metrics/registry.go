package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Default is the process-wide metrics instance
	Default *Metrics

	defaultRegistry *prometheus.Registry
	once            sync.Once
	mu              sync.Mutex
)

// InitDefault initializes the default metrics instance on its own registry,
// together with the Go runtime and process collectors.
func InitDefault() *Metrics {
	mu.Lock()
	defer mu.Unlock()
	once.Do(func() {
		defaultRegistry = prometheus.NewRegistry()
		defaultRegistry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		Default = NewMetrics(defaultRegistry)
	})
	return Default
}

// GetDefault returns the default metrics instance, initializing it first if needed
func GetDefault() *Metrics {
	return InitDefault()
}

// NewRegistry creates a new Prometheus registry with metrics
func NewRegistry() (*prometheus.Registry, *Metrics) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)
	return reg, m
}

// Handler serves the default registry
func Handler() http.Handler {
	InitDefault()
	mu.Lock()
	defer mu.Unlock()
	return HandlerFor(defaultRegistry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// HandlerFor returns an HTTP handler for a specific registry
func HandlerFor(reg prometheus.Gatherer, opts promhttp.HandlerOpts) http.Handler {
	return promhttp.HandlerFor(reg, opts)
}

// Reset discards the default instance and its registry
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	Default = nil
	defaultRegistry = nil
	once = sync.Once{}
}
