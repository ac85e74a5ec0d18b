// Package telemetry sets up OpenTelemetry tracing for StressGuard and
// provides span helpers for commands, conversation turns and generator calls.
package telemetry

// Config holds configuration for the tracer
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Environment is the deployment environment (development, production)
	Environment string

	// Enabled determines whether tracing is enabled.
	// When false, a noop tracer is used.
	Enabled bool

	// Endpoint is the OTLP/HTTP collector host:port.
	// Empty keeps spans in process without exporting them.
	Endpoint string

	// SampleRate is the fraction of traces to sample (0.0 to 1.0)
	SampleRate float64
}

// DefaultConfig has tracing disabled, which is right for the interactive chat
func DefaultConfig() Config {
	return Config{
		ServiceName:    "stressguard",
		ServiceVersion: "dev",
		Environment:    "development",
		Enabled:        false,
		SampleRate:     1.0,
	}
}

// ServerConfig enables tracing for the HTTP service, exporting to endpoint
// when one is given
func ServerConfig(version, endpoint string, sampleRate float64) Config {
	cfg := DefaultConfig()
	cfg.ServiceVersion = version
	cfg.Enabled = true
	cfg.Endpoint = endpoint
	cfg.SampleRate = sampleRate
	if endpoint != "" {
		cfg.Environment = "production"
	}
	return cfg
}
