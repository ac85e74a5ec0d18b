package provider

import (
	"context"
	"time"
)

// ProviderClient is the interface every chat generator backend implements.
type ProviderClient interface {
	// Generate sends a prompt and returns a complete response.
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResponse, error)

	// Stream sends a prompt and returns a channel of response chunks.
	// The channel is closed after the final chunk, which has Done set and
	// carries Error when the stream failed part way.
	Stream(ctx context.Context, req *GenerateRequest) (<-chan StreamChunk, error)

	// GetInfo returns metadata about the provider
	GetInfo() *ProviderInfo

	// Health performs a health check on the provider.
	// Returns nil if healthy, error describing the problem otherwise.
	Health(ctx context.Context) error

	// Close cleans up any resources used by the provider.
	Close() error
}

// ProviderInfo contains metadata about a provider
type ProviderInfo struct {
	// Name is the provider identifier ("openai", "ollama")
	Name string

	// Model is the default model requests are sent to
	Model string

	// BaseURL is the endpoint the provider talks to
	BaseURL string

	// Type is the provider implementation type
	Type ProviderType
}

// ProviderType represents where the model runs
type ProviderType string

const (
	// ProviderTypeAPI is a hosted HTTP API
	ProviderTypeAPI ProviderType = "api"

	// ProviderTypeLocal is a model server on the local machine or network
	ProviderTypeLocal ProviderType = "local"
)

// StreamChunk represents a single chunk in a streaming response
type StreamChunk struct {
	// Content is the accumulated text so far
	Content string

	// Delta is the incremental text added by this chunk
	Delta string

	// Done indicates if this is the final chunk
	Done bool

	// TokensUsed is updated in the final chunk
	TokensUsed int

	// Error contains any error that occurred (in the final chunk)
	Error error

	// Timestamp is when this chunk was generated
	Timestamp time.Time
}

// emit delivers c unless ctx ends first, so a reader that gave up on the
// stream never leaves the producer blocked. It reports whether c was sent.
func emit(ctx context.Context, ch chan<- StreamChunk, c StreamChunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}
