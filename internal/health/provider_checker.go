package health

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/stressguard/internal/provider"
)

// DefaultSlowThreshold marks a provider that answers its health call slower
// than this as degraded
const DefaultSlowThreshold = 2 * time.Second

// ProviderChecker checks the chat provider behind free conversation
type ProviderChecker struct {
	client        provider.ProviderClient
	slowThreshold time.Duration
}

// NewProviderChecker creates a checker for client
func NewProviderChecker(client provider.ProviderClient) *ProviderChecker {
	return &ProviderChecker{client: client, slowThreshold: DefaultSlowThreshold}
}

// WithSlowThreshold overrides DefaultSlowThreshold
func (c *ProviderChecker) WithSlowThreshold(d time.Duration) *ProviderChecker {
	c.slowThreshold = d
	return c
}

// Name returns the name of this health check.
func (c *ProviderChecker) Name() string {
	return "chat-provider"
}

// Check calls the provider's health endpoint.
// A missing provider is unhealthy: questionnaires still work but chat does not.
func (c *ProviderChecker) Check(ctx context.Context) *Result {
	if c.client == nil {
		return Unhealthy("no chat provider configured").
			WithDetail("suggestion", "Set provider.name in stressguard.yaml")
	}

	info := c.client.GetInfo()
	start := time.Now()
	err := c.client.Health(ctx)
	latency := time.Since(start)

	var result *Result
	switch {
	case err != nil:
		result = Unhealthy(fmt.Sprintf("%s is not reachable", info.Name)).
			WithDetail("error", err.Error())
	case latency > c.slowThreshold:
		result = Degraded(fmt.Sprintf("%s answered slowly (%s)", info.Name, latency.Round(time.Millisecond)))
	default:
		result = Healthy(fmt.Sprintf("%s is reachable", info.Name))
	}

	return result.
		WithDetail("provider", info.Name).
		WithDetail("model", info.Model).
		WithDetail("base_url", info.BaseURL).
		WithDetail("type", string(info.Type)).
		WithLatency(latency)
}
