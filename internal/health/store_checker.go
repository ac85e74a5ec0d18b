package health

import (
	"context"
)

// Pinger is anything that can verify its own connection
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreChecker checks the results database
type StoreChecker struct {
	db Pinger
}

// NewStoreChecker creates a checker for db
func NewStoreChecker(db Pinger) *StoreChecker {
	return &StoreChecker{db: db}
}

// Name returns the name of this health check.
func (c *StoreChecker) Name() string {
	return "results-store"
}

// Check pings the database. Without a store results are simply not kept,
// so that case is degraded rather than unhealthy.
func (c *StoreChecker) Check(ctx context.Context) *Result {
	if c.db == nil {
		return Degraded("results store disabled")
	}
	if err := c.db.Ping(ctx); err != nil {
		return Unhealthy("results store unavailable").WithDetail("error", err.Error())
	}
	return Healthy("results store reachable")
}
