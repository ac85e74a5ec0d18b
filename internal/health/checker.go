// Package health reports whether StressGuard's dependencies are usable:
// the chat provider that answers free conversation and the results store.
//
//	pm := health.NewMonitor(version.Version)
//	pm.AddOptional(health.NewProviderChecker(client))
//	pm.AddChecker(health.NewStoreChecker(db))
//	report := pm.CheckReadiness(ctx)
package health

import (
	"context"
	"time"
)

// Checker verifies one dependency
type Checker interface {
	// Name is a short lowercase identifier such as "chat-provider"
	Name() string

	// Check must respect the context deadline
	Check(ctx context.Context) *Result
}

// Status represents the health check status.
type Status string

const (
	// StatusHealthy means the dependency is fully usable
	StatusHealthy Status = "healthy"

	// StatusDegraded means the dependency works but slowly or partially.
	// Questionnaires keep working; free chat may be sluggish.
	StatusDegraded Status = "degraded"

	// StatusUnhealthy means the dependency cannot be used
	StatusUnhealthy Status = "unhealthy"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result represents the result of a health check.
type Result struct {
	Status  Status                 `json:"status"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Latency time.Duration          `json:"latency_ns"`
}

// NewResult creates a new health check result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the result and returns the result for chaining.
func (r *Result) WithDetail(key string, value interface{}) *Result {
	if r.Details == nil {
		r.Details = make(map[string]interface{})
	}
	r.Details[key] = value
	return r
}

func (r *Result) clone() *Result {
	c := *r
	c.Details = make(map[string]interface{}, len(r.Details))
	for k, v := range r.Details {
		c.Details[k] = v
	}
	return &c
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Healthy creates a healthy result with the given message.
func Healthy(message string) *Result {
	return NewResult(StatusHealthy, message)
}

// Degraded creates a degraded result with the given message.
func Degraded(message string) *Result {
	return NewResult(StatusDegraded, message)
}

// Unhealthy creates an unhealthy result with the given message.
func Unhealthy(message string) *Result {
	return NewResult(StatusUnhealthy, message)
}
