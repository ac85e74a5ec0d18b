package health

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultCheckTimeout bounds a single checker. The chat provider is the slow
// one: a cold Ollama model can take seconds to answer its first request.
const defaultCheckTimeout = 5 * time.Second

type registered struct {
	checker  Checker
	optional bool
}

// Manager runs the registered checkers concurrently and aggregates them.
//
// A checker added with AddOptional guards a dependency StressGuard can live
// without. When it fails the overall status is degraded, never unhealthy:
// questionnaires and stored results keep working while the chat provider is
// down.
type Manager struct {
	mu       sync.RWMutex
	checkers []registered
	timeout  time.Duration
}

// NewManager creates a manager with a 5 second per-check timeout
func NewManager() *Manager {
	return &Manager{timeout: defaultCheckTimeout}
}

// WithTimeout sets the per-check timeout
func (m *Manager) WithTimeout(timeout time.Duration) *Manager {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return m
}

// AddChecker registers a dependency that must be healthy to serve traffic
func (m *Manager) AddChecker(c Checker) {
	m.add(c, false)
}

// AddOptional registers a dependency whose failure only degrades the service
func (m *Manager) AddOptional(c Checker) {
	m.add(c, true)
}

func (m *Manager) add(c Checker, optional bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkers = append(m.checkers, registered{checker: c, optional: optional})
}

// Check runs every checker in parallel, each under its own timeout, and
// returns the results keyed by checker name
func (m *Manager) Check(ctx context.Context) map[string]*Result {
	m.mu.RLock()
	checkers := append([]registered(nil), m.checkers...)
	timeout := m.timeout
	m.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]*Result, len(checkers))
	)
	for _, reg := range checkers {
		wg.Add(1)
		go func(reg registered) {
			defer wg.Done()
			res := m.run(ctx, reg, timeout)
			mu.Lock()
			results[reg.checker.Name()] = res
			mu.Unlock()
		}(reg)
	}
	wg.Wait()
	return results
}

func (m *Manager) run(ctx context.Context, reg registered, timeout time.Duration) (res *Result) {
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			res = Unhealthy("check panicked").WithDetail("panic", fmt.Sprint(p))
		}
		if res == nil {
			res = Unhealthy("check returned no result")
		}
		// Checkers may hand out a shared Result
		res = res.clone()
		if res.Latency == 0 {
			res.Latency = time.Since(start)
		}
		if reg.optional && res.Status == StatusUnhealthy {
			res.Status = StatusDegraded
			res.WithDetail("optional", true)
		}
	}()
	return reg.checker.Check(checkCtx)
}

// OverallStatus is the worst status among results, healthy when empty
func (m *Manager) OverallStatus(results map[string]*Result) Status {
	overall := StatusHealthy
	for _, r := range results {
		switch r.Status {
		case StatusUnhealthy:
			return StatusUnhealthy
		case StatusDegraded:
			overall = StatusDegraded
		}
	}
	return overall
}
