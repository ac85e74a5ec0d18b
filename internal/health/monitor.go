package health

import (
	"context"
	"sync/atomic"
	"time"
)

// Monitor layers the liveness, readiness and startup checks served by
// stressguard serve on top of Manager.
type Monitor struct {
	*Manager

	version  string
	started  time.Time
	ready    atomic.Bool
	draining atomic.Bool
}

func NewMonitor(version string) *Monitor {
	return &Monitor{Manager: NewManager(), version: version, started: time.Now()}
}

// MarkInitialized is called once the listener accepts connections
func (pm *Monitor) MarkInitialized() { pm.ready.Store(true) }

// MarkShutdown fails readiness so no new chats are routed here while open
// sessions drain
func (pm *Monitor) MarkShutdown() { pm.draining.Store(true) }

func (pm *Monitor) IsInitialized() bool  { return pm.ready.Load() }
func (pm *Monitor) IsShuttingDown() bool { return pm.draining.Load() }

// Report is the JSON body of every health endpoint
type Report struct {
	Status    Status             `json:"status"`
	Version   string             `json:"version,omitempty"`
	Uptime    string             `json:"uptime,omitempty"`
	Checks    map[string]*Result `json:"checks,omitempty"`
	Timestamp time.Time          `json:"timestamp"`
}

func (pm *Monitor) report(status Status, checks map[string]*Result) *Report {
	now := time.Now()
	return &Report{
		Status:    status,
		Version:   pm.version,
		Uptime:    now.Sub(pm.started).Round(time.Second).String(),
		Checks:    checks,
		Timestamp: now,
	}
}

// CheckLiveness never touches dependencies. Draining reports degraded so the
// process is not restarted mid-shutdown.
func (pm *Monitor) CheckLiveness(context.Context) *Report {
	if pm.IsShuttingDown() {
		return pm.report(StatusDegraded, nil)
	}
	return pm.report(StatusHealthy, nil)
}

// CheckReadiness runs every registered checker unless the server is draining
func (pm *Monitor) CheckReadiness(ctx context.Context) *Report {
	if pm.IsShuttingDown() {
		return pm.report(StatusUnhealthy, nil)
	}
	checks := pm.Check(ctx)
	return pm.report(pm.OverallStatus(checks), checks)
}

func (pm *Monitor) CheckStartup(context.Context) *Report {
	if !pm.IsInitialized() {
		return pm.report(StatusUnhealthy, nil)
	}
	return pm.report(StatusHealthy, nil)
}
