package health

import (
	"context"
	"sync"
	"time"
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// DefaultProbeTimeout bounds a single probe run.
const DefaultProbeTimeout = 2 * time.Second

// Monitor tracks the health of named dependencies. A dependency is either
// pushed in through Update (connection callbacks) or pulled through a
// registered Probe on every Check.
type Monitor struct {
	mu           sync.RWMutex
	statuses     map[string]Status
	probes       map[string]Probe
	probeTimeout time.Duration
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses:     make(map[string]Status),
		probes:       make(map[string]Probe),
		probeTimeout: DefaultProbeTimeout,
	}
}

// Register adds a probe that runs on every Check.
func (m *Monitor) Register(name string, probe Probe) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probes[name] = probe
}

// Update records a pushed status for a named dependency.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	m.statuses[name] = status
}

// UpdateHealthy is a convenience method to mark a dependency healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateDegraded is a convenience method to mark a dependency degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// UpdateUnhealthy is a convenience method to mark a dependency unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// Get retrieves the last known status of a dependency.
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	status, ok := m.statuses[name]
	return status, ok
}

// Check runs every probe, stores the results and returns the aggregate.
func (m *Monitor) Check(ctx context.Context, systemName string) Status {
	m.mu.RLock()
	probes := make(map[string]Probe, len(m.probes))
	for name, p := range m.probes {
		probes[name] = p
	}
	timeout := m.probeTimeout
	m.mu.RUnlock()

	for name, probe := range probes {
		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		err := probe(probeCtx)
		cancel()
		m.Update(name, FromError(name, err))
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	subStatuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}
	return Aggregate(systemName, subStatuses)
}
