package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

// CheckFunc probes a single component and reports its current status.
// Checkers that talk to remote systems should honor the context deadline.
type CheckFunc func(ctx context.Context) Status

// Monitor tracks health of multiple components in a thread-safe manner.
// Components either push updates through Update or register a CheckFunc
// that RunChecks polls on demand.
type Monitor struct {
	mu       sync.RWMutex
	statuses map[string]Status
	checkers map[string]CheckFunc
}

// NewMonitor creates a new health monitor
func NewMonitor() *Monitor {
	return &Monitor{
		statuses: make(map[string]Status),
		checkers: make(map[string]CheckFunc),
	}
}

// Update updates the health status for a named component. The message is
// sanitized on the way in so everything the monitor holds is safe to expose.
func (m *Monitor) Update(name string, status Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Ensure the status has the correct component name and timestamp
	status.Component = name
	if status.Timestamp.IsZero() {
		status.Timestamp = time.Now()
	}
	status.Message = Sanitize(status.Message)

	m.statuses[name] = status
}

// UpdateHealthy is a convenience method to update a component as healthy
func (m *Monitor) UpdateHealthy(name, message string) {
	m.Update(name, NewHealthy(name, message))
}

// UpdateUnhealthy is a convenience method to update a component as unhealthy
func (m *Monitor) UpdateUnhealthy(name, message string) {
	m.Update(name, NewUnhealthy(name, message))
}

// UpdateDegraded is a convenience method to update a component as degraded
func (m *Monitor) UpdateDegraded(name, message string) {
	m.Update(name, NewDegraded(name, message))
}

// RegisterChecker registers a callback that RunChecks invokes to refresh the
// component's status. Registering a second checker under the same name
// replaces the first.
func (m *Monitor) RegisterChecker(name string, check CheckFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.checkers[name] = check
}

// RunChecks invokes every registered checker and records the results.
// Checkers run outside the monitor lock so a slow probe does not block
// concurrent reads.
func (m *Monitor) RunChecks(ctx context.Context) {
	m.mu.RLock()
	checkers := make(map[string]CheckFunc, len(m.checkers))
	for name, check := range m.checkers {
		checkers[name] = check
	}
	m.mu.RUnlock()

	for name, check := range checkers {
		m.Update(name, check(ctx))
	}
}

// Get retrieves the health status for a named component
func (m *Monitor) Get(name string) (Status, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	status, exists := m.statuses[name]
	return status, exists
}

// GetAll returns a copy of all current health statuses
func (m *Monitor) GetAll() map[string]Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make(map[string]Status, len(m.statuses))
	for name, status := range m.statuses {
		result[name] = status
	}
	return result
}

// Remove removes a component from monitoring, including any registered checker
func (m *Monitor) Remove(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.statuses, name)
	delete(m.checkers, name)
}

// AggregateHealth returns an aggregated health status for the entire system
func (m *Monitor) AggregateHealth(systemName string) Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	subStatuses := make([]Status, 0, len(m.statuses))
	for _, status := range m.statuses {
		subStatuses = append(subStatuses, status)
	}

	return Aggregate(systemName, subStatuses)
}

// ListComponents returns a list of all component names being monitored
func (m *Monitor) ListComponents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.statuses))
	for name := range m.statuses {
		names = append(names, name)
	}
	return names
}

// Count returns the number of components being monitored
func (m *Monitor) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.statuses)
}

// Clear removes all components and checkers from monitoring
func (m *Monitor) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.statuses = make(map[string]Status)
	m.checkers = make(map[string]CheckFunc)
}

// Handler returns an http.Handler serving the aggregated system health as
// JSON. Registered checkers are refreshed on each request. Healthy and
// degraded aggregates respond 200; unhealthy responds 503 so load balancers
// can act on the status code alone.
func (m *Monitor) Handler(systemName string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RunChecks(r.Context())

		aggregate := m.AggregateHealth(systemName)

		code := http.StatusOK
		if aggregate.IsUnhealthy() {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(aggregate)
	})
}
