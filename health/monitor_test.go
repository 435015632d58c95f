package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestNewMonitor(t *testing.T) {
	monitor := NewMonitor()

	if monitor == nil {
		t.Fatal("NewMonitor() returned nil")
	}

	if monitor.Count() != 0 {
		t.Errorf("New monitor should have 0 components, got %d", monitor.Count())
	}
}

func TestMonitor_Update(t *testing.T) {
	monitor := NewMonitor()

	status := Status{
		Component: "executor",
		Status:    StateHealthy,
		Message:   "running",
	}

	monitor.Update("executor", status)

	retrieved, exists := monitor.Get("executor")
	if !exists {
		t.Fatal("Component should exist after update")
	}

	if retrieved.Component != "executor" {
		t.Errorf("Expected component name 'executor', got %s", retrieved.Component)
	}

	if retrieved.Status != StateHealthy {
		t.Errorf("Expected status 'healthy', got %s", retrieved.Status)
	}

	if retrieved.Timestamp.IsZero() {
		t.Error("Update should set timestamp if not provided")
	}
}

func TestMonitor_UpdateOverridesComponentName(t *testing.T) {
	monitor := NewMonitor()

	// Update with a status carrying a different component name
	status := Status{
		Component: "wrong-name",
		Status:    StateHealthy,
	}

	monitor.Update("provider", status)

	retrieved, exists := monitor.Get("provider")
	if !exists {
		t.Fatal("Component should exist under the update name")
	}

	if retrieved.Component != "provider" {
		t.Errorf("Update should override component name, got %s", retrieved.Component)
	}
}

func TestMonitor_UpdatePreservesTimestamp(t *testing.T) {
	monitor := NewMonitor()

	explicit := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	monitor.Update("executor", Status{Status: StateHealthy, Timestamp: explicit})

	retrieved, _ := monitor.Get("executor")
	if !retrieved.Timestamp.Equal(explicit) {
		t.Errorf("Update should preserve explicit timestamp, got %v", retrieved.Timestamp)
	}
}

func TestMonitor_UpdateSanitizesMessage(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateUnhealthy("provider", "request to https://dev-123.okta.example.com/api failed: SSWS 00abcDEF123 rejected")

	retrieved, _ := monitor.Get("provider")
	if strings.Contains(retrieved.Message, "okta.example.com") {
		t.Errorf("URL should be sanitized from message: %q", retrieved.Message)
	}
	if strings.Contains(retrieved.Message, "00abcDEF123") {
		t.Errorf("Token should be sanitized from message: %q", retrieved.Message)
	}
}

func TestMonitor_ConvenienceMethods(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("executor", "running")
	monitor.UpdateDegraded("webhook", "queue filling")
	monitor.UpdateUnhealthy("nats", "disconnected")

	if status, _ := monitor.Get("executor"); !status.IsHealthy() {
		t.Error("executor should be healthy")
	}
	if status, _ := monitor.Get("webhook"); !status.IsDegraded() {
		t.Error("webhook should be degraded")
	}
	if status, _ := monitor.Get("nats"); !status.IsUnhealthy() {
		t.Error("nats should be unhealthy")
	}
}

func TestMonitor_GetMissing(t *testing.T) {
	monitor := NewMonitor()

	_, exists := monitor.Get("nonexistent")
	if exists {
		t.Error("Get should report missing components")
	}
}

func TestMonitor_GetAll(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("executor", "ok")
	monitor.UpdateHealthy("provider", "ok")

	all := monitor.GetAll()
	if len(all) != 2 {
		t.Fatalf("GetAll length = %d, want 2", len(all))
	}

	// Mutating the copy must not affect the monitor
	delete(all, "executor")
	if monitor.Count() != 2 {
		t.Error("GetAll should return a copy")
	}
}

func TestMonitor_Remove(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("executor", "ok")
	monitor.Remove("executor")

	if _, exists := monitor.Get("executor"); exists {
		t.Error("Component should be removed")
	}
	if monitor.Count() != 0 {
		t.Errorf("Count = %d after remove, want 0", monitor.Count())
	}
}

func TestMonitor_AggregateHealth(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("executor", "ok")
	monitor.UpdateHealthy("provider", "ok")

	aggregate := monitor.AggregateHealth("ssohub")
	if !aggregate.IsHealthy() {
		t.Errorf("Aggregate should be healthy, got %s", aggregate.Status)
	}

	monitor.UpdateUnhealthy("nats", "disconnected")

	aggregate = monitor.AggregateHealth("ssohub")
	if !aggregate.IsUnhealthy() {
		t.Errorf("Aggregate should be unhealthy, got %s", aggregate.Status)
	}
	if len(aggregate.SubStatuses) != 3 {
		t.Errorf("SubStatuses length = %d, want 3", len(aggregate.SubStatuses))
	}
}

func TestMonitor_ListComponents(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("executor", "ok")
	monitor.UpdateHealthy("provider", "ok")

	names := monitor.ListComponents()
	if len(names) != 2 {
		t.Fatalf("ListComponents length = %d, want 2", len(names))
	}

	found := map[string]bool{}
	for _, name := range names {
		found[name] = true
	}
	if !found["executor"] || !found["provider"] {
		t.Errorf("ListComponents missing expected names: %v", names)
	}
}

func TestMonitor_Clear(t *testing.T) {
	monitor := NewMonitor()

	monitor.UpdateHealthy("executor", "ok")
	monitor.RegisterChecker("provider", func(context.Context) Status {
		return NewHealthy("provider", "ok")
	})

	monitor.Clear()

	if monitor.Count() != 0 {
		t.Errorf("Count = %d after clear, want 0", monitor.Count())
	}

	// Cleared checkers must not resurrect statuses
	monitor.RunChecks(context.Background())
	if monitor.Count() != 0 {
		t.Error("Cleared checkers should not run")
	}
}

func TestMonitor_RegisterCheckerAndRunChecks(t *testing.T) {
	monitor := NewMonitor()

	healthy := true
	monitor.RegisterChecker("provider", func(context.Context) Status {
		if healthy {
			return NewHealthy("provider", "API reachable")
		}
		return NewUnhealthy("provider", "API unreachable")
	})

	monitor.RunChecks(context.Background())

	status, exists := monitor.Get("provider")
	if !exists {
		t.Fatal("Checker result should be recorded")
	}
	if !status.IsHealthy() {
		t.Errorf("Status = %s, want healthy", status.Status)
	}

	healthy = false
	monitor.RunChecks(context.Background())

	status, _ = monitor.Get("provider")
	if !status.IsUnhealthy() {
		t.Errorf("Status = %s after flip, want unhealthy", status.Status)
	}
}

func TestMonitor_CheckerReplacement(t *testing.T) {
	monitor := NewMonitor()

	monitor.RegisterChecker("provider", func(context.Context) Status {
		return NewUnhealthy("provider", "old checker")
	})
	monitor.RegisterChecker("provider", func(context.Context) Status {
		return NewHealthy("provider", "new checker")
	})

	monitor.RunChecks(context.Background())

	status, _ := monitor.Get("provider")
	if !status.IsHealthy() {
		t.Error("Second registration should replace the first checker")
	}
}

func TestMonitor_Handler(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateHealthy("executor", "ok")

	handler := monitor.Handler("ssohub")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Status code = %d, want 200", rec.Code)
	}

	var body Status
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("Response should be JSON: %v", err)
	}
	if body.Component != "ssohub" {
		t.Errorf("Component = %q, want ssohub", body.Component)
	}
	if !body.IsHealthy() {
		t.Errorf("Status = %q, want healthy", body.Status)
	}
}

func TestMonitor_HandlerUnhealthy(t *testing.T) {
	monitor := NewMonitor()
	monitor.UpdateUnhealthy("provider", "connection refused")

	handler := monitor.Handler("ssohub")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Status code = %d, want 503", rec.Code)
	}
}

func TestMonitor_HandlerRunsCheckers(t *testing.T) {
	monitor := NewMonitor()

	calls := 0
	monitor.RegisterChecker("provider", func(context.Context) Status {
		calls++
		return NewHealthy("provider", "ok")
	})

	handler := monitor.Handler("ssohub")

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	if calls != 1 {
		t.Errorf("Checker calls = %d, want 1", calls)
	}
}

func TestMonitor_ConcurrentAccess(t *testing.T) {
	monitor := NewMonitor()

	var wg sync.WaitGroup
	components := []string{"executor", "provider", "nats", "webhook", "gateway"}

	// Concurrent writers
	for _, name := range components {
		wg.Add(1)
		go func(component string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				monitor.UpdateHealthy(component, "ok")
			}
		}(name)
	}

	// Concurrent readers
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				monitor.GetAll()
				monitor.AggregateHealth("ssohub")
				monitor.Count()
			}
		}()
	}

	wg.Wait()

	if monitor.Count() != len(components) {
		t.Errorf("Count = %d, want %d", monitor.Count(), len(components))
	}
}
