// Package health provides health monitoring for hub components with
// thread-safe status tracking, aggregation, and message sanitization.
//
// The package tracks the health of individual components (provider client,
// NATS ingestor, webhook notifier, executor) and aggregates them into a
// single system status served by the gateway /healthz endpoint and the
// metrics server /health endpoint.
//
// # Health States
//
// The package supports three health states:
//   - Healthy: component operating normally
//   - Degraded: component operating with reduced functionality
//   - Unhealthy: component not functioning properly
//
// The three-state model lets operators distinguish conditions that need
// attention (a provider circuit breaker half-open, a webhook queue near
// capacity) from conditions that need intervention (provider unreachable).
//
// # Core Components
//
// Status: individual component health containing status level, descriptive
// message, timestamp, optional metrics, and hierarchical sub-statuses.
//
// Monitor: thread-safe centralized tracking for multiple components. Supports
// both push-style updates and registered CheckFunc probes refreshed on
// demand.
//
// # Basic Usage
//
// Push-style updates from components that know their own state:
//
//	monitor := health.NewMonitor()
//
//	monitor.UpdateHealthy("executor", "Executor running")
//	monitor.UpdateDegraded("webhook", "Delivery queue above 80% capacity")
//	monitor.UpdateUnhealthy("nats", "Connection lost, circuit breaker open")
//
//	if status, exists := monitor.Get("executor"); exists && status.IsHealthy() {
//	    log.Println("executor is healthy")
//	}
//
// Pull-style probes for components that must be asked:
//
//	monitor.RegisterChecker("provider", func(ctx context.Context) health.Status {
//	    if err := client.Healthy(ctx); err != nil {
//	        return health.NewUnhealthy("provider", err.Error())
//	    }
//	    return health.NewHealthy("provider", "Provider API reachable")
//	})
//
//	monitor.RunChecks(ctx)
//
// # System Aggregation
//
// AggregateHealth rolls all component statuses into one:
//
//	system := monitor.AggregateHealth("ssohub")
//	// system.Status is "unhealthy" if any component is unhealthy,
//	// "degraded" if any is degraded, otherwise "healthy"
//
// Handler serves the aggregate as JSON with a status code load balancers can
// act on (200 for healthy or degraded, 503 for unhealthy):
//
//	mux.Handle("/healthz", monitor.Handler("ssohub"))
//
// # Message Sanitization
//
// Health messages frequently embed error strings from failed connections and
// API calls, which can carry tokens, URLs, file paths, and addresses. Every
// message passing through Monitor.Update is run through Sanitize, which
// redacts authorization scheme values (SSWS, Bearer), URLs, file paths, IP
// addresses, port numbers, and credential assignments. Sanitize is exported
// for reuse on API error responses.
//
// # Thread Safety
//
// All Monitor methods are safe for concurrent use. Registered checkers run
// outside the monitor lock, so a slow probe blocks neither updates nor reads.
package health
