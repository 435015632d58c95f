// Package metric provides Prometheus-based metrics collection and an HTTP
// server for monitoring the event hub.
//
// The package offers a centralized metrics registry managing both core hub
// metrics (event intake, rule matching, flow executions, provider API calls,
// webhook delivery, NATS health) and custom component-specific metrics. It
// includes an HTTP server exposing metrics in Prometheus format for
// monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: hub-level metrics automatically registered (Metrics type)
//  2. Component Registry: extensible registration for component-specific metrics (MetricsRegistrar interface)
//  3. HTTP Server: metrics endpoint with health check (Server type)
//
// Core metrics cover the shared event pipeline. Components with their own
// internal state (worker pools, history rings, caches) register their series
// through the MetricsRegistrar interface so everything is gathered from one
// registry and served from one endpoint.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry, nil)
//
//	go func() {
//	    if err := server.Start(); err != nil && err != http.ErrServerClosed {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//
//	// Record core hub metrics
//	core := registry.CoreMetrics()
//	core.RecordEvent("user.lifecycle.create")
//	core.RecordRuleMatch("rule_new_hire_onboarding")
//	core.RecordExecution("flow_new_hire_onboarding", "success")
//
// The server exposes Prometheus-formatted metrics at
// http://localhost:9090/metrics and a health check at
// http://localhost:9090/health. Passing a non-nil health handler to NewServer
// replaces the default 200 OK response, typically with a health.Monitor
// handler that reports component status.
//
// # Core Metrics
//
// All core series use the ssohub namespace:
//
//   - ssohub_events_received_total{type}: events accepted into the pipeline
//   - ssohub_events_history_size: events currently retained in history
//   - ssohub_rules_matches_total{rule}: trigger rule matches
//   - ssohub_executions_total{flow,status}: flow executions by terminal status
//   - ssohub_executions_duration_seconds{flow}: dispatch-to-terminal latency
//   - ssohub_executions_active: executions awaiting a terminal status
//   - ssohub_provider_requests_total{operation,code}: provider API calls
//   - ssohub_provider_request_duration_seconds{operation}: provider API latency
//   - ssohub_webhooks_deliveries_total{status}: webhook delivery outcomes
//   - ssohub_nats_connected, ssohub_nats_rtt_milliseconds,
//     ssohub_nats_reconnects_total, ssohub_nats_circuit_breaker: transport health
//
// Record through the typed helpers rather than the raw vectors:
//
//	core := registry.CoreMetrics()
//	core.RecordEvent("user.authentication.sso.login.failure")
//	core.RecordExecutionDuration("flow_mfa_remediation", 3*time.Second)
//	core.RecordProviderRequest("invoke", 201)
//	core.RecordWebhookDelivery("dropped")
//	core.RecordNATSStatus(true)
//
// # Component-Specific Metrics
//
// Components register custom metrics through the registry:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Namespace: "ssohub",
//	    Subsystem: "history",
//	    Name:      "appends_total",
//	    Help:      "Total number of items appended",
//	})
//	if err := registry.RegisterCounter("event_history", "history_appends", counter); err != nil {
//	    return err
//	}
//
// Registration keys are scoped by service name, so two components can track
// metrics under the same short name as long as the Prometheus series differ.
// Duplicate registrations are rejected with a classified invalid error.
//
// # Go Runtime Metrics
//
// The registry automatically includes the standard Go collector and process
// collector, so goroutine counts, GC pauses, and memory statistics appear
// alongside hub metrics without further wiring.
//
// # Thread Safety
//
// The registry serializes registration and unregistration with an internal
// mutex; recording on already-registered collectors is handled by the
// Prometheus client and needs no additional locking.
package metric
