package metric

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains the hub-level metrics recorded by every component of the
// event pipeline: event intake, rule matching, flow execution, provider API
// calls, webhook delivery, and the NATS transport.
type Metrics struct {
	// Pipeline metrics
	EventsTotal       *prometheus.CounterVec
	EventHistorySize  prometheus.Gauge
	RuleMatchesTotal  *prometheus.CounterVec
	ExecutionsTotal   *prometheus.CounterVec
	ExecutionDuration *prometheus.HistogramVec
	ActiveExecutions  prometheus.Gauge

	// Provider API metrics
	ProviderRequestsTotal   *prometheus.CounterVec
	ProviderRequestDuration *prometheus.HistogramVec

	// Webhook delivery metrics
	WebhookDeliveriesTotal *prometheus.CounterVec

	// NATS metrics
	NATSConnected      prometheus.Gauge
	NATSRTT            prometheus.Gauge
	NATSReconnects     prometheus.Counter
	NATSCircuitBreaker prometheus.Gauge

	// Service lifecycle metrics
	ServiceStatus *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all hub metrics
func NewMetrics() *Metrics {
	return &Metrics{
		// Pipeline metrics
		EventsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ssohub",
				Subsystem: "events",
				Name:      "received_total",
				Help:      "Total number of events received, by event type",
			},
			[]string{"type"},
		),

		EventHistorySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ssohub",
				Subsystem: "events",
				Name:      "history_size",
				Help:      "Current number of events retained in the event history",
			},
		),

		RuleMatchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ssohub",
				Subsystem: "rules",
				Name:      "matches_total",
				Help:      "Total number of trigger rule matches, by rule ID",
			},
			[]string{"rule"},
		),

		ExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ssohub",
				Subsystem: "executions",
				Name:      "total",
				Help:      "Total number of flow executions, by flow ID and terminal status",
			},
			[]string{"flow", "status"},
		),

		ExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ssohub",
				Subsystem: "executions",
				Name:      "duration_seconds",
				Help:      "Flow execution duration from dispatch to terminal status",
				Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"flow"},
		),

		ActiveExecutions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ssohub",
				Subsystem: "executions",
				Name:      "active",
				Help:      "Number of flow executions currently awaiting a terminal status",
			},
		),

		// Provider API metrics
		ProviderRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ssohub",
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "Total number of provider API requests, by operation and HTTP status code",
			},
			[]string{"operation", "code"},
		),

		ProviderRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "ssohub",
				Subsystem: "provider",
				Name:      "request_duration_seconds",
				Help:      "Provider API request duration in seconds",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"operation"},
		),

		// Webhook delivery metrics
		WebhookDeliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "ssohub",
				Subsystem: "webhooks",
				Name:      "deliveries_total",
				Help:      "Total number of webhook delivery attempts, by outcome",
			},
			[]string{"status"},
		),

		// NATS metrics
		NATSConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ssohub",
				Subsystem: "nats",
				Name:      "connected",
				Help:      "NATS connection status (0=disconnected, 1=connected)",
			},
		),

		NATSRTT: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ssohub",
				Subsystem: "nats",
				Name:      "rtt_milliseconds",
				Help:      "NATS round-trip time in milliseconds",
			},
		),

		NATSReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "ssohub",
				Subsystem: "nats",
				Name:      "reconnects_total",
				Help:      "Total number of NATS reconnections",
			},
		),

		NATSCircuitBreaker: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "ssohub",
				Subsystem: "nats",
				Name:      "circuit_breaker",
				Help:      "NATS circuit breaker status (0=closed, 1=open, 2=half-open)",
			},
		),

		// Service lifecycle metrics
		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "ssohub",
				Subsystem: "service",
				Name:      "status",
				Help:      "Lifecycle status of hub services (0=stopped, 1=starting, 2=running, 3=stopping)",
			},
			[]string{"service"},
		),
	}
}

// RecordEvent increments the received event counter for an event type
func (m *Metrics) RecordEvent(eventType string) {
	m.EventsTotal.WithLabelValues(eventType).Inc()
}

// RecordEventHistorySize updates the event history size gauge
func (m *Metrics) RecordEventHistorySize(size int) {
	m.EventHistorySize.Set(float64(size))
}

// RecordRuleMatch increments the rule match counter for a rule
func (m *Metrics) RecordRuleMatch(ruleID string) {
	m.RuleMatchesTotal.WithLabelValues(ruleID).Inc()
}

// RecordExecution increments the execution counter for a flow and terminal status
func (m *Metrics) RecordExecution(flowID, status string) {
	m.ExecutionsTotal.WithLabelValues(flowID, status).Inc()
}

// RecordExecutionDuration records the dispatch-to-terminal duration of an execution
func (m *Metrics) RecordExecutionDuration(flowID string, duration time.Duration) {
	m.ExecutionDuration.WithLabelValues(flowID).Observe(duration.Seconds())
}

// RecordActiveExecutions updates the in-flight execution gauge
func (m *Metrics) RecordActiveExecutions(count int) {
	m.ActiveExecutions.Set(float64(count))
}

// RecordProviderRequest increments the provider request counter.
// A code of 0 means the request never produced an HTTP response and is
// recorded under the label "error".
func (m *Metrics) RecordProviderRequest(operation string, code int) {
	label := "error"
	if code > 0 {
		label = strconv.Itoa(code)
	}
	m.ProviderRequestsTotal.WithLabelValues(operation, label).Inc()
}

// RecordProviderRequestDuration records the duration of a provider API request
func (m *Metrics) RecordProviderRequestDuration(operation string, duration time.Duration) {
	m.ProviderRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordWebhookDelivery increments the webhook delivery counter for an outcome
// (delivered, failed, or dropped)
func (m *Metrics) RecordWebhookDelivery(status string) {
	m.WebhookDeliveriesTotal.WithLabelValues(status).Inc()
}

// RecordNATSStatus updates NATS connection status
func (m *Metrics) RecordNATSStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.NATSConnected.Set(value)
}

// RecordNATSRTT updates NATS round-trip time
func (m *Metrics) RecordNATSRTT(rtt time.Duration) {
	m.NATSRTT.Set(float64(rtt.Milliseconds()))
}

// RecordNATSReconnect increments reconnection counter
func (m *Metrics) RecordNATSReconnect() {
	m.NATSReconnects.Inc()
}

// RecordCircuitBreakerState updates circuit breaker status
func (m *Metrics) RecordCircuitBreakerState(state int) {
	m.NATSCircuitBreaker.Set(float64(state))
}

// RecordServiceStatus updates the lifecycle status gauge for a service
func (m *Metrics) RecordServiceStatus(service string, status int) {
	m.ServiceStatus.WithLabelValues(service).Set(float64(status))
}
