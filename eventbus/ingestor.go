// Package eventbus bridges NATS event subjects into the trigger router.
package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/natsclient"
	"github.com/MikeDominic92/okta-sso-hub/service"
	"github.com/MikeDominic92/okta-sso-hub/trigger"
	"github.com/MikeDominic92/okta-sso-hub/webhook"
)

const defaultSubjectPrefix = "okta.events"

// SubjectFor returns the NATS subject events of type t are published
// on: "<prefix>.<event type>".
func SubjectFor(prefix string, t event.Type) string {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	return prefix + "." + string(t)
}

// Publish encodes e and sends it on the subject for its type. The
// simulate command uses this to feed a running hub over the bus.
func Publish(ctx context.Context, client *natsclient.Client, prefix string, e *event.Event) error {
	if client == nil {
		return errors.WrapInvalid(
			fmt.Errorf("nats client cannot be nil"),
			"eventbus", "Publish", "validate arguments")
	}
	if e == nil {
		return errors.WrapInvalid(
			fmt.Errorf("event cannot be nil"),
			"eventbus", "Publish", "validate arguments")
	}
	if err := e.Validate(); err != nil {
		return err
	}
	data, err := e.Encode()
	if err != nil {
		return err
	}
	return client.Publish(ctx, SubjectFor(prefix, e.Type), data)
}

// ingestMetrics holds the ingest-side Prometheus counters. nil when no
// registry was provided.
type ingestMetrics struct {
	messagesReceived prometheus.Counter
	payloadErrors    prometheus.Counter
	processErrors    prometheus.Counter
}

func newIngestMetrics(registry *metric.MetricsRegistry) *ingestMetrics {
	if registry == nil {
		return nil
	}

	m := &ingestMetrics{
		messagesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ingest",
			Name:      "messages_received_total",
			Help:      "Total NATS messages received on the event subjects",
		}),
		payloadErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ingest",
			Name:      "payload_errors_total",
			Help:      "Messages dropped because the payload was not a valid event",
		}),
		processErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "ingest",
			Name:      "process_errors_total",
			Help:      "Decoded events that failed routing",
		}),
	}

	registry.RegisterCounter("eventbus", "messages_received", m.messagesReceived)
	registry.RegisterCounter("eventbus", "payload_errors", m.payloadErrors)
	registry.RegisterCounter("eventbus", "process_errors", m.processErrors)

	return m
}

// Deps holds the runtime dependencies of an Ingestor. Client and
// Router are required; the rest are optional.
type Deps struct {
	Client   *natsclient.Client
	Router   *trigger.Router
	Notifier *webhook.Notifier
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger

	// OnEvent is invoked after an event has been routed, with the
	// dispatch results. The gateway uses this to feed its websocket
	// hub.
	OnEvent func(e *event.Event, results []*executor.Result)
}

// Stats is a point-in-time snapshot of ingest activity.
type Stats struct {
	Subject    string             `json:"subject"`
	Received   int64              `json:"received"`
	Processed  int64              `json:"processed"`
	Dropped    int64              `json:"dropped"`
	Connection *natsclient.Status `json:"connection"`
}

// Ingestor subscribes to the event subjects and routes every decoded
// event through the trigger router. Payloads that do not decode to a
// valid event are dropped with a counter; they never reach the router
// or webhook subscribers.
type Ingestor struct {
	*service.BaseService

	client   *natsclient.Client
	router   *trigger.Router
	notifier *webhook.Notifier
	onEvent  func(*event.Event, []*executor.Result)

	subject string
	logger  *slog.Logger
	metrics *ingestMetrics

	received  atomic.Int64
	processed atomic.Int64
	dropped   atomic.Int64
}

// NewIngestor builds an ingestor for cfg.SubjectPrefix. It does not
// touch the connection until Start.
func NewIngestor(cfg config.NATSConfig, deps Deps) (*Ingestor, error) {
	if deps.Client == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("nats client cannot be nil"),
			"eventbus", "NewIngestor", "validate dependencies")
	}
	if deps.Router == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("router cannot be nil"),
			"eventbus", "NewIngestor", "validate dependencies")
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "eventbus")

	i := &Ingestor{
		client:   deps.Client,
		router:   deps.Router,
		notifier: deps.Notifier,
		onEvent:  deps.OnEvent,
		subject:  prefix + ".>",
		logger:   logger,
		metrics:  newIngestMetrics(deps.Registry),
	}
	i.BaseService = service.NewBase("eventbus", nil,
		service.WithNATS(deps.Client),
		service.WithMetrics(deps.Registry),
		service.WithLogger(logger),
	)
	return i, nil
}

// Start connects the NATS client when it is not already connected and
// subscribes to the event subjects. Message handling runs on the
// client's delivery goroutines until Stop or context cancellation.
func (i *Ingestor) Start(ctx context.Context) error {
	if err := i.BaseService.Start(ctx); err != nil {
		return err
	}

	if !i.client.IsHealthy() {
		if err := i.client.Connect(ctx); err != nil {
			_ = i.BaseService.Stop(time.Second)
			return errors.Wrap(err, "eventbus", "Start", "connect event bus")
		}
	}

	if err := i.client.Subscribe(ctx, i.subject, i.handleMessage); err != nil {
		_ = i.BaseService.Stop(time.Second)
		return errors.Wrap(err, "eventbus", "Start", "subscribe "+i.subject)
	}

	i.logger.Info("event ingest started", "subject", i.subject)
	return nil
}

// Stop stops the ingestor. The subscription itself is torn down when
// the owning process closes the NATS client.
func (i *Ingestor) Stop(timeout time.Duration) error {
	err := i.BaseService.Stop(timeout)
	i.logger.Info("event ingest stopped",
		"received", i.received.Load(),
		"processed", i.processed.Load(),
		"dropped", i.dropped.Load(),
	)
	return err
}

// Stats returns ingest counters and the connection snapshot.
func (i *Ingestor) Stats() Stats {
	return Stats{
		Subject:    i.subject,
		Received:   i.received.Load(),
		Processed:  i.processed.Load(),
		Dropped:    i.dropped.Load(),
		Connection: i.client.GetStatus(),
	}
}

// handleMessage decodes one bus payload and routes it.
func (i *Ingestor) handleMessage(ctx context.Context, data []byte) {
	select {
	case <-ctx.Done():
		return
	default:
	}

	i.received.Add(1)
	i.RecordMessage()
	if i.metrics != nil {
		i.metrics.messagesReceived.Inc()
	}

	e, err := event.Decode(data)
	if err != nil {
		i.dropped.Add(1)
		if i.metrics != nil {
			i.metrics.payloadErrors.Inc()
		}
		i.logger.Error("dropping undecodable event payload",
			"error", err,
			"payload_bytes", len(data),
		)
		return
	}

	results, err := i.router.ProcessEvent(ctx, e)
	if err != nil {
		i.dropped.Add(1)
		if i.metrics != nil {
			i.metrics.processErrors.Inc()
		}
		i.logger.Error("event routing failed",
			"event_id", e.ID,
			"event_type", e.Type,
			"error", err,
		)
		return
	}
	i.processed.Add(1)

	if i.notifier != nil {
		i.notifier.Notify(e)
	}
	if i.onEvent != nil {
		i.onEvent(e, results)
	}
}
