package webhook

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/pkg/retry"
	"github.com/MikeDominic92/okta-sso-hub/pkg/worker"
)

// Delivery headers. The signature covers the exact request body.
const (
	HeaderEvent     = "X-SSOHub-Event"
	HeaderDelivery  = "X-SSOHub-Delivery"
	HeaderSignature = "X-SSOHub-Signature"
)

const defaultDeliveryTimeout = 10 * time.Second

// delivery is one queued POST: a subscription snapshot plus the encoded
// event, so a concurrent Unsubscribe cannot race an in-flight send.
type delivery struct {
	deliveryID string
	subID      string
	url        string
	secret     string
	eventType  event.Type
	payload    []byte
}

type options struct {
	logger     *slog.Logger
	registry   *metric.MetricsRegistry
	httpClient *http.Client
}

// Option configures a notifier.
type Option func(*options)

// WithLogger sets the structured logger used by the notifier.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRegistry wires delivery outcomes and queue gauges into the
// shared metrics registry.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// WithHTTPClient overrides the underlying HTTP client. Used in tests and
// for custom transport settings.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// Notifier fans processed events out to webhook subscribers through a
// bounded worker pool. Submission never blocks: when the queue is full
// the delivery is dropped and counted, which keeps a slow or dead
// receiver from stalling event processing.
type Notifier struct {
	mu   sync.RWMutex
	subs []Subscription

	pool            *worker.Pool[delivery]
	httpClient      *http.Client
	deliveryTimeout time.Duration
	retryCfg        retry.Config

	logger  *slog.Logger
	metrics *metric.Metrics
}

// New builds a notifier from configuration. Zero config values fall back
// to the pool and timeout defaults.
func New(cfg config.WebhookConfig, opts ...Option) *Notifier {
	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	timeout := cfg.DeliveryTimeout
	if timeout <= 0 {
		timeout = defaultDeliveryTimeout
	}
	httpClient := o.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	var metrics *metric.Metrics
	if o.registry != nil {
		metrics = o.registry.CoreMetrics()
	}

	n := &Notifier{
		httpClient:      httpClient,
		deliveryTimeout: timeout,
		retryCfg: retry.Config{
			MaxAttempts:  2,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     time.Second,
			Multiplier:   2.0,
			AddJitter:    true,
			RetryIf:      retryableDelivery,
		},
		logger:  o.logger,
		metrics: metrics,
	}

	poolOpts := []worker.Option[delivery]{worker.WithDropHandler[delivery](n.onDrop)}
	if o.registry != nil {
		poolOpts = append(poolOpts, worker.WithMetricsRegistry[delivery](o.registry, "ssohub_webhook"))
	}
	n.pool = worker.NewPool[delivery](cfg.Workers, cfg.QueueSize, n.deliver, poolOpts...)
	return n
}

// retryableDelivery retries transport failures and throttled or 5xx
// responses; any other status is a permanent receiver-side answer.
func retryableDelivery(err error) bool {
	var se *retry.StatusError
	if stderrors.As(err, &se) {
		return retry.RetryableStatus(se.Code)
	}
	return true
}

// Start launches the delivery workers.
func (n *Notifier) Start(ctx context.Context) error {
	return n.pool.Start(ctx)
}

// Stop drains queued deliveries, waiting up to timeout for in-flight
// sends to finish.
func (n *Notifier) Stop(timeout time.Duration) error {
	return n.pool.Stop(timeout)
}

// Subscribe validates and registers a subscription, assigning an ID when
// absent. Registration activates the subscription; use SetActive to
// pause deliveries without losing the registration.
func (n *Notifier) Subscribe(sub Subscription) (Subscription, error) {
	if err := sub.Validate(); err != nil {
		return Subscription{}, err
	}
	if sub.ID == "" {
		sub.ID = "sub_" + uuid.NewString()
	}
	sub.Active = true

	n.mu.Lock()
	defer n.mu.Unlock()
	for _, existing := range n.subs {
		if existing.ID == sub.ID {
			return Subscription{}, errors.WrapInvalid(
				fmt.Errorf("subscription '%s' already exists", sub.ID),
				"webhook", "Subscribe", "validation failed")
		}
	}
	n.subs = append(n.subs, sub)

	n.logger.Info("webhook subscription added",
		"subscription_id", sub.ID, "url", sub.URL, "event_types", len(sub.Events))
	return sub, nil
}

// Unsubscribe removes a subscription and reports whether it existed.
// Queued deliveries for it still go out; they carry their own snapshot.
func (n *Notifier) Unsubscribe(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, sub := range n.subs {
		if sub.ID == id {
			n.subs = append(n.subs[:i], n.subs[i+1:]...)
			n.logger.Info("webhook subscription removed", "subscription_id", id)
			return true
		}
	}
	return false
}

// SetActive flips delivery on or off for a subscription and reports
// whether it exists.
func (n *Notifier) SetActive(id string, active bool) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i := range n.subs {
		if n.subs[i].ID == id {
			n.subs[i].Active = active
			return true
		}
	}
	return false
}

// Subscriptions returns a snapshot of the registry.
func (n *Notifier) Subscriptions() []Subscription {
	n.mu.RLock()
	defer n.mu.RUnlock()
	out := make([]Subscription, len(n.subs))
	copy(out, n.subs)
	return out
}

// Notify queues one delivery per active subscription whose filter admits
// the event type. It never blocks the caller: overflow drops the
// delivery and increments the dropped counter.
func (n *Notifier) Notify(e *event.Event) {
	if e == nil {
		return
	}
	payload, err := e.Encode()
	if err != nil {
		n.logger.Error("failed to encode event for webhook delivery", "event_id", e.ID, "error", err)
		return
	}

	n.mu.RLock()
	targets := make([]Subscription, 0, len(n.subs))
	for _, sub := range n.subs {
		if sub.Active && sub.WantsType(e.Type) {
			targets = append(targets, sub)
		}
	}
	n.mu.RUnlock()

	for _, sub := range targets {
		d := delivery{
			deliveryID: uuid.NewString(),
			subID:      sub.ID,
			url:        sub.URL,
			secret:     sub.Secret,
			eventType:  e.Type,
			payload:    payload,
		}
		err := n.pool.Submit(d)
		if err != nil && !stderrors.Is(err, worker.ErrQueueFull) {
			// Queue-full drops are already counted by the drop handler;
			// this is the pool-not-running case.
			n.logger.Warn("webhook delivery not queued",
				"subscription_id", sub.ID, "event_id", e.ID, "error", err)
			if n.metrics != nil {
				n.metrics.RecordWebhookDelivery("dropped")
			}
		}
	}
}

// onDrop runs on the submitting goroutine when the queue is full.
func (n *Notifier) onDrop(d delivery) {
	if n.metrics != nil {
		n.metrics.RecordWebhookDelivery("dropped")
	}
	n.logger.Warn("webhook delivery dropped, queue full",
		"subscription_id", d.subID, "delivery_id", d.deliveryID, "event_type", d.eventType)
}

// deliver posts one delivery, retrying once on transient failures.
func (n *Notifier) deliver(ctx context.Context, d delivery) error {
	err := retry.Do(ctx, n.retryCfg, func() error {
		return n.post(ctx, d)
	})
	if err != nil {
		if n.metrics != nil {
			n.metrics.RecordWebhookDelivery("failed")
		}
		n.logger.Error("webhook delivery failed",
			"subscription_id", d.subID, "delivery_id", d.deliveryID,
			"event_type", d.eventType, "error", err)
		return err
	}

	if n.metrics != nil {
		n.metrics.RecordWebhookDelivery("delivered")
	}
	n.logger.Debug("webhook delivered",
		"subscription_id", d.subID, "delivery_id", d.deliveryID, "event_type", d.eventType)
	return nil
}

func (n *Notifier) post(ctx context.Context, d delivery) error {
	reqCtx, cancel := context.WithTimeout(ctx, n.deliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, d.url, bytes.NewReader(d.payload))
	if err != nil {
		return retry.NonRetryable(err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, string(d.eventType))
	req.Header.Set(HeaderDelivery, d.deliveryID)
	if d.secret != "" {
		req.Header.Set(HeaderSignature, Sign(d.secret, d.payload))
	}

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &retry.StatusError{Code: resp.StatusCode}
	}
	return nil
}

// Stats reports subscription and queue state.
type Stats struct {
	Subscriptions int              `json:"subscriptions"`
	Active        int              `json:"active"`
	Queue         worker.PoolStats `json:"queue"`
}

// Stats returns a snapshot of notifier state.
func (n *Notifier) Stats() Stats {
	n.mu.RLock()
	total := len(n.subs)
	active := 0
	for _, sub := range n.subs {
		if sub.Active {
			active++
		}
	}
	n.mu.RUnlock()

	return Stats{
		Subscriptions: total,
		Active:        active,
		Queue:         n.pool.Stats(),
	}
}
