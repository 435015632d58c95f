package natsclient

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/metric"
)

// ConnectionStatus represents the state of the NATS connection
type ConnectionStatus int

// Possible connection statuses
const (
	StatusDisconnected ConnectionStatus = iota
	StatusConnecting
	StatusConnected
	StatusReconnecting
	StatusCircuitOpen
)

// String returns the string representation of ConnectionStatus
func (s ConnectionStatus) String() string {
	switch s {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusReconnecting:
		return "reconnecting"
	case StatusCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

const (
	defaultReconnectWait    = 2 * time.Second
	defaultCircuitThreshold = 5
	defaultMaxBackoff       = time.Minute
	initialBackoff          = time.Second

	pingInterval   = 30 * time.Second
	dialTimeout    = 5 * time.Second
	drainTimeout   = 30 * time.Second
	healthInterval = 10 * time.Second
	handlerTimeout = 30 * time.Second
)

// Handler processes one inbound message. The context carries a
// per-message timeout and is cancelled when the subscription's parent
// context ends.
type Handler func(ctx context.Context, data []byte)

// Status is a point-in-time snapshot of the connection, suitable for
// health endpoints.
type Status struct {
	Status          string        `json:"status"`
	FailureCount    int32         `json:"failure_count"`
	LastFailureTime time.Time     `json:"last_failure_time,omitempty"`
	Reconnects      int32         `json:"reconnects"`
	RTT             time.Duration `json:"rtt,omitempty"`
}

// Client wraps a NATS connection with reconnect handling, a failure
// circuit breaker, and health monitoring. A Client is safe for
// concurrent use. Connect must be called before Publish or Subscribe.
type Client struct {
	url string

	maxReconnects    int
	reconnectWait    time.Duration
	circuitThreshold int32
	maxBackoff       time.Duration

	status     atomic.Value // ConnectionStatus
	failures   atomic.Int32 // consecutive failures since last success
	circuit    atomic.Int32 // failures counted toward the breaker
	reconnects atomic.Int32
	backoff    atomic.Value // time.Duration until the next half-open probe
	lastFail   atomic.Value // time.Time

	mu   sync.RWMutex
	conn *nats.Conn
	subs []*nats.Subscription

	onHealthChange func(healthy bool)

	healthMu   sync.Mutex
	healthDone chan struct{}

	closeMu sync.Mutex
	closed  atomic.Bool

	logger  *slog.Logger
	metrics *metric.Metrics
}

// options collects cross-implementation construction settings.
type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// Option configures a Client.
type Option func(*options)

// WithLogger sets the structured logger used by the client.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRegistry wires connection status, RTT, reconnect, and
// circuit breaker gauges into the shared metrics registry.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New builds a client for cfg.URL. No connection is opened until
// Connect is called.
func New(cfg config.NATSConfig, opts ...Option) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: nats url", errors.ErrMissingConfig),
			"natsclient", "New", "validate configuration")
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	reconnectWait := cfg.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = defaultReconnectWait
	}
	threshold := cfg.CircuitThreshold
	if threshold <= 0 {
		threshold = defaultCircuitThreshold
	}
	maxBackoff := cfg.MaxBackoff
	if maxBackoff <= 0 {
		maxBackoff = defaultMaxBackoff
	}

	c := &Client{
		url:              cfg.URL,
		maxReconnects:    cfg.MaxReconnects,
		reconnectWait:    reconnectWait,
		circuitThreshold: int32(threshold),
		maxBackoff:       maxBackoff,
		logger:           o.logger.With("component", "natsclient"),
	}
	if o.registry != nil {
		c.metrics = o.registry.CoreMetrics()
	}
	c.status.Store(StatusDisconnected)
	c.backoff.Store(initialBackoff)
	c.lastFail.Store(time.Time{})
	return c, nil
}

// URL returns the server URL the client was built with.
func (c *Client) URL() string {
	return c.url
}

// Status returns the current connection status.
func (c *Client) Status() ConnectionStatus {
	s, _ := c.status.Load().(ConnectionStatus)
	return s
}

// IsHealthy reports whether the client holds a live connection.
func (c *Client) IsHealthy() bool {
	return c.Status() == StatusConnected
}

// Failures returns the consecutive failure count since the last
// successful operation.
func (c *Client) Failures() int32 {
	return c.failures.Load()
}

// Backoff returns the wait before the circuit breaker's next
// half-open probe.
func (c *Client) Backoff() time.Duration {
	d, _ := c.backoff.Load().(time.Duration)
	return d
}

// RTT returns the measured round-trip time to the server, or zero when
// not connected.
func (c *Client) RTT() time.Duration {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return 0
	}
	rtt, err := conn.RTT()
	if err != nil {
		return 0
	}
	return rtt
}

// GetStatus returns a snapshot of connection state for health
// reporting.
func (c *Client) GetStatus() *Status {
	last, _ := c.lastFail.Load().(time.Time)
	return &Status{
		Status:          c.Status().String(),
		FailureCount:    c.failures.Load(),
		LastFailureTime: last,
		Reconnects:      c.reconnects.Load(),
		RTT:             c.RTT(),
	}
}

// OnHealthChange registers a callback invoked from its own goroutine
// whenever connection health flips. Register before Connect.
func (c *Client) OnHealthChange(fn func(healthy bool)) {
	c.mu.Lock()
	c.onHealthChange = fn
	c.mu.Unlock()
}

// Connect dials the server and starts health monitoring. It returns a
// transient error when the dial fails or ctx expires, and a circuit
// breaker error while the breaker is open.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return errors.Wrap(errors.ErrShuttingDown, "natsclient", "Connect", "start")
	}
	switch c.Status() {
	case StatusConnected:
		return nil
	case StatusCircuitOpen:
		return errors.WrapTransient(
			fmt.Errorf("%w: retry in %s", errors.ErrCircuitOpen, c.Backoff()),
			"natsclient", "Connect", "dial "+c.url)
	}
	c.setStatus(StatusConnecting)

	type dialResult struct {
		conn *nats.Conn
		err  error
	}
	done := make(chan dialResult, 1)
	go func() {
		conn, err := nats.Connect(c.url, c.connectionOptions()...)
		done <- dialResult{conn: conn, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			c.setStatus(StatusDisconnected)
			c.recordFailure()
			return errors.WrapTransient(res.err, "natsclient", "Connect", "dial "+c.url)
		}
		c.mu.Lock()
		c.conn = res.conn
		c.mu.Unlock()
		c.setStatus(StatusConnected)
		c.resetCircuit()
		c.startHealthMonitor()
		c.notifyHealth(true)
		c.logger.Info("nats connected", "url", c.url)
		return nil
	case <-ctx.Done():
		c.setStatus(StatusDisconnected)
		c.recordFailure()
		// Reap the dial if it eventually succeeds.
		go func() {
			if res := <-done; res.err == nil && res.conn != nil {
				res.conn.Close()
			}
		}()
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, ctx.Err()),
			"natsclient", "Connect", "dial "+c.url)
	}
}

// Close unsubscribes everything, drains in-flight messages, and closes
// the connection. ctx bounds the drain alongside the configured drain
// timeout. Close is idempotent.
func (c *Client) Close(ctx context.Context) error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.stopHealthMonitor()

	c.mu.Lock()
	conn := c.conn
	subs := c.subs
	c.conn = nil
	c.subs = nil
	c.mu.Unlock()

	if conn == nil {
		c.setStatus(StatusDisconnected)
		return nil
	}

	var errs []error
	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			errs = append(errs, fmt.Errorf("unsubscribe %s: %w", sub.Subject, err))
		}
	}

	if conn.IsConnected() {
		drainDone := make(chan error, 1)
		go func() { drainDone <- conn.Drain() }()
		select {
		case err := <-drainDone:
			if err != nil {
				errs = append(errs, fmt.Errorf("drain: %w", err))
			}
		case <-time.After(drainTimeout):
			errs = append(errs, fmt.Errorf("drain: %w", errors.ErrConnectionTimeout))
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("drain: %w", ctx.Err()))
		}
	}
	conn.Close()
	c.setStatus(StatusDisconnected)
	c.logger.Info("nats connection closed", "url", c.url)

	if len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), "natsclient", "Close", "shutdown")
	}
	return nil
}

// Publish sends data to subject. A successful publish resets the
// circuit breaker.
func (c *Client) Publish(ctx context.Context, subject string, data []byte) error {
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(
			fmt.Errorf("%w: retry in %s", errors.ErrCircuitOpen, c.Backoff()),
			"natsclient", "Publish", "publish "+subject)
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "natsclient", "Publish", "publish "+subject)
	}
	if err := ctx.Err(); err != nil {
		return errors.WrapTransient(err, "natsclient", "Publish", "publish "+subject)
	}

	if err := conn.Publish(subject, data); err != nil {
		c.recordFailure()
		return errors.WrapTransient(err, "natsclient", "Publish", "publish "+subject)
	}
	c.resetCircuit()
	return nil
}

// Subscribe registers handler for subject. Each message is delivered
// with a context derived from ctx carrying a per-message timeout.
// Subscriptions live until Close.
func (c *Client) Subscribe(ctx context.Context, subject string, handler Handler) error {
	if handler == nil {
		return errors.WrapInvalid(
			fmt.Errorf("handler cannot be nil"),
			"natsclient", "Subscribe", "subscribe "+subject)
	}
	if c.Status() == StatusCircuitOpen {
		return errors.WrapTransient(
			fmt.Errorf("%w: retry in %s", errors.ErrCircuitOpen, c.Backoff()),
			"natsclient", "Subscribe", "subscribe "+subject)
	}
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()
	if conn == nil || !conn.IsConnected() {
		return errors.WrapTransient(errors.ErrNoConnection, "natsclient", "Subscribe", "subscribe "+subject)
	}

	sub, err := conn.Subscribe(subject, func(msg *nats.Msg) {
		msgCtx, cancel := context.WithTimeout(ctx, handlerTimeout)
		defer cancel()
		handler(msgCtx, msg.Data)
	})
	if err != nil {
		c.recordFailure()
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrSubscriptionFailed, err),
			"natsclient", "Subscribe", "subscribe "+subject)
	}

	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	c.logger.Debug("nats subscription added", "subject", subject)
	return nil
}

// WaitForConnection blocks until the client is healthy or ctx expires.
func (c *Client) WaitForConnection(ctx context.Context) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for {
		if c.IsHealthy() {
			return nil
		}
		select {
		case <-ctx.Done():
			return errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrConnectionTimeout, ctx.Err()),
				"natsclient", "WaitForConnection", "wait for "+c.url)
		case <-ticker.C:
		}
	}
}

func (c *Client) connectionOptions() []nats.Option {
	return []nats.Option{
		nats.MaxReconnects(c.maxReconnects),
		nats.ReconnectWait(c.reconnectWait),
		nats.PingInterval(pingInterval),
		nats.Timeout(dialTimeout),
		nats.DrainTimeout(drainTimeout),
		nats.DisconnectErrHandler(c.handleDisconnect),
		nats.ReconnectHandler(c.handleReconnect),
		nats.ClosedHandler(c.handleClosed),
		nats.ErrorHandler(c.handleAsyncError),
	}
}

func (c *Client) handleDisconnect(_ *nats.Conn, err error) {
	c.setStatus(StatusReconnecting)
	if err != nil {
		c.logger.Warn("nats disconnected", "error", err)
	} else {
		c.logger.Warn("nats disconnected")
	}
	c.notifyHealth(false)
}

func (c *Client) handleReconnect(conn *nats.Conn) {
	c.setStatus(StatusConnected)
	c.resetCircuit()
	c.reconnects.Add(1)
	if c.metrics != nil {
		c.metrics.RecordNATSReconnect()
	}
	c.logger.Info("nats reconnected", "url", conn.ConnectedUrl())
	c.notifyHealth(true)
}

func (c *Client) handleClosed(_ *nats.Conn) {
	if c.closed.Load() {
		return
	}
	c.setStatus(StatusDisconnected)
	c.logger.Warn("nats connection closed by server")
	c.notifyHealth(false)
}

func (c *Client) handleAsyncError(_ *nats.Conn, sub *nats.Subscription, err error) {
	if sub != nil {
		c.logger.Error("nats async error", "subject", sub.Subject, "error", err)
		return
	}
	c.logger.Error("nats async error", "error", err)
}

func (c *Client) setStatus(s ConnectionStatus) {
	c.status.Store(s)
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(s == StatusConnected)
	}
}

// recordFailure counts a failure toward the circuit breaker and opens
// it once the threshold is reached. While open, a timer half-opens the
// breaker after the current backoff, and the backoff doubles up to the
// configured maximum.
func (c *Client) recordFailure() {
	c.failures.Add(1)
	count := c.circuit.Add(1)
	c.lastFail.Store(time.Now())

	if count < c.circuitThreshold {
		return
	}
	cur := c.Status()
	if cur == StatusCircuitOpen {
		return
	}
	if !c.status.CompareAndSwap(cur, StatusCircuitOpen) {
		return
	}
	if c.metrics != nil {
		c.metrics.RecordNATSStatus(false)
		c.metrics.RecordCircuitBreakerState(1)
	}

	wait := c.Backoff()
	next := wait * 2
	if next > c.maxBackoff {
		next = c.maxBackoff
	}
	c.backoff.Store(next)

	c.logger.Warn("nats circuit breaker open",
		"failures", c.failures.Load(),
		"retry_in", wait,
	)
	time.AfterFunc(wait, c.testCircuit)
}

// testCircuit half-opens the breaker so the next Connect attempt is
// allowed through. A failure on that attempt re-opens it immediately
// with the doubled backoff.
func (c *Client) testCircuit() {
	if !c.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected) {
		return
	}
	if c.metrics != nil {
		c.metrics.RecordCircuitBreakerState(2)
	}
	c.logger.Info("nats circuit breaker half-open", "next_backoff", c.Backoff())
}

func (c *Client) resetCircuit() {
	c.failures.Store(0)
	c.circuit.Store(0)
	c.backoff.Store(initialBackoff)
	c.lastFail.Store(time.Time{})
	c.status.CompareAndSwap(StatusCircuitOpen, StatusDisconnected)
	if c.metrics != nil {
		c.metrics.RecordCircuitBreakerState(0)
	}
}

func (c *Client) startHealthMonitor() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	if c.healthDone != nil {
		return
	}
	c.healthDone = make(chan struct{})
	go c.monitorHealth(c.healthDone)
}

func (c *Client) stopHealthMonitor() {
	c.healthMu.Lock()
	defer c.healthMu.Unlock()
	if c.healthDone == nil {
		return
	}
	close(c.healthDone)
	c.healthDone = nil
}

// monitorHealth polls the connection and flips status when liveness
// changes. It also feeds the RTT gauge while healthy.
func (c *Client) monitorHealth(done <-chan struct{}) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	healthy := true
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.mu.RLock()
			conn := c.conn
			c.mu.RUnlock()

			ok := conn != nil && conn.IsConnected()
			if ok {
				rtt, err := conn.RTT()
				if err != nil {
					ok = false
				} else if c.metrics != nil {
					c.metrics.RecordNATSRTT(rtt)
				}
			}

			if ok == healthy {
				continue
			}
			healthy = ok
			if ok {
				if c.Status() != StatusCircuitOpen {
					c.setStatus(StatusConnected)
				}
			} else if c.Status() == StatusConnected {
				c.setStatus(StatusReconnecting)
			}
			c.notifyHealth(ok)
		}
	}
}

func (c *Client) notifyHealth(healthy bool) {
	c.mu.RLock()
	fn := c.onHealthChange
	c.mu.RUnlock()
	if fn == nil {
		return
	}
	go fn(healthy)
}
