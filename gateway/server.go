package gateway

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
	"github.com/MikeDominic92/okta-sso-hub/executor"
	"github.com/MikeDominic92/okta-sso-hub/health"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/provider"
	"github.com/MikeDominic92/okta-sso-hub/service"
	"github.com/MikeDominic92/okta-sso-hub/trigger"
	"github.com/MikeDominic92/okta-sso-hub/webhook"
)

const (
	defaultAddr       = ":8080"
	defaultWSBuf      = 256
	readHeaderTimeout = 10 * time.Second
)

// Deps are the collaborators the REST and websocket surfaces expose.
// Router, Executor, and Provider are required; the rest are optional.
type Deps struct {
	Router   *trigger.Router
	Executor *executor.Executor
	Provider provider.Client
	Notifier *webhook.Notifier
	Monitor  *health.Monitor
	Registry *metric.MetricsRegistry
	Logger   *slog.Logger
}

type gatewayMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	hub      *hubMetrics
}

func newGatewayMetrics(registry *metric.MetricsRegistry) *gatewayMetrics {
	if registry == nil {
		return nil
	}

	m := &gatewayMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ssohub",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method, route, and status code",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ssohub",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by method and route",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"method", "route"}),
		hub: newHubMetrics(registry),
	}

	registry.RegisterCounterVec("gateway", "http_requests", m.requests)
	registry.RegisterHistogramVec("gateway", "http_request_duration", m.duration)

	return m
}

// Server is the HTTP front door: the REST API under /api/v1, the
// websocket live feed at /ws/events, and health at /healthz.
type Server struct {
	*service.BaseService

	cfg  config.GatewayConfig
	deps Deps

	logger  *slog.Logger
	metrics *gatewayMetrics
	hub     *Hub

	httpServer *http.Server

	mu       sync.Mutex
	listener net.Listener
	started  time.Time
}

// New builds the gateway around its collaborators. The server does not
// listen until Start.
func New(cfg config.GatewayConfig, deps Deps) (*Server, error) {
	if deps.Router == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("trigger router cannot be nil"),
			"gateway", "New", "validate dependencies")
	}
	if deps.Executor == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("executor cannot be nil"),
			"gateway", "New", "validate dependencies")
	}
	if deps.Provider == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("provider client cannot be nil"),
			"gateway", "New", "validate dependencies")
	}

	if cfg.Addr == "" {
		cfg.Addr = defaultAddr
	}
	if cfg.WSBufferSize <= 0 {
		cfg.WSBufferSize = defaultWSBuf
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "gateway")

	metrics := newGatewayMetrics(deps.Registry)

	s := &Server{
		cfg:     cfg,
		deps:    deps,
		logger:  logger,
		metrics: metrics,
	}

	var hubM *hubMetrics
	if metrics != nil {
		hubM = metrics.hub
	}
	s.hub = newHub(cfg.WSBufferSize, logger, hubM)

	s.BaseService = service.NewBase("gateway", nil,
		service.WithMetrics(deps.Registry),
		service.WithLogger(deps.Logger),
		service.WithHealthCheck(s.listenerCheck),
	)

	s.httpServer = &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s, nil
}

// routes wires every endpoint through the observability middleware.
// Subtree registrations carry their pattern as the metric route label.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/api/v1/events",
		s.instrument("/api/v1/events", http.HandlerFunc(s.handleEvents)))
	mux.Handle("/api/v1/events/simulate",
		s.instrument("/api/v1/events/simulate", http.HandlerFunc(s.handleSimulate)))
	mux.Handle("/api/v1/rules",
		s.instrument("/api/v1/rules", http.HandlerFunc(s.handleRules)))
	mux.Handle("/api/v1/rules/",
		s.instrument("/api/v1/rules/{id}", http.HandlerFunc(s.handleRuleByID)))
	mux.Handle("/api/v1/executions",
		s.instrument("/api/v1/executions", http.HandlerFunc(s.handleExecutions)))
	mux.Handle("/api/v1/executions/",
		s.instrument("/api/v1/executions/{id}", http.HandlerFunc(s.handleExecutionByID)))
	mux.Handle("/api/v1/flows",
		s.instrument("/api/v1/flows", http.HandlerFunc(s.handleFlows)))
	mux.Handle("/api/v1/flows/",
		s.instrument("/api/v1/flows/{id}/execute", http.HandlerFunc(s.handleFlowExecute)))
	mux.Handle("/api/v1/webhooks",
		s.instrument("/api/v1/webhooks", http.HandlerFunc(s.handleWebhooks)))
	mux.Handle("/api/v1/webhooks/",
		s.instrument("/api/v1/webhooks/{id}", http.HandlerFunc(s.handleWebhookByID)))
	mux.Handle("/api/v1/stats",
		s.instrument("/api/v1/stats", http.HandlerFunc(s.handleStats)))
	mux.Handle("/healthz",
		s.instrument("/healthz", http.HandlerFunc(s.handleHealthz)))
	mux.Handle("/ws/events",
		s.instrument("/ws/events", s.hub))

	return mux
}

// Start binds the listener and begins serving.
func (s *Server) Start(ctx context.Context) error {
	if err := s.BaseService.Start(ctx); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		_ = s.BaseService.Stop(time.Second)
		return errors.Wrap(err, "gateway", "Start", "listen on "+s.cfg.Addr)
	}

	s.mu.Lock()
	s.listener = ln
	s.started = time.Now()
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server exited", "error", err)
		}
	}()

	s.logger.Info("gateway listening", "addr", ln.Addr().String())
	return nil
}

// Stop drains in-flight requests, disconnects websocket clients, and
// stops the lifecycle base.
func (s *Server) Stop(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	var errs []error
	if err := s.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, err)
	}
	s.hub.Shutdown()

	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()

	if err := s.BaseService.Stop(timeout); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return errors.Wrap(stderrors.Join(errs...), "gateway", "Stop", "shutdown")
	}

	s.logger.Info("gateway stopped")
	return nil
}

// Addr returns the bound listen address. Useful when the configured
// address requests an ephemeral port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return s.cfg.Addr
	}
	return s.listener.Addr().String()
}

// BroadcastEvent pushes a processed event and its execution results to
// websocket subscribers. The NATS ingest path feeds this via its
// OnEvent callback.
func (s *Server) BroadcastEvent(e *event.Event, results []*executor.Result) {
	s.hub.BroadcastEvent(e, results)
}

// BroadcastExecution pushes a completed execution to websocket
// subscribers. Wired to the executor's completion callbacks.
func (s *Server) BroadcastExecution(res *executor.Result) {
	s.hub.BroadcastExecution(res)
}

func (s *Server) listenerCheck() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return errors.ErrNotStarted
	}
	return nil
}

func (s *Server) uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started.IsZero() {
		return 0
	}
	return time.Since(s.started)
}
