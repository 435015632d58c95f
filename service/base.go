// Package service provides the lifecycle contract and shared base
// functionality for the hub's long-running components: status
// transitions, health monitoring, and activity accounting.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/health"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/natsclient"
)

// Status represents the current status of a service
type Status int

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Info holds runtime information for a service
type Info struct {
	Name               string        `json:"name"`
	Status             string        `json:"status"`
	Uptime             time.Duration `json:"uptime"`
	StartTime          time.Time     `json:"start_time"`
	MessagesProcessed  int64         `json:"messages_processed"`
	LastActivity       time.Time     `json:"last_activity"`
	HealthChecks       int64         `json:"health_checks"`
	FailedHealthChecks int64         `json:"failed_health_checks"`
}

// HealthCheckFunc defines a custom health check function
type HealthCheckFunc func() error

// Service is the contract shared by the hub's long-running components.
type Service interface {
	Name() string
	Start(ctx context.Context) error
	Stop(timeout time.Duration) error
	Status() Status
	IsHealthy() bool
	GetStatus() Info
	Health() health.Status
	RegisterMetrics(registrar metric.MetricsRegistrar) error
}

// Option is a functional option for configuring BaseService
type Option func(*BaseService)

// WithNATS sets the NATS client whose connectivity feeds the default
// health check.
func WithNATS(client *natsclient.Client) Option {
	return func(s *BaseService) {
		s.nats = client
	}
}

// WithMetrics sets the metrics registry for service status reporting
func WithMetrics(registry *metric.MetricsRegistry) Option {
	return func(s *BaseService) {
		s.metricsRegistry = registry
	}
}

// WithLogger sets a custom logger for the service
func WithLogger(logger *slog.Logger) Option {
	return func(s *BaseService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithHealthCheck sets a custom health check function
func WithHealthCheck(fn HealthCheckFunc) Option {
	return func(s *BaseService) {
		s.healthCheckFunc = fn
	}
}

// WithHealthInterval sets the health check interval
func WithHealthInterval(interval time.Duration) Option {
	return func(s *BaseService) {
		s.healthInterval = interval
	}
}

// OnHealthChange sets a callback for health state changes
func OnHealthChange(fn func(bool)) Option {
	return func(s *BaseService) {
		s.onHealthChange = fn
	}
}

// Ensure BaseService satisfies the service contract
var _ Service = (*BaseService)(nil)

// BaseService provides common functionality for all services. Concrete
// services embed it and layer their own Start/Stop on top.
type BaseService struct {
	name            string
	config          *config.Config
	nats            *natsclient.Client
	metricsRegistry *metric.MetricsRegistry
	logger          *slog.Logger

	status    atomic.Value // Status
	startTime atomic.Value // time.Time
	healthy   atomic.Bool

	messagesProcessed  atomic.Int64
	healthChecks       atomic.Int64
	failedHealthChecks atomic.Int64
	lastActivity       atomic.Value // time.Time

	healthCheckFunc HealthCheckFunc
	healthInterval  time.Duration
	healthTicker    *time.Ticker

	onHealthChange func(bool)

	done      chan struct{}
	waitGroup sync.WaitGroup
	mu        sync.RWMutex
}

// NewBase creates a base service. The default health check reports
// unhealthy while the NATS client (if any) has no live connection.
func NewBase(name string, cfg *config.Config, opts ...Option) *BaseService {
	s := &BaseService{
		name:           name,
		config:         cfg,
		healthInterval: 30 * time.Second,
		logger:         slog.Default().With("service", name),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.setStatus(StatusStopped)
	s.startTime.Store(time.Time{})
	s.lastActivity.Store(time.Time{})
	return s
}

// Name returns the service name
func (s *BaseService) Name() string {
	return s.name
}

// Status returns the current service status
func (s *BaseService) Status() Status {
	status, _ := s.status.Load().(Status)
	return status
}

// IsHealthy returns whether the service is healthy
func (s *BaseService) IsHealthy() bool {
	return s.healthy.Load()
}

// Health returns the standard health status for the service
func (s *BaseService) Health() health.Status {
	if !s.healthy.Load() && s.Status() == StatusRunning {
		failed := s.failedHealthChecks.Load()
		return health.NewUnhealthy(s.name,
			fmt.Sprintf("health check failing (failed checks: %d)", failed))
	}

	switch s.Status() {
	case StatusRunning:
		return health.NewHealthy(s.name, "service operating normally")
	case StatusStarting:
		return health.NewDegraded(s.name, "service is starting")
	case StatusStopping:
		return health.NewDegraded(s.name, "service is stopping")
	default:
		return health.NewUnhealthy(s.name, "service is stopped")
	}
}

// Start transitions the service to running and begins health
// monitoring. Cancelling ctx shuts the service down.
func (s *BaseService) Start(ctx context.Context) error {
	cur := s.Status()
	if cur == StatusRunning || cur == StatusStarting {
		return nil
	}
	s.setStatus(StatusStarting)

	s.mu.Lock()
	s.done = make(chan struct{})
	now := time.Now()
	s.startTime.Store(now)
	s.lastActivity.Store(now)

	if s.healthInterval > 0 {
		s.healthTicker = time.NewTicker(s.healthInterval)
		s.waitGroup.Add(1)
		go s.healthMonitor(s.healthTicker.C, s.done)

		// Initial check shortly after startup so health does not wait
		// a full interval.
		go func() {
			time.Sleep(200 * time.Millisecond)
			s.performHealthCheck()
		}()
	}

	s.waitGroup.Add(1)
	go s.contextMonitor(ctx, s.done)
	s.mu.Unlock()

	s.setStatus(StatusRunning)
	return nil
}

// Stop stops the service gracefully, waiting up to timeout for its
// goroutines to finish.
func (s *BaseService) Stop(timeout time.Duration) error {
	cur := s.Status()
	if cur == StatusStopped || cur == StatusStopping {
		return nil
	}
	s.setStatus(StatusStopping)

	s.shutdownMonitors()

	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	waitDone := make(chan struct{})
	go func() {
		s.waitGroup.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(timeout):
		s.logger.Warn("service stop timed out", "timeout", timeout)
	}

	s.setStatus(StatusStopped)
	s.healthy.Store(false)
	return nil
}

// GetStatus returns the current service information
func (s *BaseService) GetStatus() Info {
	startTime, _ := s.startTime.Load().(time.Time)
	lastActivity, _ := s.lastActivity.Load().(time.Time)

	uptime := time.Duration(0)
	if !startTime.IsZero() && s.Status() == StatusRunning {
		uptime = time.Since(startTime)
	}

	return Info{
		Name:               s.name,
		Status:             s.Status().String(),
		Uptime:             uptime,
		StartTime:          startTime,
		MessagesProcessed:  s.messagesProcessed.Load(),
		LastActivity:       lastActivity,
		HealthChecks:       s.healthChecks.Load(),
		FailedHealthChecks: s.failedHealthChecks.Load(),
	}
}

// RegisterMetrics allows services to register their own domain-specific
// metrics. The base has none; concrete services override this.
func (s *BaseService) RegisterMetrics(_ metric.MetricsRegistrar) error {
	return nil
}

// RecordMessage counts one processed message and refreshes the
// last-activity timestamp.
func (s *BaseService) RecordMessage() {
	s.messagesProcessed.Add(1)
	s.lastActivity.Store(time.Now())
}

// SetHealthCheck replaces the custom health check function
func (s *BaseService) SetHealthCheck(fn HealthCheckFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthCheckFunc = fn
}

// OnHealthChange sets a callback for health state changes
func (s *BaseService) OnHealthChange(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHealthChange = fn
}

func (s *BaseService) setStatus(status Status) {
	s.status.Store(status)
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(status))
	}
}

// shutdownMonitors closes the done channel and stops the health ticker.
// Safe to call from Stop and from the context monitor; the mutex
// serializes the close.
func (s *BaseService) shutdownMonitors() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		select {
		case <-s.done:
		default:
			close(s.done)
		}
	}
	if s.healthTicker != nil {
		s.healthTicker.Stop()
	}
}

// healthMonitor runs the periodic health check loop
func (s *BaseService) healthMonitor(tick <-chan time.Time, done <-chan struct{}) {
	defer s.waitGroup.Done()
	for {
		select {
		case <-done:
			return
		case <-tick:
			s.performHealthCheck()
		}
	}
}

// performHealthCheck executes the custom check, then falls back to NATS
// connectivity, and notifies on health flips.
func (s *BaseService) performHealthCheck() {
	s.healthChecks.Add(1)

	var err error
	if fn := s.healthCheck(); fn != nil {
		err = fn()
	}
	if err == nil && s.nats != nil && !s.nats.IsHealthy() {
		err = errors.ErrNoConnection
	}
	if err != nil {
		s.failedHealthChecks.Add(1)
	}

	isHealthy := err == nil
	wasHealthy := s.healthy.Swap(isHealthy)
	if wasHealthy == isHealthy {
		return
	}

	s.mu.RLock()
	notify := s.onHealthChange
	s.mu.RUnlock()
	if notify != nil {
		go notify(isHealthy)
	}
}

func (s *BaseService) healthCheck() HealthCheckFunc {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthCheckFunc
}

// contextMonitor shuts the service down when the parent context is
// cancelled.
func (s *BaseService) contextMonitor(ctx context.Context, done <-chan struct{}) {
	defer s.waitGroup.Done()
	select {
	case <-ctx.Done():
		s.performGracefulShutdown()
	case <-done:
	}
}

// performGracefulShutdown transitions to stopped on context
// cancellation. Unlike Stop it does not wait for goroutines; it runs
// inside one of them.
func (s *BaseService) performGracefulShutdown() {
	if !s.status.CompareAndSwap(StatusRunning, StatusStopping) {
		return
	}
	if s.metricsRegistry != nil {
		s.metricsRegistry.CoreMetrics().RecordServiceStatus(s.name, int(StatusStopping))
	}

	s.shutdownMonitors()

	s.setStatus(StatusStopped)
	s.healthy.Store(false)
	s.logger.Info("service stopped on context cancellation")
}
