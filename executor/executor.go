package executor

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/pkg/buffer"
	"github.com/MikeDominic92/okta-sso-hub/provider"
)

const (
	defaultTimeout     = 5 * time.Minute
	defaultMaxPollTick = 2 * time.Second
	defaultHistorySize = 1000

	// minPollTick bounds how hot the poll loop can spin for very short
	// timeouts.
	minPollTick = 100 * time.Millisecond
)

// Executor orchestrates flow executions against a provider client:
// invoke, poll to completion within a deadline, fire lifecycle
// callbacks, and keep a bounded history of finished runs.
type Executor struct {
	client      provider.Client
	timeout     time.Duration
	maxPollTick time.Duration
	history     buffer.History[*Result]
	callbacks   *CallbackManager
	active      atomic.Int64
	logger      *slog.Logger
	metrics     *metric.Metrics
}

// Option configures an Executor.
type Option func(*options)

type options struct {
	logger   *slog.Logger
	registry *metric.MetricsRegistry
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetricsRegistry wires execution counters, durations, the active
// gauge, and the history ring's series into the shared registry.
func WithMetricsRegistry(registry *metric.MetricsRegistry) Option {
	return func(o *options) {
		o.registry = registry
	}
}

// New builds an Executor on top of a provider client. Zero config
// fields fall back to defaults: 5m timeout, 2s poll cap, 1000 history
// entries.
func New(client provider.Client, cfg config.ExecutorConfig, opts ...Option) (*Executor, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "executor", "New", "provider client is required")
	}

	o := &options{logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}

	timeout := cfg.DefaultTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	maxPollTick := cfg.MaxPollInterval
	if maxPollTick <= 0 {
		maxPollTick = defaultMaxPollTick
	}
	historySize := cfg.HistorySize
	if historySize <= 0 {
		historySize = defaultHistorySize
	}

	var historyOpts []buffer.Option[*Result]
	if o.registry != nil {
		historyOpts = append(historyOpts, buffer.WithMetrics[*Result](o.registry, "executor_history"))
	}
	history, err := buffer.NewRing[*Result](historySize, historyOpts...)
	if err != nil {
		return nil, errors.Wrap(err, "executor", "New", "create execution history")
	}

	var metrics *metric.Metrics
	if o.registry != nil {
		metrics = o.registry.CoreMetrics()
	}

	return &Executor{
		client:      client,
		timeout:     timeout,
		maxPollTick: maxPollTick,
		history:     history,
		callbacks:   NewCallbackManager(o.logger),
		logger:      o.logger,
		metrics:     metrics,
	}, nil
}

// OnStart registers a start callback. See CallbackManager.
func (e *Executor) OnStart(cb Callback) { e.callbacks.OnStart(cb) }

// OnComplete registers a success callback. See CallbackManager.
func (e *Executor) OnComplete(cb Callback) { e.callbacks.OnComplete(cb) }

// OnError registers a failure callback. See CallbackManager.
func (e *Executor) OnError(cb Callback) { e.callbacks.OnError(cb) }

// ExecOption adjusts a single ExecuteFlow call.
type ExecOption func(*execOptions)

type execOptions struct {
	timeout time.Duration
	wait    bool
}

// WithTimeout overrides the executor's default completion deadline for
// one call. A non-positive value makes a waiting call time out
// immediately.
func WithTimeout(d time.Duration) ExecOption {
	return func(o *execOptions) {
		o.timeout = d
	}
}

// WithWait controls whether the call polls until the execution
// finishes. Waiting is the default; with wait disabled the initial
// non-terminal result is returned as soon as the invocation is
// accepted.
func WithWait(wait bool) ExecOption {
	return func(o *execOptions) {
		o.wait = wait
	}
}

// ExecuteFlow invokes a flow and, by default, polls the provider until
// the execution reaches a terminal status or the deadline passes.
//
// Start callbacks fire as soon as the invocation returns an execution
// ID, whether or not the call waits. Terminal results are appended to
// history and fire the matching completion hook. A deadline overrun
// returns a transient ExecutionError and leaves no history entry; the
// remote execution may still be running.
func (e *Executor) ExecuteFlow(ctx context.Context, flowID string, input map[string]any, opts ...ExecOption) (*Result, error) {
	o := execOptions{wait: true, timeout: e.timeout}
	for _, opt := range opts {
		opt(&o)
	}
	if input == nil {
		input = map[string]any{}
	}

	e.logger.Info("executing flow", "flow_id", flowID, "timeout", o.timeout, "wait", o.wait)

	inv, err := e.client.Invoke(ctx, flowID, input)
	if err != nil {
		e.recordFailure(flowID, err)
		return nil, errors.NewExecutionError(classFor(err), flowID, "", err)
	}
	if inv.ExecutionID == "" {
		e.recordFailure(flowID, errors.ErrNoExecutionID)
		return nil, errors.MissingExecutionID(flowID)
	}

	result := &Result{
		ExecutionID: inv.ExecutionID,
		FlowID:      flowID,
		Status:      initialStatus(inv.Status),
		StartedAt:   time.Now().UTC(),
		Input:       input,
	}

	e.callbacks.fireStart(result)

	if !o.wait {
		e.history.Append(result)
		return result, nil
	}

	e.incActive()
	defer e.decActive()

	final, err := e.awaitCompletion(ctx, result, o.timeout)
	if err != nil {
		e.recordFailure(flowID, err)
		return nil, err
	}

	e.callbacks.fireTerminal(final)
	e.history.Append(final)
	e.recordTerminal(final)
	e.logger.Info("flow execution finished",
		"flow_id", flowID,
		"execution_id", final.ExecutionID,
		"status", final.Status,
		"duration_ms", final.Duration().Milliseconds())
	return final, nil
}

// awaitCompletion polls the provider until the execution is terminal or
// the deadline passes. The deadline also bounds the in-flight status
// call so a slow provider cannot stretch the timeout.
func (e *Executor) awaitCompletion(ctx context.Context, initial *Result, timeout time.Duration) (*Result, error) {
	if timeout <= 0 {
		return nil, errors.ExecutionTimedOut(initial.FlowID, initial.ExecutionID, timeout)
	}

	pollCtx, cancel := context.WithDeadline(ctx, time.Now().Add(timeout))
	defer cancel()
	tick := e.pollTick(timeout)

	for {
		exec, err := e.client.Status(pollCtx, initial.ExecutionID)
		if err != nil {
			if pollCtx.Err() != nil && ctx.Err() == nil {
				return nil, errors.ExecutionTimedOut(initial.FlowID, initial.ExecutionID, timeout)
			}
			return nil, errors.NewExecutionError(classFor(err), initial.FlowID, initial.ExecutionID, err)
		}

		if status := initialStatus(exec.Status); status.Terminal() {
			return e.terminalResult(initial, exec, status), nil
		}

		timer := time.NewTimer(tick)
		select {
		case <-timer.C:
		case <-pollCtx.Done():
			timer.Stop()
			if ctx.Err() != nil {
				return nil, errors.NewExecutionError(errors.ErrorTransient, initial.FlowID, initial.ExecutionID, ctx.Err())
			}
			return nil, errors.ExecutionTimedOut(initial.FlowID, initial.ExecutionID, timeout)
		}
	}
}

// pollTick derives the polling interval from the timeout: a tenth of
// the deadline, capped by the configured maximum and floored so short
// timeouts cannot spin.
func (e *Executor) pollTick(timeout time.Duration) time.Duration {
	tick := timeout / 10
	if tick > e.maxPollTick {
		tick = e.maxPollTick
	}
	if tick < minPollTick {
		tick = minPollTick
	}
	return tick
}

// terminalResult merges the provider's terminal view with the fields
// only the invoker knows (input, local start time).
func (e *Executor) terminalResult(initial *Result, exec *provider.Execution, status Status) *Result {
	final := &Result{
		ExecutionID:    initial.ExecutionID,
		FlowID:         initial.FlowID,
		Status:         status,
		StartedAt:      initial.StartedAt,
		DurationMillis: exec.DurationMillis,
		Input:          initial.Input,
		Output:         exec.Output,
		Error:          exec.ErrorMessage,
	}
	completed := time.Now().UTC()
	if exec.CompletedAt != nil {
		completed = *exec.CompletedAt
	}
	final.CompletedAt = &completed
	return final
}

// ExecuteMultipleFlows dispatches every request and never returns an
// error: a failed dispatch becomes a synthesized failed Result with a
// locally generated execution ID. Results line up with requests by
// index regardless of mode.
func (e *Executor) ExecuteMultipleFlows(ctx context.Context, requests []FlowRequest, parallel bool) []*Result {
	results := make([]*Result, len(requests))
	if len(requests) == 0 {
		return results
	}

	e.logger.Info("executing multiple flows", "count", len(requests), "parallel", parallel)

	if parallel {
		g, gctx := errgroup.WithContext(ctx)
		for i, req := range requests {
			i, req := i, req
			g.Go(func() error {
				results[i] = e.executeOrSynthesize(gctx, req)
				return nil
			})
		}
		_ = g.Wait()
		return results
	}

	for i, req := range requests {
		results[i] = e.executeOrSynthesize(ctx, req)
	}
	return results
}

func (e *Executor) executeOrSynthesize(ctx context.Context, req FlowRequest) *Result {
	result, err := e.ExecuteFlow(ctx, req.FlowID, req.Input)
	if err == nil {
		return result
	}

	e.logger.Warn("flow dispatch failed", "flow_id", req.FlowID, "error", err)
	return &Result{
		ExecutionID: "local_" + uuid.NewString(),
		FlowID:      req.FlowID,
		Status:      StatusFailed,
		StartedAt:   time.Now().UTC(),
		Input:       req.Input,
		Error:       err.Error(),
	}
}

// ExecutionStatus fetches the provider's current view of an execution,
// tracked by this executor or not.
func (e *Executor) ExecutionStatus(ctx context.Context, executionID string) (*Result, error) {
	exec, err := e.client.Status(ctx, executionID)
	if err != nil {
		return nil, err
	}

	result := &Result{
		ExecutionID:    exec.ExecutionID,
		FlowID:         exec.FlowID,
		Status:         initialStatus(exec.Status),
		StartedAt:      exec.StartedAt,
		DurationMillis: exec.DurationMillis,
		Output:         exec.Output,
		Error:          exec.ErrorMessage,
	}
	if result.ExecutionID == "" {
		result.ExecutionID = executionID
	}
	if exec.CompletedAt != nil {
		completed := *exec.CompletedAt
		result.CompletedAt = &completed
	}
	return result, nil
}

// CancelExecution asks the provider to stop an execution and returns
// its resulting state. An unknown execution ID surfaces as an invalid
// error from the provider. If a waiting poll loop tracks the
// execution, that loop observes the cancelled status on its next tick
// and finishes normally, so cancellation never competes with the
// loop's ownership of its result.
func (e *Executor) CancelExecution(ctx context.Context, executionID string) (*Result, error) {
	if err := e.client.Cancel(ctx, executionID); err != nil {
		return nil, err
	}

	e.logger.Info("execution cancelled", "execution_id", executionID)

	result, err := e.ExecutionStatus(ctx, executionID)
	if err != nil {
		// The cancel itself succeeded; report the state we know.
		e.logger.Warn("status fetch after cancel failed", "execution_id", executionID, "error", err)
		completed := time.Now().UTC()
		return &Result{
			ExecutionID: executionID,
			Status:      StatusCancelled,
			CompletedAt: &completed,
		}, nil
	}
	return result, nil
}

// HistoryFilter narrows History reads. Zero values match everything;
// Limit keeps only the most recent N entries after filtering.
type HistoryFilter struct {
	FlowID string
	Status Status
	Limit  int
}

// History returns finished (and non-waited) executions matching the
// filter, oldest first.
func (e *Executor) History(filter HistoryFilter) []*Result {
	results := e.history.Filter(func(r *Result) bool {
		if filter.FlowID != "" && r.FlowID != filter.FlowID {
			return false
		}
		if filter.Status != "" && r.Status != filter.Status {
			return false
		}
		return true
	})
	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[len(results)-filter.Limit:]
	}
	return results
}

// SuccessRate returns the percentage (0 to 100) of successful runs in
// the retained history, optionally filtered to one flow. An empty
// history yields 0.
func (e *Executor) SuccessRate(flowID string) float64 {
	history := e.History(HistoryFilter{FlowID: flowID})
	if len(history) == 0 {
		return 0.0
	}

	successes := 0
	for _, result := range history {
		if result.Succeeded() {
			successes++
		}
	}
	return float64(successes) / float64(len(history)) * 100
}

// ActiveCount returns the number of executions currently being waited
// on by poll loops.
func (e *Executor) ActiveCount() int {
	return int(e.active.Load())
}

// Stats is a point-in-time executor snapshot for health and gateway
// reporting.
type Stats struct {
	Active      int            `json:"active"`
	HistorySize int            `json:"history_size"`
	HistoryCap  int            `json:"history_capacity"`
	ByStatus    map[Status]int `json:"by_status"`
	SuccessRate float64        `json:"success_rate"`
}

// Stats returns a snapshot of executor state.
func (e *Executor) Stats() Stats {
	byStatus := make(map[Status]int)
	for _, result := range e.history.Snapshot() {
		byStatus[result.Status]++
	}
	return Stats{
		Active:      e.ActiveCount(),
		HistorySize: e.history.Len(),
		HistoryCap:  e.history.Cap(),
		ByStatus:    byStatus,
		SuccessRate: e.SuccessRate(""),
	}
}

func (e *Executor) incActive() {
	n := e.active.Add(1)
	if e.metrics != nil {
		e.metrics.RecordActiveExecutions(int(n))
	}
}

func (e *Executor) decActive() {
	n := e.active.Add(-1)
	if e.metrics != nil {
		e.metrics.RecordActiveExecutions(int(n))
	}
}

// recordTerminal counts a finished execution in the metrics.
func (e *Executor) recordTerminal(result *Result) {
	if e.metrics == nil {
		return
	}
	e.metrics.RecordExecution(result.FlowID, string(result.Status))
	e.metrics.RecordExecutionDuration(result.FlowID, result.Duration())
}

// recordFailure counts a dispatch that produced no terminal result:
// timeouts under their own label, everything else as an error.
func (e *Executor) recordFailure(flowID string, err error) {
	if e.metrics == nil {
		return
	}
	status := "error"
	if stderrors.Is(err, errors.ErrExecutionTimeout) {
		status = "timeout"
	}
	e.metrics.RecordExecution(flowID, status)
}

// initialStatus normalizes a provider status string, defaulting blank
// values to running.
func initialStatus(status string) Status {
	if status == "" {
		return StatusRunning
	}
	return Status(status)
}

// classFor preserves the classification of an underlying provider
// error when wrapping it in an ExecutionError.
func classFor(err error) errors.ErrorClass {
	switch {
	case errors.IsInvalid(err):
		return errors.ErrorInvalid
	case errors.IsFatal(err):
		return errors.ErrorFatal
	default:
		return errors.ErrorTransient
	}
}
