package executor

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/config"
	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/metric"
	"github.com/MikeDominic92/okta-sso-hub/provider"
)

// fakeClient is a scripted provider.Client. Unset function fields fall
// back to an invocation with a monotonic execution ID and an immediately
// successful status, so tests only script the behavior they care about.
type fakeClient struct {
	invokeFn func(ctx context.Context, flowID string, input map[string]any) (*provider.Invocation, error)
	statusFn func(ctx context.Context, executionID string) (*provider.Execution, error)
	cancelFn func(ctx context.Context, executionID string) error

	invokeCalls atomic.Int32
	statusCalls atomic.Int32
	invoked     chan string
}

func newFakeClient() *fakeClient {
	return &fakeClient{invoked: make(chan string, 64)}
}

func (f *fakeClient) Invoke(ctx context.Context, flowID string, input map[string]any) (*provider.Invocation, error) {
	n := f.invokeCalls.Add(1)
	f.invoked <- flowID
	if f.invokeFn != nil {
		return f.invokeFn(ctx, flowID, input)
	}
	return &provider.Invocation{
		ExecutionID: fmt.Sprintf("fake_exec_%d", n),
		Status:      provider.StatusRunning,
	}, nil
}

func (f *fakeClient) Status(ctx context.Context, executionID string) (*provider.Execution, error) {
	f.statusCalls.Add(1)
	if f.statusFn != nil {
		return f.statusFn(ctx, executionID)
	}
	return &provider.Execution{
		ExecutionID:    executionID,
		Status:         provider.StatusSuccess,
		DurationMillis: 10,
	}, nil
}

func (f *fakeClient) ListFlows(context.Context, string) ([]provider.Flow, error) {
	return nil, nil
}

func (f *fakeClient) ExecutionHistory(context.Context, string, int) ([]provider.Execution, error) {
	return nil, nil
}

func (f *fakeClient) Cancel(ctx context.Context, executionID string) error {
	if f.cancelFn != nil {
		return f.cancelFn(ctx, executionID)
	}
	return nil
}

func (f *fakeClient) Healthy(context.Context) error { return nil }

// invokedFlows drains the recorded invocations in call order.
func (f *fakeClient) invokedFlows() []string {
	var flows []string
	for {
		select {
		case flowID := <-f.invoked:
			flows = append(flows, flowID)
		default:
			return flows
		}
	}
}

// seededExecutor runs four scripted executions so history, success rate,
// and stats tests share one known dataset: flow_a success, flow_a
// failed, flow_b success, flow_a success.
func seededExecutor(t *testing.T) *Executor {
	t.Helper()

	fake := newFakeClient()
	exec, err := New(fake, config.ExecutorConfig{HistorySize: 10})
	require.NoError(t, err)

	runs := []struct {
		flowID string
		status string
	}{
		{"flow_a", provider.StatusSuccess},
		{"flow_a", provider.StatusFailed},
		{"flow_b", provider.StatusSuccess},
		{"flow_a", provider.StatusSuccess},
	}
	for _, run := range runs {
		status := run.status
		fake.statusFn = func(_ context.Context, executionID string) (*provider.Execution, error) {
			return &provider.Execution{
				ExecutionID:    executionID,
				Status:         status,
				DurationMillis: 5,
			}, nil
		}
		_, err := exec.ExecuteFlow(context.Background(), run.flowID, nil)
		require.NoError(t, err)
	}
	return exec
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, config.ExecutorConfig{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestExecuteFlow_Success(t *testing.T) {
	exec, err := New(provider.NewMockClient(), config.ExecutorConfig{})
	require.NoError(t, err)

	input := map[string]any{"user_id": "u_100"}
	result, err := exec.ExecuteFlow(context.Background(), "flow_new_hire_onboarding", input)
	require.NoError(t, err)

	assert.Equal(t, "mock_exec_1", result.ExecutionID)
	assert.Equal(t, StatusSuccess, result.Status)
	assert.True(t, result.Succeeded())
	assert.Equal(t, int64(1234), result.DurationMillis)
	assert.Equal(t, "success", result.Output["result"])
	assert.Equal(t, input, result.Input)
	require.NotNil(t, result.CompletedAt)
	assert.Equal(t, 1234*time.Millisecond, result.Duration())

	assert.Len(t, exec.History(HistoryFilter{}), 1)
	assert.Equal(t, 0, exec.ActiveCount())
}

func TestExecuteFlow_NilInputBecomesEmptyMap(t *testing.T) {
	exec, err := New(provider.NewMockClient(), config.ExecutorConfig{})
	require.NoError(t, err)

	result, err := exec.ExecuteFlow(context.Background(), "flow_offboarding", nil)
	require.NoError(t, err)
	require.NotNil(t, result.Input)
	assert.Empty(t, result.Input)
}

func TestExecuteFlow_NoWaitReturnsRunning(t *testing.T) {
	exec, err := New(provider.NewMockClient(), config.ExecutorConfig{})
	require.NoError(t, err)

	var completions int
	exec.OnComplete(func(*Result) { completions++ })

	result, err := exec.ExecuteFlow(context.Background(), "flow_offboarding", nil, WithWait(false))
	require.NoError(t, err)

	assert.Equal(t, StatusRunning, result.Status)
	assert.Nil(t, result.CompletedAt)
	assert.False(t, result.Terminal())
	assert.Equal(t, 0, completions, "no completion hook without a terminal status")
	assert.Len(t, exec.History(HistoryFilter{}), 1, "dispatched executions are tracked even without waiting")
	assert.Equal(t, 0, exec.ActiveCount())
}

func TestExecuteFlow_CallbackDispatch(t *testing.T) {
	tests := []struct {
		name         string
		statusSeq    []string
		wantStatus   Status
		wantComplete int
		wantError    int
	}{
		{
			name:         "success fires complete",
			statusSeq:    []string{provider.StatusSuccess},
			wantStatus:   StatusSuccess,
			wantComplete: 1,
		},
		{
			name:       "failed fires error",
			statusSeq:  []string{provider.StatusFailed},
			wantStatus: StatusFailed,
			wantError:  1,
		},
		{
			name:       "cancelled fires neither",
			statusSeq:  []string{provider.StatusCancelled},
			wantStatus: StatusCancelled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := provider.NewMockClient()
			mock.StatusSequence(tt.statusSeq...)
			exec, err := New(mock, config.ExecutorConfig{})
			require.NoError(t, err)

			var starts, completes, failures int
			exec.OnStart(func(r *Result) {
				starts++
				assert.Equal(t, StatusRunning, r.Status)
				assert.NotEmpty(t, r.ExecutionID)
			})
			exec.OnComplete(func(*Result) { completes++ })
			exec.OnError(func(*Result) { failures++ })

			result, err := exec.ExecuteFlow(context.Background(), "flow_mfa_remediation", nil)
			require.NoError(t, err, "a failed or cancelled flow is still a tracked result")

			assert.Equal(t, tt.wantStatus, result.Status)
			assert.Equal(t, 1, starts)
			assert.Equal(t, tt.wantComplete, completes)
			assert.Equal(t, tt.wantError, failures)
			assert.Len(t, exec.History(HistoryFilter{}), 1)
		})
	}
}

func TestExecuteFlow_FailedStatusCarriesError(t *testing.T) {
	mock := provider.NewMockClient()
	mock.StatusSequence(provider.StatusFailed)
	exec, err := New(mock, config.ExecutorConfig{})
	require.NoError(t, err)

	result, err := exec.ExecuteFlow(context.Background(), "flow_offboarding", nil)
	require.NoError(t, err)
	assert.True(t, result.Failed())
	assert.Equal(t, "mock execution failed", result.Error)
	require.NotNil(t, result.CompletedAt)
}

func TestExecuteFlow_InvokeError(t *testing.T) {
	fake := newFakeClient()
	fake.invokeFn = func(_ context.Context, flowID string, _ map[string]any) (*provider.Invocation, error) {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrFlowNotFound, flowID),
			"provider", "Invoke", "invoke flow")
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	result, err := exec.ExecuteFlow(context.Background(), "flow_missing", nil)
	require.Error(t, err)
	assert.Nil(t, result)

	ee, ok := errors.AsExecution(err)
	require.True(t, ok)
	assert.Equal(t, "flow_missing", ee.FlowID)
	assert.Empty(t, ee.ExecutionID)
	assert.True(t, errors.IsInvalid(err))
	assert.True(t, stderrors.Is(err, errors.ErrFlowNotFound))
	assert.Empty(t, exec.History(HistoryFilter{}))
}

func TestExecuteFlow_MissingExecutionID(t *testing.T) {
	fake := newFakeClient()
	fake.invokeFn = func(context.Context, string, map[string]any) (*provider.Invocation, error) {
		return &provider.Invocation{Status: provider.StatusRunning}, nil
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	var starts int
	exec.OnStart(func(*Result) { starts++ })

	_, err = exec.ExecuteFlow(context.Background(), "flow_a", nil)
	require.Error(t, err)
	assert.True(t, errors.IsExecution(err))
	assert.True(t, errors.IsInvalid(err))
	assert.True(t, stderrors.Is(err, errors.ErrNoExecutionID))
	assert.Equal(t, 0, starts, "no start hook without an execution id")
	assert.Empty(t, exec.History(HistoryFilter{}))
}

func TestExecuteFlow_Timeout(t *testing.T) {
	fake := newFakeClient()
	fake.statusFn = func(_ context.Context, executionID string) (*provider.Execution, error) {
		return &provider.Execution{ExecutionID: executionID, Status: provider.StatusRunning}, nil
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	result, err := exec.ExecuteFlow(context.Background(), "flow_slow", nil, WithTimeout(250*time.Millisecond))
	require.Error(t, err)
	assert.Nil(t, result)

	assert.True(t, stderrors.Is(err, errors.ErrExecutionTimeout))
	assert.True(t, errors.IsTransient(err))
	ee, ok := errors.AsExecution(err)
	require.True(t, ok)
	assert.Equal(t, "flow_slow", ee.FlowID)
	assert.Equal(t, "fake_exec_1", ee.ExecutionID)

	assert.Empty(t, exec.History(HistoryFilter{}), "a timed out execution has no terminal result to record")
	assert.Equal(t, 0, exec.ActiveCount())
	assert.GreaterOrEqual(t, int(fake.statusCalls.Load()), 2, "expected repeated polling before the deadline")
}

func TestExecuteFlow_ZeroTimeoutFailsBeforePolling(t *testing.T) {
	fake := newFakeClient()
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	var starts int
	exec.OnStart(func(*Result) { starts++ })

	_, err = exec.ExecuteFlow(context.Background(), "flow_a", nil, WithTimeout(0))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrExecutionTimeout))
	assert.Equal(t, 1, starts, "the invocation was dispatched before the deadline check")
	assert.Equal(t, int32(0), fake.statusCalls.Load())
	assert.Empty(t, exec.History(HistoryFilter{}))
}

func TestExecuteFlow_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fake := newFakeClient()
	fake.statusFn = func(_ context.Context, executionID string) (*provider.Execution, error) {
		cancel()
		return &provider.Execution{ExecutionID: executionID, Status: provider.StatusRunning}, nil
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	_, err = exec.ExecuteFlow(ctx, "flow_a", nil, WithTimeout(5*time.Second))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, context.Canceled))
	assert.False(t, stderrors.Is(err, errors.ErrExecutionTimeout), "caller cancellation is not a deadline overrun")
	assert.True(t, errors.IsTransient(err))
}

func TestExecuteMultipleFlows_Parallel(t *testing.T) {
	fake := newFakeClient()
	fake.invokeFn = func(_ context.Context, flowID string, _ map[string]any) (*provider.Invocation, error) {
		if flowID == "flow_unknown" {
			return nil, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrFlowNotFound, flowID),
				"provider", "Invoke", "invoke flow")
		}
		return &provider.Invocation{ExecutionID: "fake_exec_" + flowID, Status: provider.StatusRunning}, nil
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	requests := []FlowRequest{
		{FlowID: "flow_a"},
		{FlowID: "flow_unknown"},
		{FlowID: "flow_b", Input: map[string]any{"user_id": "u_7"}},
	}
	results := exec.ExecuteMultipleFlows(context.Background(), requests, true)
	require.Len(t, results, 3)

	for i, result := range results {
		require.NotNil(t, result)
		assert.Equal(t, requests[i].FlowID, result.FlowID, "results line up with requests by index")
	}

	assert.Equal(t, StatusSuccess, results[0].Status)
	assert.Equal(t, StatusSuccess, results[2].Status)
	assert.Equal(t, map[string]any{"user_id": "u_7"}, results[2].Input)

	assert.Equal(t, StatusFailed, results[1].Status)
	assert.True(t, strings.HasPrefix(results[1].ExecutionID, "local_"),
		"a failed dispatch gets a locally generated execution id, got %q", results[1].ExecutionID)
	assert.NotEmpty(t, results[1].Error)
}

func TestExecuteMultipleFlows_SequentialOrder(t *testing.T) {
	fake := newFakeClient()
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	requests := []FlowRequest{{FlowID: "flow_a"}, {FlowID: "flow_b"}, {FlowID: "flow_c"}}
	results := exec.ExecuteMultipleFlows(context.Background(), requests, false)
	require.Len(t, results, 3)
	assert.Equal(t, []string{"flow_a", "flow_b", "flow_c"}, fake.invokedFlows())
}

func TestExecuteMultipleFlows_Empty(t *testing.T) {
	exec, err := New(newFakeClient(), config.ExecutorConfig{})
	require.NoError(t, err)

	results := exec.ExecuteMultipleFlows(context.Background(), nil, true)
	assert.Empty(t, results)
}

func TestExecutionStatus(t *testing.T) {
	mock := provider.NewMockClient()
	exec, err := New(mock, config.ExecutorConfig{})
	require.NoError(t, err)

	dispatched, err := exec.ExecuteFlow(context.Background(), "flow_offboarding", nil, WithWait(false))
	require.NoError(t, err)

	status, err := exec.ExecutionStatus(context.Background(), dispatched.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, dispatched.ExecutionID, status.ExecutionID)
	assert.Equal(t, "flow_offboarding", status.FlowID)
	assert.Equal(t, StatusSuccess, status.Status)
	assert.Equal(t, int64(1234), status.DurationMillis)
	require.NotNil(t, status.CompletedAt)
}

func TestExecutionStatus_Unknown(t *testing.T) {
	exec, err := New(provider.NewMockClient(), config.ExecutorConfig{})
	require.NoError(t, err)

	_, err = exec.ExecutionStatus(context.Background(), "mock_exec_999")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrExecutionNotFound))
}

func TestCancelExecution(t *testing.T) {
	mock := provider.NewMockClient()
	exec, err := New(mock, config.ExecutorConfig{})
	require.NoError(t, err)

	dispatched, err := exec.ExecuteFlow(context.Background(), "flow_new_hire_onboarding", nil, WithWait(false))
	require.NoError(t, err)

	cancelled, err := exec.CancelExecution(context.Background(), dispatched.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, dispatched.ExecutionID, cancelled.ExecutionID)
	assert.Equal(t, StatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)
}

func TestCancelExecution_Unknown(t *testing.T) {
	exec, err := New(provider.NewMockClient(), config.ExecutorConfig{})
	require.NoError(t, err)

	_, err = exec.CancelExecution(context.Background(), "mock_exec_999")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrExecutionNotFound))
}

func TestCancelExecution_StatusFetchFails(t *testing.T) {
	fake := newFakeClient()
	fake.statusFn = func(context.Context, string) (*provider.Execution, error) {
		return nil, errors.WrapTransient(errors.ErrConnectionLost, "provider", "Status", "fetch execution")
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	result, err := exec.CancelExecution(context.Background(), "fake_exec_1")
	require.NoError(t, err, "a cancel that succeeded is reported even if the follow-up status read fails")
	assert.Equal(t, "fake_exec_1", result.ExecutionID)
	assert.Equal(t, StatusCancelled, result.Status)
	require.NotNil(t, result.CompletedAt)
}

func TestHistory_Filters(t *testing.T) {
	exec := seededExecutor(t)

	all := exec.History(HistoryFilter{})
	require.Len(t, all, 4)
	assert.Equal(t, "fake_exec_1", all[0].ExecutionID, "history reads oldest first")

	byFlow := exec.History(HistoryFilter{FlowID: "flow_a"})
	assert.Len(t, byFlow, 3)

	failed := exec.History(HistoryFilter{Status: StatusFailed})
	require.Len(t, failed, 1)
	assert.Equal(t, "fake_exec_2", failed[0].ExecutionID)

	successA := exec.History(HistoryFilter{FlowID: "flow_a", Status: StatusSuccess})
	assert.Len(t, successA, 2)

	limited := exec.History(HistoryFilter{Limit: 2})
	require.Len(t, limited, 2)
	assert.Equal(t, "fake_exec_3", limited[0].ExecutionID, "limit keeps the most recent entries")
	assert.Equal(t, "fake_exec_4", limited[1].ExecutionID)
}

func TestHistory_Bounded(t *testing.T) {
	fake := newFakeClient()
	exec, err := New(fake, config.ExecutorConfig{HistorySize: 2})
	require.NoError(t, err)

	for _, flowID := range []string{"flow_a", "flow_b", "flow_c"} {
		_, err := exec.ExecuteFlow(context.Background(), flowID, nil)
		require.NoError(t, err)
	}

	history := exec.History(HistoryFilter{})
	require.Len(t, history, 2)
	assert.Equal(t, "flow_b", history[0].FlowID, "oldest entries are evicted first")
	assert.Equal(t, "flow_c", history[1].FlowID)
}

func TestSuccessRate(t *testing.T) {
	exec := seededExecutor(t)

	assert.InDelta(t, 75.0, exec.SuccessRate(""), 0.001)
	assert.InDelta(t, 66.667, exec.SuccessRate("flow_a"), 0.01)
	assert.InDelta(t, 100.0, exec.SuccessRate("flow_b"), 0.001)
	assert.Zero(t, exec.SuccessRate("flow_never_run"))
}

func TestStats(t *testing.T) {
	exec := seededExecutor(t)

	stats := exec.Stats()
	assert.Equal(t, 0, stats.Active)
	assert.Equal(t, 4, stats.HistorySize)
	assert.Equal(t, 10, stats.HistoryCap)
	assert.Equal(t, map[Status]int{StatusSuccess: 3, StatusFailed: 1}, stats.ByStatus)
	assert.InDelta(t, 75.0, stats.SuccessRate, 0.001)
}

func TestActiveCount(t *testing.T) {
	release := make(chan struct{})
	fake := newFakeClient()
	fake.statusFn = func(ctx context.Context, executionID string) (*provider.Execution, error) {
		select {
		case <-release:
			return &provider.Execution{ExecutionID: executionID, Status: provider.StatusSuccess}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	exec, err := New(fake, config.ExecutorConfig{})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = exec.ExecuteFlow(context.Background(), "flow_slow", nil, WithTimeout(5*time.Second))
	}()

	require.Eventually(t, func() bool { return exec.ActiveCount() == 1 },
		time.Second, 10*time.Millisecond, "waiting execution should register as active")

	close(release)
	<-done
	assert.Equal(t, 0, exec.ActiveCount())
}

func TestExecuteFlow_RecordsMetrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	exec, err := New(provider.NewMockClient(), config.ExecutorConfig{}, WithMetricsRegistry(registry))
	require.NoError(t, err)

	_, err = exec.ExecuteFlow(context.Background(), "flow_new_hire_onboarding", nil)
	require.NoError(t, err)

	families, err := registry.PrometheusRegistry().Gather()
	require.NoError(t, err)

	found := false
	for _, family := range families {
		if family.GetName() != "ssohub_executions_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := make(map[string]string)
			for _, label := range m.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			if labels["flow"] == "flow_new_hire_onboarding" && labels["status"] == "success" {
				found = true
				assert.Equal(t, float64(1), m.GetCounter().GetValue())
			}
		}
	}
	assert.True(t, found, "expected ssohub_executions_total{flow=flow_new_hire_onboarding,status=success}")
}
