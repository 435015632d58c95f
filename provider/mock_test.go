package provider

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/errors"
)

func TestMockClient_InvokeAssignsMonotonicIDs(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	first, err := client.Invoke(ctx, "flow_new_hire_onboarding", map[string]any{"user_id": "00u1"})
	require.NoError(t, err)
	assert.Equal(t, "mock_exec_1", first.ExecutionID)
	assert.Equal(t, StatusRunning, first.Status)

	second, err := client.Invoke(ctx, "flow_offboarding", nil)
	require.NoError(t, err)
	assert.Equal(t, "mock_exec_2", second.ExecutionID)
}

func TestMockClient_InvokeRawPayload(t *testing.T) {
	client := NewMockClient()

	inv, err := client.Invoke(context.Background(), "flow_mfa_remediation", map[string]any{"user_id": "00u9"})
	require.NoError(t, err)

	assert.Equal(t, "mock_exec_1", inv.Raw["execution_id"])
	assert.Equal(t, "flow_mfa_remediation", inv.Raw["flow_id"])
	assert.Equal(t, StatusRunning, inv.Raw["status"])
	assert.NotEmpty(t, inv.Raw["started_at"])
	assert.Equal(t, map[string]any{"user_id": "00u9"}, inv.Raw["input"])
}

func TestMockClient_InvokeRejectsEmptyFlowID(t *testing.T) {
	client := NewMockClient()

	_, err := client.Invoke(context.Background(), "", nil)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMockClient_StatusResolvesSuccessOnFirstCall(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	inv, err := client.Invoke(ctx, "flow_new_hire_onboarding", nil)
	require.NoError(t, err)

	exec, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, exec.Status)
	assert.Equal(t, int64(1234), exec.DurationMillis)
	assert.Equal(t, "success", exec.Output["result"])
	assert.Equal(t, 5, exec.Output["actions_completed"])
	require.NotNil(t, exec.CompletedAt)

	// Terminal state is stable on later polls.
	again, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, again.Status)
	assert.Equal(t, int64(1234), again.DurationMillis)
}

func TestMockClient_StatusUnknownExecution(t *testing.T) {
	client := NewMockClient()

	_, err := client.Status(context.Background(), "mock_exec_404")
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.True(t, stderrors.Is(err, errors.ErrExecutionNotFound))
}

func TestMockClient_StatusSequence(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()
	client.StatusSequence(StatusRunning, StatusRunning, StatusSuccess)

	inv, err := client.Invoke(ctx, "flow_offboarding", nil)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		exec, err := client.Status(ctx, inv.ExecutionID)
		require.NoError(t, err)
		assert.Equal(t, StatusRunning, exec.Status)
		assert.Nil(t, exec.CompletedAt)
	}

	exec, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, exec.Status)
	require.NotNil(t, exec.CompletedAt)
}

func TestMockClient_StatusSequenceFailure(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()
	client.StatusSequence(StatusFailed)

	inv, err := client.Invoke(ctx, "flow_offboarding", nil)
	require.NoError(t, err)

	exec, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, exec.Status)
	assert.NotEmpty(t, exec.ErrorMessage)
	require.NotNil(t, exec.CompletedAt)
}

func TestMockClient_FailNext(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()
	boom := stderrors.New("provider unavailable")
	client.FailNext(boom)

	_, err := client.Invoke(ctx, "flow_new_hire_onboarding", nil)
	assert.ErrorIs(t, err, boom)

	// Queue consumed, next call succeeds.
	_, err = client.Invoke(ctx, "flow_new_hire_onboarding", nil)
	assert.NoError(t, err)
}

func TestMockClient_FailNextQueuesInOrder(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()
	first := stderrors.New("first failure")
	second := stderrors.New("second failure")
	client.FailNext(first)
	client.FailNext(second)

	_, err := client.ListFlows(ctx, "")
	assert.ErrorIs(t, err, first)
	err = client.Healthy(ctx)
	assert.ErrorIs(t, err, second)
	assert.NoError(t, client.Healthy(ctx))
}

func TestMockClient_ListFlows(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	all, err := client.ListFlows(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 5)

	ids := make([]string, 0, len(all))
	for _, flow := range all {
		ids = append(ids, flow.ID)
		assert.True(t, flow.Active)
	}
	assert.Contains(t, ids, "flow_new_hire_onboarding")
	assert.Contains(t, ids, "flow_offboarding")
	assert.Contains(t, ids, "flow_mfa_remediation")
	assert.Contains(t, ids, "flow_password_expiry_notification")
	assert.Contains(t, ids, "flow_access_provisioning")
}

func TestMockClient_ListFlowsFiltersByType(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	provisioning, err := client.ListFlows(ctx, "provisioning")
	require.NoError(t, err)
	assert.Len(t, provisioning, 2)

	security, err := client.ListFlows(ctx, "security")
	require.NoError(t, err)
	require.Len(t, security, 1)
	assert.Equal(t, "flow_mfa_remediation", security[0].ID)

	none, err := client.ListFlows(ctx, "reporting")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMockClient_ExecutionHistory(t *testing.T) {
	client := NewMockClient()

	history, err := client.ExecutionHistory(context.Background(), "flow_offboarding", 10)
	require.NoError(t, err)
	require.Len(t, history, 3)

	assert.Equal(t, "exec_flow_offboarding_001", history[0].ExecutionID)
	assert.Equal(t, StatusSuccess, history[0].Status)
	assert.Equal(t, int64(5000), history[0].DurationMillis)

	assert.Equal(t, "exec_flow_offboarding_002", history[1].ExecutionID)
	assert.Equal(t, int64(3000), history[1].DurationMillis)

	assert.Equal(t, "exec_flow_offboarding_003", history[2].ExecutionID)
	assert.Equal(t, StatusFailed, history[2].Status)
	assert.Equal(t, int64(10000), history[2].DurationMillis)
	assert.Equal(t, "Timeout waiting for external API", history[2].ErrorMessage)
}

func TestMockClient_ExecutionHistoryLimit(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	truncated, err := client.ExecutionHistory(ctx, "flow_offboarding", 2)
	require.NoError(t, err)
	assert.Len(t, truncated, 2)

	// limit <= 0 falls back to the provider default, which exceeds the
	// canned history.
	full, err := client.ExecutionHistory(ctx, "flow_offboarding", 0)
	require.NoError(t, err)
	assert.Len(t, full, 3)
}

func TestMockClient_Cancel(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	inv, err := client.Invoke(ctx, "flow_new_hire_onboarding", nil)
	require.NoError(t, err)

	require.NoError(t, client.Cancel(ctx, inv.ExecutionID))

	exec, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, exec.Status)
	require.NotNil(t, exec.CompletedAt)
}

func TestMockClient_CancelUnknownExecution(t *testing.T) {
	client := NewMockClient()

	err := client.Cancel(context.Background(), "mock_exec_404")
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.ErrExecutionNotFound))
}

func TestMockClient_CancelFinishedExecution(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	inv, err := client.Invoke(ctx, "flow_new_hire_onboarding", nil)
	require.NoError(t, err)
	_, err = client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)

	err = client.Cancel(ctx, inv.ExecutionID)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestMockClient_Healthy(t *testing.T) {
	client := NewMockClient()

	assert.NoError(t, client.Healthy(context.Background()))

	boom := stderrors.New("mock outage")
	client.FailNext(boom)
	assert.ErrorIs(t, client.Healthy(context.Background()), boom)
}

func TestMockClient_StatusReturnsCopy(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	inv, err := client.Invoke(ctx, "flow_new_hire_onboarding", nil)
	require.NoError(t, err)

	exec, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	exec.Output["result"] = "tampered"

	again, err := client.Status(ctx, inv.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, "success", again.Output["result"])
}

func TestMockClient_ConcurrentInvoke(t *testing.T) {
	client := NewMockClient()
	ctx := context.Background()

	const goroutines = 20
	var wg sync.WaitGroup
	ids := make(chan string, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			inv, err := client.Invoke(ctx, fmt.Sprintf("flow_%d", n), nil)
			if err != nil {
				t.Errorf("invoke %d: %v", n, err)
				return
			}
			ids <- inv.ExecutionID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate execution id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines)
}
