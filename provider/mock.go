package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/errors"
)

// mockHistoryError is the failure message on the canned failed run.
const mockHistoryError = "Timeout waiting for external API"

// MockClient is a deterministic in-memory Client for demos and tests.
// No network, no credentials: Invoke hands out monotonically numbered
// execution IDs, and by default the first Status call on an execution
// resolves it as a success. FailNext and StatusSequence override that
// behavior for failure-path tests.
type MockClient struct {
	mu        sync.Mutex
	counter   int
	flows     []Flow
	live      map[string]*Execution
	failQueue []error
	statusSeq []string
	logger    *slog.Logger
}

// NewMockClient returns a mock with the default flow catalog and no
// live executions.
func NewMockClient(opts ...Option) *MockClient {
	o := applyOptions(opts...)
	return &MockClient{
		flows:  defaultFlows(),
		live:   make(map[string]*Execution),
		logger: o.logger,
	}
}

// defaultFlows is the demo catalog. IDs match the default trigger rules
// so a mock-mode hub dispatches end to end out of the box.
func defaultFlows() []Flow {
	return []Flow{
		{
			ID:          "flow_new_hire_onboarding",
			Name:        "New Hire Onboarding",
			Type:        "provisioning",
			Description: "Automate new employee provisioning and access setup",
			Active:      true,
		},
		{
			ID:          "flow_offboarding",
			Name:        "Employee Offboarding",
			Type:        "deprovisioning",
			Description: "Revoke access and archive user data",
			Active:      true,
		},
		{
			ID:          "flow_mfa_remediation",
			Name:        "MFA Remediation",
			Type:        "security",
			Description: "Enroll users missing multi-factor authentication",
			Active:      true,
		},
		{
			ID:          "flow_password_expiry_notification",
			Name:        "Password Expiry Notification",
			Type:        "notification",
			Description: "Notify users before password expiration",
			Active:      true,
		},
		{
			ID:          "flow_access_provisioning",
			Name:        "Access Provisioning",
			Type:        "provisioning",
			Description: "Process and approve application access requests",
			Active:      true,
		},
	}
}

// FailNext queues an error to be returned by the next Client call.
// Queued errors are consumed in order, one per call, before any other
// behavior runs.
func (m *MockClient) FailNext(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failQueue = append(m.failQueue, err)
}

// StatusSequence sets the statuses returned by successive Status calls.
// Each call on a non-terminal execution consumes one entry; when the
// sequence is exhausted the default first-call-success behavior resumes.
func (m *MockClient) StatusSequence(statuses ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusSeq = append([]string(nil), statuses...)
}

// takeFailure pops the next queued failure, if any. Caller holds the lock.
func (m *MockClient) takeFailure() error {
	if len(m.failQueue) == 0 {
		return nil
	}
	err := m.failQueue[0]
	m.failQueue = m.failQueue[1:]
	return err
}

// Invoke starts a mock execution in the running state. Any flow ID is
// accepted; the catalog only backs ListFlows.
func (m *MockClient) Invoke(_ context.Context, flowID string, input map[string]any) (*Invocation, error) {
	if flowID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "provider", "invoke", "flow id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	m.counter++
	executionID := fmt.Sprintf("mock_exec_%d", m.counter)
	started := time.Now().UTC()

	if input == nil {
		input = map[string]any{}
	}
	m.live[executionID] = &Execution{
		ExecutionID: executionID,
		FlowID:      flowID,
		Status:      StatusRunning,
		StartedAt:   started,
	}

	m.logger.Debug("mock flow invoked", "flow_id", flowID, "execution_id", executionID)
	return &Invocation{
		ExecutionID: executionID,
		Status:      StatusRunning,
		Raw: map[string]any{
			"execution_id": executionID,
			"flow_id":      flowID,
			"status":       StatusRunning,
			"started_at":   started.Format(time.RFC3339),
			"input":        input,
		},
	}, nil
}

// Status advances and returns the state of a mock execution. Without a
// status sequence the first call on a running execution resolves it as
// a success with the canned output payload.
func (m *MockClient) Status(_ context.Context, executionID string) (*Execution, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	exec, ok := m.live[executionID]
	if !ok {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrExecutionNotFound, executionID),
			"provider", "status", "fetch execution")
	}
	if terminalStatus(exec.Status) {
		return cloneExecution(exec), nil
	}

	next := StatusSuccess
	if len(m.statusSeq) > 0 {
		next = m.statusSeq[0]
		m.statusSeq = m.statusSeq[1:]
	}
	exec.Status = next
	if terminalStatus(next) {
		m.finalize(exec)
	}
	return cloneExecution(exec), nil
}

// finalize stamps completion fields on a terminal execution. Caller
// holds the lock.
func (m *MockClient) finalize(exec *Execution) {
	completed := time.Now().UTC()
	exec.CompletedAt = &completed
	switch exec.Status {
	case StatusSuccess:
		exec.DurationMillis = 1234
		exec.Output = map[string]any{
			"result":            "success",
			"actions_completed": 5,
		}
	case StatusFailed:
		exec.DurationMillis = completed.Sub(exec.StartedAt).Milliseconds()
		exec.ErrorMessage = "mock execution failed"
	case StatusCancelled:
		exec.DurationMillis = completed.Sub(exec.StartedAt).Milliseconds()
	}
}

// ListFlows returns the catalog, filtered by type when flowType is set.
func (m *MockClient) ListFlows(_ context.Context, flowType string) ([]Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	flows := make([]Flow, 0, len(m.flows))
	for _, flow := range m.flows {
		if flowType != "" && flow.Type != flowType {
			continue
		}
		flows = append(flows, flow)
	}
	return flows, nil
}

// ExecutionHistory returns the canned history for a flow: two successes
// and one timeout failure, truncated to limit.
func (m *MockClient) ExecutionHistory(_ context.Context, flowID string, limit int) ([]Execution, error) {
	if flowID == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "provider", "execution_history", "flow id cannot be empty")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return nil, err
	}

	history := mockHistory(flowID)
	if limit <= 0 {
		limit = defaultHistoryMax
	}
	if limit < len(history) {
		history = history[:limit]
	}
	return history, nil
}

// mockHistory builds the deterministic execution records for a flow.
func mockHistory(flowID string) []Execution {
	completed := func(t time.Time) *time.Time { return &t }
	return []Execution{
		{
			ExecutionID:    fmt.Sprintf("exec_%s_001", flowID),
			FlowID:         flowID,
			Status:         StatusSuccess,
			StartedAt:      time.Date(2025, 12, 1, 10, 0, 0, 0, time.UTC),
			CompletedAt:    completed(time.Date(2025, 12, 1, 10, 0, 5, 0, time.UTC)),
			DurationMillis: 5000,
		},
		{
			ExecutionID:    fmt.Sprintf("exec_%s_002", flowID),
			FlowID:         flowID,
			Status:         StatusSuccess,
			StartedAt:      time.Date(2025, 12, 2, 14, 30, 0, 0, time.UTC),
			CompletedAt:    completed(time.Date(2025, 12, 2, 14, 30, 3, 0, time.UTC)),
			DurationMillis: 3000,
		},
		{
			ExecutionID:    fmt.Sprintf("exec_%s_003", flowID),
			FlowID:         flowID,
			Status:         StatusFailed,
			StartedAt:      time.Date(2025, 12, 3, 9, 15, 0, 0, time.UTC),
			CompletedAt:    completed(time.Date(2025, 12, 3, 9, 15, 10, 0, time.UTC)),
			DurationMillis: 10000,
			ErrorMessage:   mockHistoryError,
		},
	}
}

// Cancel marks a non-terminal mock execution cancelled.
func (m *MockClient) Cancel(_ context.Context, executionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.takeFailure(); err != nil {
		return err
	}

	exec, ok := m.live[executionID]
	if !ok {
		return errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrExecutionNotFound, executionID),
			"provider", "cancel", "cancel execution")
	}
	if terminalStatus(exec.Status) {
		return errors.WrapInvalid(
			fmt.Errorf("%w: execution %s already %s", errors.ErrInvalidData, executionID, exec.Status),
			"provider", "cancel", "cancel execution")
	}

	exec.Status = StatusCancelled
	m.finalize(exec)
	return nil
}

// Healthy always succeeds unless a failure is queued.
func (m *MockClient) Healthy(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.takeFailure()
}

// cloneExecution copies an execution so callers never share the mock's
// internal state.
func cloneExecution(exec *Execution) *Execution {
	cp := *exec
	if exec.Output != nil {
		cp.Output = make(map[string]any, len(exec.Output))
		for k, v := range exec.Output {
			cp.Output[k] = v
		}
	}
	if exec.CompletedAt != nil {
		t := *exec.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
