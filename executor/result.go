package executor

import (
	"time"
)

// Status is the lifecycle state of a flow execution.
type Status string

// Execution statuses. An execution moves forward only: pending or
// running until the provider reports one of the three terminal states.
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSuccess   Status = "success"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Terminal reports whether the status is final. Terminal results never
// change again.
func (s Status) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Result is the tracked outcome of one flow execution. A result is
// written by the single goroutine that owns its poll loop until it
// reaches a terminal status; after that it is immutable.
type Result struct {
	ExecutionID    string         `json:"execution_id"`
	FlowID         string         `json:"flow_id"`
	Status         Status         `json:"status"`
	StartedAt      time.Time      `json:"started_at"`
	CompletedAt    *time.Time     `json:"completed_at,omitempty"`
	DurationMillis int64          `json:"duration_ms,omitempty"`
	Input          map[string]any `json:"input,omitempty"`
	Output         map[string]any `json:"output,omitempty"`
	Error          string         `json:"error,omitempty"`
}

// Succeeded reports whether the execution finished successfully.
func (r *Result) Succeeded() bool {
	return r.Status == StatusSuccess
}

// Failed reports whether the execution finished in failure.
func (r *Result) Failed() bool {
	return r.Status == StatusFailed
}

// Terminal reports whether the execution has finished.
func (r *Result) Terminal() bool {
	return r.Status.Terminal()
}

// Duration returns how long the execution ran. It prefers the
// provider-reported duration, falls back to the completion timestamps,
// and for in-flight executions returns the elapsed time so far.
func (r *Result) Duration() time.Duration {
	if r.DurationMillis > 0 {
		return time.Duration(r.DurationMillis) * time.Millisecond
	}
	if r.CompletedAt != nil {
		return r.CompletedAt.Sub(r.StartedAt)
	}
	if r.StartedAt.IsZero() {
		return 0
	}
	return time.Since(r.StartedAt)
}

// FlowRequest names one flow dispatch in a multi-flow call.
type FlowRequest struct {
	FlowID string         `json:"flow_id"`
	Input  map[string]any `json:"input,omitempty"`
}
