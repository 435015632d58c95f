package errors

import (
	"errors"
	"fmt"
	"time"
)

// ExecutionError reports a flow invocation or await that could not produce a
// tracked result: provider call failures, responses without an execution id,
// and executions that never reached a terminal status before their deadline.
// It carries its own classification so the Is* helpers work through it.
type ExecutionError struct {
	Class       ErrorClass
	FlowID      string
	ExecutionID string
	Err         error
}

// Error implements the error interface
func (ee *ExecutionError) Error() string {
	if ee.ExecutionID != "" {
		return fmt.Sprintf("flow %s (execution %s): %v", ee.FlowID, ee.ExecutionID, ee.Err)
	}
	return fmt.Sprintf("flow %s: %v", ee.FlowID, ee.Err)
}

// Unwrap returns the underlying error
func (ee *ExecutionError) Unwrap() error {
	return ee.Err
}

// NewExecutionError creates a classified execution error
func NewExecutionError(class ErrorClass, flowID, executionID string, err error) *ExecutionError {
	return &ExecutionError{
		Class:       class,
		FlowID:      flowID,
		ExecutionID: executionID,
		Err:         err,
	}
}

// MissingExecutionID reports a provider invocation that returned no execution id.
func MissingExecutionID(flowID string) *ExecutionError {
	return NewExecutionError(ErrorInvalid, flowID, "", ErrNoExecutionID)
}

// ExecutionTimedOut reports an execution that did not reach a terminal status
// before the deadline. The message carries the configured timeout in seconds.
func ExecutionTimedOut(flowID, executionID string, timeout time.Duration) *ExecutionError {
	return NewExecutionError(ErrorTransient, flowID, executionID,
		fmt.Errorf("%w after %.0f seconds", ErrExecutionTimeout, timeout.Seconds()))
}

// IsExecution checks if an error is (or wraps) an ExecutionError
func IsExecution(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee)
}

// AsExecution extracts an ExecutionError from an error chain
func AsExecution(err error) (*ExecutionError, bool) {
	var ee *ExecutionError
	ok := errors.As(err, &ee)
	return ee, ok
}
