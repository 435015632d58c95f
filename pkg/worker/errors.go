package worker

import "errors"

// Sentinel errors returned by pool operations. They are returned unwrapped
// so callers can compare with errors.Is or equality.
var (
	// ErrPoolNotStarted indicates Submit was called before Start
	ErrPoolNotStarted = errors.New("worker pool not started")

	// ErrPoolStopped indicates Submit was called after Stop
	ErrPoolStopped = errors.New("worker pool stopped")

	// ErrPoolAlreadyStarted indicates Start was called twice
	ErrPoolAlreadyStarted = errors.New("worker pool already started")

	// ErrQueueFull indicates the work item was dropped because the queue
	// is at capacity
	ErrQueueFull = errors.New("worker pool queue full")

	// ErrNilProcessor indicates NewPool was given a nil processor
	ErrNilProcessor = errors.New("processor function cannot be nil")

	// ErrStopTimeout indicates in-flight work did not drain before the
	// shutdown deadline
	ErrStopTimeout = errors.New("timeout waiting for workers to stop")
)
