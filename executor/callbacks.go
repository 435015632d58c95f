package executor

import (
	"log/slog"
	"sync"
)

// Callback observes a flow execution result. Callbacks must not retain
// or mutate the result.
type Callback func(*Result)

// CallbackManager holds the start, complete, and error hooks for flow
// executions. Hooks run in registration order; a callback that panics
// is logged and never aborts the remaining callbacks or the execution.
type CallbackManager struct {
	mu       sync.RWMutex
	start    []Callback
	complete []Callback
	failure  []Callback
	logger   *slog.Logger
}

// NewCallbackManager returns an empty manager.
func NewCallbackManager(logger *slog.Logger) *CallbackManager {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackManager{logger: logger}
}

// OnStart registers a callback fired when a flow invocation returns an
// execution ID, before any polling happens.
func (cm *CallbackManager) OnStart(cb Callback) {
	if cb == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.start = append(cm.start, cb)
}

// OnComplete registers a callback fired when an execution finishes
// successfully.
func (cm *CallbackManager) OnComplete(cb Callback) {
	if cb == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.complete = append(cm.complete, cb)
}

// OnError registers a callback fired when an execution finishes in the
// failed status.
func (cm *CallbackManager) OnError(cb Callback) {
	if cb == nil {
		return
	}
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.failure = append(cm.failure, cb)
}

// fireStart runs the start hooks for a freshly invoked execution.
func (cm *CallbackManager) fireStart(result *Result) {
	cm.fire("start", cm.snapshot(&cm.start), result)
}

// fireTerminal dispatches a terminal result to the matching hook:
// success runs the complete callbacks, failed runs the error callbacks,
// and cancelled runs neither.
func (cm *CallbackManager) fireTerminal(result *Result) {
	switch result.Status {
	case StatusSuccess:
		cm.fire("complete", cm.snapshot(&cm.complete), result)
	case StatusFailed:
		cm.fire("error", cm.snapshot(&cm.failure), result)
	}
}

// snapshot copies a hook list so callbacks run outside the lock.
func (cm *CallbackManager) snapshot(hooks *[]Callback) []Callback {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return append([]Callback(nil), *hooks...)
}

func (cm *CallbackManager) fire(hook string, callbacks []Callback, result *Result) {
	for i, cb := range callbacks {
		cm.invoke(hook, i, cb, result)
	}
}

func (cm *CallbackManager) invoke(hook string, index int, cb Callback, result *Result) {
	defer func() {
		if r := recover(); r != nil {
			cm.logger.Error("execution callback panicked",
				"hook", hook,
				"index", index,
				"execution_id", result.ExecutionID,
				"panic", r)
		}
	}()
	cb(result)
}
