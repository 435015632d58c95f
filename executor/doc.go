// Package executor orchestrates flow executions: invoke through the
// provider client, poll to completion under a deadline, fire lifecycle
// callbacks, and keep a bounded history of finished runs.
//
// # Execution lifecycle
//
// ExecuteFlow invokes the flow and builds a Result from the returned
// execution ID (an invocation without one fails with an
// ExecutionError). Start callbacks fire at that point regardless of
// whether the call waits. A waiting call then polls the provider at a
// tick derived from the timeout (timeout/10, capped at the configured
// maximum, floored at 100ms) until a terminal status appears, fires
// the complete or error hook, appends the result to history, and
// returns it.
//
// Statuses move forward only: pending or running, then exactly one of
// success, failed, or cancelled. Each in-flight result is written by
// the one goroutine that polls it, so no locking guards individual
// results.
//
// # Timeouts
//
// A poll loop that reaches its deadline returns a transient
// ExecutionError instead of a result. Nothing is appended to history
// and no completion hook fires; the remote execution may still finish
// on the provider side. Callers that need the outcome later can ask
// ExecutionStatus. This asymmetry between timed-out and cancelled runs
// is deliberate and preserved for compatibility.
//
// # Fan-out
//
// ExecuteMultipleFlows dispatches a batch sequentially or in parallel
// and always returns one result per request, in request order. A
// dispatch that fails is converted into a synthesized failed Result
// with a locally generated execution ID, so one bad flow never hides
// the others' outcomes.
//
// # History and reporting
//
// Finished results land in a ring buffer shared by History,
// SuccessRate (a 0-100 percentage), and Stats. The ring evicts oldest
// entries past its capacity; timed-out runs are absent by
// construction.
package executor
