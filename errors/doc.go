// Package errors provides standardized error handling patterns for SSO Hub components.
//
// # Overview
//
// The errors package implements a three-class error classification system for the
// event-driven workflow engine: Transient (temporary, retryable), Invalid (bad
// input, non-retryable), and Fatal (unrecoverable, stop processing).
//
// Classification lets components make retry and degradation decisions without
// string matching on error text. It integrates with Go's standard error handling
// (errors.Is, errors.As, wrapping chains).
//
// # Error Wrapping Pattern
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions provide classification-aware wrapping:
//
//	errors.WrapTransient(err, "Component", "Method", "action")  // For retryable errors
//	errors.WrapInvalid(err, "Component", "Method", "action")    // For validation errors
//	errors.WrapFatal(err, "Component", "Method", "action")      // For unrecoverable errors
//
// # Execution Errors
//
// ExecutionError is the domain error for flow dispatch failures: provider
// invocation errors, invocations that return no execution id, and executions
// that time out before reaching a terminal status. It carries a classification
// and participates in the Is* helpers:
//
//	if err := exec.ExecuteFlow(ctx, flowID, input); err != nil {
//	    if ee, ok := errors.AsExecution(err); ok {
//	        log.Printf("flow %s failed: %v", ee.FlowID, ee.Err)
//	    }
//	}
//
// # Retry Configuration
//
// RetryConfig pairs classification with exponential backoff and converts to the
// retry package's Config via ToRetryConfig() for execution:
//
//	cfg := errors.DefaultRetryConfig()
//	err := retry.Do(ctx, cfg.ToRetryConfig(), op)
//
// # Context Cancellation
//
// Context errors (context.DeadlineExceeded, context.Canceled) are classified as
// Transient, so context-based timeouts are handled the same way as network ones.
package errors
