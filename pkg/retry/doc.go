// Package retry provides simple exponential backoff retry logic for transient failures.
//
// # Overview
//
// This package offers a minimal retry mechanism with exponential backoff, designed
// to handle transient failures in provider API calls, event delivery, and component
// startup.
//
// # Core Functions
//
//   - Do: Execute function with retry and exponential backoff
//   - DoWithResult: Execute function with retry, returns both result and error
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay (normal operations)
//   - Quick(): 10 attempts, 50ms-1s delay (component startup)
//   - Persistent(): 30 attempts, 200ms-10s delay (critical resources)
//   - HTTP(): 4 attempts with a RetryIf predicate keyed on HTTP status codes
//     (retries 429/500/502/503/504 and transport errors)
//
// # Usage Examples
//
// Basic retry with defaults:
//
//	err := retry.Do(ctx, retry.DefaultConfig(), func() error {
//	    return client.Connect()
//	})
//
// Provider API call with status-aware retries:
//
//	inv, err := retry.DoWithResult(ctx, retry.HTTP(), func() (*Invocation, error) {
//	    return client.invoke(ctx, flowID, input)
//	})
//
// Marking an error as non-retryable stops the loop immediately:
//
//	return retry.NonRetryable(fmt.Errorf("flow %s does not exist", flowID))
//
// # Design Philosophy
//
// This package is intentionally minimal:
//
//   - No circuit breakers (the NATS client carries its own)
//   - No metrics collection (use instrumentation at call site)
//   - Status-code classification only where HTTP is involved; everything else
//     is decided by the caller via RetryIf or NonRetryable
//
// # Context Cancellation
//
// All retry operations respect context cancellation and will immediately stop retrying
// when the context is cancelled, either during operation execution or during backoff delay.
//
// # Thread Safety
//
// All functions are safe for concurrent use. The jitter mechanism uses a thread-safe
// random source to avoid contention.
package retry
