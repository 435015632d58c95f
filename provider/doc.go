// Package provider implements the client for the Okta Workflows
// invocation API, the remote side of every flow dispatch.
//
// # Client interface
//
// Client is the seam between the hub and the automation provider:
//
//	Invoke(ctx, flowID, input)          start a flow, get an execution ID
//	Status(ctx, executionID)            poll a running execution
//	ListFlows(ctx, flowType)            browse the flow catalog
//	ExecutionHistory(ctx, flowID, n)    past runs of a flow
//	Cancel(ctx, executionID)            stop an in-flight run
//	Healthy(ctx)                        reachability probe
//
// New picks the implementation from configuration. Mock mode is the
// default and needs no credentials; okta mode requires the org URL and
// an API token.
//
// # HTTP client
//
// HTTPClient calls the org's /api/flo/v1 endpoints with SSWS token
// authentication. Every request passes a token-bucket rate limiter
// first, and 429 plus transient 5xx responses are retried with
// exponential backoff and jitter (pkg/retry). Failures come back
// classified: throttling and 5xx are transient, other 4xx are invalid,
// and 404s carry the flow or execution not-found sentinel so callers
// can map them precisely.
//
// # Mock client
//
// MockClient is deterministic and in-memory. Execution IDs are
// mock_exec_1, mock_exec_2, ... in invocation order; the first Status
// call on an execution resolves it as a success with a fixed output
// payload. FailNext queues one-shot errors and StatusSequence scripts
// the status progression, which is how the executor's timeout and
// polling paths are tested. The catalog holds the five default flows
// the built-in trigger rules dispatch to.
//
// # Flow catalog cache
//
// When flow_cache_ttl is set, New wraps the client so ListFlows serves
// from a TTL cache (pkg/cache) keyed by flow type. Catalog reads from
// the gateway and CLI then cost one provider call per TTL window.
package provider
