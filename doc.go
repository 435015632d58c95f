// Package ssohub implements an event-driven workflow dispatch hub for
// identity infrastructure: it ingests identity-lifecycle and
// authentication events, matches them against configurable trigger
// rules, and invokes Okta Workflows automation flows, tracking each
// execution from invoke to terminal status.
//
// # Architecture
//
// Data flows one direction through three collaborating layers:
//
//	┌─────────────────────────────────────┐
//	│        Trigger Router               │  rule matching,
//	│  (rules, event history,             │  fan-out dispatch,
//	│   event→execution correlation)      │  correlation records
//	└─────────────────────────────────────┘
//	           ↓ dispatches via
//	┌─────────────────────────────────────┐
//	│        Flow Executor                │  invoke + poll loop,
//	│  (timeouts, callbacks,              │  timeout deadlines,
//	│   execution history)                │  lifecycle callbacks
//	└─────────────────────────────────────┘
//	           ↓ transports via
//	┌─────────────────────────────────────┐
//	│        Provider Client              │  Okta Workflows API
//	│  (HTTP + retry + rate limit,        │  or a deterministic
//	│   deterministic mock)               │  in-memory mock
//	└─────────────────────────────────────┘
//
// Events enter the router from three surfaces: the REST gateway
// (POST /api/v1/events), the NATS ingestor (eventbus package), and
// the simulate helpers used by the CLI and tests. Every surface goes
// through the same Router.ProcessEvent path, so rule semantics,
// history, and correlation behave identically regardless of origin.
//
// # Packages
//
//   - event: immutable event model and the identity event taxonomy
//   - trigger: rule set, matching, dispatch fan-out, correlation
//   - executor: execution lifecycle, polling, callbacks, history
//   - provider: workflow provider transport (HTTP and mock modes)
//   - eventbus: NATS subject → router bridge
//   - gateway: REST + websocket front door
//   - webhook: signed outbound notifications on processed events
//   - natsclient: circuit-breaker NATS connection wrapper
//   - errors, config, health, metric, service: shared infrastructure
//   - pkg/buffer, pkg/cache, pkg/retry, pkg/worker: generic primitives
//
// # Concurrency model
//
// Each in-flight execution is owned by exactly one polling goroutine
// until it reaches a terminal status; histories and the correlation
// map are the only shared structures and are serialized internally.
// Parallel batch processing (events or flow fan-out) makes no
// ordering promise across items, but rule dispatch within a single
// event is always rule-insertion order.
//
// # Quick start
//
// Run the hub against the mock provider (the default mode):
//
//	./bin/ssohub serve
//
// Fire a synthetic event through the default rules:
//
//	./bin/ssohub simulate --type user.lifecycle.create \
//	  --email a@x.com
//
// Point it at a real Okta org:
//
//	SSOHUB_PROVIDER_TOKEN=... ./bin/ssohub serve \
//	  --config configs/okta.yaml
package ssohub
