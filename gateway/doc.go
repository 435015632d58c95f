// Package gateway is the HTTP front door for the hub.
//
// It serves three surfaces from one listener:
//
//   - the REST API under /api/v1: event ingest and simulation, event
//     history, trigger rule management, execution history and direct
//     flow execution, the provider's flow catalog, webhook
//     subscriptions, and operational stats
//   - a websocket live feed at /ws/events carrying processed events
//     and execution completions
//   - aggregated health at /healthz
//
// Every route runs behind a middleware that assigns a request ID,
// logs the request, and records prometheus counters keyed by the
// route pattern rather than the raw path.
//
// Error responses follow the hub's error taxonomy: invalid input maps
// to 400, missing resources to 404, transient faults to 503 (timeouts
// to 504), and everything else to 500. Messages for server-side
// failures are generic; client-error messages are sanitized before
// they leave the process.
//
// The websocket hub drops clients that cannot drain their send buffer
// in time, so one slow consumer never delays the others or the
// ingest path.
package gateway
