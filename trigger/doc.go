// Package trigger routes identity events to automation flows.
//
// A Router owns an ordered rule set. Each Rule names the event types it
// matches, an optional Predicate for conditions beyond the type (for
// example a data attribute equality), an optional InputMapper that
// shapes the flow input, and the flow to dispatch. ProcessEvent appends
// the event to a bounded history, dispatches a flow execution for every
// matching enabled rule in insertion order, and records the resulting
// execution IDs under the event ID so callers can ask later which
// executions an event produced.
//
// All matching rules fire, not just the first. A single rule's dispatch
// failure is logged and skipped without aborting its siblings, and batch
// processing never lets one event's failure break the rest of the
// batch.
//
// The built-in rule set (DefaultRules) covers the standard lifecycle
// automations: onboarding on user creation or activation, offboarding
// on deactivation, MFA remediation on enrollment-gap login failures,
// password expiry notification, and application access provisioning.
// Additional rules load from declarative YAML files (LoadRules) or
// arrive pre-built through AddRule.
package trigger
