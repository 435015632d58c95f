// Package eventbus bridges the NATS message bus and the trigger router.
//
// The Ingestor subscribes to every subject under the configured prefix
// (okta.events.> by default), decodes each payload into an event, and
// hands it to the router for rule evaluation and flow dispatch. Routed
// events are fanned out to webhook subscribers and an optional OnEvent
// callback so live consumers such as the gateway's WebSocket hub see
// the same stream.
//
// Payloads that fail to decode or validate are counted and dropped,
// never retried: the bus delivers at-most-once for this subscription
// and a malformed payload will not improve on redelivery.
//
// Publishing is a package-level helper rather than an Ingestor method
// so the simulate path can inject events without standing up the full
// ingest pipeline:
//
//	err := eventbus.Publish(ctx, client, "okta.events", evt)
//
// Subjects follow the event type, one level per segment:
//
//	okta.events.user.lifecycle.create
//	okta.events.user.authentication.sso.logout
package eventbus
