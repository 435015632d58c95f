// Package event defines the identity event model that flows through the SSO
// Hub: the event types emitted by the identity provider's system log, the
// envelope that carries them, and the helpers for building, validating, and
// serializing events.
//
// # Event Taxonomy
//
// Event types use the provider's dotted notation (category.object.action) and
// cover five areas:
//
//   - Authentication: sso login success/failure, logout, session expiry
//   - MFA: factor activation, challenges, failures
//   - Lifecycle: user create, activate, deactivate, suspend, unsuspend
//   - Membership: application and group membership add/remove
//   - Credentials and risk: password update/reset/expiring, policy
//     violations, detected risk
//
// The full list is available from Types; Type.Valid reports membership.
// Downstream consumers treat the type as the primary routing key: trigger
// rules match on it, metrics are labelled with it, and NATS subjects embed it.
//
// # Event Structure
//
// Every event carries:
//   - A unique ID (UUID) for tracking and correlation
//   - A Type from the taxonomy
//   - A UTC timestamp
//   - A Subject (the user the event is about)
//   - Optional Client details (IP address, user agent)
//   - Optional Data with type-specific attributes
//
// Data is a free-form map because attribute sets differ per type: a login
// failure carries "reason", a membership event carries "app_id" and
// "app_name", a password expiry carries "expiry_date". Rules inspect these
// attributes through Matches and DataString rather than reaching into the
// map directly.
//
// # Creating Events
//
// Real events come off the wire via Decode. Synthetic events for rule
// development and demos come from New or Simulate:
//
//	// Explicit construction
//	e := event.New(event.TypeLifecycleCreate, "00u1ab2c3", "ada@example.com",
//	    event.WithData(map[string]any{"created_at": "2025-06-01T12:00:00Z"}),
//	)
//
//	// Simulated event with canned subject and client defaults
//	e := event.Simulate(event.TypeLoginFailure,
//	    event.WithData(map[string]any{"reason": "mfa_not_enrolled"}),
//	)
//
// Simulate fills in a fixed subject (user123 / test@example.com) and client
// (192.168.1.100 / "Mock Agent/1.0") so simulated traffic is recognizable in
// histories and logs.
//
// # Wire Format
//
// Events serialize to JSON with snake_case keys:
//
//	{
//	  "event_id": "80a8b4a6-...",
//	  "event_type": "user.lifecycle.create",
//	  "timestamp": "2025-06-01T12:00:00Z",
//	  "subject": {"id": "00u1ab2c3", "email": "ada@example.com"},
//	  "client": {"ip_address": "203.0.113.9", "user_agent": "Mozilla/5.0"},
//	  "data": {"created_at": "2025-06-01T12:00:00Z"}
//	}
//
// Decode validates structural requirements (event_id, event_type, subject id,
// timestamp) and returns an invalid-class error for malformed input, so
// ingest paths can map it straight to a 400 response.
//
// # Error Handling
//
// Validation and parsing failures are wrapped with the shared errors package
// and classified as invalid:
//
//	e, err := event.Decode(body)
//	if err != nil {
//	    // errors.IsInvalid(err) == true for malformed events
//	    return err
//	}
//
// Unknown event types are deliberately NOT rejected: the taxonomy grows with
// the provider, and an unmatched type simply matches no trigger rules. Use
// Type.Valid when strict checking is wanted at an ingest boundary.
package event
