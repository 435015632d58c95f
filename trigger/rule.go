package trigger

import (
	"fmt"
	"time"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
)

// Predicate is an extra matching condition evaluated after a rule's
// event-type match. Predicates must be pure: no side effects, no
// mutation of the event.
type Predicate interface {
	Matches(e *event.Event) bool
}

// PredicateFunc adapts a plain function to the Predicate interface.
type PredicateFunc func(*event.Event) bool

// Matches implements Predicate.
func (f PredicateFunc) Matches(e *event.Event) bool { return f(e) }

// TypePredicate matches events whose type is one of the given types.
func TypePredicate(types ...event.Type) Predicate {
	set := make(map[event.Type]struct{}, len(types))
	for _, t := range types {
		set[t] = struct{}{}
	}
	return PredicateFunc(func(e *event.Event) bool {
		_, ok := set[e.Type]
		return ok
	})
}

// DataPredicate matches events whose data payload carries the given
// attribute with the given value.
func DataPredicate(key string, want any) Predicate {
	return PredicateFunc(func(e *event.Event) bool {
		return e.Matches(key, want)
	})
}

// And combines predicates; every one must match. With no predicates it
// matches everything.
func And(preds ...Predicate) Predicate {
	return PredicateFunc(func(e *event.Event) bool {
		for _, p := range preds {
			if !p.Matches(e) {
				return false
			}
		}
		return true
	})
}

// InputMapper turns a matched event into the input payload for the
// rule's flow. Mappers must be pure.
type InputMapper interface {
	Map(e *event.Event) map[string]any
}

// InputMapperFunc adapts a plain function to the InputMapper interface.
type InputMapperFunc func(*event.Event) map[string]any

// Map implements InputMapper.
func (f InputMapperFunc) Map(e *event.Event) map[string]any { return f(e) }

// DefaultInput is the transform applied when a rule has no mapper: the
// event's identifying fields under their wire names.
func DefaultInput(e *event.Event) map[string]any {
	return map[string]any{
		"event_id":      e.ID,
		"event_type":    string(e.Type),
		"subject_id":    e.Subject.ID,
		"subject_email": e.Subject.Email,
		"timestamp":     e.Timestamp.Format(time.RFC3339),
	}
}

// Rule maps a set of event types (plus an optional predicate) to a flow.
// Rules are configuration: once added their matching semantics are not
// edited in place, only removed or disabled.
type Rule struct {
	ID          string       `json:"rule_id"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
	EventTypes  []event.Type `json:"event_types"`
	FlowID      string       `json:"flow_id"`
	Predicate   Predicate    `json:"-"`
	Mapper      InputMapper  `json:"-"`
	Enabled     bool         `json:"enabled"`
}

// Validate checks the fields a rule needs before it can route events.
func (r *Rule) Validate() error {
	if r.ID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("rule ID cannot be empty"),
			"trigger", "Validate", "validation failed")
	}
	if r.FlowID == "" {
		return errors.WrapInvalid(
			fmt.Errorf("rule '%s' has no flow ID", r.ID),
			"trigger", "Validate", "validation failed")
	}
	if len(r.EventTypes) == 0 {
		return errors.WrapInvalid(
			fmt.Errorf("rule '%s' matches no event types", r.ID),
			"trigger", "Validate", "validation failed")
	}
	for i, t := range r.EventTypes {
		if t == "" {
			return errors.WrapInvalid(
				fmt.Errorf("rule '%s' has an empty event type at index %d", r.ID, i),
				"trigger", "Validate", "validation failed")
		}
	}
	return nil
}

// matches reports whether an enabled rule applies to the event: the
// event type must be in the rule's set, and the predicate (if any) must
// accept the event.
func (r *Rule) matches(e *event.Event) bool {
	if !r.Enabled {
		return false
	}
	typeMatch := false
	for _, t := range r.EventTypes {
		if e.Type == t {
			typeMatch = true
			break
		}
	}
	if !typeMatch {
		return false
	}
	if r.Predicate != nil && !r.Predicate.Matches(e) {
		return false
	}
	return true
}

// input builds the flow input for a matched event.
func (r *Rule) input(e *event.Event) map[string]any {
	if r.Mapper != nil {
		return r.Mapper.Map(e)
	}
	return DefaultInput(e)
}
