package webhook

import (
	"fmt"
	"net/url"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
)

// Subscription registers a receiver for processed-event notifications.
// An empty Events list receives every event type. The secret signs
// delivery payloads and is never serialized.
type Subscription struct {
	ID     string       `json:"subscription_id"`
	URL    string       `json:"url"`
	Events []event.Type `json:"events,omitempty"`
	Secret string       `json:"-"`
	Active bool         `json:"active"`
}

// Validate checks the subscription target and its event filter.
func (s *Subscription) Validate() error {
	if s.URL == "" {
		return errors.WrapInvalid(fmt.Errorf("subscription URL cannot be empty"),
			"webhook", "Validate", "validation failed")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return errors.WrapInvalid(fmt.Errorf("subscription URL %q: %v", s.URL, err),
			"webhook", "Validate", "validation failed")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.WrapInvalid(fmt.Errorf("subscription URL %q must use http or https", s.URL),
			"webhook", "Validate", "validation failed")
	}
	if u.Host == "" {
		return errors.WrapInvalid(fmt.Errorf("subscription URL %q has no host", s.URL),
			"webhook", "Validate", "validation failed")
	}
	for _, t := range s.Events {
		if !t.Valid() {
			return errors.WrapInvalid(fmt.Errorf("subscription references unknown event type %q", t),
				"webhook", "Validate", "validation failed")
		}
	}
	return nil
}

// WantsType reports whether the subscription's event filter admits the
// given type.
func (s *Subscription) WantsType(t event.Type) bool {
	if len(s.Events) == 0 {
		return true
	}
	for _, want := range s.Events {
		if want == t {
			return true
		}
	}
	return false
}
