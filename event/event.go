package event

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/MikeDominic92/okta-sso-hub/errors"
)

// Subject identifies the user the event is about.
type Subject struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// Client describes the device that produced the event.
type Client struct {
	IPAddress string `json:"ip_address,omitempty"`
	UserAgent string `json:"user_agent,omitempty"`
}

// Event is a single identity event as delivered by the provider's system
// log. Data carries type-specific attributes (failure reasons, app IDs,
// expiry dates) that trigger rules inspect.
type Event struct {
	ID        string         `json:"event_id"`
	Type      Type           `json:"event_type"`
	Timestamp time.Time      `json:"timestamp"`
	Subject   Subject        `json:"subject"`
	Client    Client         `json:"client,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Option customizes an event at construction time.
type Option func(*Event)

// WithID overrides the generated event ID.
func WithID(id string) Option {
	return func(e *Event) {
		e.ID = id
	}
}

// WithTimestamp overrides the generated timestamp.
func WithTimestamp(ts time.Time) Option {
	return func(e *Event) {
		e.Timestamp = ts.UTC()
	}
}

// WithClient attaches client device details.
func WithClient(ipAddress, userAgent string) Option {
	return func(e *Event) {
		e.Client = Client{IPAddress: ipAddress, UserAgent: userAgent}
	}
}

// WithSubject overrides the subject identity. Empty fields keep the
// value already on the event, so a caller can override just the ID or
// just the email.
func WithSubject(id, email string) Option {
	return func(e *Event) {
		if id != "" {
			e.Subject.ID = id
		}
		if email != "" {
			e.Subject.Email = email
		}
	}
}

// WithData merges type-specific attributes into the event payload.
func WithData(data map[string]any) Option {
	return func(e *Event) {
		if len(data) == 0 {
			return
		}
		if e.Data == nil {
			e.Data = make(map[string]any, len(data))
		}
		for k, v := range data {
			e.Data[k] = v
		}
	}
}

// New creates an event with a generated ID and a UTC timestamp.
func New(eventType Type, subjectID, subjectEmail string, opts ...Option) *Event {
	e := &Event{
		ID:        NewID(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Subject: Subject{
			ID:    subjectID,
			Email: subjectEmail,
		},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Simulate creates a synthetic event with fixed subject and client
// defaults, suitable for exercising trigger rules without a live event
// feed. Options may override any default.
func Simulate(eventType Type, opts ...Option) *Event {
	defaults := []Option{
		WithClient("192.168.1.100", "Mock Agent/1.0"),
	}
	return New(eventType, "user123", "test@example.com", append(defaults, opts...)...)
}

// NewID returns a fresh event identifier.
func NewID() string {
	return uuid.NewString()
}

// Validate checks the fields every downstream consumer relies on.
func (e *Event) Validate() error {
	if e == nil {
		return errors.WrapInvalid(errors.ErrInvalidEvent, "Event", "Validate", "check event")
	}
	if strings.TrimSpace(e.ID) == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: missing event_id", errors.ErrInvalidEvent),
			"Event", "Validate", "check event ID")
	}
	if e.Type == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: missing event_type", errors.ErrInvalidEvent),
			"Event", "Validate", "check event type")
	}
	if strings.TrimSpace(e.Subject.ID) == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: missing subject id", errors.ErrInvalidEvent),
			"Event", "Validate", "check subject")
	}
	if e.Timestamp.IsZero() {
		return errors.WrapInvalid(
			fmt.Errorf("%w: missing timestamp", errors.ErrInvalidEvent),
			"Event", "Validate", "check timestamp")
	}
	return nil
}

// Matches reports whether the event carries the given data attribute with
// the given value. Values are compared by their string form so numeric
// JSON payloads match string-configured rules.
func (e *Event) Matches(key string, value any) bool {
	if e == nil || e.Data == nil {
		return false
	}
	got, ok := e.Data[key]
	if !ok {
		return false
	}
	if got == value {
		return true
	}
	return fmt.Sprintf("%v", got) == fmt.Sprintf("%v", value)
}

// DataString returns the string form of a data attribute, or empty when
// the attribute is absent.
func (e *Event) DataString(key string) string {
	if e == nil || e.Data == nil {
		return ""
	}
	v, ok := e.Data[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Encode serializes the event as JSON.
func (e *Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Event", "Encode", "marshal event")
	}
	return data, nil
}

// Decode parses an event from JSON bytes and validates it.
func Decode(data []byte) (*Event, error) {
	var e Event
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %v", errors.ErrParsingFailed, err),
			"Event", "Decode", "unmarshal event")
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}
	return &e, nil
}

// DecodeReader parses an event from a JSON stream and validates it.
func DecodeReader(r io.Reader) (*Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.WrapTransient(err, "Event", "DecodeReader", "read body")
	}
	return Decode(data)
}
