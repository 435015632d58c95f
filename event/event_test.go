package event

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/errors"
)

func TestNew_Defaults(t *testing.T) {
	e := New(TypeLifecycleCreate, "00u123", "ada@example.com")

	require.NotNil(t, e)
	assert.NotEmpty(t, e.ID)
	assert.Len(t, e.ID, 36)
	assert.Contains(t, e.ID, "-")
	assert.Equal(t, TypeLifecycleCreate, e.Type)
	assert.Equal(t, "00u123", e.Subject.ID)
	assert.Equal(t, "ada@example.com", e.Subject.Email)
	assert.Equal(t, time.UTC, e.Timestamp.Location())
	assert.WithinDuration(t, time.Now().UTC(), e.Timestamp, 2*time.Second)
	assert.Nil(t, e.Data)
}

func TestNew_UniqueIDs(t *testing.T) {
	e1 := New(TypeLoginSuccess, "u1", "")
	e2 := New(TypeLoginSuccess, "u1", "")
	assert.NotEqual(t, e1.ID, e2.ID)
}

func TestNew_Options(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(TypeLoginFailure, "u1", "u1@example.com",
		WithID("evt-fixed"),
		WithTimestamp(ts),
		WithClient("203.0.113.9", "Mozilla/5.0"),
		WithData(map[string]any{"reason": "mfa_not_enrolled"}),
	)

	assert.Equal(t, "evt-fixed", e.ID)
	assert.Equal(t, ts, e.Timestamp)
	assert.Equal(t, "203.0.113.9", e.Client.IPAddress)
	assert.Equal(t, "Mozilla/5.0", e.Client.UserAgent)
	assert.Equal(t, "mfa_not_enrolled", e.Data["reason"])
}

func TestWithData_Merges(t *testing.T) {
	e := New(TypeLoginFailure, "u1", "",
		WithData(map[string]any{"reason": "mfa_not_enrolled"}),
		WithData(map[string]any{"attempt": 3}),
	)

	assert.Equal(t, "mfa_not_enrolled", e.Data["reason"])
	assert.Equal(t, 3, e.Data["attempt"])
}

func TestSimulate_Defaults(t *testing.T) {
	e := Simulate(TypePasswordExpiring)

	assert.Equal(t, "user123", e.Subject.ID)
	assert.Equal(t, "test@example.com", e.Subject.Email)
	assert.Equal(t, "192.168.1.100", e.Client.IPAddress)
	assert.Equal(t, "Mock Agent/1.0", e.Client.UserAgent)
	assert.Equal(t, TypePasswordExpiring, e.Type)
}

func TestSimulate_OptionsOverrideDefaults(t *testing.T) {
	e := Simulate(TypeLoginFailure,
		WithClient("10.0.0.1", "curl/8.0"),
		WithData(map[string]any{"reason": "invalid_credentials"}),
	)

	assert.Equal(t, "10.0.0.1", e.Client.IPAddress)
	assert.Equal(t, "curl/8.0", e.Client.UserAgent)
	assert.Equal(t, "user123", e.Subject.ID)
	assert.Equal(t, "invalid_credentials", e.Data["reason"])
}

func TestEvent_Validate(t *testing.T) {
	valid := New(TypeLoginSuccess, "u1", "u1@example.com")
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(*Event)
		want   string
	}{
		{"missing id", func(e *Event) { e.ID = "" }, "event_id"},
		{"whitespace id", func(e *Event) { e.ID = "   " }, "event_id"},
		{"missing type", func(e *Event) { e.Type = "" }, "event_type"},
		{"missing subject", func(e *Event) { e.Subject.ID = "" }, "subject"},
		{"zero timestamp", func(e *Event) { e.Timestamp = time.Time{} }, "timestamp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(TypeLoginSuccess, "u1", "u1@example.com")
			tt.mutate(e)
			err := e.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEvent_ValidateNil(t *testing.T) {
	var e *Event
	err := e.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestEvent_Matches(t *testing.T) {
	e := Simulate(TypeLoginFailure, WithData(map[string]any{
		"reason":  "mfa_not_enrolled",
		"attempt": 3,
	}))

	assert.True(t, e.Matches("reason", "mfa_not_enrolled"))
	assert.False(t, e.Matches("reason", "invalid_credentials"))
	assert.False(t, e.Matches("missing", "anything"))

	// Numeric payload values match their string form
	assert.True(t, e.Matches("attempt", 3))
	assert.True(t, e.Matches("attempt", "3"))
}

func TestEvent_MatchesAfterJSONRoundTrip(t *testing.T) {
	// JSON decoding turns numbers into float64; string-form comparison
	// keeps rules matching
	src := Simulate(TypeLoginFailure, WithData(map[string]any{"attempt": 3}))
	data, err := src.Encode()
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.True(t, decoded.Matches("attempt", "3"))
}

func TestEvent_DataString(t *testing.T) {
	e := Simulate(TypeAppMembershipAdd, WithData(map[string]any{
		"app_id":   "app_55",
		"priority": 2,
	}))

	assert.Equal(t, "app_55", e.DataString("app_id"))
	assert.Equal(t, "2", e.DataString("priority"))
	assert.Equal(t, "", e.DataString("missing"))
}

func TestEncode_WireFormat(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	e := New(TypeLifecycleCreate, "00u1", "ada@example.com",
		WithID("evt-1"),
		WithTimestamp(ts),
		WithData(map[string]any{"created_at": "2025-06-01T12:00:00Z"}),
	)

	data, err := e.Encode()
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "evt-1", raw["event_id"])
	assert.Equal(t, "user.lifecycle.create", raw["event_type"])
	assert.Equal(t, "2025-06-01T12:00:00Z", raw["timestamp"])

	subject, ok := raw["subject"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "00u1", subject["id"])
	assert.Equal(t, "ada@example.com", subject["email"])
}

func TestDecode_RoundTrip(t *testing.T) {
	src := Simulate(TypeGroupMembershipAdd, WithData(map[string]any{"group_id": "g1"}))
	data, err := src.Encode()
	require.NoError(t, err)

	got, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)
	assert.Equal(t, src.Type, got.Type)
	assert.Equal(t, src.Subject, got.Subject)
	assert.Equal(t, src.Client, got.Client)
	assert.Equal(t, "g1", got.Data["group_id"])
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"malformed json", `{"event_id": `},
		{"missing subject", `{"event_id":"e1","event_type":"user.session.expired","timestamp":"2025-06-01T12:00:00Z","subject":{}}`},
		{"missing type", `{"event_id":"e1","timestamp":"2025-06-01T12:00:00Z","subject":{"id":"u1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode([]byte(tt.input))
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestDecodeReader(t *testing.T) {
	src := Simulate(TypeLogout)
	data, err := src.Encode()
	require.NoError(t, err)

	got, err := DecodeReader(strings.NewReader(string(data)))
	require.NoError(t, err)
	assert.Equal(t, src.ID, got.ID)
}

func TestType_Valid(t *testing.T) {
	for _, typ := range Types() {
		assert.True(t, typ.Valid(), "expected %s to be valid", typ)
	}

	assert.False(t, Type("user.made.up").Valid())
	assert.False(t, Type("").Valid())
}

func TestTypes_CountAndOrder(t *testing.T) {
	types := Types()
	assert.Len(t, types, 21)
	assert.Equal(t, TypeLoginSuccess, types[0])
	assert.Equal(t, TypeRiskDetected, types[len(types)-1])

	// Returned slice is a copy
	types[0] = Type("mutated")
	assert.Equal(t, TypeLoginSuccess, Types()[0])
}
