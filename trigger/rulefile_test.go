package trigger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
)

func TestParseRules_CompilesDeclarativeRules(t *testing.T) {
	data := []byte(`rules:
  - id: rule_geo_block_review
    name: Geo block review
    flow_id: flow_security_review
    event_types:
      - user.authentication.sso.login.failure
    when:
      reason: geo_blocked
    input:
      user_id: subject.id
      user_email: subject.email
      source_ip: client.ip
      blocked_region: data.region
  - id: rule_session_cleanup
    flow_id: flow_session_cleanup
    event_types:
      - user.session.expired
    enabled: false
`)
	rules, err := ParseRules(data)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	review := rules[0]
	assert.Equal(t, "rule_geo_block_review", review.ID)
	assert.Equal(t, "Geo block review", review.Name)
	assert.Equal(t, "flow_security_review", review.FlowID)
	assert.Equal(t, []event.Type{event.TypeLoginFailure}, review.EventTypes)
	assert.True(t, review.Enabled, "enabled defaults to true when omitted")

	blocked := event.New(event.TypeLoginFailure, "u_1", "a@x.com",
		event.WithClient("203.0.113.7", "curl/8.0"),
		event.WithData(map[string]any{"reason": "geo_blocked", "region": "KP"}))
	other := event.New(event.TypeLoginFailure, "u_1", "a@x.com",
		event.WithData(map[string]any{"reason": "invalid_password"}))

	assert.True(t, review.matches(blocked))
	assert.False(t, review.matches(other), "when conditions gate the match")

	assert.Equal(t, map[string]any{
		"user_id":        "u_1",
		"user_email":     "a@x.com",
		"source_ip":      "203.0.113.7",
		"blocked_region": "KP",
	}, review.input(blocked))

	cleanup := rules[1]
	assert.False(t, cleanup.Enabled)
	assert.False(t, cleanup.matches(event.New(event.TypeSessionExpired, "u_1", "a@x.com")))
}

func TestParseRules_MultipleWhenConditionsAllApply(t *testing.T) {
	data := []byte(`rules:
  - id: rule_high_risk_mfa
    flow_id: flow_security_review
    event_types:
      - user.authentication.sso.login.failure
    when:
      reason: mfa_not_enrolled
      risk: high
`)
	rules, err := ParseRules(data)
	require.NoError(t, err)
	require.Len(t, rules, 1)

	both := event.New(event.TypeLoginFailure, "u_1", "a@x.com",
		event.WithData(map[string]any{"reason": "mfa_not_enrolled", "risk": "high"}))
	oneOff := event.New(event.TypeLoginFailure, "u_1", "a@x.com",
		event.WithData(map[string]any{"reason": "mfa_not_enrolled", "risk": "low"}))

	assert.True(t, rules[0].matches(both))
	assert.False(t, rules[0].matches(oneOff))
}

func TestParseRules_NumericWhenValueMatchesJSONNumbers(t *testing.T) {
	// YAML decodes "3" as int while JSON event payloads decode numbers
	// as float64; string-form comparison bridges the two.
	data := []byte(`rules:
  - id: rule_repeat_failures
    flow_id: flow_security_review
    event_types:
      - user.authentication.sso.login.failure
    when:
      attempts: 3
`)
	rules, err := ParseRules(data)
	require.NoError(t, err)

	e := event.New(event.TypeLoginFailure, "u_1", "a@x.com",
		event.WithData(map[string]any{"attempts": float64(3)}))
	assert.True(t, rules[0].matches(e))
}

func TestParseRules_UnknownEventType(t *testing.T) {
	data := []byte(`rules:
  - id: rule_bad_type
    flow_id: flow_x
    event_types:
      - user.made.this.up
`)
	_, err := ParseRules(data)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "unknown event type")
}

func TestParseRules_UnknownInputSelector(t *testing.T) {
	data := []byte(`rules:
  - id: rule_bad_selector
    flow_id: flow_x
    event_types:
      - user.authentication.sso.logout
    input:
      user_id: subject.login
`)
	_, err := ParseRules(data)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.Contains(t, err.Error(), "unknown event field selector")
}

func TestParseRules_MissingFlowID(t *testing.T) {
	data := []byte(`rules:
  - id: rule_no_flow
    event_types:
      - user.authentication.sso.logout
`)
	_, err := ParseRules(data)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestParseRules_MalformedYAML(t *testing.T) {
	_, err := ParseRules([]byte("rules:\n  - id: [unterminated"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
	assert.ErrorIs(t, err, errors.ErrParsingFailed)
}

func TestCompileSelector_ResolvesEveryField(t *testing.T) {
	ts := time.Date(2026, 4, 5, 12, 0, 0, 0, time.UTC)
	e := event.New(event.TypeLoginSuccess, "u_9", "who@x.com",
		event.WithID("evt_sel"),
		event.WithTimestamp(ts),
		event.WithClient("198.51.100.2", "Mozilla/5.0"),
		event.WithData(map[string]any{"session": "sess_1"}))

	spec := RuleSpec{
		ID:         "rule_selectors",
		FlowID:     "flow_x",
		EventTypes: []string{"user.authentication.sso.login.success"},
		Input: map[string]string{
			"id":      "event.id",
			"type":    "event.type",
			"at":      "timestamp",
			"user":    "subject.id",
			"email":   "subject.email",
			"ip":      "client.ip",
			"agent":   "client.user_agent",
			"session": "data.session",
			"absent":  "data.missing",
		},
	}
	rule, err := spec.Compile()
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"id":      "evt_sel",
		"type":    "user.authentication.sso.login.success",
		"at":      "2026-04-05T12:00:00Z",
		"user":    "u_9",
		"email":   "who@x.com",
		"ip":      "198.51.100.2",
		"agent":   "Mozilla/5.0",
		"session": "sess_1",
		"absent":  nil,
	}, rule.input(e))
}

func TestLoadRules_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	data := []byte(`rules:
  - id: rule_group_sync
    flow_id: flow_group_sync
    event_types:
      - group.user_membership.add
      - group.user_membership.remove
`)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "rule_group_sync", rules[0].ID)
	assert.Len(t, rules[0].EventTypes, 2)
}

func TestLoadRules_MissingFile(t *testing.T) {
	_, err := LoadRules(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestLoadRules_RejectsOversizedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "huge.yaml")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte("#"), maxRuleFileSize+1), 0o600))

	_, err := LoadRules(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
