package webhook

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeDominic92/okta-sso-hub/errors"
	"github.com/MikeDominic92/okta-sso-hub/event"
)

func TestSubscription_Validate(t *testing.T) {
	valid := Subscription{
		URL:    "https://receiver.example.com/hooks",
		Events: []event.Type{event.TypeLifecycleCreate},
	}
	assert.NoError(t, valid.Validate())

	tests := []struct {
		name string
		sub  Subscription
	}{
		{
			name: "empty url",
			sub:  Subscription{},
		},
		{
			name: "unsupported scheme",
			sub:  Subscription{URL: "ftp://receiver.example.com/hooks"},
		},
		{
			name: "missing host",
			sub:  Subscription{URL: "https:///hooks"},
		},
		{
			name: "unknown event type",
			sub: Subscription{
				URL:    "https://receiver.example.com/hooks",
				Events: []event.Type{"user.made.this.up"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.sub.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}

func TestSubscription_WantsType(t *testing.T) {
	all := Subscription{URL: "https://receiver.example.com/hooks"}
	assert.True(t, all.WantsType(event.TypeLogout))
	assert.True(t, all.WantsType(event.TypeLifecycleCreate))

	filtered := Subscription{
		URL:    "https://receiver.example.com/hooks",
		Events: []event.Type{event.TypeLifecycleCreate, event.TypeLifecycleActivate},
	}
	assert.True(t, filtered.WantsType(event.TypeLifecycleCreate))
	assert.False(t, filtered.WantsType(event.TypeLogout))
}
