package trigger

import (
	"time"

	"github.com/MikeDominic92/okta-sso-hub/event"
)

// DefaultRules returns the built-in rule set: the standard identity
// lifecycle automations every deployment starts with. They are ordinary
// rules, removable and overridable through the Router API.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID:          "rule_new_hire_onboarding",
			Name:        "New Hire Onboarding",
			Description: "Provision accounts and access when a user is created or activated",
			EventTypes:  []event.Type{event.TypeLifecycleCreate, event.TypeLifecycleActivate},
			FlowID:      "flow_new_hire_onboarding",
			Mapper: InputMapperFunc(func(e *event.Event) map[string]any {
				return map[string]any{
					"user_id":         e.Subject.ID,
					"user_email":      e.Subject.Email,
					"event_timestamp": e.Timestamp.Format(time.RFC3339),
				}
			}),
			Enabled: true,
		},
		{
			ID:          "rule_offboarding",
			Name:        "Employee Offboarding",
			Description: "Revoke access and archive data when a user is deactivated",
			EventTypes:  []event.Type{event.TypeLifecycleDeactivate},
			FlowID:      "flow_offboarding",
			Mapper: InputMapperFunc(func(e *event.Event) map[string]any {
				return map[string]any{
					"user_id":           e.Subject.ID,
					"user_email":        e.Subject.Email,
					"deactivation_time": e.Timestamp.Format(time.RFC3339),
				}
			}),
			Enabled: true,
		},
		{
			ID:          "rule_mfa_remediation",
			Name:        "MFA Remediation",
			Description: "Start MFA enrollment when a login fails for a user without MFA",
			EventTypes:  []event.Type{event.TypeLoginFailure},
			FlowID:      "flow_mfa_remediation",
			Predicate:   DataPredicate("reason", "mfa_not_enrolled"),
			Mapper: InputMapperFunc(func(e *event.Event) map[string]any {
				return map[string]any{
					"user_id":        e.Subject.ID,
					"user_email":     e.Subject.Email,
					"failure_reason": e.DataString("reason"),
				}
			}),
			Enabled: true,
		},
		{
			ID:          "rule_password_expiry",
			Name:        "Password Expiry Notification",
			Description: "Notify users ahead of password expiration",
			EventTypes:  []event.Type{event.TypePasswordExpiring},
			FlowID:      "flow_password_expiry_notification",
			Mapper: InputMapperFunc(func(e *event.Event) map[string]any {
				return map[string]any{
					"user_id":     e.Subject.ID,
					"user_email":  e.Subject.Email,
					"expiry_date": e.DataString("expiry_date"),
				}
			}),
			Enabled: true,
		},
		{
			ID:          "rule_access_request",
			Name:        "Access Provisioning",
			Description: "Process application access when a user is added to an app",
			EventTypes:  []event.Type{event.TypeAppMembershipAdd},
			FlowID:      "flow_access_provisioning",
			Mapper: InputMapperFunc(func(e *event.Event) map[string]any {
				return map[string]any{
					"user_id":    e.Subject.ID,
					"user_email": e.Subject.Email,
					"app_id":     e.DataString("app_id"),
					"app_name":   e.DataString("app_name"),
				}
			}),
			Enabled: true,
		},
	}
}
