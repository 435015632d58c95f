package event

// Type identifies the kind of identity event, using the dotted taxonomy of
// the upstream system log (category.object.action).
type Type string

// Authentication and session events
const (
	TypeLoginSuccess   Type = "user.authentication.sso.login.success"
	TypeLoginFailure   Type = "user.authentication.sso.login.failure"
	TypeLogout         Type = "user.authentication.sso.logout"
	TypeSessionExpired Type = "user.session.expired"
)

// MFA events
const (
	TypeMFAFactorActivate  Type = "user.mfa.factor.activate"
	TypeMFAFactorChallenge Type = "user.mfa.factor.challenge"
	TypeMFAFactorFailure   Type = "user.mfa.factor.failure"
)

// Lifecycle events
const (
	TypeLifecycleCreate     Type = "user.lifecycle.create"
	TypeLifecycleActivate   Type = "user.lifecycle.activate"
	TypeLifecycleDeactivate Type = "user.lifecycle.deactivate"
	TypeLifecycleSuspend    Type = "user.lifecycle.suspend"
	TypeLifecycleUnsuspend  Type = "user.lifecycle.unsuspend"
)

// Membership events
const (
	TypeAppMembershipAdd      Type = "application.user_membership.add"
	TypeAppMembershipRemove   Type = "application.user_membership.remove"
	TypeGroupMembershipAdd    Type = "group.user_membership.add"
	TypeGroupMembershipRemove Type = "group.user_membership.remove"
)

// Credential and risk events
const (
	TypePasswordUpdate   Type = "user.account.update_password"
	TypePasswordReset    Type = "user.account.reset_password"
	TypePasswordExpiring Type = "user.password.expiring"
	TypePolicyViolation  Type = "policy.violation"
	TypeRiskDetected     Type = "user.authentication.risk.detected"
)

// allTypes preserves taxonomy order for Types()
var allTypes = []Type{
	TypeLoginSuccess,
	TypeLoginFailure,
	TypeLogout,
	TypeSessionExpired,
	TypeMFAFactorActivate,
	TypeMFAFactorChallenge,
	TypeMFAFactorFailure,
	TypeLifecycleCreate,
	TypeLifecycleActivate,
	TypeLifecycleDeactivate,
	TypeLifecycleSuspend,
	TypeLifecycleUnsuspend,
	TypeAppMembershipAdd,
	TypeAppMembershipRemove,
	TypeGroupMembershipAdd,
	TypeGroupMembershipRemove,
	TypePasswordUpdate,
	TypePasswordReset,
	TypePasswordExpiring,
	TypePolicyViolation,
	TypeRiskDetected,
}

var typeSet = func() map[Type]struct{} {
	m := make(map[Type]struct{}, len(allTypes))
	for _, t := range allTypes {
		m[t] = struct{}{}
	}
	return m
}()

// String returns the wire form of the event type
func (t Type) String() string {
	return string(t)
}

// Valid reports whether the type belongs to the known taxonomy
func (t Type) Valid() bool {
	_, ok := typeSet[t]
	return ok
}

// Types returns all known event types in taxonomy order
func Types() []Type {
	out := make([]Type, len(allTypes))
	copy(out, allTypes)
	return out
}
