package auth

import (
	"context"
	"time"
)

// ActivityEventType enumerates supported activity categories.
type ActivityEventType string

const (
	ActivityEventLoginSuccess        ActivityEventType = "auth.login.success"
	ActivityEventLoginFailure        ActivityEventType = "auth.login.failure"
	ActivityEventRegistered          ActivityEventType = "auth.account.registered"
	ActivityEventSocialLogin         ActivityEventType = "auth.social.login"
	ActivityEventLogout              ActivityEventType = "auth.logout"
	ActivityEventSessionRevoked      ActivityEventType = "auth.session.revoked"
	ActivityEventCapabilityGranted   ActivityEventType = "auth.capability.granted"
	ActivityEventCapabilityUngranted ActivityEventType = "auth.capability.ungranted"
	ActivityEventCapabilityBlocked   ActivityEventType = "auth.capability.blocked"
	ActivityEventCapabilityUnblocked ActivityEventType = "auth.capability.unblocked"
)

// ActorRef identifies who triggered an event
type ActorRef struct {
	Type string
	ID   int64
}

// ActivityEvent captures audit-friendly information about an action.
type ActivityEvent struct {
	EventType  ActivityEventType
	Actor      ActorRef
	AccountID  int64
	Metadata   map[string]any
	OccurredAt time.Time
}

// ActivitySink consumes activity events for auditing/telemetry purposes.
type ActivitySink interface {
	Record(ctx context.Context, event ActivityEvent) error
}

// ActivitySinkFunc adapts a function to the ActivitySink interface.
type ActivitySinkFunc func(ctx context.Context, event ActivityEvent) error

// Record implements ActivitySink.
func (f ActivitySinkFunc) Record(ctx context.Context, event ActivityEvent) error {
	if f == nil {
		return nil
	}
	return f(ctx, event)
}

type noopActivitySink struct{}

func (noopActivitySink) Record(context.Context, ActivityEvent) error {
	return nil
}

func normalizeActivitySink(s ActivitySink) ActivitySink {
	if s == nil {
		return noopActivitySink{}
	}
	return s
}
