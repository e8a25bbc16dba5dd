package activitymap_test

import (
	"testing"
	"time"

	auth "github.com/goliatone/go-lms-auth"
	"github.com/goliatone/go-lms-auth/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventCapabilityBlocked,
		Actor:     auth.ActorRef{ID: 42, Type: "account"},
		AccountID: 100,
		Metadata: map[string]any{
			"capability": "create:courses",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "42" {
		t.Fatalf("expected actor_id 42, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventCapabilityBlocked) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventCapabilityBlocked, out.Verb)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "100" {
		t.Fatalf("expected object_id 100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["capability"] != "create:courses" {
		t.Fatalf("expected metadata capability create:courses, got %#v", out.Metadata["capability"])
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "account" {
		t.Fatalf("expected metadata actor_type account, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventSessionRevoked,
		Actor:     auth.ActorRef{Type: "account"},
		AccountID: 200,
		Metadata: map[string]any{
			"session_id":                     "sess-1",
			activitymap.MetadataKeyActorType: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("session"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["session_id"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "session" {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "sess-1" {
		t.Fatalf("expected object_id sess-1, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyActorType] != "existing" {
		t.Fatalf("expected existing actor_type preserved, got %#v", out.Metadata[activitymap.MetadataKeyActorType])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses actor id when present",
			event:  auth.ActivityEvent{Actor: auth.ActorRef{ID: 1}, AccountID: 2},
			expect: "1",
		},
		{
			name:   "uses account id when actor id missing",
			event:  auth.ActivityEvent{AccountID: 2},
			expect: "2",
		},
		{
			name:   "uses default fallback for anonymous failures",
			event:  auth.ActivityEvent{EventType: auth.ActivityEventLoginFailure},
			expect: "system",
		},
		{
			name:   "uses configured fallback",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("anonymous")},
			expect: "anonymous",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}
