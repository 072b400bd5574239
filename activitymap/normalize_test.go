package activitymap_test

import (
	"context"
	"testing"
	"time"

	tours "github.com/goliatone/go-tours"
	"github.com/goliatone/go-tours/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := tours.ActivityEvent{
		EventType: tours.ActivityEventPasswordResetSuccess,
		UserID:    "user-100",
		Metadata: map[string]any{
			"ip": "10.0.0.1",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(tours.ActivityEventPasswordResetSuccess) {
		t.Fatalf("expected verb %q, got %q", tours.ActivityEventPasswordResetSuccess, out.Verb)
	}
	if out.ObjectType != "user" {
		t.Fatalf("expected object_type user, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}
	if out.Metadata["ip"] != "10.0.0.1" {
		t.Fatalf("expected metadata ip, got %#v", out.Metadata["ip"])
	}

	out.Metadata["ip"] = "changed"
	if event.Metadata["ip"] != "10.0.0.1" {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeBooking(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(tours.ActivityEvent{
		EventType: tours.ActivityEventBookingCreated,
		UserID:    "user-7",
		Metadata: map[string]any{
			activitymap.MetadataKeyBookingID: "bk_9x2",
			"tour_id":                        "tour-1",
		},
	})

	if out.Channel != "payments" {
		t.Fatalf("expected channel payments, got %q", out.Channel)
	}
	if out.ObjectType != "booking" {
		t.Fatalf("expected object_type booking, got %q", out.ObjectType)
	}
	if out.ObjectID != "bk_9x2" {
		t.Fatalf("expected object_id bk_9x2, got %q", out.ObjectID)
	}
	if out.ActorID != "user-7" {
		t.Fatalf("expected actor_id user-7, got %q", out.ActorID)
	}
}

func TestNormalizeAccountEvents(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(tours.ActivityEvent{
		EventType: tours.ActivityEventAccountDeactivated,
		UserID:    "user-3",
	})
	if out.Channel != "account" || out.ObjectType != "user" {
		t.Fatalf("expected account/user, got %q/%q", out.Channel, out.ObjectType)
	}
	if out.Metadata != nil {
		t.Fatalf("expected nil metadata, got %#v", out.Metadata)
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  tours.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  tours.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback for anonymous events",
			event:  tours.ActivityEvent{EventType: tours.ActivityEventLoginFailure},
			expect: "system",
		},
		{
			name:   "uses configured fallback",
			event:  tours.ActivityEvent{UserID: "  "},
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

func TestNormalizeStampsMissingTime(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 3, 12, 0, 0, 0, time.UTC)
	out := activitymap.Normalize(tours.ActivityEvent{}, activitymap.WithClock(func() time.Time { return now }))
	if !out.OccurredAt.Equal(now) {
		t.Fatalf("expected occurred_at %v, got %v", now, out.OccurredAt)
	}
}

type captureLogger struct {
	msgs []string
	args [][]any
}

func (c *captureLogger) Debug(string, ...any) {}
func (c *captureLogger) Info(msg string, args ...any) {
	c.msgs = append(c.msgs, msg)
	c.args = append(c.args, args)
}
func (c *captureLogger) Warn(string, ...any)  {}
func (c *captureLogger) Error(string, ...any) {}

func TestLogSink(t *testing.T) {
	t.Parallel()

	logger := &captureLogger{}
	sink := activitymap.LogSink(logger)

	err := sink.Record(context.Background(), tours.ActivityEvent{
		EventType: tours.ActivityEventSignup,
		UserID:    "user-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(logger.msgs) != 1 || logger.msgs[0] != "activity" {
		t.Fatalf("expected one activity log line, got %v", logger.msgs)
	}

	fields := map[string]any{}
	args := logger.args[0]
	for i := 0; i+1 < len(args); i += 2 {
		fields[args[i].(string)] = args[i+1]
	}
	if fields["verb"] != string(tours.ActivityEventSignup) {
		t.Fatalf("expected verb signup, got %#v", fields["verb"])
	}
	if fields["actor_id"] != "user-1" {
		t.Fatalf("expected actor_id user-1, got %#v", fields["actor_id"])
	}

	if err := activitymap.LogSink(nil).Record(context.Background(), tours.ActivityEvent{}); err != nil {
		t.Fatalf("nil logger sink should not fail: %v", err)
	}
}
