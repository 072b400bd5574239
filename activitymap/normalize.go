package activitymap

import (
	"context"
	"strings"
	"time"

	tours "github.com/goliatone/go-tours"
)

const (
	// MetadataKeyEmail carries the submitted address on anonymous login failures.
	MetadataKeyEmail = "email"
	// MetadataKeyBookingID identifies the booking created by a checkout.
	MetadataKeyBookingID = "booking_id"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "user"
	defaultActorID    = "system"
)

// Normalized is a transport-agnostic activity shape for downstream systems.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	actorFallback string
	now           func() time.Time
}

// Normalize converts a tours.ActivityEvent into a generic normalized shape.
// Channel and object type come from the event type prefix, so
// "booking.created" lands on the booking channel keyed by booking id.
func Normalize(event tours.ActivityEvent, opts ...Option) Normalized {
	options := normalizeOptions{
		actorFallback: defaultActorID,
		now:           time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	verb := string(event.EventType)
	channel, objectType := classify(verb)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = options.now()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       verb,
		ObjectType: objectType,
		ObjectID:   resolveObjectID(event, objectType),
		Channel:    channel,
		Metadata:   cloneMap(event.Metadata),
		OccurredAt: occurredAt.UTC(),
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		if id := strings.TrimSpace(actorID); id != "" {
			opts.actorFallback = id
		}
	}
}

// WithClock stamps events that carry no timestamp.
func WithClock(now func() time.Time) Option {
	return func(opts *normalizeOptions) {
		if now != nil {
			opts.now = now
		}
	}
}

// LogSink returns an ActivitySink that logs every event in normalized form.
func LogSink(logger tours.Logger, opts ...Option) tours.ActivitySink {
	return tours.ActivitySinkFunc(func(_ context.Context, event tours.ActivityEvent) error {
		n := Normalize(event, opts...)
		if logger == nil {
			return nil
		}
		logger.Info("activity",
			"actor_id", n.ActorID,
			"verb", n.Verb,
			"object_type", n.ObjectType,
			"object_id", n.ObjectID,
			"channel", n.Channel,
			"occurred_at", n.OccurredAt,
			"metadata", n.Metadata,
		)
		return nil
	})
}

func classify(verb string) (channel, objectType string) {
	prefix, _, _ := strings.Cut(verb, ".")
	switch prefix {
	case "booking":
		return "payments", "booking"
	case "user":
		return "account", defaultObjectType
	case "auth", "":
		return defaultChannel, defaultObjectType
	default:
		return prefix, prefix
	}
}

func resolveObjectID(event tours.ActivityEvent, objectType string) string {
	if objectType == "booking" {
		if id, ok := event.Metadata[MetadataKeyBookingID].(string); ok {
			return strings.TrimSpace(id)
		}
	}
	return strings.TrimSpace(event.UserID)
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
