package outbox

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// envelopeVersion is written when the caller does not pin one.
const envelopeVersion = 1

// PayloadEnvelope is what outbox_events.payload holds and what subscribers
// receive as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// ActorRef names the entry point that caused the write: "api", "cli" or
// "cron", plus the request id when there is one.
type ActorRef struct {
	Source    string `json:"source"`
	RequestID string `json:"requestId,omitempty"`
}

func seal(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	at := event.OccurredAt
	if at.IsZero() {
		at = now
	}
	version := event.Version
	if version == 0 {
		version = envelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: at.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}

type actorCtxKey struct{}

func WithActor(ctx context.Context, actor ActorRef) context.Context {
	return context.WithValue(ctx, actorCtxKey{}, actor)
}

// ActorFromContext returns nil when no entry point tagged ctx.
func ActorFromContext(ctx context.Context) *ActorRef {
	if ctx == nil {
		return nil
	}
	actor, ok := ctx.Value(actorCtxKey{}).(ActorRef)
	if !ok {
		return nil
	}
	return &actor
}
