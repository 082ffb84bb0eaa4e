// Package registry knows which outbox rows the relay may publish and how to
// decode them.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	"github.com/harvestdesk/farmops-backend/pkg/outbox"
	"github.com/harvestdesk/farmops-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	decode        func(json.RawMessage) (any, error)
}

// ResolvedEvent is a row whose envelope and typed payload both decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "permanent publish failure"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is non-retryable.
func IsPermanent(err error) bool {
	var nr NonRetryableError
	return errors.As(err, &nr)
}

func permanentf(format string, args ...any) error {
	return NewNonRetryableError(fmt.Errorf(format, args...))
}

// bind ties an event type to the payload struct it carries.
func bind[T any](event enums.OutboxEventType, aggregate enums.OutboxAggregateType) EventDescriptor {
	return EventDescriptor{
		EventType:     event,
		AggregateType: aggregate,
		decode: func(raw json.RawMessage) (any, error) {
			v := new(T)
			if err := json.Unmarshal(raw, v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

var catalog = []EventDescriptor{
	bind[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder),
	bind[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder),
	bind[payloads.InventoryMovedEvent](enums.EventInventoryMoved, enums.AggregateInventoryRow),
	bind[payloads.InventoryConsumedEvent](enums.EventInventoryConsumed, enums.AggregateInventoryRow),
	bind[payloads.CustomerSegmentChangedEvent](enums.EventCustomerSegmentChanged, enums.AggregateCustomer),
}

// NewEventRegistry routes every farm event to the domain topic. Subscribers
// filter on the event_type attribute.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	topic := strings.TrimSpace(cfg.DomainTopic)
	if topic == "" {
		return nil, errors.New("domain topic is required")
	}
	reg := &EventRegistry{byType: make(map[enums.OutboxEventType]EventDescriptor, len(catalog))}
	for _, desc := range catalog {
		desc.Topic = topic
		reg.byType[desc.EventType] = desc
	}
	return reg, nil
}

// Types lists the registered event types.
func (r *EventRegistry) Types() []enums.OutboxEventType {
	out := make([]enums.OutboxEventType, 0, len(catalog))
	for _, desc := range catalog {
		if _, ok := r.byType[desc.EventType]; ok {
			out = append(out, desc.EventType)
		}
	}
	return out
}

// Resolve checks a row against its descriptor and decodes the payload. Every
// error it returns is permanent.
func (r *EventRegistry) Resolve(row models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.byType[row.EventType]
	switch {
	case !ok:
		return nil, permanentf("unsupported event type %s", row.EventType)
	case desc.AggregateType != row.AggregateType:
		return nil, permanentf("event %s belongs to %s, row says %s", row.EventType, desc.AggregateType, row.AggregateType)
	case strings.TrimSpace(row.AggregateID) == "":
		return nil, permanentf("event %s has no aggregate id", row.EventType)
	}

	var env outbox.PayloadEnvelope
	if err := json.Unmarshal([]byte(row.Payload), &env); err != nil {
		return nil, permanentf("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(env.Data); len(data) == 0 || string(data) == "null" {
		return nil, permanentf("event %s has an empty payload", row.EventType)
	}
	payload, err := desc.decode(env.Data)
	if err != nil {
		return nil, permanentf("decode %s payload: %w", row.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: env, Payload: payload}, nil
}
