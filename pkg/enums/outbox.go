package enums

import (
	"fmt"
	"slices"
	"strings"
)

// OutboxAggregateType is the kind of row an outbox event describes.
type OutboxAggregateType string

const (
	AggregateOrder        OutboxAggregateType = "order"
	AggregateInventoryRow OutboxAggregateType = "inventory_row"
	AggregateCustomer     OutboxAggregateType = "customer"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateInventoryRow, AggregateCustomer}

func (a OutboxAggregateType) IsValid() bool { return slices.Contains(aggregateTypes, a) }

// OutboxEventType doubles as the event_type message attribute.
type OutboxEventType string

const (
	EventOrderCreated           OutboxEventType = "order.created"
	EventOrderStatusChanged     OutboxEventType = "order.status_changed"
	EventInventoryMoved         OutboxEventType = "inventory.moved"
	EventInventoryConsumed      OutboxEventType = "inventory.consumed"
	EventCustomerSegmentChanged OutboxEventType = "customer.segment_changed"
)

var eventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderStatusChanged,
	EventInventoryMoved,
	EventInventoryConsumed,
	EventCustomerSegmentChanged,
}

func (e OutboxEventType) IsValid() bool { return slices.Contains(eventTypes, e) }

// Aggregate is the aggregate type every event of this type is emitted for.
func (e OutboxEventType) Aggregate() OutboxAggregateType {
	prefix, _, _ := strings.Cut(string(e), ".")
	switch prefix {
	case "order":
		return AggregateOrder
	case "inventory":
		return AggregateInventoryRow
	case "customer":
		return AggregateCustomer
	}
	return ""
}

// ParseOutboxEventType is exact and case-sensitive; event types are routing
// keys, not user input.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	e := OutboxEventType(strings.TrimSpace(value))
	if !e.IsValid() {
		return "", fmt.Errorf("invalid event type %q, expected one of %v", value, eventTypes)
	}
	return e, nil
}
