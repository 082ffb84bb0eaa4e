package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// OrderCreatedEvent is emitted after an order and its items were inserted.
type OrderCreatedEvent struct {
	OrderID      string          `json:"orderId"`
	CustomerName string          `json:"customerName"`
	Channel      *enums.Channel  `json:"channel,omitempty"`
	Total        decimal.Decimal `json:"total"`
	ItemCount    int             `json:"itemCount"`
	IDSource     string          `json:"idSource"`
}

// OrderStatusChangedEvent is emitted for every status write, including pick-and-confirm.
type OrderStatusChangedEvent struct {
	OrderID string            `json:"orderId"`
	From    enums.OrderStatus `json:"from"`
	To      enums.OrderStatus `json:"to"`
	Picks   []PickLine        `json:"picks,omitempty"`
}

type PickLine struct {
	InventoryID uuid.UUID `json:"inventoryId"`
	Quantity    int       `json:"quantity"`
}

// InventoryMovedEvent describes a completed move between locations.
type InventoryMovedEvent struct {
	SourceID         uuid.UUID   `json:"sourceId"`
	TargetID         uuid.UUID   `json:"targetId"`
	ProductName      string      `json:"productName"`
	Grade            enums.Grade `json:"grade"`
	SourceLocationID uuid.UUID   `json:"sourceLocationId"`
	TargetLocationID uuid.UUID   `json:"targetLocationId"`
	Amount           int         `json:"amount"`
	SourceRemaining  int         `json:"sourceRemaining"`
}

// InventoryConsumedEvent is emitted once per consumed batch inside a transaction.
type InventoryConsumedEvent struct {
	Reference string     `json:"reference,omitempty"`
	Picks     []PickLine `json:"picks"`
}

// CustomerSegmentChangedEvent is emitted for each customer whose segment was written.
type CustomerSegmentChangedEvent struct {
	CustomerID uuid.UUID     `json:"customerId"`
	From       enums.Segment `json:"from"`
	To         enums.Segment `json:"to"`
	Source     string        `json:"source"`
}
