package orders

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// CreateInput carries a new order. ID is optional; Status, when given, must be Pending.
type CreateInput struct {
	ID           string
	CustomerName string
	Channel      *enums.Channel
	Items        []ItemInput
	Total        decimal.Decimal
	Status       *enums.OrderStatus
	Notes        *string
}

type ItemInput struct {
	ProductName  string
	Grade        enums.Grade
	Quantity     int
	Price        decimal.Decimal
	OriginPlotID *string
}

// PickSelection names the inventory row a line is fulfilled from. Without
// OrderLineIndex the selection maps to the line at the same position.
type PickSelection struct {
	OrderLineIndex *int
	InventoryID    uuid.UUID
	Quantity       int
}

type PickInput struct {
	Picks      []PickSelection
	NextStatus *enums.OrderStatus
}

type ListParams struct {
	Status *enums.OrderStatus
	pagination.Params
}

// ID sources reported on order.created and in metrics.
const (
	IDSourceCaller    = "caller"
	IDSourceGenerated = "generated"
	IDSourceStore     = "store"
)
