package inventory

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// UpsertInput is the manual entry path: the given quantity replaces the stored one.
type UpsertInput struct {
	ProductName string
	Grade       enums.Grade
	LocationID  uuid.UUID
	Quantity    int
	HarvestDate *time.Time
	Notes       *string
}

type MoveInput struct {
	SourceID         uuid.UUID
	TargetLocationID uuid.UUID
	Amount           int
}

type MoveResult struct {
	SourceID        uuid.UUID `json:"sourceId"`
	SourceRemaining int       `json:"sourceRemaining"`
	TargetID        uuid.UUID `json:"targetId"`
	TargetQuantity  int       `json:"targetQuantity"`
	Reference       string    `json:"reference"`
}

// Pick debits Quantity units from one inventory row.
type Pick struct {
	InventoryID uuid.UUID `json:"inventoryId"`
	Quantity    int       `json:"quantity"`
}

type ConsumeResult struct {
	Applied int   `json:"applied"`
	Units   int   `json:"units"`
	Skipped []int `json:"skipped"`
}

// ConsumeFailure is attached as error details when a batch stops early.
// Picks before FailedIndex stay applied.
type ConsumeFailure struct {
	Applied     int       `json:"applied"`
	FailedIndex int       `json:"failedIndex"`
	InventoryID uuid.UUID `json:"inventoryId"`
	Reason      any       `json:"reason,omitempty"`
}

type ListFilter struct {
	LocationID  *uuid.UUID
	ProductName string
	Grade       *enums.Grade
}
