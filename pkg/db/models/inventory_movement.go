package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// InventoryMovement is an append-only journal entry. InventoryRowID is not a
// foreign key because the row may be deleted once it reaches zero.
type InventoryMovement struct {
	ID             uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	InventoryRowID uuid.UUID          `gorm:"column:inventory_row_id;type:uuid;not null;index:idx_inventory_movements_row" json:"inventoryRowId"`
	ProductName    string             `gorm:"column:product_name;not null" json:"productName"`
	Grade          enums.Grade        `gorm:"column:grade;type:text;not null" json:"grade"`
	LocationID     uuid.UUID          `gorm:"column:location_id;type:uuid;not null" json:"locationId"`
	Kind           enums.MovementKind `gorm:"column:kind;type:text;not null" json:"kind"`
	Delta          int                `gorm:"column:delta;not null" json:"delta"`
	QuantityBefore int                `gorm:"column:quantity_before;not null" json:"quantityBefore"`
	QuantityAfter  int                `gorm:"column:quantity_after;not null" json:"quantityAfter"`
	Reference      *string            `gorm:"column:reference" json:"reference,omitempty"`
	CreatedAt      time.Time          `gorm:"column:created_at;autoCreateTime;index:idx_inventory_movements_created" json:"createdAt"`
}

func (InventoryMovement) TableName() string { return "inventory_movements" }
