package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// InventoryRow holds the on-hand quantity of one product grade at one location.
// (product_name, grade, location_id) is unique; rows at zero are deleted.
type InventoryRow struct {
	ID          uuid.UUID   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ProductName string      `gorm:"column:product_name;not null;uniqueIndex:uq_inventory_rows_key,priority:1" json:"productName"`
	Grade       enums.Grade `gorm:"column:grade;type:text;not null;uniqueIndex:uq_inventory_rows_key,priority:2" json:"grade"`
	LocationID  uuid.UUID   `gorm:"column:location_id;type:uuid;not null;uniqueIndex:uq_inventory_rows_key,priority:3" json:"locationId"`
	Quantity    int         `gorm:"column:quantity;not null;check:chk_inventory_rows_quantity,quantity >= 0" json:"quantity"`
	HarvestDate *time.Time  `gorm:"column:harvest_date" json:"harvestDate,omitempty"`
	Notes       *string     `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt   time.Time   `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time   `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (InventoryRow) TableName() string { return "inventory_rows" }
