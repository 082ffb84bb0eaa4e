package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type Customer struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name          string          `gorm:"column:name;not null" json:"name"`
	Phone         *string         `gorm:"column:phone" json:"phone,omitempty"`
	Segment       enums.Segment   `gorm:"column:segment;type:text;not null" json:"segment"`
	TotalSpent    decimal.Decimal `gorm:"column:total_spent;type:numeric(14,2);not null" json:"totalSpent"`
	LastOrderDate *time.Time      `gorm:"column:last_order_date" json:"lastOrderDate,omitempty"`
	Notes         *string         `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Customer) TableName() string { return "customers" }
