package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// Order ids are human-readable strings such as LINE-7QK2-20260115.
type Order struct {
	ID           string            `gorm:"column:id;primaryKey" json:"id"`
	CustomerName string            `gorm:"column:customer_name;not null" json:"customerName"`
	Channel      *enums.Channel    `gorm:"column:channel;type:text" json:"channel,omitempty"`
	Total        decimal.Decimal   `gorm:"column:total;type:numeric(12,2);not null" json:"total"`
	Status       enums.OrderStatus `gorm:"column:status;type:text;not null;index:idx_orders_status" json:"status"`
	OrderDate    time.Time         `gorm:"column:order_date;not null" json:"date"`
	Notes        *string           `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
	Items        []OrderItem       `gorm:"foreignKey:OrderID;references:ID" json:"items,omitempty"`
}

func (Order) TableName() string { return "orders" }

// OrderItem is one requested line; LineIndex is its 0-based position in the order.
type OrderItem struct {
	ID           uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID      string          `gorm:"column:order_id;not null;index:idx_order_items_order" json:"orderId"`
	LineIndex    int             `gorm:"column:line_index;not null" json:"lineIndex"`
	ProductName  string          `gorm:"column:product_name;not null" json:"productName"`
	Grade        enums.Grade     `gorm:"column:grade;type:text;not null" json:"grade"`
	Quantity     int             `gorm:"column:quantity;not null" json:"quantity"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null" json:"price"`
	OriginPlotID *string         `gorm:"column:origin_plot_id" json:"originPlotId,omitempty"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (OrderItem) TableName() string { return "order_items" }
