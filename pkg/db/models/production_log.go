package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type ProductionLog struct {
	ID        uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	PlotID    string                   `gorm:"column:plot_id;not null;index:idx_production_logs_plot" json:"plotId"`
	Crop      string                   `gorm:"column:crop;not null" json:"crop"`
	Activity  enums.ProductionActivity `gorm:"column:activity;type:text;not null" json:"activity"`
	Quantity  *int                     `gorm:"column:quantity" json:"quantity,omitempty"`
	Grade     *enums.Grade             `gorm:"column:grade;type:text" json:"grade,omitempty"`
	LoggedAt  time.Time                `gorm:"column:logged_at;not null" json:"loggedAt"`
	Notes     *string                  `gorm:"column:notes" json:"notes,omitempty"`
	CreatedAt time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (ProductionLog) TableName() string { return "production_logs" }
