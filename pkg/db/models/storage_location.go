package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

type StorageLocation struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name      string             `gorm:"column:name;not null;uniqueIndex:uq_storage_locations_name" json:"name"`
	Type      enums.LocationType `gorm:"column:type;type:text;not null" json:"type"`
	CreatedAt time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (StorageLocation) TableName() string { return "storage_locations" }
