package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// OutboxEvent is one queued domain event. Payload is the envelope JSON kept as
// text; postgres stores it in a jsonb column, sqlite as TEXT.
//
// A row is pending while PublishedAt is nil and AttemptCount is below the
// relay's limit. The relay parks rows it gives up on by raising AttemptCount
// to that limit.
type OutboxEvent struct {
	ID            uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	EventType     enums.OutboxEventType     `gorm:"column:event_type;type:text;not null" json:"eventType"`
	AggregateType enums.OutboxAggregateType `gorm:"column:aggregate_type;type:text;not null" json:"aggregateType"`
	AggregateID   string                    `gorm:"column:aggregate_id;not null" json:"aggregateId"`
	Payload       string                    `gorm:"column:payload;not null" json:"payload"`
	CreatedAt     time.Time                 `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	PublishedAt   *time.Time                `gorm:"column:published_at" json:"publishedAt,omitempty"`
	AttemptCount  int                       `gorm:"column:attempt_count;not null" json:"attemptCount"`
	LastError     *string                   `gorm:"column:last_error" json:"lastError,omitempty"`
}

func (OutboxEvent) TableName() string { return "outbox_events" }
