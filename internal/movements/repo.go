package movements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/repo"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// Repository manages persistence for the inventory movement journal.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entries ...*models.InventoryMovement) error
	List(ctx context.Context, filter ListFilter) ([]models.InventoryMovement, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ListFilter narrows a journal listing. Zero values mean "any".
type ListFilter struct {
	InventoryRowID *uuid.UUID
	LocationID     *uuid.UUID
	Reference      string
	Limit          int
	Cursor         *pagination.Cursor
}

type repository struct {
	base repo.Base
}

// NewRepository returns a journal repository bound to the provided database.
func NewRepository(db *gorm.DB, timeout time.Duration) Repository {
	return &repository{base: repo.NewBase(db, timeout)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, entries ...*models.InventoryMovement) error {
	if len(entries) == 0 {
		return nil
	}
	for _, entry := range entries {
		if entry.ID == uuid.Nil {
			entry.ID = uuid.New()
		}
	}
	return r.base.Do(ctx, "insert inventory movements", func(conn *gorm.DB) error {
		return conn.Create(entries).Error
	})
}

// List returns entries newest first. Limit is applied verbatim so callers can
// fetch one extra row to detect the next page.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.InventoryMovement, error) {
	var entries []models.InventoryMovement
	err := r.base.Do(ctx, "list inventory movements", func(conn *gorm.DB) error {
		q := conn.Model(&models.InventoryMovement{})
		if filter.InventoryRowID != nil {
			q = q.Where("inventory_row_id = ?", *filter.InventoryRowID)
		}
		if filter.LocationID != nil {
			q = q.Where("location_id = ?", *filter.LocationID)
		}
		if filter.Reference != "" {
			q = q.Where("reference = ?", filter.Reference)
		}
		return q.Scopes(pagination.Keyset("created_at", filter.Cursor, filter.Limit)).Find(&entries).Error
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var deleted int64
	err := r.base.Do(ctx, "delete inventory movements", func(conn *gorm.DB) error {
		res := conn.Where("created_at < ?", cutoff).Delete(&models.InventoryMovement{})
		deleted = res.RowsAffected
		return res.Error
	})
	return deleted, err
}
