package production

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/repo"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// Repository persists production log entries.
type Repository interface {
	Create(ctx context.Context, entry *models.ProductionLog) error
	List(ctx context.Context, filter ListFilter) ([]models.ProductionLog, error)
}

type ListFilter struct {
	PlotID   string
	Crop     string
	Activity *enums.ProductionActivity
	Since    *time.Time
	Limit    int
	// Cursor.CreatedAt holds the logged_at of the last entry seen.
	Cursor *pagination.Cursor
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB, timeout time.Duration) Repository {
	return &repository{base: repo.NewBase(db, timeout)}
}

func (r *repository) Create(ctx context.Context, entry *models.ProductionLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	return r.base.Do(ctx, "insert production log", func(conn *gorm.DB) error {
		return conn.Create(entry).Error
	})
}

// List returns entries by logged time, newest first.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.ProductionLog, error) {
	var rows []models.ProductionLog
	err := r.base.Do(ctx, "list production logs", func(conn *gorm.DB) error {
		q := conn.Model(&models.ProductionLog{})
		if filter.PlotID != "" {
			q = q.Where("plot_id = ?", filter.PlotID)
		}
		if filter.Crop != "" {
			q = q.Where("crop = ?", filter.Crop)
		}
		if filter.Activity != nil {
			q = q.Where("activity = ?", *filter.Activity)
		}
		if filter.Since != nil {
			q = q.Where("logged_at >= ?", *filter.Since)
		}
		return q.Scopes(pagination.Keyset("logged_at", filter.Cursor, filter.Limit)).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
