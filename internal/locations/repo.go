package locations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/repo"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

type Repository interface {
	Create(ctx context.Context, loc *models.StorageLocation) error
	Get(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error)
	List(ctx context.Context) ([]models.StorageLocation, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB, timeout time.Duration) Repository {
	return &repository{base: repo.NewBase(db, timeout)}
}

func (r *repository) Create(ctx context.Context, loc *models.StorageLocation) error {
	return r.base.Do(ctx, "insert storage location", func(conn *gorm.DB) error {
		return conn.Create(loc).Error
	})
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.StorageLocation, error) {
	var loc models.StorageLocation
	err := r.base.Do(ctx, "select storage location", func(conn *gorm.DB) error {
		err := conn.Where("id = ?", id).Take(&loc).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("storage location %s not found", id)).
				WithDetails(map[string]any{"locationId": id})
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (r *repository) List(ctx context.Context) ([]models.StorageLocation, error) {
	var locs []models.StorageLocation
	err := r.base.Do(ctx, "list storage locations", func(conn *gorm.DB) error {
		return conn.Order("name ASC").Find(&locs).Error
	})
	if err != nil {
		return nil, err
	}
	return locs, nil
}
