package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/harvestdesk/farmops-backend/internal/repo"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

// Repository is the row-store surface of the inventory ledger.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Get(ctx context.Context, id uuid.UUID) (*models.InventoryRow, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryRow, error)
	FindByKey(ctx context.Context, key Key) (*models.InventoryRow, error)
	List(ctx context.Context, filter ListFilter) ([]models.InventoryRow, error)
	Upsert(ctx context.Context, row *models.InventoryRow) (*models.InventoryRow, error)
	Credit(ctx context.Context, row *models.InventoryRow) (*models.InventoryRow, error)
	SetQuantity(ctx context.Context, id uuid.UUID, quantity int, expected *int, at time.Time) error
	Delete(ctx context.Context, id uuid.UUID, expected *int) error
	LocationExists(ctx context.Context, id uuid.UUID) (bool, error)
}

// Key is the composite identity every upsert targets.
type Key struct {
	ProductName string
	Grade       enums.Grade
	LocationID  uuid.UUID
}

var keyColumns = []clause.Column{{Name: "product_name"}, {Name: "grade"}, {Name: "location_id"}}

type repository struct {
	base repo.Base
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB, timeout time.Duration) Repository {
	return &repository{base: repo.NewBase(db, timeout)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.InventoryRow, error) {
	var row models.InventoryRow
	err := r.base.Do(ctx, "select inventory row", func(conn *gorm.DB) error {
		err := conn.Where("id = ?", id).Take(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return rowNotFound(id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.InventoryRow, error) {
	if len(ids) == 0 {
		return []models.InventoryRow{}, nil
	}
	var rows []models.InventoryRow
	err := r.base.Do(ctx, "select inventory rows", func(conn *gorm.DB) error {
		return conn.Where("id IN ?", ids).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// FindByKey returns nil without error when no row holds the key.
func (r *repository) FindByKey(ctx context.Context, key Key) (*models.InventoryRow, error) {
	var rows []models.InventoryRow
	err := r.base.Do(ctx, "select inventory row by key", func(conn *gorm.DB) error {
		return conn.
			Where("product_name = ? AND grade = ? AND location_id = ?", key.ProductName, key.Grade, key.LocationID).
			Limit(1).
			Find(&rows).Error
	})
	if err != nil || len(rows) == 0 {
		return nil, err
	}
	return &rows[0], nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.InventoryRow, error) {
	var rows []models.InventoryRow
	err := r.base.Do(ctx, "list inventory rows", func(conn *gorm.DB) error {
		q := conn.Model(&models.InventoryRow{})
		if filter.LocationID != nil {
			q = q.Where("location_id = ?", *filter.LocationID)
		}
		if name := strings.TrimSpace(filter.ProductName); name != "" {
			q = q.Where("LOWER(product_name) = ?", strings.ToLower(name))
		}
		if filter.Grade != nil {
			q = q.Where("grade = ?", *filter.Grade)
		}
		return q.Order("product_name ASC").Order("grade ASC").Order("location_id ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Upsert writes row on its composite key, overwriting the stored quantity.
func (r *repository) Upsert(ctx context.Context, row *models.InventoryRow) (*models.InventoryRow, error) {
	err := r.base.Do(ctx, "upsert inventory row", func(conn *gorm.DB) error {
		return conn.Clauses(clause.OnConflict{
			Columns:   keyColumns,
			DoUpdates: clause.AssignmentColumns([]string{"quantity", "harvest_date", "notes", "updated_at"}),
		}).Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return r.reload(ctx, row)
}

// Credit adds row.Quantity to whatever the key already holds.
func (r *repository) Credit(ctx context.Context, row *models.InventoryRow) (*models.InventoryRow, error) {
	err := r.base.Do(ctx, "credit inventory row", func(conn *gorm.DB) error {
		return conn.Clauses(clause.OnConflict{
			Columns: keyColumns,
			DoUpdates: clause.Set{
				{Column: clause.Column{Name: "quantity"}, Value: gorm.Expr("inventory_rows.quantity + excluded.quantity")},
				{Column: clause.Column{Name: "updated_at"}, Value: gorm.Expr("excluded.updated_at")},
			},
		}).Create(row).Error
	})
	if err != nil {
		return nil, err
	}
	return r.reload(ctx, row)
}

func (r *repository) reload(ctx context.Context, row *models.InventoryRow) (*models.InventoryRow, error) {
	stored, err := r.FindByKey(ctx, Key{ProductName: row.ProductName, Grade: row.Grade, LocationID: row.LocationID})
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "inventory row vanished after upsert")
	}
	return stored, nil
}

// SetQuantity overwrites the quantity and stamps updated_at with at. With
// expected set the write only lands when the stored quantity still equals it.
func (r *repository) SetQuantity(ctx context.Context, id uuid.UUID, quantity int, expected *int, at time.Time) error {
	return r.base.Do(ctx, "update inventory row", func(conn *gorm.DB) error {
		q := conn.Model(&models.InventoryRow{}).Where("id = ?", id)
		if expected != nil {
			q = q.Where("quantity = ?", *expected)
		}
		res := q.Updates(map[string]any{"quantity": quantity, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		return checkAffected(res.RowsAffected, id, expected)
	})
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID, expected *int) error {
	return r.base.Do(ctx, "delete inventory row", func(conn *gorm.DB) error {
		q := conn.Where("id = ?", id)
		if expected != nil {
			q = q.Where("quantity = ?", *expected)
		}
		res := q.Delete(&models.InventoryRow{})
		if res.Error != nil {
			return res.Error
		}
		return checkAffected(res.RowsAffected, id, expected)
	})
}

func (r *repository) LocationExists(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.base.Do(ctx, "select storage location", func(conn *gorm.DB) error {
		return conn.Model(&models.StorageLocation{}).Where("id = ?", id).Count(&count).Error
	})
	return count > 0, err
}

func checkAffected(affected int64, id uuid.UUID, expected *int) error {
	if affected > 0 {
		return nil
	}
	if expected != nil {
		return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("inventory row %s changed concurrently", id)).
			WithDetails(map[string]any{"inventoryId": id, "expectedQuantity": *expected})
	}
	return rowNotFound(id)
}

func rowNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("inventory row %s not found", id)).
		WithDetails(map[string]any{"inventoryId": id})
}
