package customers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/repo"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// Repository manages customers and the order history the scorer reads.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, customer *models.Customer) error
	Get(ctx context.Context, id uuid.UUID) (*models.Customer, error)
	List(ctx context.Context, filter ListFilter) ([]models.Customer, error)
	All(ctx context.Context) ([]models.Customer, error)
	CountByName(ctx context.Context, name string) (int64, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	OrderSummaries(ctx context.Context) ([]OrderSummary, error)
}

type ListFilter struct {
	Segment *enums.Segment
	Search  string
	Limit   int
	Cursor  *pagination.Cursor
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB, timeout time.Duration) Repository {
	return &repository{base: repo.NewBase(db, timeout)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) Create(ctx context.Context, customer *models.Customer) error {
	if customer.ID == uuid.Nil {
		customer.ID = uuid.New()
	}
	return r.base.Do(ctx, "insert customer", func(conn *gorm.DB) error {
		return conn.Create(customer).Error
	})
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Customer, error) {
	var customer models.Customer
	err := r.base.Do(ctx, "select customer", func(conn *gorm.DB) error {
		err := conn.Where("id = ?", id).Take(&customer).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return customerNotFound(id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &customer, nil
}

// List returns customers newest first.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Customer, error) {
	var rows []models.Customer
	err := r.base.Do(ctx, "list customers", func(conn *gorm.DB) error {
		q := conn.Model(&models.Customer{})
		if filter.Segment != nil {
			q = q.Where("segment = ?", *filter.Segment)
		}
		if search := strings.TrimSpace(filter.Search); search != "" {
			q = q.Where("LOWER(name) LIKE ?", "%"+strings.ToLower(search)+"%")
		}
		return q.Scopes(pagination.Keyset("created_at", filter.Cursor, filter.Limit)).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) All(ctx context.Context) ([]models.Customer, error) {
	var rows []models.Customer
	err := r.base.Do(ctx, "select customers", func(conn *gorm.DB) error {
		return conn.Order("name ASC").Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountByName(ctx context.Context, name string) (int64, error) {
	var count int64
	err := r.base.Do(ctx, "count customers by name", func(conn *gorm.DB) error {
		return conn.Model(&models.Customer{}).
			Where("LOWER(TRIM(name)) = ?", nameKey(name)).
			Count(&count).Error
	})
	return count, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.Do(ctx, "update customer", func(conn *gorm.DB) error {
		res := conn.Model(&models.Customer{}).Where("id = ?", id).Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return customerNotFound(id)
		}
		return nil
	})
}

// OrderSummaries reads every order regardless of status.
func (r *repository) OrderSummaries(ctx context.Context) ([]OrderSummary, error) {
	var rows []OrderSummary
	err := r.base.Do(ctx, "select order history", func(conn *gorm.DB) error {
		return conn.Model(&models.Order{}).
			Select("customer_name", "total", "order_date").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func customerNotFound(id uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("customer %s not found", id)).
		WithDetails(map[string]any{"customerId": id})
}
