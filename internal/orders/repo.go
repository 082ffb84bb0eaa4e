package orders

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/internal/repo"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
	"github.com/harvestdesk/farmops-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, order *models.Order) error
	InsertWithStoreID(ctx context.Context, order *models.Order) (string, error)
	InsertItems(ctx context.Context, items []models.OrderItem) error
	Get(ctx context.Context, id string) (*models.Order, error)
	List(ctx context.Context, filter ListFilter) ([]models.Order, error)
	UpdateStatus(ctx context.Context, id string, from, to enums.OrderStatus, at time.Time) error
	SavePoint(ctx context.Context, name string) error
	RollbackTo(ctx context.Context, name string) error
}

type ListFilter struct {
	Status *enums.OrderStatus
	Limit  int
	Cursor *pagination.Cursor
}

type repository struct {
	base repo.Base
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB, timeout time.Duration) Repository {
	return &repository{base: repo.NewBase(db, timeout)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

// Insert writes the order row with its caller-chosen string key. Items are
// written separately through InsertItems.
func (r *repository) Insert(ctx context.Context, order *models.Order) error {
	return r.base.Do(ctx, "insert order", func(conn *gorm.DB) error {
		return conn.Omit("Items").Create(order).Error
	})
}

// InsertWithStoreID leaves the key to the store and returns it. A schema
// that cannot generate one, such as the AutoMigrate'd SQLite fallback, yields
// NOT_CONFIGURED and the caller's transaction rolls the row back.
func (r *repository) InsertWithStoreID(ctx context.Context, order *models.Order) (string, error) {
	var id sql.NullString
	err := r.base.Do(ctx, "insert order (store id)", func(conn *gorm.DB) error {
		var channel, notes any
		if order.Channel != nil {
			channel = string(*order.Channel)
		}
		if order.Notes != nil {
			notes = *order.Notes
		}
		return conn.Raw(
			`INSERT INTO orders (customer_name, channel, total, status, order_date, notes, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			order.CustomerName, channel, order.Total, string(order.Status), order.OrderDate,
			notes, order.CreatedAt, order.UpdatedAt,
		).Row().Scan(&id)
	})
	if err != nil {
		return "", err
	}
	if !id.Valid || id.String == "" {
		return "", pkgerrors.New(pkgerrors.CodeNotConfigured, "orders.id has no store-generated default; use the caller or fallback id mode").
			WithDetails(map[string]any{"operation": "insert order (store id)"})
	}
	order.ID = id.String
	return id.String, nil
}

func (r *repository) InsertItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.base.Do(ctx, "insert order items", func(conn *gorm.DB) error {
		return conn.Create(&items).Error
	})
}

// Get returns the order with its items in line order.
func (r *repository) Get(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.base.Do(ctx, "select order", func(conn *gorm.DB) error {
		err := conn.
			Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("line_index ASC") }).
			Where("id = ?", id).
			Take(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return orderNotFound(id)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// List returns orders newest first without their items.
func (r *repository) List(ctx context.Context, filter ListFilter) ([]models.Order, error) {
	var rows []models.Order
	err := r.base.Do(ctx, "list orders", func(conn *gorm.DB) error {
		q := conn.Model(&models.Order{})
		if filter.Status != nil {
			q = q.Where("status = ?", *filter.Status)
		}
		return q.Scopes(pagination.Keyset("created_at", filter.Cursor, filter.Limit)).Find(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// UpdateStatus only writes when the stored status still equals from.
func (r *repository) UpdateStatus(ctx context.Context, id string, from, to enums.OrderStatus, at time.Time) error {
	return r.base.Do(ctx, "update order status", func(conn *gorm.DB) error {
		res := conn.Model(&models.Order{}).
			Where("id = ? AND status = ?", id, from).
			Updates(map[string]any{"status": to, "updated_at": at})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("order %s is no longer %s", id, from)).
				WithDetails(map[string]any{"orderId": id, "expected": from})
		}
		return nil
	})
}

func (r *repository) SavePoint(ctx context.Context, name string) error {
	return r.base.Do(ctx, "savepoint", func(conn *gorm.DB) error {
		return conn.SavePoint(name).Error
	})
}

func (r *repository) RollbackTo(ctx context.Context, name string) error {
	return r.base.Do(ctx, "rollback to savepoint", func(conn *gorm.DB) error {
		return conn.RollbackTo(name).Error
	})
}

func orderNotFound(id string) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("order %s not found", id)).
		WithDetails(map[string]any{"orderId": id})
}
