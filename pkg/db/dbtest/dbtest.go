// Package dbtest opens isolated in-memory SQLite stores migrated with the
// service models, plus a few fixture helpers shared by package tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/enums"
)

// Open returns a fresh, migrated in-memory database private to the test.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	conn := OpenEmpty(t)
	require.NoError(t, conn.AutoMigrate(models.All()...))
	return conn
}

// OpenEmpty returns a fresh in-memory database without any tables.
func OpenEmpty(t testing.TB) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
	})
	require.NoError(t, err)

	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return conn
}

// Client wraps Open in a db.Client with the default store timeout.
func Client(t testing.TB) *db.Client {
	t.Helper()
	return db.NewFromConn(Open(t), db.DefaultTimeout)
}

func SeedLocation(t testing.TB, conn *gorm.DB, name string) models.StorageLocation {
	t.Helper()
	loc := models.StorageLocation{ID: uuid.New(), Name: name, Type: enums.LocationWarehouse}
	require.NoError(t, conn.Create(&loc).Error)
	return loc
}

func SeedInventory(t testing.TB, conn *gorm.DB, product string, grade enums.Grade, locationID uuid.UUID, qty int) models.InventoryRow {
	t.Helper()
	row := models.InventoryRow{
		ID:          uuid.New(),
		ProductName: product,
		Grade:       grade,
		LocationID:  locationID,
		Quantity:    qty,
	}
	require.NoError(t, conn.Create(&row).Error)
	return row
}

// Quantity returns the stored quantity of the row, or -1 when it no longer exists.
func Quantity(t testing.TB, conn *gorm.DB, id uuid.UUID) int {
	t.Helper()
	var rows []models.InventoryRow
	require.NoError(t, conn.Where("id = ?", id).Find(&rows).Error)
	if len(rows) == 0 {
		return -1
	}
	return rows[0].Quantity
}

// QuantityAt returns the quantity of the (product, grade, location) row, or -1 when absent.
func QuantityAt(t testing.TB, conn *gorm.DB, product string, grade enums.Grade, locationID uuid.UUID) int {
	t.Helper()
	var rows []models.InventoryRow
	require.NoError(t, conn.
		Where("product_name = ? AND grade = ? AND location_id = ?", product, grade, locationID).
		Find(&rows).Error)
	if len(rows) == 0 {
		return -1
	}
	return rows[0].Quantity
}

func SeedCustomer(t testing.TB, conn *gorm.DB, name string, lastOrder *time.Time) models.Customer {
	t.Helper()
	c := models.Customer{ID: uuid.New(), Name: name, Segment: enums.SegmentNew, LastOrderDate: lastOrder}
	require.NoError(t, conn.Create(&c).Error)
	return c
}

// SeedOrder inserts a pending order without items, enough for history reads.
func SeedOrder(t testing.TB, conn *gorm.DB, customerName string, total int64, date time.Time) models.Order {
	t.Helper()
	now := time.Now().UTC()
	order := models.Order{
		ID:           "ORD-" + uuid.NewString()[:8],
		CustomerName: customerName,
		Total:        decimal.NewFromInt(total),
		Status:       enums.OrderStatusPending,
		OrderDate:    date,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, conn.Omit("Items").Create(&order).Error)
	return order
}
