package db

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

type testModel struct {
	ID   int
	Name string
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(&testModel{}))
	return conn
}

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn, 0)
	ctx := context.Background()

	require.NoError(t, client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&testModel{Name: "committed"}).Error
	}))

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count)

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)

	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.EqualValues(t, 1, count, "rollback should leave one record")
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	conn := newTestDB(t)
	client := NewFromConn(conn, 0)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx *gorm.DB) error {
			tx.Create(&testModel{Name: "panicked"})
			panic("boom")
		})
	})

	var count int64
	require.NoError(t, conn.Model(&testModel{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPing(t *testing.T) {
	client := NewFromConn(newTestDB(t), 0)
	assert.NoError(t, client.Ping(context.Background()))
	assert.Equal(t, "sqlite", client.Dialect())
	assert.Equal(t, DefaultTimeout, client.Timeout())
}

func TestUnconfiguredClientFailsFast(t *testing.T) {
	client := Unconfigured()
	assert.False(t, client.Configured())
	assert.Nil(t, client.DB())
	assert.NoError(t, client.Close())

	err := client.Ping(context.Background())
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))

	called := false
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		called = true
		return nil
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))
	assert.False(t, called)
}

func TestOpenSelectsStore(t *testing.T) {
	ctx := context.Background()

	client, err := Open(ctx, &config.Config{}, nil)
	require.NoError(t, err)
	assert.False(t, client.Configured())

	path := filepath.Join(t.TempDir(), "farmops.db")
	cfg := &config.Config{
		DB:           config.DBConfig{SQLitePath: path},
		Store:        config.StoreConfig{Timeout: 2 * time.Second},
		FeatureFlags: config.FeatureFlagsConfig{UseSQLite: true},
	}
	client, err = Open(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	assert.True(t, client.Configured())
	assert.Equal(t, 2*time.Second, client.Timeout())
	assert.Equal(t, "sqlite", client.Dialect())
	assert.True(t, client.DB().Migrator().HasTable("inventory_rows"))
}
