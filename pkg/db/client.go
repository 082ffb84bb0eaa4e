package db

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/harvestdesk/farmops-backend/pkg/config"
	"github.com/harvestdesk/farmops-backend/pkg/db/models"
	"github.com/harvestdesk/farmops-backend/pkg/logger"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DefaultTimeout bounds a single row-store call when no timeout is configured.
const DefaultTimeout = 5 * time.Second

// Client wraps the shared GORM connection. A Client without a connection is
// valid and reports every operation as not configured.
type Client struct {
	conn    *gorm.DB
	timeout time.Duration
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Open picks the backing store from configuration: the SQLite file when the
// fallback flag is on, postgres when a DSN is present, otherwise an
// unconfigured client.
func Open(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Client, error) {
	var (
		client *Client
		err    error
	)
	switch {
	case cfg.FeatureFlags.UseSQLite:
		client, err = NewSQLite(ctx, cfg.DB.SQLitePath, logg)
	case cfg.DB.Configured():
		client, err = New(ctx, cfg.DB, logg)
	default:
		if logg != nil {
			logg.Warn(ctx, "row store not configured; store-backed operations will fail fast")
		}
		return Unconfigured(), nil
	}
	if err != nil {
		return nil, err
	}
	if cfg.Store.Timeout > 0 {
		client.timeout = cfg.Store.Timeout
	}
	return client, nil
}

// New boots a postgres-backed client.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database DSN is required")
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  cfg.DSN,
		PreferSimpleProtocol: true,
	})

	conn, err := gorm.Open(dialector, gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	applyPoolSettings(sqlDB, cfg)

	if logg != nil {
		logg.Info(ctx, "database connection established")
	}
	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// NewSQLite opens (or creates) the local fallback store and migrates it from
// the model definitions.
func NewSQLite(ctx context.Context, path string, logg *logger.Logger) (*Client, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	conn, err := gorm.Open(sqlite.Open(path), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("opening sqlite store %q: %w", path, err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	// one writer at a time; sqlite locks the whole file anyway
	sqlDB.SetMaxOpenConns(1)

	if err := conn.WithContext(ctx).AutoMigrate(models.All()...); err != nil {
		return nil, fmt.Errorf("migrating sqlite store: %w", err)
	}

	if logg != nil {
		logg.Info(logg.WithField(ctx, "path", path), "sqlite fallback store ready")
	}
	return &Client{conn: conn, timeout: DefaultTimeout}, nil
}

// NewFromConn wraps an already opened connection.
func NewFromConn(conn *gorm.DB, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{conn: conn, timeout: timeout}
}

// Unconfigured returns a client with no backing store.
func Unconfigured() *Client {
	return &Client{timeout: DefaultTimeout}
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		SkipDefaultTransaction: true,
	}
}

func applyPoolSettings(sqlDB *sql.DB, cfg config.DBConfig) {
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Configured reports whether the client has a backing store.
func (c *Client) Configured() bool {
	return c != nil && c.conn != nil
}

// DB returns the underlying GORM connection, nil when unconfigured.
func (c *Client) DB() *gorm.DB {
	if c == nil {
		return nil
	}
	return c.conn
}

// Timeout is the per-call bound applied by repositories.
func (c *Client) Timeout() time.Duration {
	if c == nil || c.timeout <= 0 {
		return DefaultTimeout
	}
	return c.timeout
}

// Dialect names the backing driver ("postgres", "sqlite") or "" when unconfigured.
func (c *Client) Dialect() string {
	if !c.Configured() {
		return ""
	}
	return c.conn.Dialector.Name()
}

// Ping verifies the datasource is reachable.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Configured() {
		return ErrNotConfigured()
	}
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.Timeout())
	defer cancel()
	return sqlDB.PingContext(ctx)
}

// Close shuts down the pooled connections.
func (c *Client) Close() error {
	if !c.Configured() {
		return nil
	}
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx executes fn inside a transaction, rolling back on error/panic.
func (c *Client) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if !c.Configured() {
		return ErrNotConfigured()
	}
	tx := c.conn.WithContext(ctx).Begin()
	if tx.Error != nil {
		return StoreError("begin transaction", tx.Error)
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit().Error; err != nil {
		return StoreError("commit transaction", err)
	}
	return nil
}
