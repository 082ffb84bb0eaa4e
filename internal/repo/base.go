package repo

import (
	"context"
	"time"

	"github.com/harvestdesk/farmops-backend/pkg/db"
	"gorm.io/gorm"
)

// Base provides a shared foundation for domain repositories: the connection
// (or transaction) they run on and the per-call store timeout.
type Base struct {
	db      *gorm.DB
	timeout time.Duration
}

// NewBase constructs a Base repository. A nil connection yields a Base whose
// every call fails with NOT_CONFIGURED.
func NewBase(conn *gorm.DB, timeout time.Duration) Base {
	if timeout <= 0 {
		timeout = db.DefaultTimeout
	}
	return Base{db: conn, timeout: timeout}
}

// WithTx rebinds the base to a transaction, keeping the timeout.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx, timeout: b.timeout}
}

// Configured reports whether a connection is bound.
func (b Base) Configured() bool {
	return b.db != nil
}

// Timeout returns the per-call bound.
func (b Base) Timeout() time.Duration {
	return b.timeout
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil || b.db == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// Conn returns the connection bound to a context that expires after the
// store timeout. The caller must invoke cancel once the call finished.
func (b Base) Conn(ctx context.Context) (*gorm.DB, context.CancelFunc, error) {
	if b.db == nil {
		return nil, func() {}, db.ErrNotConfigured()
	}
	if ctx == nil {
		ctx = context.Background()
	}
	callCtx, cancel := context.WithTimeout(ctx, b.timeout)
	return b.db.WithContext(callCtx), cancel, nil
}

// Do runs fn with a bounded connection and classifies its error as a store
// error tagged with op.
func (b Base) Do(ctx context.Context, op string, fn func(conn *gorm.DB) error) error {
	conn, cancel, err := b.Conn(ctx)
	if err != nil {
		return err
	}
	defer cancel()
	return db.StoreError(op, fn(conn))
}
