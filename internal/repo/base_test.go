package repo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/harvestdesk/farmops-backend/pkg/db"
	"github.com/harvestdesk/farmops-backend/pkg/db/dbtest"
	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

type ctxKey struct{}

func TestNewBaseDefaultsTimeout(t *testing.T) {
	conn := dbtest.Open(t)
	base := NewBase(conn, 0)

	assert.True(t, base.Configured())
	assert.Equal(t, db.DefaultTimeout, base.Timeout())
	assert.Same(t, conn, base.db)
}

func TestBaseDB_BindsContext(t *testing.T) {
	conn := dbtest.Open(t)
	base := NewBase(conn, time.Second)

	ctx := context.WithValue(context.Background(), ctxKey{}, "value")
	withCtx := base.DB(ctx)
	require.NotNil(t, withCtx)
	require.NotNil(t, withCtx.Statement)
	assert.Equal(t, ctx, withCtx.Statement.Context)

	//nolint:staticcheck // a nil context returns the raw connection
	assert.Same(t, conn, base.DB(nil))
}

func TestBaseConn_AppliesDeadline(t *testing.T) {
	base := NewBase(dbtest.Open(t), 2*time.Second)

	conn, cancel, err := base.Conn(context.Background())
	require.NoError(t, err)
	defer cancel()

	deadline, ok := conn.Statement.Context.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), deadline, time.Second)
}

func TestBaseConn_Unconfigured(t *testing.T) {
	base := NewBase(nil, time.Second)
	assert.False(t, base.Configured())

	_, cancel, err := base.Conn(context.Background())
	cancel()
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))

	called := false
	err = base.Do(context.Background(), "noop", func(*gorm.DB) error {
		called = true
		return nil
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotConfigured))
	assert.False(t, called)
}

func TestBaseDo_ClassifiesErrors(t *testing.T) {
	base := NewBase(dbtest.Open(t), time.Second)

	err := base.Do(context.Background(), "select rows", func(*gorm.DB) error {
		return errors.New("driver exploded")
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Contains(t, err.Error(), "select rows")

	err = base.Do(context.Background(), "select rows", func(conn *gorm.DB) error {
		<-conn.Statement.Context.Done()
		return conn.Statement.Context.Err()
	})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.True(t, pkgerrors.Retryable(err))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestBaseWithTx(t *testing.T) {
	conn := dbtest.Open(t)
	base := NewBase(conn, time.Second)

	assert.Same(t, conn, base.WithTx(nil).db)

	tx := conn.Begin()
	defer tx.Rollback()
	bound := base.WithTx(tx)
	assert.Same(t, tx, bound.db)
	assert.Equal(t, time.Second, bound.Timeout())
}
