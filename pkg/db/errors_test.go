package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

func TestStoreErrorClassification(t *testing.T) {
	assert.NoError(t, StoreError("noop", nil))

	timeout := StoreError("update inventory row", fmt.Errorf("exec: %w", context.DeadlineExceeded))
	typed := pkgerrors.As(timeout)
	if assert.NotNil(t, typed) {
		assert.Equal(t, pkgerrors.CodeDependency, typed.Code())
		assert.Contains(t, typed.Message(), "timed out")
		assert.True(t, pkgerrors.Retryable(timeout))
	}

	driver := StoreError("select orders", errors.New("connection reset"))
	assert.True(t, pkgerrors.IsCode(driver, pkgerrors.CodeDependency))
	assert.Contains(t, driver.Error(), "connection reset")

	already := pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	assert.Same(t, already, StoreError("select orders", already))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "uq_inventory_rows_key", Message: "duplicate key value violates unique constraint \"uq_inventory_rows_key\""}
	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(pgErr, "uq_inventory_rows_key"))
	assert.False(t, IsUniqueViolation(pgErr, "uq_storage_locations_name"))
	assert.True(t, IsUniqueViolation(errors.New("UNIQUE constraint failed: storage_locations.name"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsTypeMismatch(t *testing.T) {
	assert.True(t, IsTypeMismatch(&pgconn.PgError{Code: "22P02"}))
	assert.True(t, IsTypeMismatch(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "42804"})))
	assert.True(t, IsTypeMismatch(errors.New("datatype mismatch")))
	assert.False(t, IsTypeMismatch(&pgconn.PgError{Code: "23505"}))
	assert.False(t, IsTypeMismatch(nil))
}
