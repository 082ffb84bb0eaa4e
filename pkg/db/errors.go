package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	pkgerrors "github.com/harvestdesk/farmops-backend/pkg/errors"
)

const (
	sqlStateUniqueViolation     = "23505"
	sqlStateInvalidTextRepr     = "22P02"
	sqlStateDatatypeMismatch    = "42804"
	sqliteDatatypeMismatchError = "datatype mismatch"
)

// ErrNotConfigured is returned before any row access when no store is set up.
func ErrNotConfigured() error {
	return pkgerrors.New(pkgerrors.CodeNotConfigured, "row store is not configured")
}

// StoreError classifies a failed row-store call. Typed errors pass through,
// deadline and driver failures become retryable dependency errors that keep
// the original error as their cause.
func StoreError(op string, err error) error {
	if err == nil {
		return nil
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: row store timed out", op))
	}
	if errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: request canceled", op))
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, fmt.Sprintf("%s: %v", op, err))
}

// IsUniqueViolation reports whether err is a unique constraint violation. When
// constraintName is provided, the helper also requires the constraint name in
// the error text.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" && !strings.Contains(msg, constraintName) {
		return false
	}
	if pkgerrors.SQLState(err) == sqlStateUniqueViolation {
		return true
	}
	return strings.Contains(msg, "duplicate key value") || strings.Contains(msg, "UNIQUE constraint failed")
}

// IsTypeMismatch reports whether the store rejected a value because the
// column has a different type, e.g. a text order id against a uuid or serial
// primary key.
func IsTypeMismatch(err error) bool {
	if err == nil {
		return false
	}
	switch pkgerrors.SQLState(err) {
	case sqlStateInvalidTextRepr, sqlStateDatatypeMismatch:
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), sqliteDatatypeMismatchError)
}
