// Package errors carries the domain error codes shared by services, the HTTP
// layer and farmctl. Services return *Error; transports map the code.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation      Code = "VALIDATION_ERROR"
	CodeNotFound        Code = "NOT_FOUND"
	CodeInvalidQuantity Code = "INVALID_QUANTITY"
	CodeConflict        Code = "CONFLICT"
	CodeStateConflict   Code = "STATE_CONFLICT"
	CodeIdempotency     Code = "IDEMPOTENCY_KEY_REUSED"
	CodeNotConfigured   Code = "NOT_CONFIGURED"
	CodeInternal        Code = "INTERNAL_ERROR"
	CodeDependency      Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code is presented to clients.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

// retry and details flags, in that order.
const (
	noRetry   = false
	mayRetry  = true
	hidden    = false
	withExtra = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:      {http.StatusBadRequest, noRetry, "validation failed", withExtra},
	CodeNotFound:        {http.StatusNotFound, noRetry, "resource not found", withExtra},
	CodeInvalidQuantity: {http.StatusUnprocessableEntity, noRetry, "inventory insufficient", withExtra},
	CodeConflict:        {http.StatusConflict, mayRetry, "conflict detected", withExtra},
	CodeStateConflict:   {http.StatusUnprocessableEntity, noRetry, "state transition disallowed", withExtra},
	CodeIdempotency:     {http.StatusConflict, noRetry, "idempotency key reused", withExtra},
	CodeNotConfigured:   {http.StatusServiceUnavailable, noRetry, "row store not configured", hidden},
	CodeInternal:        {http.StatusInternalServerError, mayRetry, "internal server error", hidden},
	CodeDependency:      {http.StatusServiceUnavailable, mayRetry, "dependency unavailable", withExtra},
}

// MetadataFor falls back to CodeInternal for codes it does not know.
func MetadataFor(code Code) Metadata {
	meta, ok := metadataByCode[code]
	if !ok {
		meta = metadataByCode[CodeInternal]
	}
	return meta
}

// Error is a coded failure. The message is meant for logs and, when the code
// allows details, for clients.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

// Wrap keeps err reachable through errors.Is and errors.As.
func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

// WithDetails attaches client-visible context such as the ids involved.
func (e *Error) WithDetails(details any) *Error {
	if e != nil {
		e.details = details
	}
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return string(e.code) + ": " + e.message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As returns the outermost *Error in err's chain.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

func IsCode(err error, code Code) bool {
	return As(err).codeIs(code)
}

func (e *Error) codeIs(code Code) bool {
	return e != nil && e.code == code
}

// Retryable reports whether the same request may succeed later. Untyped
// errors are never retryable.
func Retryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
