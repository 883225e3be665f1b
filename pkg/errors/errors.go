// Package errors defines the typed error codes shared by services and the
// HTTP layer, and how each code is presented to clients.
package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	// CodeConcurrency marks a lost race on a guarded write (exclusive
	// assignment, conditional balance update). Re-read before retrying.
	CodeConcurrency    Code = "CONCURRENCY_CONFLICT"
	CodeReconciliation Code = "RECONCILIATION_ERROR"
	CodeIdempotency    Code = "IDEMPOTENCY_KEY_REUSED"
	CodeInternal       Code = "INTERNAL_ERROR"
	CodeDependency     Code = "DEPENDENCY_ERROR"
)

// Metadata is how a code surfaces over HTTP.
type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

const (
	final     = false
	retryable = true
	opaque    = false
	detailed  = true
)

var metadataByCode = map[Code]Metadata{
	CodeValidation:     {http.StatusBadRequest, final, "validation failed", detailed},
	CodeUnauthorized:   {http.StatusUnauthorized, final, "authentication required", opaque},
	CodeForbidden:      {http.StatusForbidden, final, "access denied", opaque},
	CodeNotFound:       {http.StatusNotFound, final, "resource not found", opaque},
	CodeConflict:       {http.StatusConflict, final, "conflict detected", opaque},
	CodeStateConflict:  {http.StatusUnprocessableEntity, final, "state transition disallowed", detailed},
	CodeConcurrency:    {http.StatusConflict, final, "concurrent update detected", detailed},
	CodeReconciliation: {http.StatusConflict, final, "ledger requires reconciliation", detailed},
	CodeIdempotency:    {http.StatusConflict, final, "idempotency key reused", detailed},
	CodeInternal:       {http.StatusInternalServerError, retryable, "internal server error", opaque},
	CodeDependency:     {http.StatusServiceUnavailable, retryable, "dependency unavailable", detailed},
}

// MetadataFor falls back to CodeInternal for unknown codes.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is a coded error with an optional cause and client-safe details.
// A nil *Error reads as CodeInternal with an empty message.
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
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap attaches cause to a new coded error. A nil cause behaves like New.
func Wrap(code Code, cause error, message string) *Error {
	return &Error{code: code, message: message, cause: cause}
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

// WithDetails sets details in place and returns e for chaining.
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

// WrapUntyped keeps cause when it already carries a Code and otherwise wraps
// it with code. Store calls that may fail on caller input (a bad cursor) and
// on the store itself go through here.
func WrapUntyped(code Code, cause error, message string) *Error {
	if typed := As(cause); typed != nil {
		return typed
	}
	return Wrap(code, cause, message)
}

// As returns the outermost *Error in err's chain, or nil.
func As(err error) *Error {
	var typed *Error
	if err != nil && stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// Is reports whether the outermost *Error in err's chain has code.
func Is(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.code == code
}

// Retryable reports whether err carries a code marked retryable.
func Retryable(err error) bool {
	typed := As(err)
	return typed != nil && MetadataFor(typed.code).Retryable
}
