// Package apperror provides structured error handling for the API.
// All recoverable errors cross package boundaries as *AppError so the HTTP
// layer can map them to consistent JSON responses.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes grouped by class.
const (
	// Infrastructure errors (5xx)
	CodeInternal = "INTERNAL_ERROR"
	CodeDatabase = "DATABASE_ERROR"

	// Client errors (4xx)
	CodeInvalidTable = "INVALID_TABLE"
	CodeNoPrimaryKey = "NO_PRIMARY_KEY"
	CodeValidation   = "VALIDATION_ERROR"
	CodeEmptyPayload = "EMPTY_PAYLOAD"
	CodeNotFound     = "NOT_FOUND"

	// Constraint conflicts (409)
	CodeConflict  = "CONFLICT"
	CodeDuplicate = "DUPLICATE_ENTRY"
)

// AppError is the standard error type for the service.
type AppError struct {
	// Code is a machine-readable error identifier
	Code string `json:"code"`

	// Message is a human-readable error description
	Message string `json:"message"`

	// Details contains additional context (field names, raw values, etc.)
	Details map[string]any `json:"details,omitempty"`

	// HTTPStatus is the suggested HTTP status code
	HTTPStatus int `json:"-"`

	// Err is the underlying error (not exposed in JSON)
	Err error `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail adds a key-value pair to error details
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause sets the underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

// --- Factory functions ---

// NewInvalidTable creates a scope-violation error: the table name is not in
// the registry and must not be touched by any operation.
func NewInvalidTable(table string) *AppError {
	return &AppError{
		Code:       CodeInvalidTable,
		Message:    "invalid table",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"table": table},
	}
}

// NewNoPrimaryKey is returned when an operation requires a primary key the
// table does not have.
func NewNoPrimaryKey(table string) *AppError {
	return &AppError{
		Code:       CodeNoPrimaryKey,
		Message:    "table has no primary key",
		HTTPStatus: http.StatusBadRequest,
		Details:    map[string]any{"table": table},
	}
}

// NewValidation creates a validation error (400)
func NewValidation(message string) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewEmptyPayload is returned when coercion leaves no usable fields.
func NewEmptyPayload() *AppError {
	return &AppError{
		Code:       CodeEmptyPayload,
		Message:    "no valid data provided",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFound creates a not found error (404)
func NewNotFound(entity string, id any) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    fmt.Sprintf("%s not found", entity),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]any{"entity": entity, "id": id},
	}
}

// NewConflict creates a conflict error (409)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    message,
		HTTPStatus: http.StatusConflict,
	}
}

// NewDuplicate creates a duplicate entry error (409)
func NewDuplicate(table string) *AppError {
	return &AppError{
		Code:       CodeDuplicate,
		Message:    "record with this key already exists",
		HTTPStatus: http.StatusConflict,
		Details:    map[string]any{"table": table},
	}
}

// NewDatabase wraps a storage failure (500). The underlying message is
// carried in the response body; the operation is not retried.
func NewDatabase(err error) *AppError {
	return &AppError{
		Code:       CodeDatabase,
		Message:    "database error",
		HTTPStatus: http.StatusInternalServerError,
		Details:    map[string]any{"cause": err.Error()},
		Err:        err,
	}
}

// NewInternal creates an internal server error (hides details from client)
func NewInternal(err error) *AppError {
	return &AppError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// --- Helper functions ---

// AsAppError extracts AppError from error chain
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetHTTPStatus returns appropriate HTTP status for any error
func GetHTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// IsNotFound checks if error is CodeNotFound
func IsNotFound(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeNotFound
	}
	return false
}

// IsValidation checks if error is CodeValidation
func IsValidation(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code == CodeValidation
	}
	return false
}
