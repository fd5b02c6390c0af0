// Package apperror provides the typed errors the service layer returns.
// Each error carries an HTTP status code and a message that is safe to show
// to the client; the underlying cause is kept for logging only.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the base error type for all domain errors.
type AppError struct {
	// Code is the HTTP status code.
	Code int `json:"-"`

	// Type is a machine-readable classifier such as "unauthorized".
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Internal holds the underlying error. Never exposed to the client.
	Internal error `json:"-"`
}

func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Internal
}

// NewValidation creates a 400 error for request bodies that fail validation.
func NewValidation(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: "validation_error", Message: message}
}

// NewBadRequest creates a 400 error for requests missing required inputs.
func NewBadRequest(message string) *AppError {
	return &AppError{Code: http.StatusBadRequest, Type: "bad_request", Message: message}
}

// NewUnauthorized creates a 401 error.
func NewUnauthorized(message string) *AppError {
	return &AppError{Code: http.StatusUnauthorized, Type: "unauthorized", Message: message}
}

// NewNotFound creates a 404 error.
func NewNotFound(message string) *AppError {
	return &AppError{Code: http.StatusNotFound, Type: "not_found", Message: message}
}

// NewConflict creates a 409 error.
func NewConflict(message string) *AppError {
	return &AppError{Code: http.StatusConflict, Type: "conflict", Message: message}
}

// NewTooLarge creates a 413 error for uploads over the configured limit.
func NewTooLarge(message string) *AppError {
	return &AppError{Code: http.StatusRequestEntityTooLarge, Type: "too_large", Message: message}
}

// NewServiceUnavailable creates a 503 error for a failing upstream
// dependency such as object storage.
func NewServiceUnavailable(err error) *AppError {
	return &AppError{
		Code:     http.StatusServiceUnavailable,
		Type:     "service_unavailable",
		Message:  "There was an error connecting to an external service. Please try again later.",
		Internal: err,
	}
}

// NewInternal creates a 500 error. The client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     "internal_error",
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// SafeMessage returns the client-safe message for err.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "An unexpected error occurred. Please try again."
}

// SafeCode returns the HTTP status for err, or 500 for anything that is not
// an AppError.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}

// Is reports whether err is an AppError with the given status code.
func Is(err error, code int) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}
