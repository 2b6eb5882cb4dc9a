package errors

import (
	"errors"
	"fmt"
)

// ErrorType classifies an AppError for outcome mapping
type ErrorType string

const (
	// ErrorTypeValidation rejects a malformed request before evaluation
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeBusiness refuses an operation that is well formed but not
	// allowed in the current state, such as revoking an inactive grant
	ErrorTypeBusiness ErrorType = "business"
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeConflict marks a lost optimistic-version race; the caller may
	// reload and retry
	ErrorTypeConflict ErrorType = "conflict"
	ErrorTypeInternal ErrorType = "internal"
)

// AppError is the error value returned across the access-control packages
type AppError struct {
	Type    ErrorType              `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails attaches structured context, e.g. the failing input fields
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func NewValidationError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Code: code, Message: message}
}

func NewBusinessError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeBusiness, Code: code, Message: message}
}

// NewNotFoundError reports a missing permission, company or membership
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    "RESOURCE_NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func NewConflictError(message string) *AppError {
	return &AppError{Type: ErrorTypeConflict, Code: "CONFLICT", Message: message}
}

// NewInternalError reports a store or infrastructure failure. The service
// boundary turns these into fail-closed denials.
func NewInternalError(message string) *AppError {
	return &AppError{Type: ErrorTypeInternal, Code: "INTERNAL_ERROR", Message: message}
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}
