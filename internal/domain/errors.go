package domain

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// AppError represents a domain-specific error with structured information and context
type AppError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   any       `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Operation string    `json:"operation,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
	Cause     error     `json:"-"` // Original error, not serialized
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// RequestIDKey is the context key under which the HTTP layer stores the
// request id
const RequestIDKey = "requestid"

// WithOperation records the operation during which the error happened and the
// request id carried by ctx, if any
func (e *AppError) WithOperation(ctx context.Context, operation string) *AppError {
	if ctx != nil {
		if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
			e.RequestID = requestID
		}
	}
	e.Operation = operation
	return e
}

// Error codes for different error categories
const (
	ErrDataCorrupted           = "DATA_CORRUPTED"            // document unparseable or structurally invalid
	ErrUnsupportedSchema       = "UNSUPPORTED_SCHEMA"        // document version has no migration path
	ErrPlatformOperationFailed = "PLATFORM_OPERATION_FAILED" // a single OS call failed
	ErrUnsupportedPlatform     = "UNSUPPORTED_PLATFORM"      // no native handler for this OS
	ErrInvalidConfigOption     = "INVALID_CONFIG_OPTION"     // configuration value rejected

	ErrValidationFailed = "VALIDATION_FAILED"
	ErrNotFound         = "NOT_FOUND"
	ErrConflict         = "CONFLICT"
	ErrLockTimeout      = "LOCK_TIMEOUT"
	ErrRateLimited      = "RATE_LIMITED"
	ErrInternal         = "INTERNAL_ERROR"
)

// NewAppError creates a new AppError with the specified parameters
func NewAppError(code, message string, details any) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
	}
}

// NewAppErrorWithCause creates a new AppError with underlying cause
func NewAppErrorWithCause(code, message string, cause error, details any) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now(),
		Cause:     cause,
	}
}

// CodeOf returns the AppError code found in err's chain, or "" if there is none
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// IsDataCorrupted checks if the error is a data corruption error
func IsDataCorrupted(err error) bool {
	return CodeOf(err) == ErrDataCorrupted
}

// IsUnsupportedSchema checks if the error is an unsupported schema error
func IsUnsupportedSchema(err error) bool {
	return CodeOf(err) == ErrUnsupportedSchema
}

// IsInvalidConfig checks if the error is a configuration error
func IsInvalidConfig(err error) bool {
	return CodeOf(err) == ErrInvalidConfigOption
}

// IsNotFound checks if the error is a not found error
func IsNotFound(err error) bool {
	return CodeOf(err) == ErrNotFound
}

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return CodeOf(err) == ErrValidationFailed
}

// IsConflict checks if the error is a conflict error
func IsConflict(err error) bool {
	return CodeOf(err) == ErrConflict
}
