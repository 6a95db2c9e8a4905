package domain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_WithOperationTakesRequestIDFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), RequestIDKey, "req-42")

	err := NewAppError(ErrNotFound, "default not found", nil).WithOperation(ctx, "list_defaults")

	assert.Equal(t, "list_defaults", err.Operation)
	assert.Equal(t, "req-42", err.RequestID)
}

func TestAppError_WithOperationWithoutRequestID(t *testing.T) {
	err := NewAppError(ErrLockTimeout, "store busy", nil).WithOperation(context.Background(), "save_defaults")

	assert.Equal(t, "save_defaults", err.Operation)
	assert.Empty(t, err.RequestID)
}

func TestAppError_UnwrapAndCode(t *testing.T) {
	cause := errors.New("unexpected end of JSON input")
	err := NewAppErrorWithCause(ErrDataCorrupted, "defaults.json is corrupted", cause, nil)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ErrDataCorrupted, CodeOf(err))
	assert.Contains(t, err.Error(), "caused by")
}
