package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewInternalError("failed to load permission").WithCause(cause)

	assert.Equal(t, "failed to load permission: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "INTERNAL_ERROR", err.Code)
	assert.Equal(t, "permission not found", NewNotFoundError("permission").Error())
}

func TestAppError_WithDetails(t *testing.T) {
	err := NewValidationError("INVALID_INPUT", "input failed validation").
		WithDetails(map[string]interface{}{"CheckAccessInput.IPAddress": "ip"})

	var appErr *AppError
	require.ErrorAs(t, fmt.Errorf("check: %w", err), &appErr)
	assert.Equal(t, "ip", appErr.Details["CheckAccessInput.IPAddress"])
}

func TestTypePredicates(t *testing.T) {
	wrapped := fmt.Errorf("revoke: %w", NewConflictError("permission was modified concurrently"))

	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsNotFound(wrapped))
	assert.True(t, IsNotFound(NewNotFoundError("company")))
	assert.True(t, IsValidation(NewValidationError("CONFLICTING_SCOPE", "entity ID requires an entity type")))
	assert.True(t, IsType(NewBusinessError("PERMISSION_INACTIVE", "inactive"), ErrorTypeBusiness))
	assert.False(t, IsConflict(stderrors.New("plain")))
}

func TestOutcomeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Outcome
	}{
		{"nil is success", nil, OutcomeSuccess},
		{"validation is invalid", NewValidationError("BAD", "bad"), OutcomeInvalid},
		{"not found", NewNotFoundError("permission"), OutcomeNotFound},
		{"wrapped not found", fmt.Errorf("load: %w", NewNotFoundError("permission")), OutcomeNotFound},
		{"unknown is internal", stderrors.New("boom"), OutcomeInternalError},
		{"conflict is internal", NewConflictError("race"), OutcomeInternalError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, OutcomeOf(tt.err))
		})
	}
}
