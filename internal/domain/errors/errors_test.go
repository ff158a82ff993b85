package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "session_creation_failed",
				Message: "create checkout session",
				Err:     errors.New("provider timeout"),
			},
			expected: "create checkout session: provider timeout",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "malformed_event",
				Message: "charge object could not be decoded",
				Err:     nil,
			},
			expected: "charge object could not be decoded",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	originalErr := errors.New("original error")
	domainErr := &DomainError{
		Code:    "test",
		Message: "test message",
		Err:     originalErr,
	}

	assert.Equal(t, originalErr, domainErr.Unwrap())
}

func TestNewDomainError(t *testing.T) {
	originalErr := errors.New("underlying error")
	err := NewDomainError("test_code", "test message", originalErr)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Equal(t, originalErr, err.Err)
}

func TestNewSessionCreationError(t *testing.T) {
	cause := errors.New("No such currency: xyz")
	err := NewSessionCreationError(cause)

	assert.Equal(t, "session_creation_failed", err.Code)
	assert.ErrorIs(t, err, ErrSessionCreationFailed)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "No such currency: xyz")
}

func TestNewSessionCreationError_NilCause(t *testing.T) {
	err := NewSessionCreationError(nil)

	assert.ErrorIs(t, err, ErrSessionCreationFailed)
	assert.Equal(t, "create checkout session: session creation failed", err.Error())
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Field:   "orderId",
		Message: "must be a valid uuid",
	}

	assert.Equal(t, "validation failed for field orderId: must be a valid uuid", err.Error())
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("items", "cannot be empty")

	assert.NotNil(t, err)
	assert.Equal(t, "items", err.Field)
	assert.Equal(t, "cannot be empty", err.Message)
}

func TestErrorUnwrapping(t *testing.T) {
	wrappedErr := NewDomainError("verification_failed", "webhook rejected", ErrMissingSignature)

	assert.True(t, errors.Is(wrappedErr, ErrMissingSignature))
	assert.False(t, errors.Is(wrappedErr, ErrMalformedEvent))
}
