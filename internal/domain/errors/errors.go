package errors

import (
	"errors"
	"fmt"
)

var (
	// Checkout session errors
	ErrSessionCreationFailed = errors.New("session creation failed")
	ErrProviderUnavailable   = errors.New("payment provider unavailable")
	ErrProviderRejected      = errors.New("payment rejected by provider")

	// Webhook errors
	ErrWebhookVerificationFailed = errors.New("webhook verification failed")
	ErrMissingSignature          = errors.New("missing signature header")
	ErrMalformedEvent            = errors.New("malformed event payload")

	// Bus errors
	ErrPublishFailed  = errors.New("event publish failed")
	ErrUnknownHandler = errors.New("no handler registered for topic")

	// Auth errors
	ErrUnauthorized = errors.New("unauthorized")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewSessionCreationError reports a failed processor call. The cause keeps
// the processor's own message.
func NewSessionCreationError(cause error) *DomainError {
	err := ErrSessionCreationFailed
	if cause != nil {
		err = fmt.Errorf("%w: %w", ErrSessionCreationFailed, cause)
	}
	return &DomainError{
		Code:    "session_creation_failed",
		Message: "create checkout session",
		Err:     err,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
