package moderation

import (
	"errors"
	"fmt"
)

// ErrAuthorizationDenied is returned when the caller holds no grant for the chat.
var ErrAuthorizationDenied = errors.New("authorization denied")

// ValidationError reports malformed command input. Key names the locale string
// holding the usage hint shown to the user, Args fills its placeholders.
type ValidationError struct {
	Key    string
	Reason string
	Args   map[string]string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("validation failed: %s", e.Key)
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Key, e.Reason)
}

// NewValidationError creates a ValidationError for the given locale key.
func NewValidationError(key, reason string) error {
	return &ValidationError{Key: key, Reason: reason}
}

// NewValidationErrorArgs is NewValidationError with placeholder values for the hint.
func NewValidationErrorArgs(key, reason string, args map[string]string) error {
	return &ValidationError{Key: key, Reason: reason, Args: args}
}

// IsValidation reports whether err is a ValidationError and returns it.
func IsValidation(err error) (*ValidationError, bool) {
	var v *ValidationError
	if errors.As(err, &v) {
		return v, true
	}
	return nil, false
}
