// Package apperror defines the error taxonomy shared by the live engine components.
package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced session does not exist.
	ErrNotFound = errors.New("not found")
	// ErrRoomInactive is returned when connecting or publishing to a room whose session is not active.
	ErrRoomInactive = errors.New("room inactive")
	// ErrConfiguration is returned when required signing material or settings are missing.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransport wraps downstream transport failures (Redis, S3, media backend).
	ErrTransport = errors.New("transport error")
	// ErrForbidden is returned when the caller lacks the capability for an operation.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError reports missing or malformed input for a single field.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validation returns a *ValidationError for field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// Configuration wraps ErrConfiguration with a description of what is missing.
func Configuration(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// Transport wraps ErrTransport around a downstream failure.
func Transport(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrTransport, op, err)
}
