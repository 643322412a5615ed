// Package apperr defines the errors shared across domain packages and mapped
// onto RPC status codes by the api layer.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when a caller acts on a record it does not own.
	ErrUnauthorized = errors.New("not authorized")
	// ErrNotFound is returned when a point read finds nothing and the caller
	// cannot treat that as an empty result.
	ErrNotFound = errors.New("not found")
)

// ValidationError reports caller input that can never succeed as given.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Invalid returns a ValidationError for field.
func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
