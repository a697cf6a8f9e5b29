package utils

import (
	"errors"
	"fmt"
)

var ErrorRecordNotFound = errors.New("record not found")

// ErrorAccessDenied is returned whenever principal resolution fails,
// whatever the underlying reason. Callers must fail closed on it.
var ErrorAccessDenied = errors.New("access denied")

// ValidationError rejects a mutation input before any write is attempted.
// It replaces the silent no-op the web client used for invalid input, so
// callers can tell "nothing happened" apart from "succeeded".
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// IsValidationError reports whether err (or anything it wraps) is a
// rejected-input error rather than a store failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
