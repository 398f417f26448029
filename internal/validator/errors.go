package validator

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrMissingField = errors.New("missing field")
	ErrTypeMismatch = errors.New("type mismatch")
)

// ValidationError describes why a single record was rejected.
type ValidationError struct {
	Kind   error  // ErrMissingField or ErrTypeMismatch
	Field  string // Wire key
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Field)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Reason)
}

// Unwrap lets errors.Is match the kind sentinel.
func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func missing(field string) error {
	return &ValidationError{Kind: ErrMissingField, Field: field}
}

func mismatch(field, reason string) error {
	return &ValidationError{Kind: ErrTypeMismatch, Field: field, Reason: reason}
}

// KindOf returns a short label for metrics and logs.
func KindOf(err error) string {
	switch {
	case errors.Is(err, ErrMissingField):
		return "missing_field"
	case errors.Is(err, ErrTypeMismatch):
		return "type_mismatch"
	default:
		return "other"
	}
}
