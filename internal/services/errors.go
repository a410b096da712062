package services

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the caller may not mutate the catalog.
	ErrUnauthorized = errors.New("not authorized")
	// ErrValidation is wrapped by every *ValidationError.
	ErrValidation = errors.New("validation failed")
	// ErrPersistence wraps a store rejection. The store's own message is kept.
	ErrPersistence = errors.New("could not save product")
	// ErrUpload wraps a blob store failure.
	ErrUpload = errors.New("upload failed")
	// ErrNotFound is returned when the targeted product does not exist.
	ErrNotFound = errors.New("product not found")
	// ErrSubmissionInFlight is returned when the same form is already being submitted.
	ErrSubmissionInFlight = errors.New("submission already in progress")
)

// ValidationError carries a reason an operator can act on.
type ValidationError struct {
	Reason string
}

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func persistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}
