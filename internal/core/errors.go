package core

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned for missing records and for records owned by
	// another user; callers must not be able to tell the two apart.
	ErrNotFound = errors.New("not found")

	ErrInvalidAmount   = NewValidationError("amount", "must be a positive number with at most 2 decimal places")
	ErrMissingRequired = NewValidationError("", "Please provide type, amount, and category")
)

// ValidationError marks bad caller input. It is always detected before any
// mutation and maps to 400.
type ValidationError struct {
	Field   string
	Message string
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + " " + e.Message
}

// StorageError wraps a failure of the attachment store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("attachment %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsStorage(err error) bool {
	var se *StorageError
	return errors.As(err, &se)
}
