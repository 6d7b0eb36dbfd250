// Package apperror defines the error taxonomy shared by every layer.
//
// Stores and services return these errors; only the HTTP layer decides
// which status code each one maps to (see handler.Classify).
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
	ErrConflict   = errors.New("conflict")
	ErrDataAccess = errors.New("data access error")
)

type AppError struct {
	Err     error             // sentinel this error belongs to
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: field -> message for form validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %v", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// InvalidFields reports several field errors at once, as produced by form
// validation. The message is generic; callers render Fields.
func InvalidFields(fields map[string]string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: "input validation failed",
		Fields:  fields,
	}
}

func Conflict(resource string, id any) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s conflict with id %v", resource, id),
	}
}

// DataAccess wraps a storage failure so that it matches both ErrDataAccess
// and the underlying driver error.
func DataAccess(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrDataAccess, op, err)
}
