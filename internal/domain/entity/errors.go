package entity

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrValidation marks input that failed field validation
	ErrValidation = errors.New("validation failed")

	// ErrPermission marks an action the caller is not allowed to perform
	ErrPermission = errors.New("permission denied")

	// ErrNotFound marks a missing record, or one the caller does not own
	ErrNotFound = errors.New("not found")

	// ErrStorage marks a blob store failure that aborted an operation
	ErrStorage = errors.New("storage failure")

	// ErrNothingToExport is returned when a batch export selects no rows
	ErrNothingToExport = errors.New("nothing to export")

	// ErrUnauthenticated marks missing or invalid credentials
	ErrUnauthenticated = errors.New("authentication failed")

	// ErrInvoiceChanged means the invoice reference no longer holds the
	// expected key
	ErrInvoiceChanged = errors.New("invoice reference changed")
)

// ValidationError carries field level messages and matches ErrValidation
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError creates an empty ValidationError
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a message for field
func (e *ValidationError) Add(field, message string) {
	e.Fields[field] = message
}

// OrNil returns nil when no field failed
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Is makes errors.Is(err, ErrValidation) true
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// FieldError builds a single-field validation error
func FieldError(field, message string) error {
	v := NewValidationError()
	v.Add(field, message)
	return v
}

// PermissionError carries a user facing refusal and matches ErrPermission
type PermissionError struct {
	Message string
}

func (e *PermissionError) Error() string {
	return e.Message
}

// Is makes errors.Is(err, ErrPermission) true
func (e *PermissionError) Is(target error) bool {
	return target == ErrPermission
}

// Forbidden builds a PermissionError
func Forbidden(message string) error {
	return &PermissionError{Message: message}
}
