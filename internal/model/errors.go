package model

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for the lifecycle engine. Typed errors below unwrap to one
// of these so callers can branch with errors.Is.
var (
	ErrValidation = errors.New("validation failed")
	ErrNotFound   = errors.New("operation not found")
	ErrConflict   = errors.New("conflicting modification")
	ErrStorage    = errors.New("storage failure")
)

// FieldError names one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every field that failed validation, not just the first.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 1 {
		return "validation failed: " + e.Fields[0].Field + ": " + e.Fields[0].Message
	}
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "validation failed:\n  - " + strings.Join(parts, "\n  - ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Has reports whether field is among the rejected fields.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// ValidationBuilder accumulates field errors.
type ValidationBuilder struct {
	fields []FieldError
}

// Add records message against field if ok is false.
func (v *ValidationBuilder) Add(ok bool, field, message string) *ValidationBuilder {
	if !ok {
		v.fields = append(v.fields, FieldError{Field: field, Message: message})
	}
	return v
}

// Addf records a formatted message against field unconditionally.
func (v *ValidationBuilder) Addf(field, format string, args ...any) *ValidationBuilder {
	v.fields = append(v.fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
	return v
}

// Build returns the accumulated ValidationError, or nil.
func (v *ValidationBuilder) Build() error {
	if len(v.fields) == 0 {
		return nil
	}
	return &ValidationError{Fields: v.fields}
}

// NotFoundError reports an unknown op_id.
type NotFoundError struct {
	OpID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("operation %q not found", e.OpID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// ConflictError reports an op_id that the store refused as already taken.
// Writers are serialized per operation, so it never signals a lost update.
type ConflictError struct {
	OpID   string
	Reason string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("operation %q: conflict: %s", e.OpID, e.Reason)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// StorageError wraps a persistence failure. It matches both ErrStorage and
// the underlying cause.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() []error { return []error{ErrStorage, e.Err} }
