package loom

import (
	"errors"
	"fmt"
	"strings"
)

// Issue is one entry of a ValidationError, carrying a field path and a
// reason tag.
type Issue struct {
	Field   string
	Message string
}

// ValidationError represents schema, unknown-field, operator-shape,
// invalid-cursor, or invalid update-operator composition failures.
// It carries every issue found, not just the first.
type ValidationError struct {
	Issues []Issue
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return fmt.Sprintf("loom: validation failed: %s: %s", e.Issues[0].Field, e.Issues[0].Message)
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "loom: validation failed (%d issues):", len(e.Issues))
	for _, iss := range e.Issues {
		fmt.Fprintf(&sb, "\n  %s: %s", iss.Field, iss.Message)
	}
	return sb.String()
}

// NewValidationError builds a ValidationError from one or more issues.
func NewValidationError(issues ...Issue) *ValidationError {
	return &ValidationError{Issues: issues}
}

// IsValidationError reports whether err is a *ValidationError.
func IsValidationError(err error) bool {
	var e *ValidationError
	return errors.As(err, &e)
}

// DuplicateKeyError is raised when a create targets an id already present,
// or a unique field collides with a live (non-soft-deleted) entity.
type DuplicateKeyError struct {
	Collection string
	Field      string
	Value      any
}

// Error returns the error string.
func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("loom: %s: duplicate value %v for %s", e.Collection, e.Value, e.Field)
}

// IsDuplicateKeyError reports whether err is a *DuplicateKeyError.
func IsDuplicateKeyError(err error) bool {
	var e *DuplicateKeyError
	return errors.As(err, &e)
}

// NotFoundError represents a findById/update/delete on an absent id.
type NotFoundError struct {
	Collection string
	ID         string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("loom: %s: %q not found", e.Collection, e.ID)
}

// IsNotFoundError reports whether err is a *NotFoundError.
func IsNotFoundError(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// ForeignKeyError is raised by a create/update with a dangling ref, or a
// hard delete with live referents.
type ForeignKeyError struct {
	Collection       string
	Field            string
	Value            any
	TargetCollection string
}

// Error returns the error string.
func (e *ForeignKeyError) Error() string {
	return fmt.Sprintf("loom: %s.%s=%v: foreign key violation against %s", e.Collection, e.Field, e.Value, e.TargetCollection)
}

// IsForeignKeyError reports whether err is a *ForeignKeyError.
func IsForeignKeyError(err error) bool {
	var e *ForeignKeyError
	return errors.As(err, &e)
}

// OperationError is raised when soft-delete is requested on a collection
// whose schema declares no deletedAt field.
type OperationError struct {
	Collection string
	Reason     string
}

// Error returns the error string.
func (e *OperationError) Error() string {
	return fmt.Sprintf("loom: %s: operation error: %s", e.Collection, e.Reason)
}

// IsOperationError reports whether err is an *OperationError.
func IsOperationError(err error) bool {
	var e *OperationError
	return errors.As(err, &e)
}

// AggregateError collects multiple errors from a best-effort batch
// operation, such as createMany with skipDuplicates.
type AggregateError struct {
	Errors []error
}

// Error returns the error string.
func (e *AggregateError) Error() string {
	if len(e.Errors) == 0 {
		return "loom: no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	sb.WriteString("loom: multiple errors:")
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "\n  [%d] %v", i+1, err)
	}
	return sb.String()
}

// NewAggregateError returns nil if errs has no non-nil entries, the sole
// error if exactly one, or an *AggregateError otherwise.
func NewAggregateError(errs ...error) error {
	var filtered []error
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	switch len(filtered) {
	case 0:
		return nil
	case 1:
		return filtered[0]
	default:
		return &AggregateError{Errors: filtered}
	}
}
