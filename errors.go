package strix

import (
	"errors"
	"fmt"
)

// Standard sentinel errors for common operations.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("strix: record not found")

	// ErrNotPersisted is returned when an operation requires a persisted
	// record, e.g. deleting one that was never saved.
	ErrNotPersisted = errors.New("strix: record not persisted")

	// ErrCyclicDependency is returned when belongs-to dependency saves form
	// a cycle (A belongs-to B belongs-to A).
	ErrCyclicDependency = errors.New("strix: cyclic belongs-to dependency")

	// ErrTxStarted is returned when starting a transaction on a client that
	// is already transactional.
	ErrTxStarted = errors.New("strix: cannot start a transaction within a transaction")
)

// NotFoundError represents an error when a record is not found.
type NotFoundError struct {
	label string
}

// Error returns the error string.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("strix: %s not found", e.label)
}

// Is reports whether the target error matches NotFoundError.
// This allows errors.Is(notFoundErr, ErrNotFound) to return true.
func (e *NotFoundError) Is(err error) bool {
	return err == ErrNotFound
}

// Label returns the model label.
func (e *NotFoundError) Label() string {
	return e.label
}

// NewNotFoundError returns a new NotFoundError for the given model.
func NewNotFoundError(label string) *NotFoundError {
	return &NotFoundError{label: label}
}

// IsNotFound returns true if the error is a NotFoundError.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}
	var e *NotFoundError
	return errors.As(err, &e) || errors.Is(err, ErrNotFound)
}

// ConstraintError represents a database constraint violation that no
// conflict clause resolved.
type ConstraintError struct {
	msg  string
	wrap error
}

// Error returns the error string.
func (e ConstraintError) Error() string {
	return fmt.Sprintf("strix: constraint failed: %s", e.msg)
}

// Unwrap returns the underlying driver error.
func (e ConstraintError) Unwrap() error {
	return e.wrap
}

// NewConstraintError returns a new ConstraintError with the given message.
func NewConstraintError(msg string, wrap error) error {
	return ConstraintError{msg: msg, wrap: wrap}
}

// IsConstraintError returns true if the error is a ConstraintError.
func IsConstraintError(err error) bool {
	if err == nil {
		return false
	}
	var e ConstraintError
	return errors.As(err, &e)
}

// ValidationError represents a failed caller-defined invariant. It is
// detected before any SQL is issued.
type ValidationError struct {
	Name string // Model name
	Err  error  // Underlying validation error
}

// Error returns the error string.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("strix: validator failed for %q: %s", e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError returns a new ValidationError for the given model.
func NewValidationError(name string, err error) *ValidationError {
	return &ValidationError{Name: name, Err: err}
}

// IsValidationError returns true if the error is a ValidationError.
func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var e *ValidationError
	return errors.As(err, &e)
}

// DependencyError represents a belongs-to prerequisite that failed to save.
// The dependent row is never touched when this is returned.
type DependencyError struct {
	Assoc string // Association name
	Err   error  // Underlying save failure
}

// Error returns the error string.
func (e *DependencyError) Error() string {
	return fmt.Sprintf("strix: saving dependency %q: %v", e.Assoc, e.Err)
}

// Unwrap returns the underlying error.
func (e *DependencyError) Unwrap() error {
	return e.Err
}

// IsDependencyError returns true if the error is a DependencyError.
func IsDependencyError(err error) bool {
	if err == nil {
		return false
	}
	var e *DependencyError
	return errors.As(err, &e)
}

// RollbackError wraps an error that occurred during a transaction rollback.
type RollbackError struct {
	Err error // Original error that triggered rollback
}

// Error returns the error string.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("strix: rollback failed: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *RollbackError) Unwrap() error {
	return e.Err
}
