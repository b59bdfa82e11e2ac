package sql

import (
	"errors"
	"strings"
)

// sqlStateError is implemented by driver errors that carry a SQLSTATE code
// (pq.Error via SQLState, pgx).
type sqlStateError interface {
	SQLState() string
}

// errorCoder is implemented by driver errors that expose their code as a
// string (pq.Error's Code field through its method set).
type errorCoder interface {
	Code() string
}

// PostgreSQL SQLSTATE codes for constraint violations (Class 23).
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgNotNullViolation    = "23502"
)

// IsConstraintError reports if the error resulted from a database constraint
// violation of any class.
func IsConstraintError(err error) bool {
	return IsUniqueConstraintError(err) ||
		IsForeignKeyConstraintError(err) ||
		IsCheckConstraintError(err) ||
		hasSQLState(err, pgNotNullViolation)
}

// IsUniqueConstraintError reports if the error resulted from a uniqueness
// constraint violation, e.g. a duplicate value in a unique index.
func IsUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgUniqueViolation) {
		return true
	}
	return strings.Contains(err.Error(), "violates unique constraint")
}

// IsForeignKeyConstraintError reports if the error resulted from a
// foreign-key constraint violation, e.g. a missing parent row.
func IsForeignKeyConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgForeignKeyViolation) {
		return true
	}
	return strings.Contains(err.Error(), "violates foreign key constraint")
}

// IsCheckConstraintError reports if the error resulted from a check
// constraint violation.
func IsCheckConstraintError(err error) bool {
	if err == nil {
		return false
	}
	if hasSQLState(err, pgCheckViolation) {
		return true
	}
	return strings.Contains(err.Error(), "violates check constraint")
}

// hasSQLState walks the error chain looking for a driver error carrying the
// given SQLSTATE code, through either of the interfaces Postgres drivers
// implement.
func hasSQLState(err error, code string) bool {
	if e, ok := asError[sqlStateError](err); ok && e.SQLState() == code {
		return true
	}
	if e, ok := asError[errorCoder](err); ok && e.Code() == code {
		return true
	}
	return false
}

// asError attempts to extract an error implementing interface T from the error chain.
func asError[T any](err error) (T, bool) {
	var target T
	for err != nil {
		if e, ok := err.(T); ok {
			return e, true
		}
		err = errors.Unwrap(err)
	}
	return target, false
}
