package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"ms-attendance/internal/models"
)

// PostgreSQL error codes that mean "another transaction won, try again".
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// IsConflict reports whether err is a retryable PostgreSQL conflict.
func IsConflict(err error) bool {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return false
	}
	switch string(pqErr.Code) {
	case codeUniqueViolation, codeSerializationFailure, codeDeadlockDetected:
		return true
	}
	return false
}

// Translate maps driver errors onto domain errors. notFound is returned for
// sql.ErrNoRows; nil keeps the original error.
func Translate(err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows) && notFound != nil:
		return notFound
	case IsConflict(err):
		return fmt.Errorf("%w: %v", models.ErrVersionConflict, err)
	default:
		return err
	}
}
