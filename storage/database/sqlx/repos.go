// Package sqlxrepos implements the core repositories on PostgreSQL via sqlx.
package sqlxrepos

import (
	"github.com/lib/pq"
	"github.com/pkg/errors"
)

// pq error codes
const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
)

// isUniqueViolation reports whether err is a unique constraint violation,
// optionally on a specific constraint.
func isUniqueViolation(err error, constraint ...string) bool {
	return isPqViolation(err, pqUniqueViolation, constraint...)
}

// isForeignKeyViolation reports whether err is a foreign key violation,
// optionally on a specific constraint.
func isForeignKeyViolation(err error, constraint ...string) bool {
	return isPqViolation(err, pqForeignKeyViolation, constraint...)
}

func isPqViolation(err error, code pq.ErrorCode, constraint ...string) bool {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok || pqErr.Code != code {
		return false
	}
	if len(constraint) > 0 {
		return pqErr.Constraint == constraint[0]
	}
	return true
}

func pqStringArray(vals []string) interface{} { return pq.Array(vals) }
