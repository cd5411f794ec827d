package db

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// SQLSTATE values a fresh attempt can resolve.
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsRetryableConflict reports whether err is a serialization failure or
// deadlock from either postgres driver.
func IsRetryableConflict(err error) bool {
	if err == nil {
		return false
	}
	var code string
	var pgxErr *pgconn.PgError
	var pqErr *pq.Error
	switch {
	case errors.As(err, &pgxErr):
		code = pgxErr.Code
	case errors.As(err, &pqErr):
		code = string(pqErr.Code)
	default:
		return false
	}
	return code == pgSerializationFailure || code == pgDeadlockDetected
}
