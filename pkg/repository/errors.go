package repository

import (
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes.
const (
	codeUniqueViolation      = "23505"
	codeSerializationFailure = "40001"
)

// IsConflict reports whether err is a unique violation or a serialization
// failure, both of which mean a concurrent writer got there first.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == codeUniqueViolation || pgErr.Code == codeSerializationFailure
}

// MapError maps sql.ErrNoRows to notFound and conflicts to conflict.
// Anything else is returned unchanged.
func MapError(err error, notFound, conflict error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return notFound
	case IsConflict(err):
		return conflict
	default:
		return err
	}
}
