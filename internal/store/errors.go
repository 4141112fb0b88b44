package store

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates no record matched the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail indicates an email address is already in use.
	ErrDuplicateEmail = errors.New("email already exists")

	// ErrInvalidField indicates an update targeted a field that is not
	// allowed to change.
	ErrInvalidField = errors.New("invalid field")
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
