// database/errors.go - Store error taxonomy
package database

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrConstraintViolation marks a unique, foreign-key, not-null or check constraint breach.
	ErrConstraintViolation = errors.New("constraint violation")
	// ErrStoreUnavailable marks a failed liveness check before a session starts.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// DatabaseError wraps a failure with the operation that produced it.
type DatabaseError struct {
	Operation string
	Err       error
}

func (e *DatabaseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("db error operation=%s", e.Operation)
	}
	return fmt.Sprintf("db error operation=%s: %v", e.Operation, e.Err)
}

func (e *DatabaseError) Unwrap() error { return e.Err }

// PostgreSQL class 23 SQLSTATEs.
var pgConstraintCodes = map[string]bool{
	"23502": true, // not_null_violation
	"23503": true, // foreign_key_violation
	"23505": true, // unique_violation
	"23514": true, // check_violation
}

var sqliteConstraintMessages = []string{
	"UNIQUE constraint failed",
	"FOREIGN KEY constraint failed",
	"NOT NULL constraint failed",
	"CHECK constraint failed",
}

// IsConstraintViolation reports whether err comes from a constraint breach in the store.
func IsConstraintViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConstraintViolation) ||
		errors.Is(err, gorm.ErrDuplicatedKey) ||
		errors.Is(err, gorm.ErrForeignKeyViolated) ||
		errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgConstraintCodes[pgErr.Code]
	}
	msg := err.Error()
	for _, m := range sqliteConstraintMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

// Classify tags constraint breaches with ErrConstraintViolation and leaves other errors as they are.
func Classify(err error) error {
	if err == nil || errors.Is(err, ErrConstraintViolation) {
		return err
	}
	if IsConstraintViolation(err) {
		return fmt.Errorf("%w: %w", ErrConstraintViolation, err)
	}
	return err
}
