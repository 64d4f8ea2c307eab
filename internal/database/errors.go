package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

var (
	// ErrAlreadyExists wraps a unique constraint violation reported by Postgres.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotFound is returned when a keyed read or write matches no row.
	ErrNotFound = errors.New("not found")
)

const (
	codeUniqueViolation = "23505"
)

// wrapError tags store errors with the gateway's sentinels while keeping the
// original *pq.Error reachable through errors.As.
func wrapError(action string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to %s: %w", action, ErrNotFound)
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation {
		return fmt.Errorf("failed to %s: %w: %w", action, ErrAlreadyExists, err)
	}
	return fmt.Errorf("failed to %s: %w", action, err)
}

// StoreMessage returns the message Postgres attached to err, or err's own text
// when it did not come from the store.
func StoreMessage(err error) string {
	if err == nil {
		return ""
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Message
	}
	return err.Error()
}

// StoreCode returns the SQLSTATE code carried by err, if any.
func StoreCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}
