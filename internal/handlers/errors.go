package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"apt-detection-app/internal/database"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// ValidationError reports a malformed or incomplete request.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ConflictError reports a write rejected by a uniqueness rule.
type ConflictError struct {
	Message string
	Err     error
}

func (e *ConflictError) Error() string { return e.Message }
func (e *ConflictError) Unwrap() error { return e.Err }

// NotFoundError reports a keyed operation that matched nothing.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string { return e.Resource + " not found" }

// StorageError carries a store failure. Its message is the store's own.
type StorageError struct {
	Err error
}

func (e *StorageError) Error() string { return database.StoreMessage(e.Err) }
func (e *StorageError) Unwrap() error { return e.Err }

func invalid(msg string) error { return &ValidationError{Message: msg} }

// classify maps a gateway error onto the handler taxonomy. conflictMsg is used
// when the store reports a uniqueness violation.
func classify(err error, resource, id, conflictMsg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, database.ErrAlreadyExists):
		return &ConflictError{Message: conflictMsg, Err: err}
	case errors.Is(err, database.ErrNotFound):
		return &NotFoundError{Resource: resource, ID: id}
	}
	var v *ValidationError
	if errors.As(err, &v) {
		return err
	}
	return &StorageError{Err: err}
}

// statusFor returns the HTTP status for an error of the taxonomy.
func statusFor(err error) int {
	var (
		v *ValidationError
		c *ConflictError
		n *NotFoundError
	)
	switch {
	case errors.As(err, &v):
		return http.StatusBadRequest
	case errors.As(err, &c):
		return http.StatusConflict
	case errors.As(err, &n):
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// writeError logs err and writes it as {"error": message}.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "status", status, "error", err)
	} else {
		slog.Warn("Request rejected", "status", status, "error", err)
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}
