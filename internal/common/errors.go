package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound           = errors.New("requested resource not found")
	ErrUnauthorized       = errors.New("unauthorized access")
	ErrForbidden          = errors.New("forbidden access")
	ErrBadRequest         = errors.New("bad request")
	ErrConflict           = errors.New("resource conflict") // e.g. email already registered
	ErrInternalServer     = errors.New("internal server error")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("service unavailable")
	ErrCapacityExceeded   = errors.New("team is at capacity")
	ErrPhaseClosed        = errors.New("action not permitted in the current event phase")
	ErrInvalidState       = errors.New("invalid state transition")

	// ErrAlreadyScored is a conflict so callers matching ErrConflict still see it.
	ErrAlreadyScored = fmt.Errorf("submission already scored by this judge: %w", ErrConflict)
)

const (
	pgUniqueViolation = "23505"
	pgValueTooLong    = "22001"
)

// IsUniqueViolation reports whether err is a Postgres unique violation, optionally
// restricted to a single named constraint.
func IsUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// IsValueTooLong reports whether err is a Postgres string_data_right_truncation error.
func IsValueTooLong(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgValueTooLong
}

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrPhaseClosed):
		return http.StatusLocked
	case errors.Is(err, ErrCapacityExceeded), errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrValidation), errors.Is(err, ErrInvalidState):
		return http.StatusBadRequest
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable
	case IsUniqueViolation(err, ""):
		return http.StatusConflict
	case IsValueTooLong(err):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorCodeFromError returns the machine-readable code sent next to the message.
func ErrorCodeFromError(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NOT_FOUND"
	case errors.Is(err, ErrUnauthorized):
		return "UNAUTHORIZED"
	case errors.Is(err, ErrForbidden):
		return "FORBIDDEN"
	case errors.Is(err, ErrPhaseClosed):
		return "PHASE_CLOSED"
	case errors.Is(err, ErrCapacityExceeded):
		return "CAPACITY_EXCEEDED"
	case errors.Is(err, ErrAlreadyScored):
		return "ALREADY_SCORED"
	case errors.Is(err, ErrConflict), IsUniqueViolation(err, ""):
		return "CONFLICT"
	case errors.Is(err, ErrInvalidState):
		return "INVALID_STATE"
	case errors.Is(err, ErrValidation), errors.Is(err, ErrBadRequest), IsValueTooLong(err):
		return "VALIDATION_ERROR"
	case errors.Is(err, ErrServiceUnavailable):
		return "SERVICE_UNAVAILABLE"
	}
	return "INTERNAL"
}

// Errorf creates a new error with formatting, useful for wrapping.
func Errorf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}
