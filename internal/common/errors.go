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
	ErrConflict           = errors.New("resource conflict") // e.g., username already exists
	ErrInternalServer     = errors.New("internal server error")
	ErrValidation         = errors.New("validation failed")
	ErrServiceUnavailable = errors.New("service unavailable") // e.g. redis down
	ErrJobLockFailed      = errors.New("failed to acquire job lock")

	// Contest lifecycle and rating kinds.
	ErrAlreadyRegistered        = errors.New("user already registered for contest")
	ErrRatingAlreadyRecorded    = errors.New("rating already recorded for contest")
	ErrInvalidContestDefinition = fmt.Errorf("invalid contest definition: %w", ErrValidation)
	ErrInvalidAction            = fmt.Errorf("action not allowed in current contest phase: %w", ErrConflict)
	ErrRegistrationClosed       = fmt.Errorf("registration closed: %w", ErrConflict)
	ErrContestFull              = fmt.Errorf("contest is full: %w", ErrConflict)
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, ErrNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, ErrUnauthorized) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, ErrForbidden) {
		return http.StatusForbidden
	}
	if errors.Is(err, ErrBadRequest) || errors.Is(err, ErrValidation) {
		return http.StatusBadRequest
	}
	if errors.Is(err, ErrConflict) || errors.Is(err, ErrAlreadyRegistered) || errors.Is(err, ErrRatingAlreadyRecorded) {
		return http.StatusConflict
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable
	}
	if errors.Is(err, ErrJobLockFailed) {
		return http.StatusServiceUnavailable
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == UniqueViolation {
			return http.StatusConflict
		}
	}

	return http.StatusInternalServerError
}

// UniqueViolation is the Postgres SQLSTATE for a unique constraint violation.
const UniqueViolation = "23505"

// IsUniqueViolation reports whether err carries a Postgres unique violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == UniqueViolation
}
