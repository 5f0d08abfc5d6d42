// Package apperrors defines the error taxonomy shared by the referral engine,
// the ambassador engine and the payout state machine.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrNotFound means a referenced user, reward or ambassador does not exist
	ErrNotFound = errors.New("not found")
	// ErrPrecondition means a transition was attempted from an invalid state
	ErrPrecondition = errors.New("precondition failed")
	// ErrInvalidInput means the caller supplied an unusable argument
	ErrInvalidInput = errors.New("invalid input")
	// ErrStoreUnavailable wraps failures of the backing store
	ErrStoreUnavailable = errors.New("store unavailable")
)

// NotFound returns an ErrNotFound describing the missing entity
func NotFound(entity, id string) error {
	return fmt.Errorf("%s %s: %w", entity, id, ErrNotFound)
}

// Precondition returns an ErrPrecondition with a reason
func Precondition(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrPrecondition)
}

// Invalid returns an ErrInvalidInput with a reason
func Invalid(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidInput)
}

// Store wraps a backing-store failure. A nil err returns nil.
func Store(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

// HTTPStatus maps an error to the status code returned to admin callers
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrPrecondition):
		return http.StatusConflict
	case errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// Code returns a short machine-readable error code
func Code(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrPrecondition):
		return "precondition_failed"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "internal_error"
	}
}
