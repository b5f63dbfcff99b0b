// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/recruitdesk/recruitdesk/internal/authz"
)

// Sentinel errors for domain layer.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrDuplicate    = errors.New("duplicate entry")
	ErrValidation   = errors.New("validation failed")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

// RespondError maps domain errors to HTTP responses using RFC7807.
func RespondError(w http.ResponseWriter, err error) {
	var denied *DeniedError
	switch {
	case errors.As(err, &denied):
		Problem(w, http.StatusForbidden, "Forbidden", denied.Reason)
	case errors.Is(err, ErrNotFound), errors.Is(err, authz.ErrResourceNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, ErrDuplicate):
		Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrValidation):
		RespondValidation(w, err)
	case errors.Is(err, ErrForbidden):
		Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, ErrUnauthorized):
		Problem(w, http.StatusUnauthorized, "Unauthorized", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// DeniedError carries a denial decision through error returns.
type DeniedError struct {
	Reason string
}

func (e *DeniedError) Error() string { return e.Reason }

// Is lets errors.Is(err, ErrForbidden) match denials.
func (e *DeniedError) Is(target error) bool { return target == ErrForbidden }

// DecisionError converts a non-allowing decision into an error suitable for
// RespondError. Allowing decisions return nil.
func DecisionError(d authz.Decision) error {
	switch d.Outcome {
	case authz.OutcomeAllow:
		return nil
	case authz.OutcomeNotFound:
		return ErrNotFound
	default:
		reason := d.Reason
		if reason == "" {
			reason = authz.DeniedReason
		}
		return &DeniedError{Reason: reason}
	}
}

// IsClientError reports whether RespondError maps err to a 4xx response.
func IsClientError(err error) bool {
	var denied *DeniedError
	if errors.As(err, &denied) {
		return true
	}
	for _, target := range []error{ErrNotFound, authz.ErrResourceNotFound, ErrDuplicate, ErrValidation, ErrForbidden, ErrUnauthorized} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
