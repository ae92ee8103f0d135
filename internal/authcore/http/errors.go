package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/halcyonsec/authcore/internal/authcore/service"
	"github.com/halcyonsec/authcore/pkg/httpx"
)

// apiError is the JSON error envelope every endpoint returns. Code values
// mirror the service taxonomy so clients can switch on them.
type apiError struct {
	Code        string `json:"error"`
	Description string `json:"error_description,omitempty"`
	status      int
}

func (e apiError) WriteError(w http.ResponseWriter) {
	httpx.NoCache(w)
	httpx.WriteJSON(w, e.status, e)
}

var (
	errInvalidRequest = apiError{
		Code: "invalid_request", Description: "missing or malformed parameters", status: http.StatusBadRequest,
	}
	errInvalidBody = apiError{
		Code: "invalid_request", Description: "request body must be valid JSON", status: http.StatusBadRequest,
	}
	errInvalidCredential = apiError{
		Code: "invalid_credential", status: http.StatusUnauthorized,
	}
	errAccountLocked = apiError{
		Code: "account_locked", Description: "too many failed attempts", status: http.StatusForbidden,
	}
	errPrincipalDisabled = apiError{
		Code: "principal_disabled", status: http.StatusForbidden,
	}
	errMFAFailed = apiError{
		Code: "mfa_failed", status: http.StatusUnauthorized,
	}
	errMFAExpired = apiError{
		Code: "mfa_expired", Description: "challenge expired; request a new one", status: http.StatusUnauthorized,
	}
	errFactorNotEnrolled = apiError{
		Code: "factor_not_enrolled", status: http.StatusBadRequest,
	}
	errChallengeNotFound = apiError{
		Code: "challenge_not_found", status: http.StatusNotFound,
	}
	errTokenExpired = apiError{
		Code: "token_expired", status: http.StatusUnauthorized,
	}
	errTokenRevoked = apiError{
		Code: "token_revoked", status: http.StatusUnauthorized,
	}
	errReplayDetected = apiError{
		Code: "replay_detected", Description: "refresh token reuse detected; session revoked", status: http.StatusUnauthorized,
	}
	errServerError = apiError{
		Code: "server_error", status: http.StatusInternalServerError,
	}
)

// writeServiceError maps the service taxonomy onto HTTP responses. Anything
// outside the taxonomy is a dependency failure and must not leak detail.
func writeServiceError(w http.ResponseWriter, l *slog.Logger, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidCredential):
		errInvalidCredential.WriteError(w)
	case errors.Is(err, service.ErrAccountLocked):
		errAccountLocked.WriteError(w)
	case errors.Is(err, service.ErrPrincipalDisabled):
		errPrincipalDisabled.WriteError(w)
	case errors.Is(err, service.ErrMFAFailed):
		errMFAFailed.WriteError(w)
	case errors.Is(err, service.ErrMFAExpired):
		errMFAExpired.WriteError(w)
	case errors.Is(err, service.ErrFactorNotEnrolled):
		errFactorNotEnrolled.WriteError(w)
	case errors.Is(err, service.ErrChallengeNotFound):
		errChallengeNotFound.WriteError(w)
	case errors.Is(err, service.ErrTokenExpired):
		errTokenExpired.WriteError(w)
	case errors.Is(err, service.ErrTokenRevoked):
		errTokenRevoked.WriteError(w)
	case errors.Is(err, service.ErrReplayDetected):
		errReplayDetected.WriteError(w)
	default:
		l.Error("request failed", slog.Any("error", err))
		errServerError.WriteError(w)
	}
}
