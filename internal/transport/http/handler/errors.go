package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/rohansroy/giterdone/internal/domain"
)

const (
	msgInvalidCredentials = "invalid credentials"
	msgPasskeyFailed      = "passkey verification failed"
	msgUnavailable        = "service temporarily unavailable"
)

// httpError maps a service error onto a status and a client-safe body. The
// wrapped detail is logged, never returned.
func httpError(w http.ResponseWriter, r *http.Request, err error) {
	var wrong *domain.WrongMethodError
	switch {
	case domain.IsInfra(err):
		slog.Error("infrastructure failure", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusServiceUnavailable, msgUnavailable)
	case errors.As(err, &wrong):
		method := wrong.Method
		writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Error: wrong.Error(), AuthMethod: &method})
	case errors.Is(err, domain.ErrTotpRequired):
		writeJSON(w, http.StatusBadRequest, ErrorEnvelope{Error: domain.ErrTotpRequired.Error(), TOTPRequired: true})
	case errors.Is(err, domain.ErrAssertionInvalid),
		errors.Is(err, domain.ErrReplaySuspected):
		slog.Warn("passkey assertion rejected", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusUnauthorized, msgPasskeyFailed)
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, msgInvalidCredentials)
	case errors.Is(err, domain.ErrInvalidOrExpired):
		writeError(w, http.StatusUnauthorized, domain.ErrInvalidOrExpired.Error())
	case errors.Is(err, domain.ErrAttestationInvalid):
		slog.Warn("passkey attestation rejected", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusBadRequest, msgPasskeyFailed)
	case errors.Is(err, domain.ErrPolicyViolation):
		// The wrapped text names the rule that failed.
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrUserNotFound):
		writeError(w, http.StatusNotFound, domain.ErrUserNotFound.Error())
	case errors.Is(err, domain.ErrEmailTaken):
		writeError(w, http.StatusConflict, domain.ErrEmailTaken.Error())
	default:
		if target := clientError(err); target != nil {
			writeError(w, http.StatusBadRequest, target.Error())
			return
		}
		slog.Error("unhandled error", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

var badRequest = []error{
	domain.ErrInvalidCode,
	domain.ErrNotEnrolled,
	domain.ErrNotEnabled,
	domain.ErrChallengeExpired,
	domain.ErrTokenExpired,
	domain.ErrTokenMalformed,
	domain.ErrSamePassword,
	domain.ErrIncorrectCredential,
	domain.ErrBadRequest,
}

// clientError returns the sentinel err matches among the plain 400 errors.
func clientError(err error) error {
	for _, target := range badRequest {
		if errors.Is(err, target) {
			return target
		}
	}
	return nil
}
