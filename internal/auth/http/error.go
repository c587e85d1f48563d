package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
)

// errorResponse is the uniform error body every endpoint speaks.
type errorResponse struct {
	Error       string `json:"error"`
	Description string `json:"error_description,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, description string) {
	httpx.WriteJSON(w, status, errorResponse{Error: code, Description: description})
}

// writeDomainError maps the error taxonomy onto HTTP statuses. Anything it
// does not recognize becomes an opaque 500; internals never leak.
func writeDomainError(w http.ResponseWriter, err error) {
	var lockedErr *domain.AccountLockedError
	var blockedErr *domain.RecoveryBlockedError

	switch {
	case errors.As(err, &lockedErr):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(time.Until(lockedErr.Until))))
		writeError(w, http.StatusTooManyRequests, "account_locked",
			"too many failed attempts, account temporarily locked")

	case errors.As(err, &blockedErr):
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(blockedErr.RetryAfter)))
		writeError(w, http.StatusTooManyRequests, "recovery_blocked",
			"too many recovery requests, try again later")

	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid_credentials",
			"email or password is incorrect")

	case errors.Is(err, domain.ErrMFARequired):
		writeError(w, http.StatusUnauthorized, "mfa_required",
			"a verification code is required to complete login")

	case errors.Is(err, domain.ErrMFAInvalidCode):
		writeError(w, http.StatusUnauthorized, "mfa_invalid_code",
			"the verification code is incorrect")

	case errors.Is(err, domain.ErrMFAAlreadyEnabled):
		writeError(w, http.StatusBadRequest, "mfa_already_enabled",
			"two-factor authentication is already enabled")

	case errors.Is(err, domain.ErrMFANotEnabled):
		writeError(w, http.StatusBadRequest, "mfa_not_enabled",
			"two-factor authentication is not enabled")

	case errors.Is(err, domain.ErrTokenExpired):
		writeError(w, http.StatusUnauthorized, "token_expired", "")

	case errors.Is(err, domain.ErrTokenMalformed),
		errors.Is(err, domain.ErrTokenInvalidPayload):
		writeError(w, http.StatusUnauthorized, "invalid_token", "")

	case errors.Is(err, domain.ErrSessionRevoked),
		errors.Is(err, domain.ErrSessionExpired),
		errors.Is(err, domain.ErrSessionNotFound):
		writeError(w, http.StatusUnauthorized, "invalid_session", "")

	case errors.Is(err, domain.ErrStoreUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily_unavailable",
			"please retry shortly")

	default:
		writeError(w, http.StatusInternalServerError, "server_error", "")
	}
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d.Round(time.Second).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
