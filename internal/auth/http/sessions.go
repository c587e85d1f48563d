package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/domain"
	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// SessionsHandler serves the "your devices" surface: list, revoke one,
// revoke all others.
type SessionsHandler struct {
	Sessions *service.SessionService
}

type sessionView struct {
	ID             string    `json:"id"`
	DeviceName     string    `json:"device_name"`
	Browser        string    `json:"browser"`
	OS             string    `json:"os"`
	IPAddress      string    `json:"ip_address"`
	Location       string    `json:"location,omitempty"`
	Current        bool      `json:"current"`
	CreatedAt      time.Time `json:"created_at"`
	LastActivityAt time.Time `json:"last_activity_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// HandleList handles GET /v1/auth/sessions.
func (h *SessionsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_credentials", "")
		return
	}

	sessions, err := h.Sessions.ListActiveByUser(ctx, p.Identity.ID, time.Now().UTC())
	if err != nil {
		slogx.FromContext(ctx).Error("list sessions failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}

	views := make([]sessionView, 0, len(sessions))
	for _, s := range sessions {
		views = append(views, sessionView{
			ID:             s.ID,
			DeviceName:     s.DeviceName,
			Browser:        s.Browser,
			OS:             s.OS,
			IPAddress:      s.IPAddress,
			Location:       s.Location,
			Current:        s.ID == p.Session.ID,
			CreatedAt:      s.CreatedAt,
			LastActivityAt: s.LastActivityAt,
			ExpiresAt:      s.ExpiresAt,
		})
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"sessions": views})
}

// HandleRevoke handles DELETE /v1/auth/sessions/{id}. A user can only
// revoke their own sessions; anyone else's look like they don't exist.
func (h *SessionsHandler) HandleRevoke(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_credentials", "")
		return
	}

	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "session id is required")
		return
	}

	sess, err := h.Sessions.GetByID(ctx, id)
	if err != nil || sess.UserID != p.Identity.ID {
		if err != nil && !errors.Is(err, domain.ErrSessionNotFound) {
			slogx.FromContext(ctx).Error("load session failed", "err", err)
			writeError(w, http.StatusInternalServerError, "server_error", "")
			return
		}
		writeError(w, http.StatusNotFound, "session_not_found", "")
		return
	}

	if err := h.Sessions.Revoke(ctx, id, time.Now().UTC()); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRevokeOthers handles POST /v1/auth/sessions/revoke-others:
// "sign out everywhere else".
func (h *SessionsHandler) HandleRevokeOthers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	p, ok := PrincipalFromContext(ctx)
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing_credentials", "")
		return
	}

	if err := h.Sessions.RevokeAllExcept(ctx, p.Identity.ID, p.Session.SessionToken, time.Now().UTC()); err != nil {
		slogx.FromContext(ctx).Error("revoke-others failed", "err", err)
		writeError(w, http.StatusInternalServerError, "server_error", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
