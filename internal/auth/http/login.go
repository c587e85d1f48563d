package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// LoginHandler handles POST /v1/auth/login and POST /v1/auth/login/mfa.
type LoginHandler struct {
	AuthService *service.AuthService
	CookieOpts  CookieOptions
}

// CookieOptions shape the auth cookie per deployment environment.
type CookieOptions struct {
	Secure   bool // dev runs plain http
	SameSite http.SameSite
	Domain   string
}

// sameSite returns the configured mode, defaulting to Lax.
func (o CookieOptions) sameSite() http.SameSite {
	if o.SameSite == 0 {
		return http.SameSiteLaxMode
	}
	return o.SameSite
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	MFACode  string `json:"mfa_code,omitempty"`
}

type loginResponse struct {
	AccessToken  string    `json:"access_token"`
	TokenType    string    `json:"token_type"`
	SessionToken string    `json:"session_token"`
	SessionID    string    `json:"session_id"`
	ExpiresAt    time.Time `json:"expires_at"`
	DisplayName  string    `json:"display_name,omitempty"`
}

// HandleLogin handles the first login round. When the account has MFA
// enabled and no code was supplied the response is 401 mfa_required; the
// client re-submits with mfa_code (or calls /login/mfa, same handler).
func (h *LoginHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "email and password are required")
		return
	}

	result, err := h.AuthService.Login(ctx, service.LoginRequest{
		Email:     req.Email,
		Password:  req.Password,
		MFACode:   req.MFACode,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.setAuthCookie(w, result.AccessToken, result.Session.ExpiresAt)

	log.Info("login completed", "user_id", result.Identity.ID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  result.AccessToken,
		TokenType:    "Bearer",
		SessionToken: result.Session.SessionToken,
		SessionID:    result.Session.SessionID,
		ExpiresAt:    result.Session.ExpiresAt,
		DisplayName:  result.Identity.DisplayName,
	})
}

// HandleLogout handles POST /v1/auth/logout. Revokes the session named by
// the request credential and clears the cookie. Always succeeds from the
// client's perspective.
func (h *LoginHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if p, ok := PrincipalFromContext(ctx); ok {
		if err := h.AuthService.Logout(ctx, p.Session.SessionToken); err != nil {
			slogx.FromContext(ctx).Warn("logout revoke failed", "err", err)
		}
	}

	h.clearAuthCookie(w)
	httpx.NoCache(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LoginHandler) setAuthCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    token,
		Path:     "/",
		Domain:   h.CookieOpts.Domain,
		Expires:  expires,
		HttpOnly: true,
		Secure:   h.CookieOpts.Secure,
		SameSite: h.CookieOpts.sameSite(),
	})
}

func (h *LoginHandler) clearAuthCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     AuthCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieOpts.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.CookieOpts.Secure,
		SameSite: h.CookieOpts.sameSite(),
	})
}

// clientIP prefers proxy headers and falls back to the socket address.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if first, _, found := strings.Cut(xff, ","); found || first != "" {
			return strings.TrimSpace(first)
		}
	}
	if rip := r.Header.Get("X-Real-IP"); rip != "" {
		return rip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
