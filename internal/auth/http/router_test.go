package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/internal/auth/store/drivers/sqlite"
)

// fakeVerifier accepts one email/password pair.
type fakeVerifier struct {
	externalID string
	password   string
}

func (f *fakeVerifier) VerifyCredentials(_ context.Context, _, password string) (string, bool, error) {
	return f.externalID, password == f.password, nil
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.Default()
	tokens, err := service.NewTokenService(
		[]byte("test-signing-key-test-signing-key"),
		"storefront-auth",
		[]string{"storefront-api"},
		time.Hour,
	)
	require.NoError(t, err)

	sessions := service.NewSessionService(st, nil, 0, logger)
	mfa := &service.MFAService{Store: st, Issuer: "storefront-auth"}
	gate := &service.AuthGate{Tokens: tokens, Sessions: sessions, Store: st}
	auth := &service.AuthService{
		Store:    st,
		Verifier: &fakeVerifier{externalID: "ext-alice", password: "hunter2"},
		Tokens:   tokens,
		MFA:      mfa,
		Sessions: sessions,
		Throttle: service.NewLoginThrottle(st),
		Recovery: service.NewRecoveryThrottle(st),
	}

	r := NewRouter("test", st, logger, CookieOptions{Secure: false})
	r.Gate = gate
	r.AuthService = auth
	r.MFAService = mfa
	r.Sessions = sessions
	r.ApplyRoutes()
	return r
}

// doJSON posts body to path with optional headers and returns the recorder.
func doJSON(t *testing.T, router *Router, method, path string, body any, header http.Header) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func login(t *testing.T, router *Router, ip string) loginResponse {
	t.Helper()

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/login",
		map[string]string{"email": "alice@example.com", "password": "hunter2"},
		http.Header{"X-Forwarded-For": {ip}},
	)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestLoginEndpoint(t *testing.T) {
	router := newTestRouter(t)

	t.Run("success sets cookie and returns tokens", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/login",
			map[string]string{"email": "alice@example.com", "password": "hunter2"},
			http.Header{"X-Forwarded-For": {"203.0.113.10"}},
		)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp loginResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.NotEmpty(t, resp.AccessToken)
		require.NotEmpty(t, resp.SessionToken)
		require.Equal(t, "Bearer", resp.TokenType)

		var found bool
		for _, c := range rec.Result().Cookies() {
			if c.Name == AuthCookieName {
				found = true
				require.True(t, c.HttpOnly)
				require.Equal(t, resp.AccessToken, c.Value)
			}
		}
		require.True(t, found, "auth cookie not set")
	})

	t.Run("cookie profile follows options", func(t *testing.T) {
		h := &LoginHandler{CookieOpts: CookieOptions{
			Secure:   true,
			SameSite: http.SameSiteStrictMode,
			Domain:   "shop.example.com",
		}}

		rec := httptest.NewRecorder()
		h.setAuthCookie(rec, "tok", time.Now().Add(time.Hour))
		cookies := rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.True(t, cookies[0].Secure)
		require.Equal(t, http.SameSiteStrictMode, cookies[0].SameSite)
		require.Equal(t, "shop.example.com", cookies[0].Domain)

		// Unset SameSite falls back to Lax rather than the browser default.
		h.CookieOpts = CookieOptions{}
		rec = httptest.NewRecorder()
		h.setAuthCookie(rec, "tok", time.Now().Add(time.Hour))
		cookies = rec.Result().Cookies()
		require.Len(t, cookies, 1)
		require.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	})

	t.Run("wrong password", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/login",
			map[string]string{"email": "alice@example.com", "password": "wrong"},
			http.Header{"X-Forwarded-For": {"203.0.113.11"}},
		)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		require.Contains(t, rec.Body.String(), "invalid_credentials")
	})

	t.Run("missing fields", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/login",
			map[string]string{"email": "alice@example.com"},
			http.Header{"X-Forwarded-For": {"203.0.113.12"}},
		)
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("lockout returns retry-after", func(t *testing.T) {
		for range 3 {
			doJSON(t, router, http.MethodPost, "/v1/auth/login",
				map[string]string{"email": "victim@example.com", "password": "wrong"},
				http.Header{"X-Forwarded-For": {"203.0.113.13"}},
			)
		}
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/login",
			map[string]string{"email": "victim@example.com", "password": "hunter2"},
			http.Header{"X-Forwarded-For": {"203.0.113.13"}},
		)
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.Contains(t, rec.Body.String(), "account_locked")
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})
}

func TestSessionsEndpoints(t *testing.T) {
	router := newTestRouter(t)

	first := login(t, router, "203.0.113.20")
	second := login(t, router, "203.0.113.21") // different fingerprint, second session

	t.Run("requires auth", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil, nil)
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("list shows both devices, marks current", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil, bearer(first.AccessToken))
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Sessions []sessionView `json:"sessions"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Sessions, 2)

		current := 0
		for _, s := range resp.Sessions {
			if s.Current {
				current++
				require.Equal(t, first.SessionID, s.ID)
			}
		}
		require.Equal(t, 1, current)
	})

	t.Run("session token header authenticates too", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil,
			http.Header{SessionTokenHeader: {first.SessionToken}})
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("cookie authenticates when header absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/v1/auth/sessions", nil)
		req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: first.AccessToken})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("revoke one", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodDelete,
			fmt.Sprintf("/v1/auth/sessions/%s", second.SessionID), nil, bearer(first.AccessToken))
		require.Equal(t, http.StatusNoContent, rec.Code)

		// The revoked session's token no longer authenticates.
		rec = doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil,
			http.Header{SessionTokenHeader: {second.SessionToken}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("revoke others keeps current", func(t *testing.T) {
		third := login(t, router, "203.0.113.22")
		rec := doJSON(t, router, http.MethodPost, "/v1/auth/sessions/revoke-others", nil, bearer(first.AccessToken))
		require.Equal(t, http.StatusNoContent, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil, bearer(first.AccessToken))
		require.Equal(t, http.StatusOK, rec.Code)

		rec = doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil,
			http.Header{SessionTokenHeader: {third.SessionToken}})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestLogoutEndpoint(t *testing.T) {
	router := newTestRouter(t)
	resp := login(t, router, "203.0.113.30")

	rec := doJSON(t, router, http.MethodPost, "/v1/auth/logout", nil,
		http.Header{SessionTokenHeader: {resp.SessionToken}})
	require.Equal(t, http.StatusNoContent, rec.Code)

	// The cookie is cleared even when nothing authenticated.
	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == AuthCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	require.True(t, cleared)

	rec = doJSON(t, router, http.MethodGet, "/v1/auth/sessions", nil,
		http.Header{SessionTokenHeader: {resp.SessionToken}})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Logout without credentials still answers 204.
	rec = doJSON(t, router, http.MethodPost, "/v1/auth/logout", nil, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRecoveryEndpointUniform(t *testing.T) {
	router := newTestRouter(t)

	known := doJSON(t, router, http.MethodPost, "/v1/auth/recovery",
		map[string]string{"email": "alice@example.com"},
		http.Header{"X-Forwarded-For": {"203.0.113.40"}})
	unknown := doJSON(t, router, http.MethodPost, "/v1/auth/recovery",
		map[string]string{"email": "ghost@example.com"},
		http.Header{"X-Forwarded-For": {"203.0.113.40"}})

	require.Equal(t, http.StatusAccepted, known.Code)
	require.Equal(t, http.StatusAccepted, unknown.Code)
	require.JSONEq(t, known.Body.String(), unknown.Body.String())

	// Throttle kicks in per identity.
	for range 2 {
		doJSON(t, router, http.MethodPost, "/v1/auth/recovery",
			map[string]string{"email": "ghost@example.com"},
			http.Header{"X-Forwarded-For": {"203.0.113.41"}})
	}
	rec := doJSON(t, router, http.MethodPost, "/v1/auth/recovery",
		map[string]string{"email": "ghost@example.com"},
		http.Header{"X-Forwarded-For": {"203.0.113.42"}})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestHealthEndpoints(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/livez", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = doJSON(t, router, http.MethodGet, "/readyz", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}
