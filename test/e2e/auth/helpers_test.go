package auth_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/luminara-labs/storefront-auth/internal/auth/geo"
	authhttp "github.com/luminara-labs/storefront-auth/internal/auth/http"
	"github.com/luminara-labs/storefront-auth/internal/auth/provider"
	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/internal/auth/store/drivers/sqlite"
)

/*
 * Common constants and helper functions for the auth service end-to-end
 * tests. Each test boots the full HTTP stack against a file-backed
 * database, with stub upstreams for the credential provider and the
 * geolocation lookup.
 */

const (
	testEmail      = "alice@example.com"
	testPassword   = "Sw0rdfish!"
	testExternalID = "ext-alice-e2e"

	testClientIP = "203.0.113.50"
	testLocation = "Sydney, Australia"
)

// env is one fully wired service instance plus its stub upstreams.
type env struct {
	Server *httptest.Server
}

// startEnv boots the whole stack: stub provider, stub geo endpoint, a
// WAL-mode database under t.TempDir, every service, and the router
// behind a real listener. Everything shuts down via t.Cleanup.
func startEnv(t *testing.T) *env {
	t.Helper()

	// Stub identity provider: accepts exactly one email/password pair.
	providerSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		valid := req.Email == testEmail && req.Password == testPassword
		resp := map[string]any{"valid": valid}
		if valid {
			resp["external_id"] = testExternalID
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(providerSrv.Close)

	// Stub geolocation endpoint in the ip-api response shape.
	geoSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"status":  "success",
			"city":    "Sydney",
			"country": "Australia",
		})
	}))
	t.Cleanup(geoSrv.Close)

	dsn := "file:" + filepath.Join(t.TempDir(), "auth.db") + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	st, err := sqlite.NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.Default()

	tokens, err := service.NewTokenService(
		[]byte("e2e-signing-key-e2e-signing-key!"),
		"storefront-auth",
		[]string{"storefront-api"},
		time.Hour,
	)
	require.NoError(t, err)

	sessions := service.NewSessionService(st, geo.NewHTTPResolver(geoSrv.URL), 0, logger)
	sessions.Start()
	t.Cleanup(sessions.Stop)

	mfa := &service.MFAService{Store: st, Issuer: "storefront-auth"}
	gate := &service.AuthGate{Tokens: tokens, Sessions: sessions, Store: st}
	auth := &service.AuthService{
		Store:    st,
		Verifier: provider.NewHTTPVerifier(providerSrv.URL),
		Tokens:   tokens,
		MFA:      mfa,
		Sessions: sessions,
		Throttle: service.NewLoginThrottle(st),
		Recovery: service.NewRecoveryThrottle(st),
	}

	router := authhttp.NewRouter("e2e", st, logger, authhttp.CookieOptions{Secure: false})
	router.Gate = gate
	router.AuthService = auth
	router.MFAService = mfa
	router.Sessions = sessions
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &env{Server: srv}
}

// do sends a request over the real listener and decodes the JSON body
// into out when out is non-nil.
func (e *env) do(t *testing.T, method, path, token string, body, out any) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, e.Server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Forwarded-For", testClientIP)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	} else {
		_, _ = io.Copy(io.Discard, resp.Body)
	}
	return resp
}

// loginResult mirrors the login response body.
type loginResult struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	SessionToken string `json:"session_token"`
	SessionID    string `json:"session_id"`
	DisplayName  string `json:"display_name"`
}

// login authenticates with the canonical test credentials.
func (e *env) login(t *testing.T, mfaCode string) loginResult {
	t.Helper()

	body := map[string]string{"email": testEmail, "password": testPassword}
	if mfaCode != "" {
		body["mfa_code"] = mfaCode
	}
	var out loginResult
	resp := e.do(t, http.MethodPost, "/v1/auth/login", "", body, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return out
}

// sessionView mirrors one entry of the session list response.
type sessionView struct {
	ID       string `json:"id"`
	Location string `json:"location"`
	Current  bool   `json:"current"`
}

// listSessions fetches the caller's active sessions.
func (e *env) listSessions(t *testing.T, token string) []sessionView {
	t.Helper()

	var out struct {
		Sessions []sessionView `json:"sessions"`
	}
	resp := e.do(t, http.MethodGet, "/v1/auth/sessions", token, nil, &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return out.Sessions
}

// trySessions is listSessions without assertions, safe inside polling
// conditions.
func (e *env) trySessions(token string) ([]sessionView, error) {
	req, err := http.NewRequest(http.MethodGet, e.Server.URL+"/v1/auth/sessions", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Forwarded-For", testClientIP)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out struct {
		Sessions []sessionView `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}
