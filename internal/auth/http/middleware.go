package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
)

type ctxKey int

const ctxKeyPrincipal ctxKey = iota

// AuthCookieName is the browser cookie carrying the access token for
// clients that cannot set headers (plain form posts, image loads).
const AuthCookieName = "auth_token"

// SessionTokenHeader carries a raw opaque session reference.
const SessionTokenHeader = "X-Session-Token"

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (service.Principal, bool) {
	p, ok := ctx.Value(ctxKeyPrincipal).(service.Principal)
	return p, ok
}

// extractCredential pulls the authentication material off a request.
// Precedence: Authorization bearer token, then the session token header.
// The auth cookie is bridged into the Authorization slot only when the
// header is absent, so an explicit header always wins over ambient state.
func extractCredential(r *http.Request) (service.Credential, bool) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
			authz = "Bearer " + c.Value
		}
	}

	if authz != "" {
		const prefix = "Bearer "
		if len(authz) > len(prefix) && strings.EqualFold(authz[:len(prefix)], prefix) {
			return service.BearerCredential(strings.TrimSpace(authz[len(prefix):])), true
		}
		// An Authorization header in some other scheme is not ours to
		// interpret; fall through to the session header.
	}

	if token := r.Header.Get(SessionTokenHeader); token != "" {
		return service.SessionCredential(token), true
	}

	return service.Credential{}, false
}

// RequireAuth authenticates every request through the gate and refuses
// anything that does not resolve to a live session.
func RequireAuth(gate *service.AuthGate) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cred, ok := extractCredential(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "missing_credentials",
					"authentication required")
				return
			}

			principal, err := gate.Authenticate(r.Context(), cred, time.Now().UTC())
			if err != nil {
				writeDomainError(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// OptionalAuth attaches a principal when credentials check out and passes
// the request through anonymously otherwise. It never refuses.
func OptionalAuth(gate *service.AuthGate) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cred, ok := extractCredential(r); ok {
				if principal, ok := gate.OptionalAuthenticate(r.Context(), cred, time.Now().UTC()); ok {
					ctx := context.WithValue(r.Context(), ctxKeyPrincipal, principal)
					r = r.WithContext(ctx)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
