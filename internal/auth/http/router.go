package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/luminara-labs/storefront-auth/internal/auth/service"
	"github.com/luminara-labs/storefront-auth/internal/auth/store"
	"github.com/luminara-labs/storefront-auth/pkg/httpx"
	"github.com/luminara-labs/storefront-auth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	cookieOpts   CookieOptions

	store        store.Store
	Gate         *service.AuthGate
	AuthService  *service.AuthService
	MFAService   *service.MFAService
	Sessions     *service.SessionService
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	cookieOpts CookieOptions,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		cookieOpts:   cookieOpts,
		store:        st,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSessions()
	r.registerMFA()
	r.registerRecovery()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	h := &LoginHandler{AuthService: r.AuthService, CookieOpts: r.cookieOpts}

	// Login carries the strict per-IP limit; it is the brute-force surface.
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Same handler: the MFA round re-submits credentials plus the code.
	r.Mux.Handle("POST /v1/auth/login/mfa",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Logout is authenticated so it knows which session dies, but an
	// unauthenticated call still clears the cookie.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(h.HandleLogout),
			OptionalAuth(r.Gate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerSessions() {
	h := &SessionsHandler{Sessions: r.Sessions}

	r.Mux.Handle("GET /v1/auth/sessions",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			RequireAuth(r.Gate),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/auth/sessions/{id}",
		httpx.Chain(http.HandlerFunc(h.HandleRevoke),
			RequireAuth(r.Gate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/sessions/revoke-others",
		httpx.Chain(http.HandlerFunc(h.HandleRevokeOthers),
			RequireAuth(r.Gate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerMFA() {
	h := &MFAHandler{MFAService: r.MFAService}

	r.Mux.Handle("POST /v1/auth/mfa/totp/enroll",
		httpx.Chain(http.HandlerFunc(h.HandleEnroll),
			RequireAuth(r.Gate),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Code verification is strict; six digits brute-force fast.
	r.Mux.Handle("POST /v1/auth/mfa/totp/verify",
		httpx.Chain(http.HandlerFunc(h.HandleConfirm),
			RequireAuth(r.Gate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("DELETE /v1/auth/mfa/totp",
		httpx.Chain(http.HandlerFunc(h.HandleDisable),
			RequireAuth(r.Gate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerRecovery() {
	h := &RecoveryHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/recovery",
		httpx.Chain(http.HandlerFunc(h.HandleRequest),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
