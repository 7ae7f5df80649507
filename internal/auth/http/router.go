// Package http wires the authentication endpoints onto a ServeMux with the
// middleware each route needs: request logging everywhere, rate limits on
// the abuse-prone routes, bearer authentication and CSRF validation on the
// state-changing ones.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/edugate/edugate/internal/auth/csrf"
	"github.com/edugate/edugate/internal/auth/domain"
	"github.com/edugate/edugate/internal/auth/ratelimit"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/httpx"
	"github.com/edugate/edugate/pkg/kvstore"
	"github.com/edugate/edugate/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	logger       *slog.Logger
	buildVersion string
	startTime    time.Time

	// CSRFEnforce controls whether anti-forgery failures block the request
	// or are only recorded.
	CSRFEnforce bool

	store store.Store
	cache kvstore.Store

	TokenService *service.TokenService
	UserService  *service.UserService
	SecurityLog  *service.SecurityLogService
	Monitor      *service.MonitorService
	CSRF         *csrf.Service
	Limiter      *ratelimit.Limiter
}

func NewRouter(
	buildVersion string,
	st store.Store,
	cache kvstore.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		logger:       logger,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		CSRFEnforce:  true,
		store:        st,
		cache:        cache,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerAdmin()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	loginHandler := &LoginHandler{
		Users:  r.UserService,
		Tokens: r.TokenService,
		CSRF:   r.CSRF,
	}
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(loginHandler,
			ratelimit.Middleware(r.Limiter, ratelimit.LoginPolicy),
		),
	)

	refreshHandler := &RefreshHandler{
		Tokens: r.TokenService,
		Audit:  r.SecurityLog,
	}
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(refreshHandler,
			ratelimit.Middleware(r.Limiter, ratelimit.APIPolicy),
		),
	)

	logoutHandler := &LogoutHandler{
		Tokens: r.TokenService,
		CSRF:   r.CSRF,
		Audit:  r.SecurityLog,
	}
	// The rate-limit gate is outermost: rejected and unauthenticated
	// requests alike count against the caller's window.
	r.Mux.Handle("POST /v1/auth/logout",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogout),
			ratelimit.Middleware(r.Limiter, ratelimit.APIPolicy),
			httpx.AuthnMiddleware(r.TokenService),
			csrf.Middleware(r.CSRF, r.SecurityLog, r.CSRFEnforce),
		),
	)
	r.Mux.Handle("POST /v1/auth/logout-all",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogoutAll),
			ratelimit.Middleware(r.Limiter, ratelimit.APIPolicy),
			httpx.AuthnMiddleware(r.TokenService),
			csrf.Middleware(r.CSRF, r.SecurityLog, r.CSRFEnforce),
		),
	)

	passwordHandler := &PasswordHandler{Users: r.UserService, CSRF: r.CSRF}
	r.Mux.Handle("POST /v1/auth/password",
		httpx.Chain(passwordHandler,
			ratelimit.Middleware(r.Limiter, ratelimit.PasswordResetPolicy),
			httpx.AuthnMiddleware(r.TokenService),
			csrf.Middleware(r.CSRF, r.SecurityLog, r.CSRFEnforce),
		),
	)

	// Token issuance works with or without a session; the session id falls
	// back to the client address for pre-login forms.
	csrfHandler := &CSRFTokenHandler{CSRF: r.CSRF}
	r.Mux.Handle("GET /v1/auth/csrf",
		httpx.Chain(csrfHandler,
			ratelimit.Middleware(r.Limiter, ratelimit.APIPolicy),
			optionalAuth(r.TokenService),
		),
	)

	r.Mux.Handle("GET /v1/auth/me",
		httpx.Chain(&MeHandler{},
			ratelimit.Middleware(r.Limiter, ratelimit.APIPolicy),
			httpx.AuthnMiddleware(r.TokenService),
		),
	)
}

func (r *Router) registerAdmin() {
	adminOnly := func(h http.Handler) http.Handler {
		return httpx.Chain(h,
			ratelimit.Middleware(r.Limiter, ratelimit.APIPolicy),
			httpx.AuthnMiddleware(r.TokenService),
			httpx.RequireRole(domain.RoleAdmin),
		)
	}

	securityHandler := &SecurityAdminHandler{
		Logs:    r.SecurityLog,
		Monitor: r.Monitor,
	}
	r.Mux.Handle("GET /v1/admin/security/events",
		adminOnly(http.HandlerFunc(securityHandler.HandleEvents)))
	r.Mux.Handle("GET /v1/admin/security/failed-logins",
		adminOnly(http.HandlerFunc(securityHandler.HandleFailedLogins)))
	r.Mux.Handle("POST /v1/admin/security/scan",
		adminOnly(http.HandlerFunc(securityHandler.HandleScan)))

	limitHandler := &RateLimitAdminHandler{Limiter: r.Limiter}
	r.Mux.Handle("GET /v1/admin/ratelimit/{id}",
		adminOnly(http.HandlerFunc(limitHandler.HandleStatus)))
	r.Mux.Handle("DELETE /v1/admin/ratelimit/{id}",
		adminOnly(http.HandlerFunc(limitHandler.HandleReset)))
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez", LivezHandler(r.startTime, r.buildVersion))
	r.Mux.Handle("GET /readyz", ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache))
}

// optionalAuth attaches verified claims when a token is present and valid,
// and lets the request through either way.
func optionalAuth(v httpx.AccessTokenVerifier) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := req.Context()
			if raw := bearerOrCookie(req); raw != "" {
				if claims, err := v.VerifyAccessToken(ctx, raw); err == nil {
					ctx = httpx.ContextWithAuth(ctx, claims)
				}
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func bearerOrCookie(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); len(authz) > 7 && authz[:7] == "Bearer " {
		return authz[7:]
	}
	if c, err := r.Cookie(httpx.AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}
