package csrf

import (
	"net/http"

	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/pkg/httpx"
	"github.com/edugate/edugate/pkg/slogx"
)

// HeaderName carries the token on state-changing requests; clients that
// cannot set headers may use the query parameter instead.
const (
	HeaderName = "X-CSRF-Token"
	QueryParam = "csrf_token"

	errorHeader = "X-CSRF-Error"
	errorCode   = "CSRF_INVALID"
)

// SessionID derives the anti-forgery session identifier for a request: the
// authenticated user id when there is one, otherwise the client address. The
// ip: prefix keeps the two namespaces from colliding.
func SessionID(r *http.Request) string {
	if userID := httpx.UserIDFromContext(r.Context()); userID != "" {
		return userID
	}
	return "ip:" + httpx.ClientIP(r)
}

// Middleware validates the anti-forgery token on state-changing requests.
// Safe methods pass through untouched.
//
// With enforce set, a failed validation stops the request with 403; without
// it the failure is only recorded, which is how a deployment measures client
// readiness before turning enforcement on.
func Middleware(svc *Service, audit *service.SecurityLogService, enforce bool) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token := r.Header.Get(HeaderName)
			if token == "" {
				token = r.URL.Query().Get(QueryParam)
			}

			if err := svc.Validate(ctx, SessionID(r), token); err != nil {
				reason := "token mismatch"
				if token == "" {
					reason = "token missing"
				}

				audit.LogCSRFRejected(ctx, httpx.UserIDFromContext(ctx),
					httpx.ClientIP(r), r.UserAgent(), r.URL.Path, reason)

				if !enforce {
					slogx.FromContext(ctx).Warn("csrf validation failed (not enforced)",
						"path", r.URL.Path, "reason", reason)
					next.ServeHTTP(w, r)
					return
				}

				w.Header().Set(errorHeader, reason)
				httpx.WriteError(w, http.StatusForbidden, errorCode, "csrf validation failed")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
