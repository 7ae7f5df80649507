package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/edugate/edugate/pkg/jwtx"
	"github.com/edugate/edugate/pkg/slogx"
)

// AccessTokenCookie is the HTTP-only cookie carrying the signed access token
// for browser sessions. API clients may use an Authorization bearer header
// instead; the header wins when both are present.
const AccessTokenCookie = "access_token"

// AccessTokenVerifier verifies a raw access token and returns its claims.
// Implementations are expected to fail closed: any ambiguity (bad signature,
// stale token version, storage error during the version check) must surface
// as an error.
type AccessTokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (jwtx.Claims, error)
}

// AuthnMiddleware authenticates the request via bearer header or session
// cookie and injects the verified claims into the request context.
func AuthnMiddleware(v AccessTokenVerifier) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw := bearerToken(r)
			if raw == "" {
				writeBearerError(w, "missing access token")
				return
			}

			claims, err := v.VerifyAccessToken(ctx, raw)
			if err != nil {
				log.Warn("access token verification failed", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = ContextWithAuth(ctx, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole restricts a route to callers holding one of the given roles.
// Must run inside AuthnMiddleware.
func RequireRole(roles ...string) Middleware {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := allowed[roleFromContext(r.Context())]; !ok {
				WriteError(w, http.StatusForbidden, "forbidden", "insufficient role")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) string {
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
	}
	if c, err := r.Cookie(AccessTokenCookie); err == nil {
		return c.Value
	}
	return ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
