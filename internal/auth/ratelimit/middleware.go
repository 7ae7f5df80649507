package ratelimit

import (
	"net/http"
	"strconv"

	"github.com/edugate/edugate/pkg/httpx"
)

// Middleware applies the policy per client address. Every response carries
// the X-RateLimit-* headers; a rejection additionally gets Retry-After and a
// JSON body naming the wait in seconds.
func Middleware(l *Limiter, p Policy) httpx.Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			res := l.Check(r.Context(), httpx.ClientIP(r), p)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))

			if !res.Allowed {
				retryAfter := int(res.RetryAfter().Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				h.Set("Retry-After", strconv.Itoa(retryAfter))
				httpx.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"error":      "too many requests",
					"retryAfter": retryAfter,
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
