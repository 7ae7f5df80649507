package http

import (
	"net/http"
	"time"

	"github.com/edugate/edugate/internal/auth/store"
	"github.com/edugate/edugate/pkg/httpx"
	"github.com/edugate/edugate/pkg/kvstore"
)

// healthReporter is implemented by cache clients that can degrade to an
// in-process fallback while still serving (kvstore.Resilient).
type healthReporter interface {
	Healthy() bool
}

// ReadyzHandler is the readiness probe. An unreachable database fails the
// probe; a degraded cache only marks the response, since the in-process
// fallback keeps serving.
func ReadyzHandler(startTime time.Time, version string, st store.Store, cache kvstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		checks := map[string]string{
			"database": "ok",
			"cache":    "ok",
		}
		status := "ok"
		statusCode := http.StatusOK

		if err := st.Ping(r.Context()); err != nil {
			checks["database"] = "error: " + err.Error()
			status = "degraded"
			statusCode = http.StatusServiceUnavailable
		}

		if err := cache.Ping(r.Context()); err != nil {
			checks["cache"] = "error: " + err.Error()
			status = "degraded"
		} else if hr, ok := cache.(healthReporter); ok && !hr.Healthy() {
			checks["cache"] = "degraded: serving from in-process fallback"
			status = "degraded"
		}

		httpx.WriteJSON(w, statusCode, map[string]any{
			"status":  status,
			"uptime":  time.Since(startTime).String(),
			"version": version,
			"checks":  checks,
		})
	}
}
