package http

import (
	"net/http"
	"time"

	"github.com/edugate/edugate/pkg/httpx"
)

// LivezHandler is the liveness probe: the process is up and serving.
func LivezHandler(startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, map[string]string{
			"status":  "ok",
			"uptime":  time.Since(startTime).String(),
			"version": version,
		})
	}
}
