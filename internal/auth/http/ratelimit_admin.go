package http

import (
	"net/http"
	"time"

	"github.com/edugate/edugate/internal/auth/ratelimit"
	"github.com/edugate/edugate/pkg/httpx"
)

// RateLimitAdminHandler lets administrators inspect and clear rate-limit
// windows, e.g. to unblock a classroom behind one NAT address. The policy is
// selected with the ?policy= query parameter and defaults to login.
type RateLimitAdminHandler struct {
	Limiter *ratelimit.Limiter
}

func policyFromQuery(r *http.Request) (ratelimit.Policy, bool) {
	name := r.URL.Query().Get("policy")
	if name == "" {
		name = ratelimit.LoginPolicy.Name
	}
	return ratelimit.PolicyByName(name)
}

// HandleStatus reports the identifier's window: GET /v1/admin/ratelimit/{id}.
func (h *RateLimitAdminHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromQuery(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown policy")
		return
	}

	id := r.PathValue("id")
	res, err := h.Limiter.Status(r.Context(), id, policy)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not read limiter state")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"identifier": id,
		"policy":     policy.Name,
		"allowed":    res.Allowed,
		"limit":      res.Limit,
		"remaining":  res.Remaining,
		"reset_at":   res.ResetAt.UTC().Format(time.RFC3339),
	})
}

// HandleReset clears the identifier's window: DELETE /v1/admin/ratelimit/{id}.
func (h *RateLimitAdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	policy, ok := policyFromQuery(r)
	if !ok {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "unknown policy")
		return
	}

	if err := h.Limiter.Reset(r.Context(), r.PathValue("id"), policy); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not reset limiter")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
