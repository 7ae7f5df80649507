package http

import (
	"encoding/json"
	"net/http"

	"github.com/edugate/edugate/internal/auth/csrf"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/pkg/httpx"
)

// LogoutHandler terminates the current session, or every session of the
// account for logout-all. Both run authenticated and CSRF-gated.
type LogoutHandler struct {
	Tokens *service.TokenService
	CSRF   *csrf.Service
	Audit  *service.SecurityLogService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := httpx.ClaimsFromContext(ctx)

	var req logoutRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.RefreshToken != "" {
		if err := h.Tokens.RevokeRefreshToken(ctx, req.RefreshToken); err != nil {
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
			return
		}
	}

	_ = h.CSRF.Revoke(ctx, claims.Subject)
	clearAccessTokenCookie(w)

	h.Audit.LogLogout(ctx, claims.Subject, claims.Role, httpx.ClientIP(r), r.UserAgent(), false)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LogoutHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := httpx.ClaimsFromContext(ctx)

	if err := h.Tokens.RevokeAllUserTokens(ctx, claims.Subject); err != nil {
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
		return
	}

	_ = h.CSRF.Revoke(ctx, claims.Subject)
	clearAccessTokenCookie(w)

	h.Audit.LogLogout(ctx, claims.Subject, claims.Role, httpx.ClientIP(r), r.UserAgent(), true)
	w.WriteHeader(http.StatusNoContent)
}
