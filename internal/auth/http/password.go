package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edugate/edugate/internal/auth/csrf"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/pkg/httpx"
)

// PasswordHandler changes the authenticated account's password. Success kills
// every session of the account, this one included; the client must log in
// again.
type PasswordHandler struct {
	Users *service.UserService
	CSRF  *csrf.Service
}

type passwordChangeRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func (h *PasswordHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims, _ := httpx.ClaimsFromContext(ctx)

	var req passwordChangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "current_password and new_password are required")
		return
	}

	err := h.Users.ChangePassword(ctx, claims.Subject, req.CurrentPassword, req.NewPassword,
		httpx.ClientIP(r), r.UserAgent())
	if err != nil {
		var policyErr *service.PasswordPolicyError
		switch {
		case errors.As(err, &policyErr):
			httpx.WriteJSON(w, http.StatusBadRequest, map[string]any{
				"error":      "password does not meet the policy",
				"code":       "weak_password",
				"violations": policyErr.Violations,
			})
		case errors.Is(err, service.ErrInvalidCredentials):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "current password incorrect")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "password change failed")
		}
		return
	}

	_ = h.CSRF.Revoke(ctx, claims.Subject)
	clearAccessTokenCookie(w)
	w.WriteHeader(http.StatusNoContent)
}
