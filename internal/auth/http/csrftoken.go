package http

import (
	"net/http"

	"github.com/edugate/edugate/internal/auth/csrf"
	"github.com/edugate/edugate/pkg/httpx"
	"github.com/edugate/edugate/pkg/slogx"
)

// CSRFTokenHandler issues (or refreshes) the caller's anti-forgery token.
// Authenticated callers get a token bound to their account; anonymous ones
// get a token bound to their address, for pre-login forms.
type CSRFTokenHandler struct {
	CSRF *csrf.Service
}

func (h *CSRFTokenHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token, err := h.CSRF.Issue(ctx, csrf.SessionID(r))
	if err != nil {
		slogx.FromContext(ctx).Error("csrf token issuance failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not issue token")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, map[string]any{
		"csrf_token": token,
		"expires_in": int64(csrf.TokenTTL.Seconds()),
	})
}
