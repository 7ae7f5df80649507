package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/pkg/httpx"
)

// RefreshHandler rotates a refresh token for a new pair. The presented token
// is dead afterwards whether or not the rotation succeeded.
type RefreshHandler struct {
	Tokens *service.TokenService
	Audit  *service.SecurityLogService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	ip := httpx.ClientIP(r)
	pair, err := h.Tokens.Rotate(ctx, req.RefreshToken, ip, r.UserAgent())
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTokenReuse):
			// Sessions are already revoked; the client must log in again.
			clearAccessTokenCookie(w)
			httpx.WriteError(w, http.StatusUnauthorized, "token_reuse_detected", "session terminated, log in again")
		case errors.Is(err, service.ErrAccountLocked):
			httpx.WriteError(w, http.StatusLocked, "account_locked", "account temporarily locked")
		case errors.Is(err, service.ErrInvalidRefresh):
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_refresh_token", "refresh token rejected")
		default:
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "refresh failed")
		}
		return
	}

	if claims, err := h.Tokens.VerifyAccessToken(ctx, pair.AccessToken); err == nil {
		h.Audit.LogTokenRefreshed(ctx, claims.Subject, claims.Role, ip, r.UserAgent())
	}

	setAccessTokenCookie(w, r, pair.AccessToken, int(pair.ExpiresIn.Seconds()))
	httpx.WriteJSON(w, http.StatusOK, refreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
	})
}
