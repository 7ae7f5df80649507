package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/edugate/edugate/internal/auth/csrf"
	"github.com/edugate/edugate/internal/auth/service"
	"github.com/edugate/edugate/pkg/httpx"
	"github.com/edugate/edugate/pkg/slogx"
)

// LoginHandler verifies credentials and establishes a session: a token pair,
// an HTTP-only access-token cookie for browser clients, and a fresh
// anti-forgery token bound to the account.
type LoginHandler struct {
	Users  *service.UserService
	Tokens *service.TokenService
	CSRF   *csrf.Service
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	OTPCode  string `json:"otp_code,omitempty"`
}

type loginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"`
	CSRFToken    string       `json:"csrf_token"`
	User         userResponse `json:"user"`
}

type userResponse struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Role     string `json:"role"`
	BranchID string `json:"branch_id,omitempty"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := slogx.FromContext(ctx)

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	ip := httpx.ClientIP(r)
	u, err := h.Users.Authenticate(ctx, req.Username, req.Password, req.OTPCode, ip, r.UserAgent())
	if err != nil {
		writeLoginError(w, err)
		return
	}

	pair, err := h.Tokens.Issue(ctx, u, ip, r.UserAgent())
	if err != nil {
		l.Error("token issuance failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "could not establish session")
		return
	}

	csrfToken, err := h.CSRF.Issue(ctx, u.ID)
	if err != nil {
		l.Warn("csrf token issuance failed", "err", err)
	}

	setAccessTokenCookie(w, r, pair.AccessToken, int(pair.ExpiresIn.Seconds()))
	httpx.WriteJSON(w, http.StatusOK, loginResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(pair.ExpiresIn.Seconds()),
		CSRFToken:    csrfToken,
		User: userResponse{
			ID:       u.ID,
			Username: u.Username,
			Name:     u.Name,
			Role:     u.Role,
			BranchID: u.BranchID,
		},
	})
}

func writeLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrAccountLocked):
		httpx.WriteError(w, http.StatusLocked, "account_locked", "account temporarily locked, try again later")
	case errors.Is(err, service.ErrMFARequired):
		httpx.WriteError(w, http.StatusUnauthorized, "mfa_required", "a one-time code is required")
	case errors.Is(err, service.ErrInvalidMFACode):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_mfa_code", "the one-time code was rejected")
	case errors.Is(err, service.ErrInvalidCredentials):
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_credentials", "username or password incorrect")
	default:
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "login failed")
	}
}

func setAccessTokenCookie(w http.ResponseWriter, r *http.Request, token string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     httpx.AccessTokenCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearAccessTokenCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     httpx.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
