package http

import (
	"net/http"

	"github.com/edugate/edugate/pkg/httpx"
)

// MeHandler echoes the verified identity of the caller. Useful for clients
// restoring a session from the cookie.
type MeHandler struct{}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "not authenticated")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse{
		ID:       claims.Subject,
		Name:     claims.Name,
		Role:     claims.Role,
		BranchID: claims.BranchID,
	})
}
