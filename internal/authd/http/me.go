package http

import (
	"net/http"

	"github.com/quizforge/quizauth/pkg/authsdk"
	"github.com/quizforge/quizauth/pkg/httpx"
)

// MeHandler serves GET /auth/me from the token claims alone; no store
// round-trip beyond what the guard already did.
type MeHandler struct{}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	principal, ok := httpx.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "no token provided", "")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.UserResponse{
		ID:    principal.ID,
		Email: principal.Email,
		Role:  principal.Role,
	})
}
