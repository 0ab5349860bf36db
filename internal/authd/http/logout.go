package http

import (
	"net/http"

	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// LogoutHandler serves POST /auth/logout and POST /auth/logout-all. Both
// run behind the auth and CSRF middleware, so the principal in context is
// trusted and the raw token has already verified.
type LogoutHandler struct {
	AuthService *service.AuthService
	Cookies     CookieWriter
}

func (h *LogoutHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	principal, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "no token provided", "")
		return
	}

	if err := h.AuthService.Logout(ctx, bearerToken(r), principal.SessionID); err != nil {
		writeServiceError(w, log, err)
		return
	}

	h.Cookies.ClearRefresh(w)
	w.WriteHeader(http.StatusNoContent)
}

func (h *LogoutHandler) HandleLogoutAll(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	principal, ok := httpx.PrincipalFromContext(ctx)
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "no token provided", "")
		return
	}

	if err := h.AuthService.LogoutAll(ctx, bearerToken(r), principal.ID); err != nil {
		writeServiceError(w, log, err)
		return
	}

	h.Cookies.ClearRefresh(w)
	w.WriteHeader(http.StatusNoContent)
}
