package http

import (
	"errors"
	"net/http"

	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/pkg/authsdk"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// RefreshHandler serves POST /auth/refresh. The refresh token arrives in
// the HTTP-only cookie, never in the body, and every success rotates it.
// No CSRF check here: the rotated CSRF token is the response, and a forged
// refresh leaks nothing to the attacker's page.
type RefreshHandler struct {
	AuthService *service.AuthService
	Cookies     CookieWriter
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	cookie, err := r.Cookie(RefreshCookieName)
	if err != nil || cookie.Value == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "no refresh token", httpx.CodeInvalidToken)
		return
	}

	pair, err := h.AuthService.Refresh(ctx, cookie.Value, httpx.OriginFromRequest(r))
	if err != nil {
		// A dead refresh token means the session is gone; drop the cookie so
		// the browser stops replaying it. A store failure is not a verdict on
		// the token, so the cookie stays and the client can retry.
		var authErr *httpx.AuthError
		if errors.As(err, &authErr) {
			h.Cookies.ClearRefresh(w)
		}
		writeServiceError(w, log, err)
		return
	}

	h.Cookies.SetRefresh(w, pair.RefreshToken, h.AuthService.RefreshTTL)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenResponse{
		AccessToken: pair.AccessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int(pair.ExpiresIn.Seconds()),
		CSRFToken:   pair.CSRFToken,
	})
}
