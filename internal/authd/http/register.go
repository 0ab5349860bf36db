package http

import (
	"net/http"

	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/pkg/authsdk"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// RegisterHandler serves POST /auth/register. A successful registration
// logs the user straight in, so the response matches login.
type RegisterHandler struct {
	AuthService *service.AuthService
	Cookies     CookieWriter
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}

	res, err := h.AuthService.Register(ctx, req.Email, req.Password, httpx.OriginFromRequest(r))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	h.Cookies.SetRefresh(w, res.Pair.RefreshToken, h.AuthService.RefreshTTL)
	httpx.WriteJSON(w, http.StatusCreated, sessionResponse(res))
}
