package http

import (
	"net/http"

	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/pkg/authsdk"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// LoginHandler serves POST /auth/login.
type LoginHandler struct {
	AuthService *service.AuthService
	Cookies     CookieWriter
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body", "")
		return
	}
	if req.Email == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "email and password are required", "")
		return
	}

	res, err := h.AuthService.Login(ctx, req.Email, req.Password, httpx.OriginFromRequest(r))
	if err != nil {
		writeServiceError(w, log, err)
		return
	}

	h.Cookies.SetRefresh(w, res.Pair.RefreshToken, h.AuthService.RefreshTTL)
	httpx.WriteJSON(w, http.StatusOK, sessionResponse(res))
}

func sessionResponse(res *service.LoginResult) authsdk.SessionResponse {
	return authsdk.SessionResponse{
		User: authsdk.UserResponse{
			ID:    res.User.ID,
			Email: res.User.Email,
			Role:  res.User.Role,
		},
		TokenResponse: authsdk.TokenResponse{
			AccessToken: res.Pair.AccessToken,
			TokenType:   "Bearer",
			ExpiresIn:   int(res.Pair.ExpiresIn.Seconds()),
			CSRFToken:   res.Pair.CSRFToken,
		},
	}
}
