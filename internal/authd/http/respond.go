package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/pkg/httpx"
)

const maxRequestBody = 64 * 1024

// decodeJSON parses a JSON request body into dst with a size cap.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// bearerToken extracts the raw token from the Authorization header. Empty
// when the header is missing or malformed.
func bearerToken(r *http.Request) string {
	authz := r.Header.Get("Authorization")
	if !strings.HasPrefix(authz, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))
}

// writeServiceError maps service-layer errors onto the wire. Unknown errors
// are logged and collapse to a generic 500 so internals never leak.
func writeServiceError(w http.ResponseWriter, log *slog.Logger, err error) {
	var authErr *httpx.AuthError

	switch {
	case errors.As(err, &authErr):
		httpx.WriteError(w, authErr.Status, authErr.Message, authErr.Code)
	case errors.Is(err, service.ErrValidation):
		httpx.WriteError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, service.ErrInvalidCredentials):
		// Same message for bad password and unknown email.
		httpx.WriteError(w, http.StatusUnauthorized, "invalid email or password", "")
	case errors.Is(err, service.ErrEmailTaken):
		httpx.WriteError(w, http.StatusConflict, "email already registered", "")
	default:
		log.Error("request failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "internal error", "")
	}
}
