package http

import (
	"net/http"
	"time"
)

// RefreshCookieName carries the opaque refresh token. HTTP-only so page
// scripts never see it; scoped to /auth so it only travels to the auth
// endpoints that need it.
const RefreshCookieName = "refresh_token"

const refreshCookiePath = "/auth"

// CookieWriter stamps the refresh cookie consistently across handlers.
type CookieWriter struct {
	// Secure should be true everywhere except local development over plain
	// HTTP.
	Secure bool
}

func (c CookieWriter) SetRefresh(w http.ResponseWriter, token string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    token,
		Path:     refreshCookiePath,
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}

func (c CookieWriter) ClearRefresh(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    "",
		Path:     refreshCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteStrictMode,
	})
}
