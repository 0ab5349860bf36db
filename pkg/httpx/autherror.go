package httpx

import "net/http"

// Machine-readable 401 codes. The client's refresh coordinator keys its
// recovery decision off these: only CodeTokenExpired is retriable (via
// refresh); every other code means the session itself is no longer valid.
const (
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenInvalidated   = "TOKEN_INVALIDATED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeSuspiciousActivity = "SUSPICIOUS_ACTIVITY"
)

// AuthError is an authentication failure with its HTTP mapping attached.
// The guard middleware and the refresh handler both surface these directly.
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string { return e.Message }

func NewAuthError(status int, code, message string) *AuthError {
	return &AuthError{Status: status, Code: code, Message: message}
}

// Shared 401 instances. Messages are deliberately generic.
var (
	ErrTokenExpired       = NewAuthError(http.StatusUnauthorized, CodeTokenExpired, "access token expired")
	ErrInvalidToken       = NewAuthError(http.StatusUnauthorized, CodeInvalidToken, "invalid access token")
	ErrTokenInvalidated   = NewAuthError(http.StatusUnauthorized, CodeTokenInvalidated, "token has been invalidated")
	ErrSessionExpired     = NewAuthError(http.StatusUnauthorized, CodeSessionExpired, "session expired")
	ErrSuspiciousActivity = NewAuthError(http.StatusUnauthorized, CodeSuspiciousActivity, "suspicious activity detected")
)
