package authsdk

// Wire types shared by the server handlers and the client SDK.

// Machine-readable 401 codes the server emits. Only CodeTokenExpired is
// recoverable client-side (via refresh); the rest end the session.
const (
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeInvalidToken       = "INVALID_TOKEN"
	CodeTokenInvalidated   = "TOKEN_INVALIDATED"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeSuspiciousActivity = "SUSPICIOUS_ACTIVITY"
)

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by login, register, and refresh. The refresh
// token itself travels in an HTTP-only cookie, never in the body.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	CSRFToken   string `json:"csrf_token"`
}

// UserResponse describes the authenticated user (GET /auth/me, and embedded
// in login/register responses).
type UserResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// SessionResponse is the login/register payload: the user plus their tokens.
type SessionResponse struct {
	User UserResponse `json:"user"`
	TokenResponse
}

// HealthChecks itemizes dependency state for /readyz.
type HealthChecks struct {
	Database  string `json:"database"`
	Blacklist string `json:"blacklist,omitempty"`
}

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	Status  string        `json:"status"`
	Uptime  string        `json:"uptime"`
	Version string        `json:"version"`
	Checks  *HealthChecks `json:"checks,omitempty"`
}

// ErrorResponse mirrors the server's error envelope. Code is the
// machine-readable 401 family the refresh coordinator keys on; RetryAfter
// is set on 429 responses.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	RetryAfter int    `json:"retryAfter,omitempty"`
}
