package httpx

import (
	"context"
	"net/http"

	"github.com/quizforge/quizauth/pkg/cryptox"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// CSRFHeader carries the anti-forgery token on mutating requests.
const CSRFHeader = "X-CSRF-Token"

// CSRFTokenSource resolves the anti-forgery token bound to a session.
type CSRFTokenSource interface {
	SessionCSRFToken(ctx context.Context, sessionID string) (string, error)
}

// CSRFMiddleware validates the per-session anti-forgery token on
// state-changing requests. It must run after AuthMiddleware: without a
// resolved session there is no binding to verify, and the guard fails
// closed rather than passing.
func CSRFMiddleware(source CSRFTokenSource) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			log := slogx.FromContext(ctx)

			presented := r.Header.Get(CSRFHeader)
			principal, ok := PrincipalFromContext(ctx)
			if presented == "" || !ok || principal.SessionID == "" {
				WriteError(w, http.StatusForbidden, "CSRF token required", "")
				return
			}

			expected, err := source.SessionCSRFToken(ctx, principal.SessionID)
			if err != nil {
				log.Error("csrf token lookup failed", "err", err, "session_id", principal.SessionID)
				WriteError(w, http.StatusInternalServerError, "internal error", "")
				return
			}

			if expected == "" || !cryptox.ConstantTimeEquals(presented, expected) {
				log.Warn("csrf token mismatch", "session_id", principal.SessionID)
				WriteError(w, http.StatusForbidden, "Invalid CSRF token", "")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isSafeMethod reports whether the verb is read-only per RFC 7231 and
// therefore exempt from CSRF validation.
func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return true
	}
	return false
}
