package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/quizforge/quizauth/pkg/slogx"
)

// Authenticator resolves a bearer token into a Principal. Implementations
// run the full guard pipeline: signature/expiry verification, blacklist
// check, session load, anomaly check, async activity touch.
//
// When authentication fails after the token itself verified, the returned
// Principal is still populated so logging can reference the actor.
type Authenticator interface {
	Authenticate(ctx context.Context, rawToken string, origin Origin) (Principal, error)
}

// AuthMiddleware guards a route with bearer-token authentication. Failures
// short-circuit with the machine-readable codes the client's refresh
// coordinator switches on; a guard-internal failure (store down) is a 500,
// distinct from the 401 family.
func AuthMiddleware(a Authenticator) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				WriteError(w, http.StatusUnauthorized, "no token provided", "")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			principal, err := a.Authenticate(ctx, raw, OriginFromRequest(r))

			// Attach the principal as soon as the token verified, even on a
			// later-stage failure, so the request log names the actor.
			if principal.ID != "" {
				ctx = ContextWithPrincipal(ctx, principal)
				ctx = slogx.WithAttrs(ctx, "user_id", principal.ID, "session_id", principal.SessionID)
			}

			if err != nil {
				var authErr *AuthError
				if errors.As(err, &authErr) {
					WriteError(w, authErr.Status, authErr.Message, authErr.Code)
					return
				}
				log.Error("authentication guard failed", "err", err)
				WriteError(w, http.StatusInternalServerError, "internal error", "")
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
