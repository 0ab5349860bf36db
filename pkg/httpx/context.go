package httpx

import (
	"context"
	"net"
	"net/http"
	"strings"
)

type ctxKey string

const (
	CtxKeyPrincipal ctxKey = "principal"
)

// Principal is the authenticated actor attached to the request context by
// AuthMiddleware. It is available to downstream handlers, the CSRF guard,
// and request logging, even before session-level checks complete.
type Principal struct {
	ID        string
	Email     string
	Role      string
	SessionID string
}

func ContextWithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, CtxKeyPrincipal, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(CtxKeyPrincipal).(Principal)
	return p, ok
}

// Origin captures the request signals compared against the session record
// for anomaly detection.
type Origin struct {
	IP        string
	UserAgent string
}

func OriginFromRequest(r *http.Request) Origin {
	return Origin{
		IP:        ClientIP(r),
		UserAgent: r.UserAgent(),
	}
}

// ClientIP extracts the client IP address from the request.
// It handles X-Forwarded-For and X-Real-IP headers for proxied requests.
func ClientIP(r *http.Request) string {
	// Check X-Forwarded-For header (comma-separated list)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	// Check X-Real-IP header
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	// Fallback to RemoteAddr
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
