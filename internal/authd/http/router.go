package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/quizforge/quizauth/internal/authd/service"
	"github.com/quizforge/quizauth/internal/authd/store"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger
	cookies      CookieWriter

	store store.Store

	AuthService *service.AuthService
	Guard       *service.GuardService

	// Attempts backs the login limiter. In-memory by default; Redis when
	// running more than one instance.
	Attempts   httpx.AttemptStore
	LoginLimit httpx.LoginLimitConfig
}

func NewRouter(
	buildVersion string,
	st store.Store,
	logger *slog.Logger,
	cookieSecure bool,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		logger:       logger,
		cookies:      CookieWriter{Secure: cookieSecure},
		store:        st,
		LoginLimit:   httpx.DefaultLoginLimit,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerAuth()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global
// middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerAuth() {
	// POST /auth/login - credential checks are throttled per email+IP on
	// top of a strict per-IP limit.
	loginHandler := &LoginHandler{AuthService: r.AuthService, Cookies: r.cookies}
	r.Mux.Handle("POST /auth/login",
		httpx.Chain(loginHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
			httpx.LoginLimitMiddleware(r.Attempts, r.LoginLimit),
		),
	)

	// POST /auth/register - strict per-IP limit (public signup endpoint)
	registerHandler := &RegisterHandler{AuthService: r.AuthService, Cookies: r.cookies}
	r.Mux.Handle("POST /auth/register",
		httpx.Chain(registerHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// POST /auth/refresh - authenticates by cookie, not bearer token, so it
	// stays outside the auth middleware. Moderate per-IP limit.
	refreshHandler := &RefreshHandler{AuthService: r.AuthService, Cookies: r.cookies}
	r.Mux.Handle("POST /auth/refresh",
		httpx.Chain(refreshHandler,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Logout endpoints mutate session state, so they sit behind both the
	// auth guard and the CSRF check.
	logoutHandler := &LogoutHandler{AuthService: r.AuthService, Cookies: r.cookies}
	r.Mux.Handle("POST /auth/logout",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogout),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.AuthMiddleware(r.Guard),
			httpx.CSRFMiddleware(r.Guard),
		),
	)
	r.Mux.Handle("POST /auth/logout-all",
		httpx.Chain(http.HandlerFunc(logoutHandler.HandleLogoutAll),
			httpx.RateLimitByIP(httpx.ModerateLimit),
			httpx.AuthMiddleware(r.Guard),
			httpx.CSRFMiddleware(r.Guard),
		),
	)

	// GET /auth/me - read-only, no CSRF needed.
	r.Mux.Handle("GET /auth/me",
		httpx.Chain(&MeHandler{},
			httpx.RateLimitByIP(httpx.LenientLimit),
			httpx.AuthMiddleware(r.Guard),
		),
	)
}

func (r *Router) registerSystem() {
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
