package httpx_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/stretchr/testify/require"
)

func TestIPKeyExtractor(t *testing.T) {
	t.Run("extracts from RemoteAddr", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"

		require.Equal(t, "192.168.1.1", httpx.IPKeyExtractor(req))
	})

	t.Run("prefers X-Forwarded-For", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Forwarded-For", "203.0.113.1, 192.168.1.1")

		require.Equal(t, "203.0.113.1", httpx.IPKeyExtractor(req))
	})

	t.Run("uses X-Real-IP if X-Forwarded-For absent", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		req.Header.Set("X-Real-IP", "203.0.113.2")

		require.Equal(t, "203.0.113.2", httpx.IPKeyExtractor(req))
	})
}

func TestJSONFieldKeyExtractor(t *testing.T) {
	extractor := httpx.JSONFieldKeyExtractor("email")

	t.Run("extracts and normalizes the field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/",
			strings.NewReader(`{"email": "  Alice@Example.COM ", "password": "hunter22"}`))

		require.Equal(t, "alice@example.com", extractor(req))
	})

	t.Run("restores the body for the handler", func(t *testing.T) {
		body := `{"email": "bob@example.com"}`
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))

		_ = extractor(req)

		rest, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		require.Equal(t, body, string(rest))
	})

	t.Run("returns empty for missing field", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"password": "x"}`))
		require.Equal(t, "", extractor(req))
	})

	t.Run("returns empty for malformed JSON", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`not json`))
		require.Equal(t, "", extractor(req))
	})
}

func TestCompositeKeyExtractor(t *testing.T) {
	t.Run("combines multiple extractors", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/",
			strings.NewReader(`{"email": "alice@example.com"}`))
		req.RemoteAddr = "192.168.1.1:12345"

		extractor := httpx.CompositeKeyExtractor(":",
			httpx.JSONFieldKeyExtractor("email"),
			httpx.IPKeyExtractor,
		)

		require.Equal(t, "alice@example.com:192.168.1.1", extractor(req))
	})

	t.Run("skips empty values", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		req.RemoteAddr = "192.168.1.1:12345"

		extractor := httpx.CompositeKeyExtractor(":",
			httpx.JSONFieldKeyExtractor("email"),
			httpx.IPKeyExtractor,
		)

		require.Equal(t, "192.168.1.1", extractor(req))
	})
}

func TestMemoryAttemptStore(t *testing.T) {
	t.Run("counts within a window", func(t *testing.T) {
		store := httpx.NewMemoryAttemptStore(time.Minute)
		defer store.Close()

		for i := 1; i <= 3; i++ {
			a, err := store.Touch(context.Background(), "k", time.Minute)
			require.NoError(t, err)
			require.Equal(t, i, a.Count)
		}
	})

	t.Run("expired window is replaced not extended", func(t *testing.T) {
		store := httpx.NewMemoryAttemptStore(time.Minute)
		defer store.Close()

		a, err := store.Touch(context.Background(), "k", 20*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, 1, a.Count)

		time.Sleep(40 * time.Millisecond)

		a, err = store.Touch(context.Background(), "k", 20*time.Millisecond)
		require.NoError(t, err)
		require.Equal(t, 1, a.Count, "attempt after the window starts a fresh count")
	})

	t.Run("keys are independent", func(t *testing.T) {
		store := httpx.NewMemoryAttemptStore(time.Minute)
		defer store.Close()

		_, err := store.Touch(context.Background(), "a", time.Minute)
		require.NoError(t, err)

		b, err := store.Touch(context.Background(), "b", time.Minute)
		require.NoError(t, err)
		require.Equal(t, 1, b.Count)
	})
}

func TestLoginLimitMiddleware(t *testing.T) {
	newLimited := func(t *testing.T, cfg httpx.LoginLimitConfig) http.Handler {
		t.Helper()
		store := httpx.NewMemoryAttemptStore(time.Minute)
		t.Cleanup(store.Close)

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized) // credentials are always wrong here
		})
		return httpx.LoginLimitMiddleware(store, cfg)(handler)
	}

	attempt := func(handler http.Handler, email, ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/auth/login",
			strings.NewReader(`{"email": "`+email+`", "password": "wrong"}`))
		req.RemoteAddr = ip + ":40000"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("sixth attempt in the window is rejected", func(t *testing.T) {
		cfg := httpx.LoginLimitConfig{Limit: 5, Window: 15 * time.Minute}
		handler := newLimited(t, cfg)

		for i := 0; i < 5; i++ {
			rec := attempt(handler, "alice@example.com", "203.0.113.1")
			require.Equal(t, http.StatusUnauthorized, rec.Code, "attempt %d reaches the handler", i+1)
		}

		rec := attempt(handler, "alice@example.com", "203.0.113.1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))

		var resp httpx.ErrorResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Greater(t, resp.RetryAfter, 0)
		require.LessOrEqual(t, resp.RetryAfter, int((15 * time.Minute).Seconds()))
	})

	t.Run("window keys on email plus IP", func(t *testing.T) {
		cfg := httpx.LoginLimitConfig{Limit: 2, Window: time.Minute}
		handler := newLimited(t, cfg)

		attempt(handler, "alice@example.com", "203.0.113.1")
		attempt(handler, "alice@example.com", "203.0.113.1")
		rec := attempt(handler, "alice@example.com", "203.0.113.1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		// Same account from a different address is its own window.
		rec = attempt(handler, "alice@example.com", "203.0.113.2")
		require.Equal(t, http.StatusUnauthorized, rec.Code)

		// Different account from the blocked address too.
		rec = attempt(handler, "bob@example.com", "203.0.113.1")
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("first attempt after the window succeeds", func(t *testing.T) {
		cfg := httpx.LoginLimitConfig{Limit: 1, Window: 30 * time.Millisecond}
		handler := newLimited(t, cfg)

		attempt(handler, "alice@example.com", "203.0.113.1")
		rec := attempt(handler, "alice@example.com", "203.0.113.1")
		require.Equal(t, http.StatusTooManyRequests, rec.Code)

		time.Sleep(50 * time.Millisecond)

		rec = attempt(handler, "alice@example.com", "203.0.113.1")
		require.Equal(t, http.StatusUnauthorized, rec.Code, "window reset lets the attempt through")
	})

	t.Run("keyless request passes through", func(t *testing.T) {
		cfg := httpx.LoginLimitConfig{Limit: 1, Window: time.Minute}
		store := httpx.NewMemoryAttemptStore(time.Minute)
		t.Cleanup(store.Close)

		handler := httpx.LoginLimitMiddleware(store, cfg)(
			http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
			}))

		for n := 0; n < 3; n++ {
			req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{}`))
			req.RemoteAddr = "" // no email, no IP
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			require.Equal(t, http.StatusBadRequest, rec.Code)
		}
	})
}

func TestRateLimitMiddleware(t *testing.T) {
	okHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	t.Run("allows requests under limit", func(t *testing.T) {
		config := httpx.RateLimitConfig{
			RequestsPerWindow: 5,
			Window:            time.Second,
			Burst:             5,
		}
		limited := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(okHandler)

		for i := 0; i < 5; i++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()

			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code, "request %d should succeed", i+1)
		}
	})

	t.Run("blocks requests over limit", func(t *testing.T) {
		config := httpx.RateLimitConfig{
			RequestsPerWindow: 3,
			Window:            time.Minute,
			Burst:             3,
		}
		limited := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(okHandler)

		for n := 0; n < 3; n++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.168.1.1:12345"
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, req)

		require.Equal(t, http.StatusTooManyRequests, rec.Code)
		require.NotEmpty(t, rec.Header().Get("Retry-After"))
	})

	t.Run("different keys are tracked separately", func(t *testing.T) {
		config := httpx.RateLimitConfig{
			RequestsPerWindow: 2,
			Window:            time.Minute,
			Burst:             2,
		}
		limited := httpx.RateLimitMiddleware(config, httpx.IPKeyExtractor)(okHandler)

		for n := 0; n < 2; n++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = "192.168.1.1:12345"
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}

		req1 := httptest.NewRequest(http.MethodGet, "/", nil)
		req1.RemoteAddr = "192.168.1.1:12345"
		rec1 := httptest.NewRecorder()
		limited.ServeHTTP(rec1, req1)
		require.Equal(t, http.StatusTooManyRequests, rec1.Code)

		req2 := httptest.NewRequest(http.MethodGet, "/", nil)
		req2.RemoteAddr = "192.168.1.2:12345"
		rec2 := httptest.NewRecorder()
		limited.ServeHTTP(rec2, req2)
		require.Equal(t, http.StatusOK, rec2.Code)
	})

	t.Run("allows request when key extractor returns empty", func(t *testing.T) {
		config := httpx.RateLimitConfig{
			RequestsPerWindow: 1,
			Window:            time.Minute,
			Burst:             1,
		}
		emptyExtractor := func(r *http.Request) string { return "" }
		limited := httpx.RateLimitMiddleware(config, emptyExtractor)(okHandler)

		for n := 0; n < 3; n++ {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			rec := httptest.NewRecorder()
			limited.ServeHTTP(rec, req)
			require.Equal(t, http.StatusOK, rec.Code)
		}
	})
}

func TestRateLimitProfiles(t *testing.T) {
	require.Less(t, httpx.StrictLimit.RequestsPerWindow, httpx.ModerateLimit.RequestsPerWindow)
	require.Less(t, httpx.ModerateLimit.RequestsPerWindow, httpx.LenientLimit.RequestsPerWindow)
}
