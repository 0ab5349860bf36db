package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotAuthenticated is returned by calls that need a session when the
// client holds none.
var ErrNotAuthenticated = errors.New("authsdk: not authenticated")

// APIError is a non-2xx response decoded from the server's error envelope.
type APIError struct {
	Status     int
	Code       string
	Message    string
	RetryAfter int
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("authsdk: %s (%d %s)", e.Message, e.Status, e.Code)
	}
	return fmt.Sprintf("authsdk: %s (%d)", e.Message, e.Status)
}

// Doer is the transport surface, satisfied by *http.Client.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an authenticated API client. It owns a TokenStore, attaches
// credentials to outgoing requests, and recovers transparently from access
// token expiry: on a TOKEN_EXPIRED 401 it refreshes once and replays the
// request. Concurrent expiries share one refresh flight.
//
// Every other 401 code means the session is dead. The client clears its
// credentials, broadcasts the logout through shared storage, and invokes
// the forced-logout handler. Transport errors do neither: a flaky network
// must not log the user out.
type Client struct {
	baseURL string
	doer    Doer
	tokens  *TokenStore
	storage Storage
	clock   Clock

	refreshGroup singleflight.Group

	onForcedLogout func(code string)

	mu        sync.Mutex
	loggedOut bool
}

type Option func(*Client)

// WithDoer replaces the HTTP transport.
func WithDoer(d Doer) Option { return func(c *Client) { c.doer = d } }

// WithStorage replaces the shared storage (default in-memory).
func WithStorage(s Storage) Option { return func(c *Client) { c.storage = s } }

// WithClock injects a Clock for tests.
func WithClock(clk Clock) Option { return func(c *Client) { c.clock = clk } }

// WithForcedLogoutHandler registers fn to run when the server terminates
// the session. The code is one of the 401 family constants.
func WithForcedLogoutHandler(fn func(code string)) Option {
	return func(c *Client) { c.onForcedLogout = fn }
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		clock:   SystemClock,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.storage == nil {
		c.storage = NewMemStorage()
	}
	if c.doer == nil {
		// The refresh token travels in an HTTP-only cookie; the jar is what
		// carries it between calls.
		jar, _ := cookiejar.New(nil)
		c.doer = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	c.tokens = NewTokenStore(c.storage, c.clock)
	return c
}

// Tokens exposes the underlying token store, mainly for the activity
// monitor and tests.
func (c *Client) Tokens() *TokenStore { return c.tokens }

// Storage exposes the shared storage so an ActivityMonitor can be built on
// the same one.
func (c *Client) Storage() Storage { return c.storage }

// Login authenticates and installs the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*SessionResponse, error) {
	var out SessionResponse
	err := c.postJSON(ctx, "/auth/login", LoginRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	c.installSession(out.AccessToken, out.CSRFToken)
	return &out, nil
}

// Register creates an account and installs the returned session.
func (c *Client) Register(ctx context.Context, email, password string) (*SessionResponse, error) {
	var out SessionResponse
	err := c.postJSON(ctx, "/auth/register", RegisterRequest{Email: email, Password: password}, &out)
	if err != nil {
		return nil, err
	}
	c.installSession(out.AccessToken, out.CSRFToken)
	return &out, nil
}

// Me fetches the authenticated user.
func (c *Client) Me(ctx context.Context) (*UserResponse, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var out UserResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Logout ends the current session server-side and locally, and signals
// other client instances through shared storage.
func (c *Client) Logout(ctx context.Context) error {
	if c.tokens.AccessToken() == "" {
		return ErrNotAuthenticated
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout", nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err == nil {
		resp.Body.Close()
	}

	// Local state is cleared even when the server call failed; the user
	// asked to log out and the session tokens must not linger.
	c.tokens.ClearSession()
	c.broadcastLogout()
	return err
}

// LogoutAll ends every session of the user on every device.
func (c *Client) LogoutAll(ctx context.Context) error {
	if c.tokens.AccessToken() == "" {
		return ErrNotAuthenticated
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/logout-all", nil)
	if err != nil {
		return err
	}
	resp, err := c.Do(req)
	if err == nil {
		resp.Body.Close()
	}

	c.tokens.ClearSession()
	c.broadcastLogout()
	return err
}

// Refresh forces a token refresh, single-flighted with any concurrent
// automatic refreshes.
func (c *Client) Refresh(ctx context.Context) error {
	_, err, _ := c.refreshGroup.Do("refresh", func() (any, error) {
		return nil, c.doRefresh(ctx)
	})
	return err
}

// Do executes an authenticated request. The request body, if any, must be
// replayable (GetBody set); bodies built from byte slices already are.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if err := ensureReplayable(req); err != nil {
		return nil, err
	}

	resp, err := c.send(req)
	if err != nil {
		return nil, err
	}

	code := c.authFailureCode(resp)
	if code == "" {
		return resp, nil
	}
	resp.Body.Close()

	if code != CodeTokenExpired {
		// The session itself is dead; refreshing cannot help.
		c.forceLogout(code)
		return nil, &APIError{Status: http.StatusUnauthorized, Code: code, Message: "session terminated"}
	}

	if err := c.Refresh(req.Context()); err != nil {
		return nil, err
	}

	retry, err := cloneRequest(req)
	if err != nil {
		return nil, err
	}
	resp, err = c.send(retry)
	if err != nil {
		return nil, err
	}

	// A 401 on the replayed request is final; retrying again would loop.
	if code := c.authFailureCode(resp); code != "" {
		resp.Body.Close()
		c.forceLogout(code)
		return nil, &APIError{Status: http.StatusUnauthorized, Code: code, Message: "session terminated"}
	}
	return resp, nil
}

// send attaches credentials and runs the request once. Non-auth error
// statuses are decoded into *APIError.
func (c *Client) send(req *http.Request) (*http.Response, error) {
	if token := c.tokens.AccessToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if mutating(req.Method) {
		if csrf := c.tokens.CSRFToken(); csrf != "" {
			req.Header.Set("X-CSRF-Token", csrf)
		}
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 && resp.StatusCode != http.StatusUnauthorized {
		defer resp.Body.Close()
		return nil, decodeAPIError(resp)
	}
	return resp, nil
}

// authFailureCode returns the machine-readable code of a 401 response, or
// "" for any other response. The body is restored so callers can still
// read it.
func (c *Client) authFailureCode(resp *http.Response) string {
	if resp.StatusCode != http.StatusUnauthorized {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
	resp.Body = io.NopCloser(bytes.NewReader(raw))
	if err != nil {
		return CodeInvalidToken
	}

	var er ErrorResponse
	if json.Unmarshal(raw, &er) != nil || er.Code == "" {
		return CodeInvalidToken
	}
	return er.Code
}

// doRefresh performs the actual refresh round-trip. Only one runs at a
// time via the singleflight group.
func (c *Client) doRefresh(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodPost, "/auth/refresh", nil)
	if err != nil {
		return err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		// Transport failure: keep the session, the caller may retry when
		// the network recovers.
		return fmt.Errorf("refresh request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		code := c.authFailureCode(resp)
		c.forceLogout(code)
		return &APIError{Status: resp.StatusCode, Code: code, Message: "refresh rejected"}
	}
	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	var out TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}

	c.installSession(out.AccessToken, out.CSRFToken)
	return nil
}

// installSession stores a fresh pair and re-arms forced-logout reporting.
func (c *Client) installSession(accessToken, csrfToken string) {
	_ = c.tokens.SetTokens(accessToken, csrfToken)
	c.mu.Lock()
	c.loggedOut = false
	c.mu.Unlock()
}

// forceLogout clears the session exactly once per session and notifies the
// application.
func (c *Client) forceLogout(code string) {
	c.mu.Lock()
	if c.loggedOut {
		c.mu.Unlock()
		return
	}
	c.loggedOut = true
	c.mu.Unlock()

	c.tokens.ClearSession()
	c.broadcastLogout()
	if c.onForcedLogout != nil {
		c.onForcedLogout(code)
	}
}

// broadcastLogout signals other client instances via shared storage.
func (c *Client) broadcastLogout() {
	_ = c.storage.Set(KeyLogout, fmt.Sprintf("%d", c.clock.Now().UnixMilli()))
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// postJSON runs an unauthenticated POST (login, register) and decodes the
// success body.
func (c *Client) postJSON(ctx context.Context, path string, body, out any) error {
	req, err := c.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return err
	}

	resp, err := c.doer.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return decodeAPIError(resp)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Message: resp.Status}

	var er ErrorResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4096)).Decode(&er); err == nil && er.Error != "" {
		apiErr.Message = er.Error
		apiErr.Code = er.Code
		apiErr.RetryAfter = er.RetryAfter
	}
	return apiErr
}

func mutating(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions, http.MethodTrace:
		return false
	}
	return true
}

// ensureReplayable guarantees req can be cloned for the post-refresh
// retry.
func ensureReplayable(req *http.Request) error {
	if req.Body == nil || req.GetBody != nil {
		return nil
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("buffer request body: %w", err)
	}
	req.Body = io.NopCloser(bytes.NewReader(raw))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(raw)), nil
	}
	return nil
}

func cloneRequest(req *http.Request) (*http.Request, error) {
	clone := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		clone.Body = body
	}
	return clone, nil
}
