package authsdk

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"
)

// legacyAccessTokenKey is where very old client builds persisted the access
// token. Never written anymore; scrubbed on every ClearSession so stale
// copies do not outlive the session.
const legacyAccessTokenKey = "quizauth:access_token"

var ErrMalformedToken = errors.New("authsdk: malformed token")

// TokenClaims is the subset of access-token claims the client reads.
type TokenClaims struct {
	Subject   string `json:"sub"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	SessionID string `json:"sid"`
	ExpiresAt int64  `json:"exp"`
}

// TokenStore holds the client's credentials. The access token lives only
// in process memory; a page reload loses it and recovers via refresh. The
// CSRF token is persisted to shared storage so every client instance sends
// the current one.
type TokenStore struct {
	storage Storage
	clock   Clock

	mu     sync.RWMutex
	access string
}

func NewTokenStore(storage Storage, clock Clock) *TokenStore {
	if clock == nil {
		clock = SystemClock
	}
	return &TokenStore{storage: storage, clock: clock}
}

// SetTokens installs a fresh pair after login or refresh.
func (t *TokenStore) SetTokens(accessToken, csrfToken string) error {
	t.mu.Lock()
	t.access = accessToken
	t.mu.Unlock()
	return t.storage.Set(KeyCSRFToken, csrfToken)
}

// ClearSession drops every credential, including legacy persisted ones.
func (t *TokenStore) ClearSession() {
	t.mu.Lock()
	t.access = ""
	t.mu.Unlock()
	_ = t.storage.Remove(KeyCSRFToken)
	_ = t.storage.Remove(legacyAccessTokenKey)
}

func (t *TokenStore) AccessToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.access
}

func (t *TokenStore) CSRFToken() string {
	v, _ := t.storage.Get(KeyCSRFToken)
	return v
}

// IsExpired reports whether the held access token is missing, unreadable,
// or past its exp. Unreadable counts as expired: failing closed costs one
// refresh round-trip, failing open costs a guaranteed 401.
func (t *TokenStore) IsExpired() bool {
	raw := t.AccessToken()
	if raw == "" {
		return true
	}
	claims, err := DecodeClaims(raw)
	if err != nil || claims.ExpiresAt == 0 {
		return true
	}
	return t.clock.Now().Unix() >= claims.ExpiresAt
}

// DecodeClaims reads the payload segment of a compact JWT without
// verifying it. Client-side only: the server never trusts these fields,
// so the client has no reason to carry a verifier.
func DecodeClaims(raw string) (TokenClaims, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return TokenClaims{}, ErrMalformedToken
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return TokenClaims{}, ErrMalformedToken
	}

	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return TokenClaims{}, ErrMalformedToken
	}
	return claims, nil
}

// TimeToExpiry returns how long the held token stays valid, zero when it
// is already expired or absent.
func (t *TokenStore) TimeToExpiry() time.Duration {
	raw := t.AccessToken()
	if raw == "" {
		return 0
	}
	claims, err := DecodeClaims(raw)
	if err != nil {
		return 0
	}
	d := time.Unix(claims.ExpiresAt, 0).Sub(t.clock.Now())
	if d < 0 {
		return 0
	}
	return d
}
