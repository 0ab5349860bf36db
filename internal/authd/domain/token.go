package domain

import "time"

// RefreshToken is stored by SHA-256 fingerprint only; the opaque value lives
// exclusively in the client's HTTP-only cookie. Rotation revokes the old row
// and inserts a new one inside a single transaction.
type RefreshToken struct {
	ID        string
	UserID    string
	SessionID string
	TokenHash string
	ExpiresAt time.Time
	Revoked   bool
	CreatedAt time.Time
}

// BlacklistEntry marks an access token (by fingerprint) unusable before its
// natural expiry. Entries past ExpiresAt are garbage, the token would be
// rejected by expiry anyway, and housekeeping sweeps them.
type BlacklistEntry struct {
	TokenHash string
	ExpiresAt time.Time
}

// TokenPair is what a successful login, register, or refresh hands back.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	CSRFToken    string
	ExpiresIn    time.Duration
}
