package domain

import "time"

// Session is the durable server-side record behind a browser login. One
// refresh token is active per session at any time; the CSRF token is bound
// 1:1 to the session and rotates with every refresh.
//
// Valid is a one-way flag: once a session is invalidated (logout, anomaly,
// idle timeout) it must never authenticate a request again.
type Session struct {
	ID             string
	UserID         string
	CSRFToken      string
	OriginIP       string
	UserAgent      string
	Valid          bool
	CreatedAt      time.Time
	LastActivityAt time.Time
}

// IdleSince reports how long the session has gone without authenticated
// activity.
func (s Session) IdleSince(now time.Time) time.Duration {
	return now.Sub(s.LastActivityAt)
}
