package service

import (
	"context"

	"github.com/quizforge/quizauth/internal/authd/domain"
	"github.com/quizforge/quizauth/pkg/httpx"
	"github.com/quizforge/quizauth/pkg/slogx"
)

// originSuspicious compares the request origin against the one the session
// was created with. A user-agent change mid-session does not happen in
// normal browser use and always trips it. An IP change alone is common
// (mobile networks, VPNs) so it only logs unless strict checking is on.
func (s *AuthService) originSuspicious(ctx context.Context, session domain.Session, origin httpx.Origin) bool {
	log := slogx.FromContext(ctx)

	if origin.UserAgent != "" && session.UserAgent != "" && origin.UserAgent != session.UserAgent {
		log.Warn("session user-agent mismatch",
			"session_id", session.ID,
			"user_id", session.UserID,
		)
		return true
	}

	if origin.IP != "" && session.OriginIP != "" && origin.IP != session.OriginIP {
		log.Warn("session origin ip changed",
			"session_id", session.ID,
			"user_id", session.UserID,
			"strict", s.StrictIPCheck,
		)
		return s.StrictIPCheck
	}

	return false
}
