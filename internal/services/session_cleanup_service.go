package services

import (
	"context"
	"time"

	"github.com/poofware/mono-repo/backend/services/onboarding-service/internal/utils"
)

// SessionCleanupService drops wizard sessions nobody has touched within
// the TTL. It runs from cron.
type SessionCleanupService struct {
	sessions SessionService
	ttl      time.Duration
	now      func() time.Time
}

func NewSessionCleanupService(sessions SessionService, ttl time.Duration) *SessionCleanupService {
	return &SessionCleanupService{sessions: sessions, ttl: ttl, now: time.Now}
}

func (s *SessionCleanupService) SweepExpired(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	cutoff := s.now().Add(-s.ttl)
	swept := s.sessions.SweepIdle(cutoff)
	if swept > 0 {
		utils.Logger.Infof("[SessionCleanup] Swept %d idle wizard session(s) older than %s", swept, s.ttl)
	} else {
		utils.Logger.Debug("[SessionCleanup] No idle wizard sessions")
	}
	return nil
}
