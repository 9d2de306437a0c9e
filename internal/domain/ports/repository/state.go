package repository

import (
	"context"
	"time"

	"telegram-story-bot/internal/domain/model"
)

// PhaseRepository keeps the conversation phase per user and chat.
// Get returns model.PhaseIdle for a key that was never set.
type PhaseRepository interface {
	Get(ctx context.Context, key model.SessionKey) (model.Phase, error)
	Set(ctx context.Context, key model.SessionKey, phase model.Phase) error
}

// Locker hands out short exclusive leases. TryLock returns domain.ErrUserBusy
// when somebody else holds the key.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
