// File: internal/infra/redis/lock.go
package redis

import (
	"context"
	"time"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/ports/repository"

	"github.com/google/uuid"
)

var _ repository.Locker = (*RedisLocker)(nil)

type RedisLocker struct {
	cli     RedisClient
	retries int
	backoff time.Duration
}

func NewLocker(c RedisClient) *RedisLocker {
	return &RedisLocker{cli: c, retries: 5, backoff: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	var lastErr error
	for i := 0; i < l.retries; i++ {
		ok, err := l.cli.SetNX(ctx, lockKey(key), token, ttl)
		if err == nil && ok {
			return token, nil
		}
		lastErr = err
		select {
		case <-time.After(l.backoff): // wait before retrying
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if lastErr != nil {
		return "", lastErr
	}
	return "", domain.ErrUserBusy
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	return l.cli.DelIfEquals(ctx, lockKey(key), token)
}

func lockKey(key string) string { return "story_lock:" + key }
