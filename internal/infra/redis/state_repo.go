package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
)

var _ repository.PhaseRepository = (*PhaseRepo)(nil)

type phaseRecord struct {
	Phase     model.Phase `json:"phase"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// PhaseRepo keeps conversation phases in Redis so they survive restarts and
// are shared between replicas. Idle is stored as a missing key.
type PhaseRepo struct {
	client RedisClient
	ttl    time.Duration
}

func NewPhaseRepo(client RedisClient, ttl time.Duration) *PhaseRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &PhaseRepo{client: client, ttl: ttl}
}

func (s *PhaseRepo) phaseKey(key model.SessionKey) string {
	return fmt.Sprintf("story_phase:%s", key)
}

func (s *PhaseRepo) Get(ctx context.Context, key model.SessionKey) (model.Phase, error) {
	data, err := s.client.Get(ctx, s.phaseKey(key))
	if IsNil(err) {
		return model.PhaseIdle, nil
	}
	if err != nil {
		return model.PhaseIdle, err
	}

	var rec phaseRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return model.PhaseIdle, err
	}
	return model.ParsePhase(string(rec.Phase))
}

func (s *PhaseRepo) Set(ctx context.Context, key model.SessionKey, phase model.Phase) error {
	if phase == model.PhaseIdle {
		return s.client.Del(ctx, s.phaseKey(key))
	}
	data, err := json.Marshal(phaseRecord{Phase: phase, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.phaseKey(key), data, s.ttl)
}
