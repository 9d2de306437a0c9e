package memory

import (
	"context"
	"sync"

	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
)

var _ repository.PhaseRepository = (*PhaseStore)(nil)

// PhaseStore keeps conversation phases in process memory; they reset to idle
// on restart.
type PhaseStore struct {
	mu     sync.RWMutex
	phases map[model.SessionKey]model.Phase
}

func NewPhaseStore() *PhaseStore {
	return &PhaseStore{phases: make(map[model.SessionKey]model.Phase)}
}

func (s *PhaseStore) Get(ctx context.Context, key model.SessionKey) (model.Phase, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if p, ok := s.phases[key]; ok {
		return p, nil
	}
	return model.PhaseIdle, nil
}

func (s *PhaseStore) Set(ctx context.Context, key model.SessionKey, phase model.Phase) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if phase == model.PhaseIdle {
		delete(s.phases, key)
		return nil
	}
	s.phases[key] = phase
	return nil
}

// Len is the number of sessions outside idle.
func (s *PhaseStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.phases)
}
