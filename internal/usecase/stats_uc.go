package usecase

import (
	"context"
	"errors"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
	"telegram-story-bot/internal/infra/logging"

	"github.com/rs/zerolog"
)

// Compile-time check
var _ StatsUseCase = (*statsUC)(nil)

type StatsUseCase interface {
	Totals(ctx context.Context) (Totals, error)
	UsageFor(ctx context.Context, tgID int64) (*Usage, error)
}

type Totals struct {
	Users       int   `json:"users"`
	TokensSpent int64 `json:"tokens_spent"`
	TokenLimit  int64 `json:"token_limit_per_user"`
}

// Usage is the per-user report served to admins.
type Usage struct {
	TelegramID      int64  `json:"telegram_id"`
	Genre           string `json:"genre,omitempty"`
	Character       string `json:"character,omitempty"`
	Setting         string `json:"setting,omitempty"`
	TokensSpent     int64  `json:"tokens_spent"`
	TokensRemaining int64  `json:"tokens_remaining"`
	HistoryTurns    int    `json:"history_turns"`
}

type statsUC struct {
	users   repository.UserRepository
	history repository.HistoryRepository
	limit   int64

	log *zerolog.Logger
}

func NewStatsUseCase(users repository.UserRepository, history repository.HistoryRepository, tokensLimitByUser int64, logger *zerolog.Logger) *statsUC {
	return &statsUC{users: users, history: history, limit: tokensLimitByUser, log: logger}
}

func (s *statsUC) Totals(ctx context.Context) (Totals, error) {
	defer logging.TraceDuration(s.log, "StatsUC.Totals")()

	users, err := s.users.CountUsers(ctx, repository.NoTX)
	if err != nil {
		return Totals{}, err
	}
	spent, err := s.users.TotalTokensSpent(ctx, repository.NoTX)
	if err != nil {
		return Totals{}, err
	}
	return Totals{Users: users, TokensSpent: spent, TokenLimit: s.limit}, nil
}

// UsageFor returns domain.ErrNotFound for a user who never started a story.
func (s *statsUC) UsageFor(ctx context.Context, tgID int64) (*Usage, error) {
	if tgID <= 0 {
		return nil, domain.ErrInvalidArgument
	}
	u, err := s.users.FindByTelegramID(ctx, repository.NoTX, tgID)
	if err != nil {
		return nil, err
	}
	turns, err := s.history.CountTurns(ctx, repository.NoTX, tgID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return &Usage{
		TelegramID:      u.TelegramID,
		Genre:           u.Genre,
		Character:       u.Character,
		Setting:         u.Setting,
		TokensSpent:     u.TokensSpent,
		TokensRemaining: model.RemainingTokens(u.TokensSpent, s.limit),
		HistoryTurns:    turns,
	}, nil
}
