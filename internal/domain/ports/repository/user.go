package repository

import (
	"context"

	"telegram-story-bot/internal/domain/model"
)

// -----------------------------
// Users
// -----------------------------

type UserRepository interface {
	FindByTelegramID(ctx context.Context, tx Tx, tgID int64) (*model.User, error)
	// SetStoryField creates the user on first use.
	SetStoryField(ctx context.Context, tx Tx, tgID int64, field model.StoryField, value string) error
	CountUsers(ctx context.Context, tx Tx) (int, error)
	TotalTokensSpent(ctx context.Context, tx Tx) (int64, error)
}

// -----------------------------
// Token ledger
// -----------------------------

type TokenLedger interface {
	// Spent is 0 for a user that does not exist yet.
	Spent(ctx context.Context, tx Tx, tgID int64) (int64, error)
	// Increment rejects negative amounts; zero is a no-op.
	Increment(ctx context.Context, tx Tx, tgID int64, amount int64) error
}
