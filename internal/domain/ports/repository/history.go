package repository

import (
	"context"

	"telegram-story-bot/internal/domain/model"
)

// -----------------------------
// Conversation history
// -----------------------------

type HistoryRepository interface {
	Append(ctx context.Context, tx Tx, tgID int64, role model.Role, text string) error
	// AllTurns returns turns in insertion order.
	AllTurns(ctx context.Context, tx Tx, tgID int64) ([]model.HistoryTurn, error)
	Clear(ctx context.Context, tx Tx, tgID int64) error
	CountTurns(ctx context.Context, tx Tx, tgID int64) (int, error)
}
