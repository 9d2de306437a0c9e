package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/ports/repository"
)

var _ repository.TokenLedger = (*PostgresLedger)(nil)

// PostgresLedger keeps the running token total in users.tokens_spent.
type PostgresLedger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *PostgresLedger {
	return &PostgresLedger{pool: pool}
}

func (l *PostgresLedger) Spent(ctx context.Context, tx repository.Tx, tgID int64) (int64, error) {
	ex, err := getExecutor(l.pool, tx)
	if err != nil {
		return 0, err
	}
	var spent int64
	err = ex.QueryRow(ctx, `SELECT tokens_spent FROM users WHERE telegram_id=$1;`, tgID).Scan(&spent)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read ledger: %w", err)
	}
	return spent, nil
}

func (l *PostgresLedger) Increment(ctx context.Context, tx repository.Tx, tgID int64, amount int64) error {
	if amount < 0 {
		return domain.ErrInvalidArgument
	}
	if amount == 0 {
		return nil
	}
	ex, err := getExecutor(l.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `
UPDATE users SET tokens_spent = tokens_spent + $2, updated_at = NOW()
 WHERE telegram_id=$1;`, tgID, amount)
	if err != nil {
		return fmt.Errorf("increment ledger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
