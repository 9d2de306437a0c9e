package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
)

var _ repository.HistoryRepository = (*PostgresHistoryRepo)(nil)

type PostgresHistoryRepo struct {
	pool *pgxpool.Pool
}

func NewHistoryRepo(pool *pgxpool.Pool) *PostgresHistoryRepo {
	return &PostgresHistoryRepo{pool: pool}
}

func (r *PostgresHistoryRepo) Append(ctx context.Context, tx repository.Tx, tgID int64, role model.Role, text string) error {
	if !role.Valid() {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	tag, err := ex.Exec(ctx, `
INSERT INTO history_records (user_id, role, message)
SELECT id, $2, $3 FROM users WHERE telegram_id=$1;`, tgID, int16(role), text)
	if err != nil {
		return fmt.Errorf("append turn: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *PostgresHistoryRepo) AllTurns(ctx context.Context, tx repository.Tx, tgID int64) ([]model.HistoryTurn, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, `
SELECT h.id, h.user_id, h.role, h.message, h.created_at
  FROM history_records h
  JOIN users u ON u.id = h.user_id
 WHERE u.telegram_id=$1
 ORDER BY h.id ASC;`, tgID)
	if err != nil {
		return nil, fmt.Errorf("query turns: %w", err)
	}
	defer rows.Close()

	turns := make([]model.HistoryTurn, 0, 16)
	for rows.Next() {
		var (
			t    model.HistoryTurn
			role int16
		)
		if err := rows.Scan(&t.ID, &t.UserID, &role, &t.Message, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan turn: %w", err)
		}
		t.Role = model.Role(role)
		turns = append(turns, t)
	}
	return turns, rows.Err()
}

func (r *PostgresHistoryRepo) Clear(ctx context.Context, tx repository.Tx, tgID int64) error {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, `
DELETE FROM history_records
 WHERE user_id = (SELECT id FROM users WHERE telegram_id=$1);`, tgID); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (r *PostgresHistoryRepo) CountTurns(ctx context.Context, tx repository.Tx, tgID int64) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	err = ex.QueryRow(ctx, `
SELECT COUNT(*) FROM history_records h
  JOIN users u ON u.id = h.user_id
 WHERE u.telegram_id=$1;`, tgID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count turns: %w", err)
	}
	return n, nil
}
