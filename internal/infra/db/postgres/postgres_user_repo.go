package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
)

var _ repository.UserRepository = (*PostgresUserRepo)(nil)

type PostgresUserRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{pool: pool}
}

func (r *PostgresUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	const q = `
SELECT id, telegram_id, COALESCE(genre, ''), COALESCE(protagonist, ''), COALESCE(setting, ''),
       tokens_spent, created_at, updated_at
  FROM users WHERE telegram_id=$1;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	var u model.User
	err = ex.QueryRow(ctx, q, tgID).Scan(&u.ID, &u.TelegramID, &u.Genre, &u.Character, &u.Setting,
		&u.TokensSpent, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return &u, nil
}

// storyColumns whitelists the columns a wizard step may write.
var storyColumns = map[model.StoryField]string{
	model.FieldGenre:     "genre",
	model.FieldCharacter: "protagonist",
	model.FieldSetting:   "setting",
}

func (r *PostgresUserRepo) SetStoryField(ctx context.Context, tx repository.Tx, tgID int64, field model.StoryField, value string) error {
	col, ok := storyColumns[field]
	if !ok || tgID == 0 {
		return domain.ErrInvalidArgument
	}
	q := fmt.Sprintf(`
INSERT INTO users (telegram_id, %[1]s) VALUES ($1, $2)
ON CONFLICT (telegram_id) DO UPDATE SET %[1]s = EXCLUDED.%[1]s, updated_at = NOW();`, col)

	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, q, tgID, value); err != nil {
		return fmt.Errorf("set %s: %w", field, err)
	}
	return nil
}

func (r *PostgresUserRepo) CountUsers(ctx context.Context, tx repository.Tx) (int, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int
	if err := ex.QueryRow(ctx, `SELECT COUNT(*) FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (r *PostgresUserRepo) TotalTokensSpent(ctx context.Context, tx repository.Tx) (int64, error) {
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := ex.QueryRow(ctx, `SELECT COALESCE(SUM(tokens_spent), 0)::BIGINT FROM users;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sum tokens: %w", err)
	}
	return n, nil
}
