//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v4"

	"telegram-story-bot/internal/domain"
	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/repository"
)

func TestUserRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}

	repo := NewUserRepo(testPool)
	ctx := context.Background()

	t.Run("wizard fields create then update the user", func(t *testing.T) {
		cleanup(t)

		if _, err := repo.FindByTelegramID(ctx, nil, 777); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("expected ErrNotFound before the wizard, got %v", err)
		}
		for f, v := range map[model.StoryField]string{
			model.FieldGenre:     "horror",
			model.FieldCharacter: "Harry Potter",
			model.FieldSetting:   "Star Wars",
		} {
			if err := repo.SetStoryField(ctx, nil, 777, f, v); err != nil {
				t.Fatalf("SetStoryField(%s): %v", f, err)
			}
		}
		if err := repo.SetStoryField(ctx, nil, 777, model.FieldGenre, "comedy"); err != nil {
			t.Fatalf("overwrite genre: %v", err)
		}

		u, err := repo.FindByTelegramID(ctx, nil, 777)
		if err != nil {
			t.Fatalf("FindByTelegramID: %v", err)
		}
		if u.Genre != "comedy" || u.Character != "Harry Potter" || u.Setting != "Star Wars" {
			t.Errorf("unexpected story fields: %+v", u)
		}
		if u.TokensSpent != 0 {
			t.Errorf("new user should start at 0 tokens, got %d", u.TokensSpent)
		}

		n, err := repo.CountUsers(ctx, nil)
		if err != nil || n != 1 {
			t.Errorf("CountUsers = %d, %v; want 1", n, err)
		}
	})

	t.Run("rejects unknown field", func(t *testing.T) {
		err := repo.SetStoryField(ctx, nil, 777, model.StoryField("tokens_spent"), "1")
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestLedger_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)

	users := NewUserRepo(testPool)
	ledger := NewLedger(testPool)
	ctx := context.Background()

	spent, err := ledger.Spent(ctx, nil, 42)
	if err != nil || spent != 0 {
		t.Fatalf("unknown user should have spent 0, got %d, %v", spent, err)
	}
	if err := ledger.Increment(ctx, nil, 42, 10); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("increment for unknown user: expected ErrNotFound, got %v", err)
	}

	if err := users.SetStoryField(ctx, nil, 42, model.FieldGenre, "fantasy"); err != nil {
		t.Fatal(err)
	}
	for _, n := range []int64{120, 0, 300} {
		if err := ledger.Increment(ctx, nil, 42, n); err != nil {
			t.Fatalf("Increment(%d): %v", n, err)
		}
	}
	if err := ledger.Increment(ctx, nil, 42, -1); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("negative increment: expected ErrInvalidArgument, got %v", err)
	}

	spent, err = ledger.Spent(ctx, nil, 42)
	if err != nil || spent != 420 {
		t.Errorf("Spent = %d, %v; want 420", spent, err)
	}
	total, err := users.TotalTokensSpent(ctx, nil)
	if err != nil || total != 420 {
		t.Errorf("TotalTokensSpent = %d, %v; want 420", total, err)
	}
}

func TestHistoryRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)

	users := NewUserRepo(testPool)
	history := NewHistoryRepo(testPool)
	ctx := context.Background()

	if err := history.Append(ctx, nil, 5, model.RoleUser, "orphan"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("append without user: expected ErrNotFound, got %v", err)
	}
	if err := users.SetStoryField(ctx, nil, 5, model.FieldGenre, "sci-fi"); err != nil {
		t.Fatal(err)
	}

	want := []struct {
		role model.Role
		text string
	}{
		{model.RoleUser, "a ship lands"},
		{model.RoleAssistant, "the hatch opens"},
		{model.RoleUser, "who steps out?"},
		{model.RoleAssistant, "a cat"},
	}
	for _, w := range want {
		if err := history.Append(ctx, nil, 5, w.role, w.text); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	turns, err := history.AllTurns(ctx, nil, 5)
	if err != nil {
		t.Fatalf("AllTurns: %v", err)
	}
	if len(turns) != len(want) {
		t.Fatalf("expected %d turns, got %d", len(want), len(turns))
	}
	for i, w := range want {
		if turns[i].Role != w.role || turns[i].Message != w.text {
			t.Errorf("turn %d = (%s, %q), want (%s, %q)", i, turns[i].Role, turns[i].Message, w.role, w.text)
		}
	}
	if n, _ := history.CountTurns(ctx, nil, 5); n != 4 {
		t.Errorf("CountTurns = %d, want 4", n)
	}

	if err := history.Clear(ctx, nil, 5); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	turns, err = history.AllTurns(ctx, nil, 5)
	if err != nil || len(turns) != 0 {
		t.Errorf("expected empty history after Clear, got %d, %v", len(turns), err)
	}
	if _, err := users.FindByTelegramID(ctx, nil, 5); err != nil {
		t.Errorf("Clear must keep the user: %v", err)
	}
	if err := history.Clear(ctx, nil, 999); err != nil {
		t.Errorf("Clear for unknown user should be a no-op, got %v", err)
	}
}

func TestTxManager_RollsBackCommitTriple(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode.")
	}
	cleanup(t)

	users := NewUserRepo(testPool)
	history := NewHistoryRepo(testPool)
	ledger := NewLedger(testPool)
	tm := NewTxManager(testPool)
	ctx := context.Background()

	if err := users.SetStoryField(ctx, nil, 9, model.FieldGenre, "noir"); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("reply failed")
	err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := history.Append(ctx, tx, 9, model.RoleUser, "rain"); err != nil {
			return err
		}
		if err := history.Append(ctx, tx, 9, model.RoleAssistant, "neon"); err != nil {
			return err
		}
		if err := ledger.Increment(ctx, tx, 9, 50); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected the callback error, got %v", err)
	}

	if n, _ := history.CountTurns(ctx, nil, 9); n != 0 {
		t.Errorf("rolled back turns are visible: %d", n)
	}
	if spent, _ := ledger.Spent(ctx, nil, 9); spent != 0 {
		t.Errorf("rolled back ledger increment is visible: %d", spent)
	}
}
