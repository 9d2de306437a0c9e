//go:build !integration

package model

import (
	"errors"
	"testing"

	"telegram-story-bot/internal/domain"
)

// --- Ledger admission ---

func TestAdmits(t *testing.T) {
	cases := []struct {
		spent, limit int64
		want         bool
	}{
		{0, 3000, true},
		{2999, 3000, true},
		{3000, 3000, true},
		{3001, 3000, false},
		{10000, 3000, false},
	}
	for _, tc := range cases {
		if got := Admits(tc.spent, tc.limit); got != tc.want {
			t.Errorf("Admits(%d, %d) = %v, want %v", tc.spent, tc.limit, got, tc.want)
		}
	}
}

func TestRemainingTokens(t *testing.T) {
	if got := RemainingTokens(1000, 3000); got != 2000 {
		t.Errorf("expected 2000 remaining, got %d", got)
	}
	if got := RemainingTokens(3500, 3000); got != 0 {
		t.Errorf("expected 0 remaining once over the limit, got %d", got)
	}
}

// --- User ---

func TestUserSet(t *testing.T) {
	u := &User{TelegramID: 1}
	for f, v := range map[StoryField]string{FieldGenre: "horror", FieldCharacter: "Cleopatra", FieldSetting: "Mars"} {
		if err := u.Set(f, v); err != nil {
			t.Fatalf("Set(%s): %v", f, err)
		}
	}
	if u.Genre != "horror" || u.Character != "Cleopatra" || u.Setting != "Mars" {
		t.Errorf("unexpected user after Set: %+v", u)
	}

	err := u.Set(StoryField("tokens_spent"), "0")
	if !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument for unknown field, got %v", err)
	}
}

// --- Phase ---

func TestWizardStepOrder(t *testing.T) {
	p := PhaseAwaitingGenre
	var fields []StoryField
	for p.InWizard() {
		f, next, _ := p.WizardStep()
		fields = append(fields, f)
		p = next
	}
	if p != PhaseActive {
		t.Fatalf("wizard should end in active, ended in %s", p)
	}
	want := []StoryField{FieldGenre, FieldCharacter, FieldSetting}
	if len(fields) != len(want) {
		t.Fatalf("expected %v, got %v", want, fields)
	}
	for i := range want {
		if fields[i] != want[i] {
			t.Errorf("step %d: expected %s, got %s", i, want[i], fields[i])
		}
	}
}

func TestParsePhase(t *testing.T) {
	for _, p := range Phases {
		got, err := ParsePhase(string(p))
		if err != nil || got != p {
			t.Errorf("ParsePhase(%q) = %q, %v", p, got, err)
		}
	}
	if _, err := ParsePhase("chatting"); err == nil {
		t.Error("expected error for unknown phase")
	}
	if PhaseIdle.InStory() || !PhaseActive.InStory() {
		t.Error("InStory mismatch")
	}
}

func TestRole(t *testing.T) {
	if RoleSystem != 0 || RoleUser != 1 || RoleAssistant != 2 {
		t.Fatal("role codes must stay 0/1/2")
	}
	if Role(5).Valid() {
		t.Error("role 5 should be invalid")
	}
	if RoleAssistant.String() != "assistant" {
		t.Errorf("unexpected role name %q", RoleAssistant.String())
	}
}
