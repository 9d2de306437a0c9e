package model

import (
	"time"

	"telegram-story-bot/internal/domain"
)

// User is a Telegram user together with the setup of the story they are writing.
// Story fields stay empty until the setup wizard fills them.
type User struct {
	ID          int64
	TelegramID  int64
	Genre       string
	Character   string
	Setting     string
	TokensSpent int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StoryField names one of the three values collected by the setup wizard.
type StoryField string

const (
	FieldGenre     StoryField = "genre"
	FieldCharacter StoryField = "character"
	FieldSetting   StoryField = "setting"
)

func (f StoryField) Valid() bool {
	switch f {
	case FieldGenre, FieldCharacter, FieldSetting:
		return true
	}
	return false
}

// Set stores value into the field named by f.
func (u *User) Set(f StoryField, value string) error {
	switch f {
	case FieldGenre:
		u.Genre = value
	case FieldCharacter:
		u.Character = value
	case FieldSetting:
		u.Setting = value
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// Admits reports whether a user who has already spent `spent` tokens may issue
// another completion. Only a total strictly above the limit is refused.
func Admits(spent, limit int64) bool {
	return spent <= limit
}

// RemainingTokens is never negative.
func RemainingTokens(spent, limit int64) int64 {
	if spent >= limit {
		return 0
	}
	return limit - spent
}
