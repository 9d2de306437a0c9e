package model

import "fmt"

// Phase is the conversation state of one user in one chat.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhaseAwaitingGenre     Phase = "awaiting_genre"
	PhaseAwaitingCharacter Phase = "awaiting_character"
	PhaseAwaitingSetting   Phase = "awaiting_setting"
	PhaseActive            Phase = "active"
)

// Phases lists every phase in wizard order.
var Phases = []Phase{
	PhaseIdle,
	PhaseAwaitingGenre,
	PhaseAwaitingCharacter,
	PhaseAwaitingSetting,
	PhaseActive,
}

func ParsePhase(s string) (Phase, error) {
	for _, p := range Phases {
		if string(p) == s {
			return p, nil
		}
	}
	return PhaseIdle, fmt.Errorf("unknown phase %q", s)
}

// InWizard reports whether the phase collects one of the story fields.
func (p Phase) InWizard() bool {
	_, _, ok := p.WizardStep()
	return ok
}

// WizardStep returns the field collected in p and the phase that follows it.
func (p Phase) WizardStep() (StoryField, Phase, bool) {
	switch p {
	case PhaseAwaitingGenre:
		return FieldGenre, PhaseAwaitingCharacter, true
	case PhaseAwaitingCharacter:
		return FieldCharacter, PhaseAwaitingSetting, true
	case PhaseAwaitingSetting:
		return FieldSetting, PhaseActive, true
	}
	return "", p, false
}

// InStory is true from the first wizard prompt until the chat ends.
func (p Phase) InStory() bool {
	return p != PhaseIdle
}

// SessionKey identifies the phase slot of a user inside a chat.
type SessionKey struct {
	UserID int64
	ChatID int64
}

func (k SessionKey) String() string {
	return fmt.Sprintf("%d:%d", k.UserID, k.ChatID)
}
