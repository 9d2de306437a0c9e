package adapter

import (
	"context"

	"telegram-story-bot/internal/domain/model"
)

// Message is one entry of the conversation sent to the model.
type Message struct {
	Role string `json:"role"` // "system", "user", "assistant"
	Text string `json:"text"`
}

// CompletionRequest carries everything needed for one completion.
type CompletionRequest struct {
	SystemPrompt string
	History      []model.HistoryTurn
	UserPrompt   string
	// Directive is appended as a trailing system message when set.
	Directive string
}

// Messages lays the request out as system prompt, history, user prompt and
// the optional directive.
func (r CompletionRequest) Messages() []Message {
	out := make([]Message, 0, len(r.History)+3)
	out = append(out, Message{Role: model.RoleSystem.String(), Text: r.SystemPrompt})
	for _, t := range r.History {
		out = append(out, Message{Role: t.Role.String(), Text: t.Message})
	}
	out = append(out, Message{Role: model.RoleUser.String(), Text: r.UserPrompt})
	if r.Directive != "" {
		out = append(out, Message{Role: model.RoleSystem.String(), Text: r.Directive})
	}
	return out
}

// Completion is the assistant answer and the completion tokens billed for it.
type Completion struct {
	Text             string
	CompletionTokens int64
}

// LLMGateway is the port for the language model. Network failures, non-200
// answers and unusable payloads come back wrapping domain.ErrLLMUnavailable.
type LLMGateway interface {
	Tokenize(ctx context.Context, text string) (int, error)
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}
