package llm

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"telegram-story-bot/internal/domain/ports/adapter"
)

var _ adapter.LLMGateway = (*NoopGateway)(nil)

// NoopGateway is used in dev mode when no provider key is configured.
// It estimates tokens from text length and answers with a canned paragraph.
type NoopGateway struct {
	delay time.Duration
}

func NewNoopGateway(delay time.Duration) *NoopGateway {
	return &NoopGateway{delay: delay}
}

func (n *NoopGateway) Tokenize(ctx context.Context, text string) (int, error) {
	return EstimateTokens(text), nil
}

func (n *NoopGateway) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	select {
	case <-time.After(n.delay):
	case <-ctx.Done():
		return adapter.Completion{}, unavailable("noop", ctx.Err())
	}
	text := fmt.Sprintf("(noop) The story goes on after %q.", req.UserPrompt)
	if req.Directive != "" {
		text = "(noop) And so the story came to its end."
	}
	return adapter.Completion{Text: text, CompletionTokens: int64(EstimateTokens(text))}, nil
}

// EstimateTokens approximates one token per four characters.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
