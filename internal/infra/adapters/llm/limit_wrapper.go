package llm

import (
	"context"

	"telegram-story-bot/internal/domain/ports/adapter"
)

// Compile-time check
var _ adapter.LLMGateway = (*limitedGateway)(nil)

type limitedGateway struct {
	inner adapter.LLMGateway
	sem   chan struct{}
}

// NewLimitedGateway caps the number of in-flight calls to inner.
func NewLimitedGateway(inner adapter.LLMGateway, maxConcurrent int) adapter.LLMGateway {
	if maxConcurrent <= 0 {
		return inner
	}
	return &limitedGateway{
		inner: inner,
		sem:   make(chan struct{}, maxConcurrent),
	}
}

func (l *limitedGateway) acquire(ctx context.Context) error {
	select {
	case l.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *limitedGateway) Tokenize(ctx context.Context, text string) (int, error) {
	if err := l.acquire(ctx); err != nil {
		return 0, unavailable("limiter", err)
	}
	defer func() { <-l.sem }()
	return l.inner.Tokenize(ctx, text)
}

func (l *limitedGateway) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	if err := l.acquire(ctx); err != nil {
		return adapter.Completion{}, unavailable("limiter", err)
	}
	defer func() { <-l.sem }()
	return l.inner.Complete(ctx, req)
}
