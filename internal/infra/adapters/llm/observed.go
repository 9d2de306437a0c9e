package llm

import (
	"context"
	"time"

	"telegram-story-bot/internal/domain/ports/adapter"
	"telegram-story-bot/internal/infra/metrics"
)

var _ adapter.LLMGateway = (*observedGateway)(nil)

type observedGateway struct {
	inner    adapter.LLMGateway
	provider string
}

// NewObservedGateway records latency, outcome and billed tokens of every call.
func NewObservedGateway(inner adapter.LLMGateway, provider string) adapter.LLMGateway {
	return &observedGateway{inner: inner, provider: provider}
}

func (o *observedGateway) Tokenize(ctx context.Context, text string) (int, error) {
	start := time.Now()
	n, err := o.inner.Tokenize(ctx, text)
	metrics.ObserveLLMCall(o.provider, "tokenize", err == nil, time.Since(start))
	return n, err
}

func (o *observedGateway) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	start := time.Now()
	c, err := o.inner.Complete(ctx, req)
	metrics.ObserveLLMCall(o.provider, "completion", err == nil, time.Since(start))
	if err == nil {
		metrics.AddCompletionTokens(o.provider, c.CompletionTokens)
	}
	return c, err
}
