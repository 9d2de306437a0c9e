package llm

import (
	"fmt"

	"telegram-story-bot/internal/domain"
)

// unavailable tags any provider failure with domain.ErrLLMUnavailable so
// callers only ever need one errors.Is check.
func unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, domain.ErrLLMUnavailable, err)
}
