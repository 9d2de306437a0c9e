package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrInvalidExecContext = errors.New("invalid repository execution context")
	ErrUserBusy           = errors.New("user has a request in flight")

	// Story pipeline outcomes, each answered with its own reply.
	ErrLLMUnavailable      = errors.New("llm service unavailable")
	ErrTokenBudgetExceeded = errors.New("token budget exceeded")
	ErrRequestTooLong      = errors.New("request exceeds token limit")
)
