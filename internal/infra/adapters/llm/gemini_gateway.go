// File: internal/infra/adapters/llm/gemini_gateway.go
package llm

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/adapter"
)

var _ adapter.LLMGateway = (*GeminiGateway)(nil)

const providerGemini = "gemini"

type GeminiConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

type GeminiGateway struct {
	client *genai.Client
	cfg    GeminiConfig
}

// NewGeminiGateway creates a Gemini gateway using the official SDK.
func NewGeminiGateway(ctx context.Context, cfg GeminiConfig) (*GeminiGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	hc := &http.Client{}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}
	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: hc,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
	})
	if err != nil {
		return nil, err
	}
	return &GeminiGateway{client: c, cfg: cfg}, nil
}

func (g *GeminiGateway) Tokenize(ctx context.Context, text string) (int, error) {
	// CountTokens takes []*genai.Content, not parts.
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}
	resp, err := g.client.Models.CountTokens(ctx, g.cfg.Model, contents, nil)
	if err != nil {
		return 0, unavailable(providerGemini, err)
	}
	return int(resp.TotalTokens), nil
}

func (g *GeminiGateway) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	system, contents := toGenAIContents(req.Messages())
	cfg := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(g.cfg.Temperature)),
		MaxOutputTokens: int32(g.cfg.MaxTokens),
	}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, cfg)
	if err != nil {
		return adapter.Completion{}, unavailable(providerGemini, err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		return adapter.Completion{}, unavailable(providerGemini, errors.New("no candidates"))
	}
	if resp.UsageMetadata == nil || resp.UsageMetadata.CandidatesTokenCount < 0 {
		return adapter.Completion{}, unavailable(providerGemini, errors.New("no usage metadata"))
	}
	return adapter.Completion{
		Text:             resp.Text(),
		CompletionTokens: int64(resp.UsageMetadata.CandidatesTokenCount),
	}, nil
}

// toGenAIContents moves the leading system prompt into the system instruction.
// Gemini has no system role inside the history, so later system messages
// (the closing directive) are sent as user turns.
func toGenAIContents(msgs []adapter.Message) (string, []*genai.Content) {
	var system string
	if len(msgs) > 0 && msgs[0].Role == model.RoleSystem.String() {
		system = msgs[0].Text
		msgs = msgs[1:]
	}
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := genai.Role(genai.RoleUser)
		if strings.EqualFold(m.Role, model.RoleAssistant.String()) {
			role = genai.RoleModel
		}
		out = append(out, genai.NewContentFromText(m.Text, role))
	}
	return system, out
}
