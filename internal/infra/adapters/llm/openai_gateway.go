package llm

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/pkoukk/tiktoken-go"

	"telegram-story-bot/internal/domain/model"
	"telegram-story-bot/internal/domain/ports/adapter"
)

var _ adapter.LLMGateway = (*OpenAIGateway)(nil)

const providerOpenAI = "openai"

type OpenAIConfig struct {
	APIKey      string
	BaseURL     string // optional, e.g. an OpenAI compatible proxy
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// OpenAIGateway uses the Chat Completions API. Token counting runs locally
// with the model's BPE encoding since the API has no tokenize endpoint.
type OpenAIGateway struct {
	client openai.Client
	cfg    OpenAIConfig

	encMu sync.Mutex
	enc   *tiktoken.Tiktoken
}

func NewOpenAIGateway(cfg OpenAIConfig) (*OpenAIGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai: empty api key")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	return &OpenAIGateway{client: openai.NewClient(opts...), cfg: cfg}, nil
}

func (o *OpenAIGateway) Tokenize(ctx context.Context, text string) (int, error) {
	enc, err := o.encoding()
	if err != nil {
		return 0, unavailable(providerOpenAI, err)
	}
	return len(enc.Encode(text, nil, nil)), nil
}

// encoding loads the BPE ranks on first use; a failed load is retried on the next call.
func (o *OpenAIGateway) encoding() (*tiktoken.Tiktoken, error) {
	o.encMu.Lock()
	defer o.encMu.Unlock()
	if o.enc != nil {
		return o.enc, nil
	}
	enc, err := tiktoken.EncodingForModel(o.cfg.Model)
	if err != nil {
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("load encoding: %w", err)
		}
	}
	o.enc = enc
	return enc, nil
}

func (o *OpenAIGateway) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	params := openai.ChatCompletionNewParams{
		Model:               openai.ChatModel(o.cfg.Model),
		Messages:            toOpenAIMessages(req.Messages()),
		Temperature:         openai.Float(o.cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(o.cfg.MaxTokens)),
	}
	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return adapter.Completion{}, unavailable(providerOpenAI, err)
	}
	if len(resp.Choices) == 0 {
		return adapter.Completion{}, unavailable(providerOpenAI, errors.New("no choices"))
	}
	// Some compatible proxies omit usage; an unbilled completion is never committed.
	if !resp.JSON.Usage.Valid() || resp.Usage.CompletionTokens < 0 {
		return adapter.Completion{}, unavailable(providerOpenAI, errors.New("no usage"))
	}
	return adapter.Completion{
		Text:             resp.Choices[0].Message.Content,
		CompletionTokens: resp.Usage.CompletionTokens,
	}, nil
}

func toOpenAIMessages(msgs []adapter.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case model.RoleSystem.String():
			out = append(out, openai.SystemMessage(m.Text))
		case model.RoleAssistant.String():
			out = append(out, openai.AssistantMessage(m.Text))
		default:
			out = append(out, openai.UserMessage(m.Text))
		}
	}
	return out
}
