// File: internal/infra/adapters/llm/yandex_gateway.go
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"telegram-story-bot/internal/domain/ports/adapter"
)

// Compile-time assurance this gateway satisfies the port
var _ adapter.LLMGateway = (*YandexGateway)(nil)

const providerYandex = "yandex"

type YandexConfig struct {
	APIKey      string
	FolderID    string
	BaseURL     string // e.g., https://llm.api.cloud.yandex.net/foundationModels/v1
	Model       string // e.g., yandexgpt-lite
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// YandexGateway talks to the Foundation Models text API over plain HTTP.
type YandexGateway struct {
	cfg      YandexConfig
	modelURI string
	client   *http.Client
}

func NewYandexGateway(cfg YandexConfig) (*YandexGateway, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("yandex: empty api key")
	}
	if cfg.FolderID == "" {
		return nil, errors.New("yandex: empty folder id")
	}
	if cfg.Model == "" {
		cfg.Model = "yandexgpt-lite"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &YandexGateway{
		cfg:      cfg,
		modelURI: fmt.Sprintf("gpt://%s/%s", cfg.FolderID, cfg.Model),
		client:   &http.Client{Timeout: cfg.Timeout},
	}, nil
}

func (y *YandexGateway) Tokenize(ctx context.Context, text string) (int, error) {
	reqBody := struct {
		ModelURI string `json:"modelUri"`
		Text     string `json:"text"`
	}{ModelURI: y.modelURI, Text: text}

	var payload struct {
		Tokens []json.RawMessage `json:"tokens"`
	}
	if err := y.post(ctx, "/tokenize", reqBody, &payload); err != nil {
		return 0, unavailable(providerYandex, err)
	}
	if payload.Tokens == nil {
		return 0, unavailable(providerYandex, errors.New("tokenize: no tokens field"))
	}
	return len(payload.Tokens), nil
}

type yandexCompletionOptions struct {
	Stream      bool    `json:"stream"`
	Temperature float64 `json:"temperature"`
	MaxTokens   string  `json:"maxTokens"`
}

type yandexCompletionRequest struct {
	ModelURI          string                  `json:"modelUri"`
	CompletionOptions yandexCompletionOptions `json:"completionOptions"`
	Messages          []adapter.Message       `json:"messages"`
}

type yandexCompletionResponse struct {
	Result struct {
		Alternatives []struct {
			Message adapter.Message `json:"message"`
			Status  string          `json:"status"`
		} `json:"alternatives"`
		Usage *struct {
			InputTextTokens  flexInt  `json:"inputTextTokens"`
			CompletionTokens *flexInt `json:"completionTokens"`
			TotalTokens      flexInt  `json:"totalTokens"`
		} `json:"usage"`
	} `json:"result"`
}

func (y *YandexGateway) Complete(ctx context.Context, req adapter.CompletionRequest) (adapter.Completion, error) {
	reqBody := yandexCompletionRequest{
		ModelURI: y.modelURI,
		CompletionOptions: yandexCompletionOptions{
			Stream:      false,
			Temperature: y.cfg.Temperature,
			MaxTokens:   strconv.Itoa(y.cfg.MaxTokens),
		},
		Messages: req.Messages(),
	}

	var payload yandexCompletionResponse
	if err := y.post(ctx, "/completion", reqBody, &payload); err != nil {
		return adapter.Completion{}, unavailable(providerYandex, err)
	}
	if len(payload.Result.Alternatives) == 0 {
		return adapter.Completion{}, unavailable(providerYandex, errors.New("completion: no alternatives"))
	}
	usage := payload.Result.Usage
	if usage == nil || usage.CompletionTokens == nil {
		return adapter.Completion{}, unavailable(providerYandex, errors.New("completion: no usage"))
	}
	if *usage.CompletionTokens < 0 {
		return adapter.Completion{}, unavailable(providerYandex, fmt.Errorf("completion: negative usage %d", *usage.CompletionTokens))
	}
	return adapter.Completion{
		Text:             payload.Result.Alternatives[0].Message.Text,
		CompletionTokens: int64(*usage.CompletionTokens),
	}, nil
}

func (y *YandexGateway) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, y.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Api-Key "+y.cfg.APIKey)

	resp, err := y.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("http %d on %s: %s", resp.StatusCode, path, strings.TrimSpace(string(snippet)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// flexInt accepts both 42 and "42"; the API encodes int64 counters as strings.
type flexInt int64

func (f *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("parse token count %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}
