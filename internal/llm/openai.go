package llm

import (
	"context"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
)

// DefaultOpenAIURL is the OpenAI API base, including the version segment.
const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIConfig holds configuration for the OpenAI client.
type OpenAIConfig struct {
	APIKey   string
	BaseURL  string        // default: DefaultOpenAIURL; any OpenAI-compatible endpoint works
	Model    string        // default: gpt-3.5-turbo
	Timeout  time.Duration // default: 60s
	Logger   *zap.Logger
	Breaker  BreakerSettings
	Observer BreakerObserver
}

// OpenAIClient implements Provider using the official openai-go SDK.
type OpenAIClient struct {
	cfg     OpenAIConfig
	client  openai.Client
	breaker *circuitBreaker
}

// NewOpenAIClient creates a new OpenAI client with the given configuration.
// SDK retries are disabled; the circuit breaker owns failure handling.
func NewOpenAIClient(cfg OpenAIConfig) *OpenAIClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOpenAIURL
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-3.5-turbo"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &OpenAIClient{
		cfg: cfg,
		client: openai.NewClient(
			option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"),
			option.WithMaxRetries(0),
			option.WithRequestTimeout(cfg.Timeout),
		),
		breaker: newCircuitBreaker(ProviderOpenAI, cfg.Breaker, cfg.Logger, cfg.Observer),
	}
}

// Name implements Provider.
func (c *OpenAIClient) Name() string { return ProviderOpenAI }

// Generate sends a chat completion with an optional system message followed
// by the prompt, and returns the first choice's content.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	key, err := resolveKey(req.APIKey, c.cfg.APIKey)
	if err != nil {
		return "", err
	}
	model := req.Model
	if model == "" {
		model = c.cfg.Model
	}
	return c.breaker.call(ctx, func() (string, error) {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
		if req.SystemMessage != "" {
			messages = append(messages, openai.SystemMessage(req.SystemMessage))
		}
		messages = append(messages, openai.UserMessage(req.Prompt))

		resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(model),
			Messages: messages,
		}, option.WithAPIKey(key))
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
			return "", ErrEmptyResponse
		}
		return resp.Choices[0].Message.Content, nil
	})
}

var _ Provider = (*OpenAIClient)(nil)
