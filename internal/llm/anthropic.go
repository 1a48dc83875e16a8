package llm

import (
	"context"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultAnthropicURL is the public Anthropic API endpoint.
const DefaultAnthropicURL = "https://api.anthropic.com"

// AnthropicConfig holds configuration for the Anthropic client.
type AnthropicConfig struct {
	APIKey   string
	BaseURL  string        // default: DefaultAnthropicURL
	Model    string        // default: claude-2
	Timeout  time.Duration // default: 60s
	Logger   *zap.Logger
	Breaker  BreakerSettings
	Observer BreakerObserver
}

// AnthropicClient implements Provider using the Anthropic Messages API.
type AnthropicClient struct {
	cfg     AnthropicConfig
	client  *http.Client
	breaker *circuitBreaker
}

// NewAnthropicClient creates a new Anthropic client with the given configuration.
func NewAnthropicClient(cfg AnthropicConfig) *AnthropicClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultAnthropicURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "claude-2"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &AnthropicClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newCircuitBreaker(ProviderAnthropic, cfg.Breaker, cfg.Logger, cfg.Observer),
	}
}

type anthropicMessagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicMessagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Name implements Provider.
func (c *AnthropicClient) Name() string { return ProviderAnthropic }

// Generate sends a single-turn message and returns the concatenated text blocks.
func (c *AnthropicClient) Generate(ctx context.Context, req Request) (string, error) {
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

		body := anthropicMessagesRequest{
			Model:     model,
			MaxTokens: 4096,
			System:    req.SystemMessage,
			Messages:  []anthropicMessage{{Role: "user", Content: req.Prompt}},
		}
		headers := map[string]string{
			"x-api-key":         key,
			"anthropic-version": "2023-06-01",
		}

		var out anthropicMessagesResponse
		if err := postJSON(ctx, c.client, c.cfg.BaseURL+"/v1/messages", headers, body, &out); err != nil {
			return "", err
		}

		var sb strings.Builder
		for _, block := range out.Content {
			if block.Type == "" || block.Type == "text" {
				sb.WriteString(block.Text)
			}
		}
		if sb.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return sb.String(), nil
	})
}

// Compile-time assertion.
var _ Provider = (*AnthropicClient)(nil)
