package llm

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultGoogleURL is the Generative Language API endpoint.
const DefaultGoogleURL = "https://generativelanguage.googleapis.com"

// GoogleConfig holds configuration for the Gemini client.
type GoogleConfig struct {
	APIKey   string
	BaseURL  string        // default: DefaultGoogleURL
	Model    string        // default: gemini-pro
	Timeout  time.Duration // default: 60s
	Logger   *zap.Logger
	Breaker  BreakerSettings
	Observer BreakerObserver
}

// GoogleClient implements Provider over the Gemini generateContent REST call.
type GoogleClient struct {
	cfg     GoogleConfig
	client  *http.Client
	breaker *circuitBreaker
}

// NewGoogleClient creates a Gemini client.
func NewGoogleClient(cfg GoogleConfig) *GoogleClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultGoogleURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "gemini-pro"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	return &GoogleClient{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		breaker: newCircuitBreaker(ProviderGoogle, cfg.Breaker, cfg.Logger, cfg.Observer),
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Name implements Provider.
func (c *GoogleClient) Name() string { return ProviderGoogle }

// Generate calls models/{model}:generateContent and joins the first
// candidate's text parts.
func (c *GoogleClient) Generate(ctx context.Context, req Request) (string, error) {
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

		body := geminiRequest{
			Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}},
		}
		if req.SystemMessage != "" {
			body.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemMessage}}}
		}

		endpoint := c.cfg.BaseURL + "/v1beta/models/" + url.PathEscape(model) + ":generateContent?key=" + url.QueryEscape(key)
		var out geminiResponse
		if err := postJSON(ctx, c.client, endpoint, nil, body, &out); err != nil {
			return "", err
		}
		if len(out.Candidates) == 0 {
			return "", ErrEmptyResponse
		}
		var sb strings.Builder
		for _, p := range out.Candidates[0].Content.Parts {
			sb.WriteString(p.Text)
		}
		if sb.Len() == 0 {
			return "", ErrEmptyResponse
		}
		return sb.String(), nil
	})
}

var _ Provider = (*GoogleClient)(nil)
