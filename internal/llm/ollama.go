package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultOllamaURL is where a local Ollama daemon listens.
const DefaultOllamaURL = "http://localhost:11434"

// OllamaClient handles communication with the Ollama API for local inference.
// It wraps all HTTP calls with circuit breaker protection to prevent cascading failures.
type OllamaClient struct {
	baseURL string
	client  *http.Client
	breaker *circuitBreaker
	model   string
	timeout time.Duration
}

// OllamaConfig holds Ollama client configuration.
type OllamaConfig struct {
	// BaseURL is the base URL for the Ollama API (default: http://localhost:11434)
	BaseURL string

	// Model is the model used when a request names none (default: llama3)
	Model string

	// Timeout is the request timeout duration (default: 60s)
	Timeout time.Duration

	Logger *zap.Logger

	// Breaker tunes the circuit breaker; Observer receives its state changes.
	Breaker  BreakerSettings
	Observer BreakerObserver
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	System string `json:"system,omitempty"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaClient creates a new Ollama client with the given configuration.
func NewOllamaClient(config OllamaConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = DefaultOllamaURL
	}
	if config.Model == "" {
		config.Model = "llama3"
	}
	if config.Timeout == 0 {
		config.Timeout = 60 * time.Second
	}

	return &OllamaClient{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		client:  &http.Client{Timeout: config.Timeout},
		breaker: newCircuitBreaker(ProviderOllama, config.Breaker, config.Logger, config.Observer),
		model:   config.Model,
		timeout: config.Timeout,
	}
}

// Name implements Provider.
func (c *OllamaClient) Name() string { return ProviderOllama }

// Generate sends a non-streaming /api/generate request. Ollama needs no key,
// so Request.APIKey is ignored.
func (c *OllamaClient) Generate(ctx context.Context, req Request) (string, error) {
	model := req.Model
	if model == "" {
		model = c.model
	}
	return c.breaker.call(ctx, func() (string, error) {
		ctx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		body := generateRequest{
			Model:  model,
			Prompt: req.Prompt,
			System: req.SystemMessage,
			Stream: false,
		}
		var out generateResponse
		if err := postJSON(ctx, c.client, c.baseURL+"/api/generate", nil, body, &out); err != nil {
			return "", err
		}
		if out.Response == "" {
			return "", ErrEmptyResponse
		}
		return out.Response, nil
	})
}

// ListModels returns the names of locally installed models from /api/tags.
func (c *OllamaClient) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama returned status %d", resp.StatusCode)
	}

	var tags tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	names := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		names = append(names, m.Name)
	}
	return names, nil
}

var _ Provider = (*OllamaClient)(nil)
