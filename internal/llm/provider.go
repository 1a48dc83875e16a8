// Package llm provides text generation clients for the providers thinkgraph
// exposes through its generation tools. Every client guards its upstream with
// a circuit breaker and honours the caller's context plus a per-request
// timeout.
package llm

import (
	"context"
	"errors"
)

var (
	// ErrUnknownProvider indicates a provider name the registry does not know.
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrMissingAPIKey indicates neither the request nor configuration carried
	// a key for a provider that needs one.
	ErrMissingAPIKey = errors.New("api key is required")

	// ErrEmptyResponse indicates the provider answered without any text.
	ErrEmptyResponse = errors.New("provider returned empty content")
)

// Request is one single-turn generation call.
type Request struct {
	Model         string // Provider-specific model name; empty selects the client default
	Prompt        string // User message
	SystemMessage string // Optional system instruction
	APIKey        string // Optional key overriding the configured one
}

// Provider generates text for a Request.
type Provider interface {
	// Name is the registry key, e.g. "openai".
	Name() string

	// Generate returns the model's reply to req.
	Generate(ctx context.Context, req Request) (string, error)
}

// resolveKey prefers the per-request key over the configured one.
func resolveKey(requestKey, configured string) (string, error) {
	if requestKey != "" {
		return requestKey, nil
	}
	if configured != "" {
		return configured, nil
	}
	return "", ErrMissingAPIKey
}
