package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/config"
)

// UnknownProviderError names a provider the registry does not know. It
// matches ErrUnknownProvider under errors.Is.
type UnknownProviderError struct {
	Name string
}

func (e *UnknownProviderError) Error() string {
	return fmt.Sprintf("Provider '%s' is not supported.", e.Name)
}

// Is reports whether target is ErrUnknownProvider.
func (e *UnknownProviderError) Is(target error) bool {
	return target == ErrUnknownProvider
}

// modelLister is implemented by providers that can enumerate installed models.
type modelLister interface {
	ListModels(ctx context.Context) ([]string, error)
}

// Registry holds the configured providers and the model catalog.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	catalog   *Catalog
	logger    *zap.Logger
}

// NewRegistry returns an empty registry over catalog. A nil catalog uses the
// embedded one.
func NewRegistry(catalog *Catalog, logger *zap.Logger) (*Registry, error) {
	if catalog == nil {
		var err error
		if catalog, err = DefaultCatalog(); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		providers: make(map[string]Provider),
		catalog:   catalog,
		logger:    logger,
	}, nil
}

// NewRegistryFromConfig registers the openai, anthropic, google and ollama
// clients. Keys missing from configuration may still be supplied per request.
// observer, if not nil, receives the circuit state of every provider.
func NewRegistryFromConfig(cfg config.LLMConfig, logger *zap.Logger, observer BreakerObserver) (*Registry, error) {
	r, err := NewRegistry(nil, logger)
	if err != nil {
		return nil, err
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	r.Register(NewOpenAIClient(OpenAIConfig{
		APIKey: cfg.OpenAIAPIKey, Timeout: timeout, Logger: r.logger, Observer: observer,
	}))
	r.Register(NewAnthropicClient(AnthropicConfig{
		APIKey: cfg.AnthropicAPIKey, Timeout: timeout, Logger: r.logger, Observer: observer,
	}))
	r.Register(NewGoogleClient(GoogleConfig{
		APIKey: cfg.GoogleAPIKey, Timeout: timeout, Logger: r.logger, Observer: observer,
	}))
	r.Register(NewOllamaClient(OllamaConfig{
		BaseURL: cfg.OllamaURL, Timeout: timeout, Logger: r.logger, Observer: observer,
	}))
	return r, nil
}

// Register adds p under p.Name(), replacing any earlier provider of that name.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Providers returns registered provider names, sorted.
func (r *Registry) Providers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Models returns the catalog models for provider. Providers that can list
// installed models (ollama) contribute those too, after the catalog entries;
// a failed listing is logged and ignored.
func (r *Registry) Models(ctx context.Context, provider string) ([]string, error) {
	p, err := r.lookup(provider)
	if err != nil {
		return nil, err
	}

	models, _ := r.catalog.Models(provider)
	if models == nil {
		models = []string{}
	}
	lister, ok := p.(modelLister)
	if !ok {
		return models, nil
	}

	installed, err := lister.ListModels(ctx)
	if err != nil {
		r.logger.Debug("llm: could not list installed models",
			zap.String("provider", provider), zap.Error(err))
		return models, nil
	}
	seen := make(map[string]bool, len(models))
	for _, m := range models {
		seen[m] = true
	}
	for _, m := range installed {
		if !seen[m] {
			seen[m] = true
			models = append(models, m)
		}
	}
	return models, nil
}

// Generate routes req to provider.
func (r *Registry) Generate(ctx context.Context, provider string, req Request) (string, error) {
	p, err := r.lookup(provider)
	if err != nil {
		return "", err
	}

	start := time.Now()
	text, err := p.Generate(ctx, req)
	if err != nil {
		r.logger.Warn("llm: generation failed",
			zap.String("provider", provider),
			zap.String("model", req.Model),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return "", err
	}
	r.logger.Debug("llm: generation complete",
		zap.String("provider", provider),
		zap.String("model", req.Model),
		zap.Duration("elapsed", time.Since(start)))
	return text, nil
}

func (r *Registry) lookup(provider string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[provider]
	if !ok {
		return nil, &UnknownProviderError{Name: provider}
	}
	return p, nil
}
