package llm_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/thinkgraph/internal/config"
	"github.com/scrypster/thinkgraph/internal/llm"
)

type stubProvider struct {
	name string
	got  llm.Request
	text string
	err  error
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(_ context.Context, req llm.Request) (string, error) {
	s.got = req
	return s.text, s.err
}

func TestDefaultCatalog(t *testing.T) {
	c, err := llm.DefaultCatalog()
	require.NoError(t, err)

	assert.Equal(t, []string{"openai", "anthropic", "google", "ollama"}, c.Providers())
	models, ok := c.Models("openai")
	require.True(t, ok)
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-4", "gpt-4-32k"}, models)
	models, _ = c.Models("anthropic")
	assert.Equal(t, []string{"claude-2", "claude-instant-1"}, models)
	models, _ = c.Models("google")
	assert.Equal(t, []string{"gemini-pro", "gemini-ultra"}, models)

	_, ok = c.Models("nope")
	assert.False(t, ok)
}

func TestParseCatalog_Errors(t *testing.T) {
	_, err := llm.ParseCatalog([]byte("providers: [unterminated"))
	assert.Error(t, err)

	_, err = llm.ParseCatalog([]byte("providers:\n  - name: a\n  - name: a\n"))
	assert.Error(t, err)

	_, err = llm.ParseCatalog([]byte("providers:\n  - models: [x]\n"))
	assert.Error(t, err)
}

func TestNewRegistryFromConfig(t *testing.T) {
	r, err := llm.NewRegistryFromConfig(config.LLMConfig{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"anthropic", "google", "ollama", "openai"}, r.Providers())
}

func TestRegistry_UnknownProvider(t *testing.T) {
	r, err := llm.NewRegistry(nil, nil)
	require.NoError(t, err)

	_, err = r.Generate(context.Background(), "cohere", llm.Request{Prompt: "x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, llm.ErrUnknownProvider))
	assert.Equal(t, "Provider 'cohere' is not supported.", err.Error())

	_, err = r.Models(context.Background(), "cohere")
	assert.ErrorIs(t, err, llm.ErrUnknownProvider)
}

func TestRegistry_GenerateRoutes(t *testing.T) {
	r, err := llm.NewRegistry(nil, nil)
	require.NoError(t, err)
	stub := &stubProvider{name: "openai", text: "done"}
	r.Register(stub)

	req := llm.Request{Model: "gpt-4", Prompt: "p", SystemMessage: "s", APIKey: "k"}
	text, err := r.Generate(context.Background(), "openai", req)
	require.NoError(t, err)
	assert.Equal(t, "done", text)
	assert.Equal(t, req, stub.got)

	stub.err = errors.New("upstream down")
	_, err = r.Generate(context.Background(), "openai", req)
	assert.EqualError(t, err, "upstream down")
}

func TestRegistry_ModelsFromCatalog(t *testing.T) {
	r, err := llm.NewRegistry(nil, nil)
	require.NoError(t, err)
	r.Register(&stubProvider{name: "anthropic"})
	r.Register(&stubProvider{name: "custom"})

	models, err := r.Models(context.Background(), "anthropic")
	require.NoError(t, err)
	assert.Equal(t, []string{"claude-2", "claude-instant-1"}, models)

	models, err = r.Models(context.Background(), "custom")
	require.NoError(t, err)
	assert.Empty(t, models)
	assert.NotNil(t, models)
}

func TestRegistry_ModelsMergesInstalled(t *testing.T) {
	srv, _ := fakeUpstream(t, http.StatusOK, `{"models":[{"name":"llama3"},{"name":"qwen2"}]}`)

	r, err := llm.NewRegistry(nil, nil)
	require.NoError(t, err)
	r.Register(llm.NewOllamaClient(llm.OllamaConfig{BaseURL: srv.URL}))

	models, err := r.Models(context.Background(), "ollama")
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral", "qwen2"}, models)
}

func TestRegistry_ModelsIgnoresUnreachableOllama(t *testing.T) {
	r, err := llm.NewRegistry(nil, nil)
	require.NoError(t, err)
	r.Register(llm.NewOllamaClient(llm.OllamaConfig{BaseURL: "http://127.0.0.1:1"}))

	models, err := r.Models(context.Background(), "ollama")
	require.NoError(t, err)
	assert.Equal(t, []string{"llama3", "mistral"}, models)
}
