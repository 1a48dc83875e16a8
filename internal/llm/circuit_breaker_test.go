package llm_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/thinkgraph/internal/llm"
)

// recordingBreakers captures BreakerObserver calls.
type recordingBreakers struct {
	mu       sync.Mutex
	states   []string
	failures int
}

func (r *recordingBreakers) ProviderCircuitChanged(_, state string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
}

func (r *recordingBreakers) ProviderFailed(string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures++
}

func (r *recordingBreakers) snapshot() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string{}, r.states...), r.failures
}

const anthropicReply = `{"content":[{"type":"text","text":"hi"}]}`

// keyedUpstream accepts only the "good" key.
func keyedUpstream(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Header.Get("x-api-key") != "good" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"error":"invalid x-api-key"}`)
			return
		}
		_, _ = io.WriteString(w, anthropicReply)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestCircuitBreaker_CallerErrorsDoNotTrip(t *testing.T) {
	srv := keyedUpstream(t)
	obs := &recordingBreakers{}
	c := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:   "good",
		BaseURL:  srv.URL,
		Breaker:  llm.BreakerSettings{Failures: 2, Cooldown: time.Minute},
		Observer: obs,
	})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := c.Generate(ctx, llm.Request{Prompt: "x", APIKey: "bad"})
		var se *llm.StatusError
		require.True(t, errors.As(err, &se), "got %v", err)
		assert.Equal(t, http.StatusUnauthorized, se.Code)
		assert.NotErrorIs(t, err, llm.ErrCircuitOpen)
	}

	text, err := c.Generate(ctx, llm.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	states, failures := obs.snapshot()
	assert.Equal(t, []string{llm.CircuitClosed}, states)
	assert.Equal(t, 0, failures)
}

func TestCircuitBreaker_TripsAndRecovers(t *testing.T) {
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if !healthy.Load() {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = io.WriteString(w, anthropicReply)
	}))
	t.Cleanup(srv.Close)

	obs := &recordingBreakers{}
	c := llm.NewAnthropicClient(llm.AnthropicConfig{
		APIKey:   "k",
		BaseURL:  srv.URL,
		Breaker:  llm.BreakerSettings{Failures: 2, Cooldown: 20 * time.Millisecond, Trials: 1},
		Observer: obs,
	})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.Generate(ctx, llm.Request{Prompt: "x"})
		var se *llm.StatusError
		require.True(t, errors.As(err, &se))
		assert.Equal(t, http.StatusBadGateway, se.Code)
	}
	_, err := c.Generate(ctx, llm.Request{Prompt: "x"})
	assert.ErrorIs(t, err, llm.ErrCircuitOpen)
	assert.Contains(t, err.Error(), "anthropic")

	healthy.Store(true)
	time.Sleep(40 * time.Millisecond)

	text, err := c.Generate(ctx, llm.Request{Prompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "hi", text)

	states, failures := obs.snapshot()
	assert.Equal(t, []string{llm.CircuitClosed, llm.CircuitOpen, llm.CircuitHalfOpen, llm.CircuitClosed}, states)
	assert.Equal(t, 2, failures)
}

func TestCircuitBreaker_CancelledContext(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		_, _ = io.WriteString(w, anthropicReply)
	}))
	t.Cleanup(srv.Close)

	obs := &recordingBreakers{}
	c := llm.NewAnthropicClient(llm.AnthropicConfig{APIKey: "k", BaseURL: srv.URL, Observer: obs})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Generate(ctx, llm.Request{Prompt: "x"})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls.Load())

	_, failures := obs.snapshot()
	assert.Equal(t, 0, failures)
}
