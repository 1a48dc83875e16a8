package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/config"
	"github.com/scrypster/thinkgraph/internal/llm"
	"github.com/scrypster/thinkgraph/internal/server"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

type fakeTools struct {
	name string
	args map[string]interface{}
}

func (f *fakeTools) Call(_ context.Context, name string, args map[string]interface{}) *mcp.MCPToolCallResult {
	f.name, f.args = name, args
	return &mcp.MCPToolCallResult{Content: []mcp.MCPToolCallContent{{Type: "text", Text: "{}"}}}
}

type fakeSessions struct{ err error }

func (f *fakeSessions) CreateSession(_ context.Context, goal, library string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "session_1_" + goal + library, nil
}

type fakeModels struct{}

func (fakeModels) Providers() []string { return []string{"anthropic", "google", "ollama", "openai"} }

func (fakeModels) Models(_ context.Context, provider string) ([]string, error) {
	if provider != "openai" {
		return nil, &llm.UnknownProviderError{Name: provider}
	}
	return []string{"gpt-3.5-turbo", "gpt-4"}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Security: config.SecurityConfig{SecurityMode: config.ModeDevelopment},
		Features: config.FeaturesConfig{EnableREST: true, EnableWebSocket: true, EnableMetrics: true},
		LLM:      config.LLMConfig{Timeout: time.Second},
	}
}

type testServer struct {
	url      string
	tools    *fakeTools
	sessions *fakeSessions
}

func startTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()

	d := mcp.NewDispatcher()
	d.Register("ping", func(context.Context, json.RawMessage) (interface{}, error) { return "pong", nil })

	ts := &testServer{tools: &fakeTools{}, sessions: &fakeSessions{}}
	handler, err := server.NewRouter(cfg, server.Deps{
		Dispatcher: d,
		Tools:      ts.tools,
		Sessions:   ts.sessions,
		Models:     fakeModels{},
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		}),
		Version: "test",
	})
	require.NoError(t, err)

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	ts.url = srv.URL
	return ts
}

func do(t *testing.T, method, url, body string, header ...string) (int, string) {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	require.NoError(t, err)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

func TestNewRouter_RequiresDeps(t *testing.T) {
	_, err := server.NewRouter(testConfig(), server.Deps{})
	assert.Error(t, err)
}

func TestHealth(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodGet, ts.url+"/api/health", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"healthy","version":"test"}`, body)
}

func TestMCPEndpoint(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodPost, ts.url+"/mcp", `{"jsonrpc":"2.0","method":"ping","id":1}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"jsonrpc":"2.0","result":"pong","id":1}`, body)

	status, body = do(t, http.MethodPost, ts.url+"/mcp", `{"jsonrpc":"2.0","method":"nope","id":"x"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"jsonrpc":"2.0","error":{"code":-32601,"message":"Method not found: nope"},"id":"x"}`, body)

	status, body = do(t, http.MethodPost, ts.url+"/mcp", `{not json`)
	assert.Equal(t, http.StatusInternalServerError, status)
	var msg map[string]string
	require.NoError(t, json.Unmarshal([]byte(body), &msg))
	assert.NotEmpty(t, msg["message"])
}

func TestAdvancedReasoningEndpoint(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodPost, ts.url+"/advanced-reasoning", `{"apiKey":"k","prompt":"is the cache cold?"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"content":[{"type":"text","text":"{}"}]}`, body)

	assert.Equal(t, mcp.ToolAdvancedReasoning, ts.tools.name)
	assert.Equal(t, map[string]interface{}{
		"thought":           "is the cache cold?",
		"thoughtNumber":     1,
		"totalThoughts":     1,
		"nextThoughtNeeded": false,
	}, ts.tools.args)
}

func TestProvidersAndModels(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodGet, ts.url+"/providers", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["anthropic","google","ollama","openai"]`, body)

	status, body = do(t, http.MethodGet, ts.url+"/models?provider=openai", "")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `["gpt-3.5-turbo","gpt-4"]`, body)

	status, body = do(t, http.MethodGet, ts.url+"/models", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.JSONEq(t, `{"message":"Provider not specified"}`, body)

	status, body = do(t, http.MethodGet, ts.url+"/models?provider=cohere", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.JSONEq(t, `{"message":"Provider 'cohere' is not supported."}`, body)
}

func TestSessionEndpoint(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodPost, ts.url+"/session", `{"goal":"g","libraryName":"lib"}`)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"sessionId":"session_1_glib"}`, body)

	ts.sessions.err = errors.New("invalid library name")
	status, body = do(t, http.MethodPost, ts.url+"/session", `{"goal":"g","libraryName":"bad name"}`)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.JSONEq(t, `{"message":"invalid library name"}`, body)
}

func TestNotFound(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodGet, ts.url+"/nowhere", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "Not Found", body)
}

func TestFeatureFlags(t *testing.T) {
	cfg := testConfig()
	cfg.Features = config.FeaturesConfig{}
	ts := startTestServer(t, cfg)

	for _, path := range []string{"/providers", "/metrics", "/ws"} {
		status, _ := do(t, http.MethodGet, ts.url+path, "")
		assert.Equal(t, http.StatusNotFound, status, path)
	}

	status, _ := do(t, http.MethodPost, ts.url+"/mcp", `{"jsonrpc":"2.0","method":"ping","id":1}`)
	assert.Equal(t, http.StatusOK, status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := startTestServer(t, testConfig())

	status, body := do(t, http.MethodGet, ts.url+"/metrics", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "# metrics", body)
}

func TestSecurityHeaders(t *testing.T) {
	ts := startTestServer(t, testConfig())

	resp, err := http.Get(ts.url + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", resp.Header.Get("X-Frame-Options"))
}

// ---------------------------------------------------------------------------
// Middleware
// ---------------------------------------------------------------------------

func TestAuth_ProductionMode(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{SecurityMode: config.ModeProduction, APIToken: "secret-token"}
	ts := startTestServer(t, cfg)

	rpc := `{"jsonrpc":"2.0","method":"ping","id":1}`

	status, body := do(t, http.MethodPost, ts.url+"/mcp", rpc)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Contains(t, body, "unauthorized")

	status, _ = do(t, http.MethodPost, ts.url+"/mcp", rpc, "Authorization", "Bearer wrong")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, http.MethodPost, ts.url+"/mcp", rpc, "Authorization", "Bearer secret-token")
	assert.Equal(t, http.StatusOK, status)

	status, _ = do(t, http.MethodGet, ts.url+"/api/health", "")
	assert.Equal(t, http.StatusOK, status, "health stays open")
}

func TestAuth_ProductionWithoutToken(t *testing.T) {
	handler := server.RequireAuth(config.SecurityConfig{SecurityMode: config.ModeProduction})(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Authorization", "Bearer ")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRateLimit(t *testing.T) {
	handler := server.RateLimit(server.NewRateLimiter(1, 2))(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestRateLimit_NilLimiterAllowsAll(t *testing.T) {
	handler := server.RateLimit(nil)(
		http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }))

	for i := 0; i < 50; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
}

// ---------------------------------------------------------------------------
// Lifecycle
// ---------------------------------------------------------------------------

func TestStart_ServesAndShutsDown(t *testing.T) {
	cfg := testConfig()
	handler, err := server.NewRouter(cfg, server.Deps{
		Dispatcher: mcp.NewDispatcher(),
		Tools:      &fakeTools{},
		Sessions:   &fakeSessions{},
		Models:     fakeModels{},
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	addr, done, err := server.Start(ctx, cfg, handler, nil)
	require.NoError(t, err)
	require.NotEmpty(t, addr)

	status, _ := do(t, http.MethodGet, "http://"+addr+"/api/health", "")
	assert.Equal(t, http.StatusOK, status)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestStart_ListenError(t *testing.T) {
	cfg := testConfig()
	cfg.Server.Host = "256.0.0.1"

	_, _, err := server.Start(context.Background(), cfg, http.NotFoundHandler(), nil)
	assert.Error(t, err)
}
