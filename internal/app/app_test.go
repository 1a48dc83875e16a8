package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/app"
	"github.com/scrypster/thinkgraph/internal/config"
)

func testConfig(dataPath string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1"},
		Storage: config.StorageConfig{
			StorageEngine:  config.EngineFile,
			DataPath:       dataPath,
			DefaultLibrary: "cognitive_memory",
		},
		LLM:       config.LLMConfig{OllamaURL: "http://127.0.0.1:1", Timeout: time.Second},
		Security:  config.SecurityConfig{SecurityMode: config.ModeDevelopment},
		Features:  config.FeaturesConfig{EnableREST: true, EnableWebSocket: true, EnableMetrics: true},
		Reasoning: config.ReasoningConfig{DisableLogging: true},
	}
}

func callTool(t *testing.T, a *app.App, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()
	res := a.Tools.Call(context.Background(), name, args)
	require.False(t, res.IsError, res.Content[0].Text)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(res.Content[0].Text), &out))
	return out
}

func TestNew_RequiresConfig(t *testing.T) {
	_, err := app.New(context.Background(), nil)
	assert.Error(t, err)
}

func TestNew_BadStorageEngine(t *testing.T) {
	cfg := testConfig(t.TempDir())
	cfg.Storage.StorageEngine = "tape"

	_, err := app.New(context.Background(), cfg)
	assert.Error(t, err)
}

func TestApp_PersistsAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())

	first, err := app.New(ctx, cfg)
	require.NoError(t, err)

	session := callTool(t, first, mcp.ToolCreateReasoningSession, map[string]interface{}{"goal": "map the outage"})
	sessionID := session["sessionId"].(string)
	callTool(t, first, mcp.ToolAdvancedReasoning, map[string]interface{}{
		"thought":           "the outage started with the dns change",
		"thoughtNumber":     float64(1),
		"totalThoughts":     float64(2),
		"nextThoughtNeeded": true,
		"session_id":        sessionID,
	})
	callTool(t, first, mcp.ToolCreateSystemJSON, map[string]interface{}{
		"name":        "dns_runbook",
		"domain":      "operations",
		"description": "rolling back dns",
		"data":        map[string]interface{}{"ttl": float64(60)},
	})
	require.NoError(t, first.Close(ctx))

	second, err := app.New(ctx, cfg)
	require.NoError(t, err)
	defer second.Close(ctx)

	info := callTool(t, second, mcp.ToolGetCurrentLibraryInfo, nil)
	assert.Equal(t, "cognitive_memory", info["library_name"])
	assert.Equal(t, map[string]interface{}{"nodes": float64(1), "sessions": float64(1), "connections": float64(0)}, info["stats"])

	doc := callTool(t, second, mcp.ToolGetSystemJSON, map[string]interface{}{"name": "dns_runbook"})
	assert.Equal(t, "operations", doc["domain"])
}

func TestApp_RendersSteps(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())
	cfg.Reasoning.DisableLogging = false

	var out bytes.Buffer
	a, err := app.New(ctx, cfg, app.WithRenderOutput(&out))
	require.NoError(t, err)
	defer a.Close(ctx)

	callTool(t, a, mcp.ToolAdvancedReasoning, map[string]interface{}{
		"thought":           "rendered step",
		"thoughtNumber":     float64(1),
		"totalThoughts":     float64(1),
		"nextThoughtNeeded": false,
	})
	assert.Contains(t, out.String(), "rendered step")
}

func TestApp_HTTPHandler(t *testing.T) {
	ctx := context.Background()
	a, err := app.New(ctx, testConfig(t.TempDir()))
	require.NoError(t, err)
	defer a.Close(ctx)

	handler, err := a.HTTPHandler()
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mcp", "application/json",
		strings.NewReader(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `thinkgraph_rpc_requests_total{method="tools/list",outcome="ok"} 1`)
	assert.Contains(t, string(body), `thinkgraph_memory_nodes{library="cognitive_memory"} 0`)
}

func TestApp_TracesDispatch(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t.TempDir())
	cfg.Features.EnableTracing = true
	core, logs := observer.New(zap.InfoLevel)

	a, err := app.New(ctx, cfg, app.WithLogger(zap.New(core)))
	require.NoError(t, err)
	a.Dispatcher.HandleRaw(ctx, []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	require.NoError(t, a.Close(ctx))

	spans := logs.FilterMessage("trace: span ended").All()
	require.Len(t, spans, 1)
	assert.Equal(t, "tools/list", spans[0].ContextMap()["span"])
	assert.Equal(t, "trace", spans[0].LoggerName)
}

func TestApp_TracingOffByDefault(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zap.InfoLevel)

	a, err := app.New(ctx, testConfig(t.TempDir()), app.WithLogger(zap.New(core)))
	require.NoError(t, err)
	a.Dispatcher.HandleRaw(ctx, []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	require.NoError(t, a.Close(ctx))

	assert.Zero(t, logs.FilterMessage("trace: span ended").Len())
}
