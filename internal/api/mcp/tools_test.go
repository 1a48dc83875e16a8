package mcp_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/llm"
	"github.com/scrypster/thinkgraph/internal/memory"
	"github.com/scrypster/thinkgraph/internal/reasoning"
	"github.com/scrypster/thinkgraph/internal/storage/file"
	"github.com/scrypster/thinkgraph/internal/systemjson"
	"github.com/scrypster/thinkgraph/pkg/types"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

type fakeGenerator struct {
	lastProvider string
	lastRequest  llm.Request
}

func (g *fakeGenerator) Providers() []string { return []string{"anthropic", "openai"} }

func (g *fakeGenerator) Models(_ context.Context, provider string) ([]string, error) {
	if provider != "openai" {
		return nil, &llm.UnknownProviderError{Name: provider}
	}
	return []string{"gpt-4"}, nil
}

func (g *fakeGenerator) Generate(_ context.Context, provider string, req llm.Request) (string, error) {
	g.lastProvider, g.lastRequest = provider, req
	if provider != "openai" {
		return "", &llm.UnknownProviderError{Name: provider}
	}
	if req.Prompt == "fail" {
		return "", errors.New("openai: status 500: upstream")
	}
	return "generated: " + req.Prompt, nil
}

type harness struct {
	dispatcher *mcp.Dispatcher
	tools      *mcp.ToolServer
	store      *memory.Store
	generator  *fakeGenerator
	observer   *recordingObserver
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	blobs, err := file.New(t.TempDir())
	require.NoError(t, err)
	store, err := memory.New(ctx, blobs, types.DefaultLibrary)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(ctx) })

	h := &harness{
		dispatcher: mcp.NewDispatcher(),
		store:      store,
		generator:  &fakeGenerator{},
		observer:   &recordingObserver{},
	}
	h.tools, err = mcp.NewToolServer(mcp.ToolServerConfig{
		Reasoner:  reasoning.New(store, reasoning.WithoutRendering()),
		Libraries: store,
		Documents: systemjson.NewStore(blobs, nil),
		Generator: h.generator,
		Observer:  h.observer,
		Version:   "test",
	})
	require.NoError(t, err)
	h.tools.Register(h.dispatcher)
	return h
}

// call runs a tool through the dispatcher and returns the decoded result.
func (h *harness) call(t *testing.T, name string, args map[string]interface{}) mcp.MCPToolCallResult {
	t.Helper()
	params, err := json.Marshal(mcp.MCPToolCallParams{Name: name, Arguments: args})
	require.NoError(t, err)
	req, err := json.Marshal(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "call_tool",
		"params":  json.RawMessage(params),
		"id":      1,
	})
	require.NoError(t, err)

	resp := decodeResponse(t, h.dispatcher.HandleRaw(context.Background(), req))
	require.Nil(t, resp.Error)

	var result mcp.MCPToolCallResult
	require.NoError(t, json.Unmarshal(resp.Result, &result))
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)
	return result
}

func payload(t *testing.T, r mcp.MCPToolCallResult) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(r.Content[0].Text), &out), "text: %s", r.Content[0].Text)
	return out
}

// ---------------------------------------------------------------------------
// Protocol methods
// ---------------------------------------------------------------------------

func TestNewToolServer_RequiresCollaborators(t *testing.T) {
	_, err := mcp.NewToolServer(mcp.ToolServerConfig{})
	assert.Error(t, err)
}

func TestListTools(t *testing.T) {
	h := newHarness(t)

	for _, method := range []string{"list_tools", "tools/list"} {
		resp := decodeResponse(t, h.dispatcher.HandleRaw(context.Background(),
			[]byte(`{"jsonrpc":"2.0","method":"`+method+`","id":1}`)))
		require.Nil(t, resp.Error, method)

		var list mcp.MCPToolsListResult
		require.NoError(t, json.Unmarshal(resp.Result, &list))
		require.Len(t, list.Tools, 14, method)
		assert.Equal(t, mcp.ToolAdvancedReasoning, list.Tools[0].Name)
		assert.Equal(t, mcp.ToolCreateSession, list.Tools[13].Name)
		for _, tool := range list.Tools {
			assert.NotEmpty(t, tool.Description, tool.Name)
			assert.Equal(t, "object", tool.InputSchema["type"], tool.Name)
		}
	}
}

func TestInitialize(t *testing.T) {
	h := newHarness(t)

	resp := decodeResponse(t, h.dispatcher.HandleRaw(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"initialize","params":{},"id":0}`)))
	require.Nil(t, resp.Error)

	var init mcp.MCPInitializeResult
	require.NoError(t, json.Unmarshal(resp.Result, &init))
	assert.Equal(t, mcp.ProtocolVersion, init.ProtocolVersion)
	assert.Equal(t, mcp.ServerName, init.ServerInfo.Name)
	assert.Equal(t, "test", init.ServerInfo.Version)
	assert.NotNil(t, init.Capabilities.Tools)
}

func TestCallTool_Unknown(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, "nope", nil)
	assert.True(t, res.IsError)
	assert.Equal(t, "Unknown tool: nope", res.Content[0].Text)
	assert.Equal(t, []rpcRecord{{"nope", true}}, h.observer.tools)
}

func TestCallTool_BadParams(t *testing.T) {
	h := newHarness(t)

	resp := decodeResponse(t, h.dispatcher.HandleRaw(context.Background(),
		[]byte(`{"jsonrpc":"2.0","method":"tools/call","params":"not an object","id":4}`)))
	require.NotNil(t, resp.Error)
	assert.Equal(t, mcp.ErrCodeServerError, resp.Error.Code)
	assert.Equal(t, float64(4), resp.ID)
}

// ---------------------------------------------------------------------------
// Reasoning tools
// ---------------------------------------------------------------------------

func TestReasoningFlow(t *testing.T) {
	h := newHarness(t)

	created := h.call(t, mcp.ToolCreateReasoningSession, map[string]interface{}{"goal": "find the leak"})
	require.False(t, created.IsError)
	sessionID, _ := payload(t, created)["sessionId"].(string)
	require.NotEmpty(t, sessionID)
	assert.Contains(t, created.Content[0].Text, "\n  \"sessionId\"", "payload is indented")

	step := h.call(t, mcp.ToolAdvancedReasoning, map[string]interface{}{
		"thought":           "the leak is in the cache eviction path",
		"thoughtNumber":     1,
		"totalThoughts":     3,
		"nextThoughtNeeded": true,
		"confidence":        0.8,
		"session_id":        sessionID,
	})
	require.False(t, step.IsError, step.Content[0].Text)
	p := payload(t, step)
	assert.Equal(t, 0.8, p["confidence"])
	assert.Equal(t, map[string]interface{}{"nodes": float64(1), "sessions": float64(1), "connections": float64(0)}, p["memoryStats"])

	query := h.call(t, mcp.ToolQueryReasoningMemory, map[string]interface{}{
		"session_id": sessionID,
		"query":      "cache eviction",
	})
	require.False(t, query.IsError)
	q := payload(t, query)
	related, _ := q["relatedMemories"].([]interface{})
	assert.Len(t, related, 1)
	assert.NotNil(t, q["sessionContext"])
}

func TestAdvancedReasoning_ValidationFailure(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, mcp.ToolAdvancedReasoning, map[string]interface{}{
		"thought":           "x",
		"thoughtNumber":     "one",
		"totalThoughts":     1,
		"nextThoughtNeeded": false,
	})
	assert.True(t, res.IsError)
	assert.Equal(t, "failed", payload(t, res)["status"])
	assert.Contains(t, payload(t, res)["error"], "Invalid thoughtNumber")
}

func TestCreateSession_SwitchesLibrary(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, mcp.ToolCreateSession, map[string]interface{}{"goal": "g", "libraryName": "research"})
	require.False(t, res.IsError, res.Content[0].Text)
	assert.Equal(t, "research", h.store.CurrentLibrary().Name)

	res = h.call(t, mcp.ToolCreateSession, map[string]interface{}{"goal": "g", "libraryName": "proj A"})
	assert.True(t, res.IsError)
	assert.Equal(t, "research", h.store.CurrentLibrary().Name)
}

func TestArgumentErrors(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name string
		tool string
		args map[string]interface{}
		want string
	}{
		{"missing goal", mcp.ToolCreateReasoningSession, nil, "Invalid goal: must be a non-empty string"},
		{"numeric goal", mcp.ToolCreateReasoningSession, map[string]interface{}{"goal": 5}, "Invalid goal: must be a string"},
		{"missing query", mcp.ToolQueryReasoningMemory, map[string]interface{}{"session_id": "s"}, "Invalid query: must be a non-empty string"},
		{"data not object", mcp.ToolCreateSystemJSON, map[string]interface{}{
			"name": "n", "domain": "d", "description": "x", "data": []interface{}{1},
		}, "Invalid data: must be an object"},
		{"missing prompt", mcp.ToolGenerateText, map[string]interface{}{"provider": "openai", "modelName": "gpt-4"}, "Invalid prompt: must be a non-empty string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := h.call(t, tt.tool, tt.args)
			assert.True(t, res.IsError)
			assert.Equal(t, tt.want, payload(t, res)["error"])
		})
	}
}

// ---------------------------------------------------------------------------
// Library tools
// ---------------------------------------------------------------------------

func TestCreateMemoryLibrary_InvalidName(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, mcp.ToolCreateMemoryLibrary, map[string]interface{}{"library_name": "proj A"})
	assert.True(t, res.IsError)
	assert.Contains(t, payload(t, res)["error"], "letters, numbers, underscores, and hyphens")
}

func TestLibraryTools(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, mcp.ToolCreateMemoryLibrary, map[string]interface{}{"library_name": "archive"})
	require.False(t, res.IsError, res.Content[0].Text)
	assert.Equal(t, "Library 'archive' created successfully", payload(t, res)["message"])

	res = h.call(t, mcp.ToolCreateMemoryLibrary, map[string]interface{}{"library_name": "archive"})
	assert.True(t, res.IsError)

	list := payload(t, h.call(t, mcp.ToolListMemoryLibraries, nil))
	assert.Equal(t, float64(2), list["total"])
	assert.Equal(t, types.DefaultLibrary, list["current"])

	sw := h.call(t, mcp.ToolSwitchMemoryLibrary, map[string]interface{}{"library_name": "archive"})
	require.False(t, sw.IsError)
	assert.Equal(t, types.DefaultLibrary, payload(t, sw)["previous_library"])

	info := payload(t, h.call(t, mcp.ToolGetCurrentLibraryInfo, nil))
	assert.Equal(t, "archive", info["library_name"])
	assert.Equal(t, map[string]interface{}{"nodes": float64(0), "sessions": float64(0), "connections": float64(0)}, info["stats"])
}

// ---------------------------------------------------------------------------
// System JSON tools
// ---------------------------------------------------------------------------

func TestSystemJSONTools(t *testing.T) {
	h := newHarness(t)

	args := map[string]interface{}{
		"name":        "deploy_runbook",
		"domain":      "operations",
		"description": "steps for a production deploy",
		"data":        map[string]interface{}{"steps": []interface{}{"build", "ship"}},
		"tags":        []interface{}{"deploy"},
	}
	res := h.call(t, mcp.ToolCreateSystemJSON, args)
	require.False(t, res.IsError, res.Content[0].Text)
	assert.Equal(t, false, payload(t, res)["updated"])

	res = h.call(t, mcp.ToolCreateSystemJSON, args)
	assert.Equal(t, true, payload(t, res)["updated"])

	got := payload(t, h.call(t, mcp.ToolGetSystemJSON, map[string]interface{}{"name": "deploy_runbook"}))
	assert.Equal(t, "operations", got["domain"])
	assert.Equal(t, map[string]interface{}{"steps": []interface{}{"build", "ship"}}, got["data"])

	missing := h.call(t, mcp.ToolGetSystemJSON, map[string]interface{}{"name": "absent"})
	assert.True(t, missing.IsError)

	search := payload(t, h.call(t, mcp.ToolSearchSystemJSON, map[string]interface{}{"query": "production deploy"}))
	assert.Equal(t, float64(1), search["total"])

	list := payload(t, h.call(t, mcp.ToolListSystemJSON, nil))
	assert.Equal(t, float64(1), list["total"])
}

func TestSystemJSONTools_NotConfigured(t *testing.T) {
	blobs, err := file.New(t.TempDir())
	require.NoError(t, err)
	store, err := memory.New(context.Background(), blobs, "")
	require.NoError(t, err)
	defer store.Close(context.Background())

	ts, err := mcp.NewToolServer(mcp.ToolServerConfig{
		Reasoner:  reasoning.New(store, reasoning.WithoutRendering()),
		Libraries: store,
	})
	require.NoError(t, err)

	res := ts.Call(context.Background(), mcp.ToolListSystemJSON, nil)
	assert.True(t, res.IsError)
	res = ts.Call(context.Background(), mcp.ToolGenerateText, map[string]interface{}{"prompt": "x"})
	assert.True(t, res.IsError)
}

// ---------------------------------------------------------------------------
// Generation tools
// ---------------------------------------------------------------------------

func TestListModels(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, mcp.ToolListModels, map[string]interface{}{"provider": "openai"})
	require.False(t, res.IsError)
	assert.Equal(t, []interface{}{"gpt-4"}, payload(t, res)["models"])

	res = h.call(t, mcp.ToolListModels, map[string]interface{}{"provider": "cohere"})
	assert.True(t, res.IsError)
	assert.Equal(t, "Provider 'cohere' is not supported.", payload(t, res)["error"])
}

func TestGenerateText(t *testing.T) {
	h := newHarness(t)

	res := h.call(t, mcp.ToolGenerateText, map[string]interface{}{
		"provider":      "openai",
		"modelName":     "gpt-4",
		"prompt":        "hello",
		"systemMessage": "be brief",
		"apiKey":        "sk-test",
	})
	require.False(t, res.IsError)
	assert.Equal(t, "generated: hello", res.Content[0].Text)
	assert.Equal(t, llm.Request{Model: "gpt-4", Prompt: "hello", SystemMessage: "be brief", APIKey: "sk-test"}, h.generator.lastRequest)

	res = h.call(t, mcp.ToolGenerateText, map[string]interface{}{"provider": "openai", "modelName": "gpt-4", "prompt": "fail"})
	assert.True(t, res.IsError)
	assert.Contains(t, payload(t, res)["error"], "status 500")
}

func TestIndentJSON_NoHTMLEscaping(t *testing.T) {
	text, err := mcp.IndentJSON(map[string]string{"a": "<b>&"})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"a\": \"<b>&\"\n}", text)
}
