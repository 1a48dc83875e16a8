// Package mcp implements the Model Context Protocol server for thinkgraph:
// a JSON-RPC 2.0 dispatcher, the reasoning, library, system JSON and text
// generation tools, and the stdio and WebSocket transports that carry them.
package mcp

import (
	"encoding/json"
)

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`          // "2.0"; not enforced
	Method  string          `json:"method"`           // Method name
	Params  json.RawMessage `json:"params,omitempty"` // Method parameters
	ID      interface{}     `json:"id"`               // Request ID (string, number, or null)
}

// JSONRPCResponse represents a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string        `json:"jsonrpc"`          // Always "2.0"
	Result  interface{}   `json:"result,omitempty"` // Result (if successful)
	Error   *JSONRPCError `json:"error,omitempty"`  // Error (if failed)
	ID      interface{}   `json:"id"`               // Request ID, echoed even when null
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int         `json:"code"`           // Error code
	Message string      `json:"message"`        // Error message
	Data    interface{} `json:"data,omitempty"` // Additional error data
}

// JSON-RPC error codes
const (
	ErrCodeParseError     = -32700 // Invalid JSON
	ErrCodeMethodNotFound = -32601 // Method not found
	ErrCodeServerError    = -32000 // Handler error
)

// ---------------------------------------------------------------------------
// Standard MCP protocol types (initialize / tools/list / tools/call)
// ---------------------------------------------------------------------------

// MCPServerInfo identifies this MCP server.
type MCPServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// MCPServerCapabilities describes what this server supports.
type MCPServerCapabilities struct {
	Tools *MCPToolsCapability `json:"tools,omitempty"`
}

// MCPToolsCapability signals that the server exposes tools.
type MCPToolsCapability struct{}

// MCPInitializeResult is the response to the initialize request.
type MCPInitializeResult struct {
	ProtocolVersion string                `json:"protocolVersion"`
	Capabilities    MCPServerCapabilities `json:"capabilities"`
	ServerInfo      MCPServerInfo         `json:"serverInfo"`
}

// MCPTool describes a single tool exposed via list_tools.
type MCPTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	InputSchema map[string]interface{} `json:"inputSchema"`
}

// MCPToolsListResult is the response to list_tools.
type MCPToolsListResult struct {
	Tools []MCPTool `json:"tools"`
}

// MCPToolCallParams holds the parameters sent in a call_tool request.
type MCPToolCallParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments"`
}

// MCPToolCallContent is a single content block in a tool call response.
type MCPToolCallContent struct {
	Type string `json:"type"` // always "text"
	Text string `json:"text"`
}

// MCPToolCallResult is the response to a call_tool request.
type MCPToolCallResult struct {
	Content []MCPToolCallContent `json:"content"`
	IsError bool                 `json:"isError,omitempty"`
}

// textResult wraps text as a single-block tool result.
func textResult(text string, isError bool) *MCPToolCallResult {
	return &MCPToolCallResult{
		Content: []MCPToolCallContent{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// ---------------------------------------------------------------------------
// Tool arguments
// ---------------------------------------------------------------------------

// CreateReasoningSessionArgs contains arguments for create_reasoning_session.
type CreateReasoningSessionArgs struct {
	Goal string `json:"goal" validate:"required"`
}

// CreateSessionArgs contains arguments for create_session.
type CreateSessionArgs struct {
	Goal        string `json:"goal" validate:"required"`
	LibraryName string `json:"libraryName,omitempty" validate:"omitempty,libname"`
}

// QueryReasoningMemoryArgs contains arguments for query_reasoning_memory.
type QueryReasoningMemoryArgs struct {
	SessionID string `json:"session_id" validate:"required"`
	Query     string `json:"query" validate:"required"`
}

// LibraryArgs contains arguments for create_memory_library and
// switch_memory_library.
type LibraryArgs struct {
	LibraryName string `json:"library_name" validate:"required,libname"`
}

// CreateSystemJSONArgs contains arguments for create_system_json.
type CreateSystemJSONArgs struct {
	Name        string                 `json:"name" validate:"required,libname"`
	Domain      string                 `json:"domain" validate:"required"`
	Description string                 `json:"description" validate:"required"`
	Data        map[string]interface{} `json:"data" validate:"required"`
	Tags        []string               `json:"tags,omitempty"`
}

// NameArgs contains arguments for get_system_json.
type NameArgs struct {
	Name string `json:"name" validate:"required"`
}

// SearchArgs contains arguments for search_system_json.
type SearchArgs struct {
	Query string `json:"query" validate:"required"`
}

// ListModelsArgs contains arguments for list_langchain_models.
type ListModelsArgs struct {
	Provider string `json:"provider" validate:"required"`
}

// GenerateTextArgs contains arguments for generate_langchain_text.
type GenerateTextArgs struct {
	Provider      string `json:"provider" validate:"required"`
	ModelName     string `json:"modelName" validate:"required"`
	Prompt        string `json:"prompt" validate:"required"`
	SystemMessage string `json:"systemMessage,omitempty"`
	APIKey        string `json:"apiKey,omitempty"`
}
