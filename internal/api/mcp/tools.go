package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/llm"
	"github.com/scrypster/thinkgraph/internal/memory"
	"github.com/scrypster/thinkgraph/internal/reasoning"
	"github.com/scrypster/thinkgraph/internal/systemjson"
	"github.com/scrypster/thinkgraph/internal/validation"
	"github.com/scrypster/thinkgraph/pkg/types"
)

// ProtocolVersion is the MCP revision reported by initialize.
const ProtocolVersion = "2024-11-05"

// ServerName is the name reported by initialize.
const ServerName = "thinkgraph"

// Reasoner is the reasoning engine as seen by the tools.
type Reasoner interface {
	ProcessStep(ctx context.Context, args map[string]interface{}) reasoning.Result
	CreateSession(ctx context.Context, goal, library string) reasoning.Result
	QueryMemory(sessionID, query string) reasoning.Result
}

// Libraries manages named memory libraries. *memory.Store implements it.
type Libraries interface {
	CreateLibrary(ctx context.Context, name string) error
	ListLibraries(ctx context.Context) ([]types.LibraryInfo, error)
	SwitchLibrary(ctx context.Context, name string) error
	CurrentLibrary() memory.CurrentInfo
}

// Documents stores system JSON documents. *systemjson.Store implements it.
type Documents interface {
	Create(ctx context.Context, in systemjson.Input) (*types.SystemJSON, bool, error)
	Get(ctx context.Context, name string) (*types.SystemJSON, error)
	List(ctx context.Context) ([]types.SystemJSONSummary, error)
	Search(ctx context.Context, query string) ([]systemjson.SearchResult, error)
}

// Generator routes text generation to LLM providers. *llm.Registry
// implements it.
type Generator interface {
	Providers() []string
	Models(ctx context.Context, provider string) ([]string, error)
	Generate(ctx context.Context, provider string, req llm.Request) (string, error)
}

// ToolObserver receives one call per tool invocation. metrics.Collector
// implements it.
type ToolObserver interface {
	ObserveTool(tool string, failed bool)
}

// ToolServerConfig holds a ToolServer's collaborators. Reasoner and Libraries
// are required; tools backed by a nil Documents or Generator report that
// they are not configured.
type ToolServerConfig struct {
	Reasoner  Reasoner
	Libraries Libraries
	Documents Documents
	Generator Generator
	Observer  ToolObserver
	Logger    *zap.Logger
	Version   string
}

type toolFunc func(ctx context.Context, args map[string]interface{}) *MCPToolCallResult

// ToolServer exposes the reasoning, library, system JSON and generation
// operations as MCP tools.
type ToolServer struct {
	cfg      ToolServerConfig
	logger   *zap.Logger
	tools    []MCPTool
	handlers map[string]toolFunc
}

// NewToolServer validates cfg and builds the tool table.
func NewToolServer(cfg ToolServerConfig) (*ToolServer, error) {
	if cfg.Reasoner == nil {
		return nil, errors.New("mcp: reasoner is required")
	}
	if cfg.Libraries == nil {
		return nil, errors.New("mcp: libraries are required")
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	s := &ToolServer{
		cfg:    cfg,
		logger: cfg.Logger,
		tools:  toolDescriptors(),
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.handlers = map[string]toolFunc{
		ToolAdvancedReasoning:      s.advancedReasoning,
		ToolCreateReasoningSession: s.createReasoningSession,
		ToolQueryReasoningMemory:   s.queryReasoningMemory,
		ToolCreateMemoryLibrary:    s.createMemoryLibrary,
		ToolListMemoryLibraries:    s.listMemoryLibraries,
		ToolSwitchMemoryLibrary:    s.switchMemoryLibrary,
		ToolGetCurrentLibraryInfo:  s.currentLibraryInfo,
		ToolCreateSystemJSON:       s.createSystemJSON,
		ToolGetSystemJSON:          s.getSystemJSON,
		ToolSearchSystemJSON:       s.searchSystemJSON,
		ToolListSystemJSON:         s.listSystemJSON,
		ToolListModels:             s.listModels,
		ToolGenerateText:           s.generateText,
		ToolCreateSession:          s.createSession,
	}
	return s, nil
}

// Tools returns the tool descriptors in list order.
func (s *ToolServer) Tools() []MCPTool {
	out := make([]MCPTool, len(s.tools))
	copy(out, s.tools)
	return out
}

// Call runs the named tool. Domain failures come back as a result with
// IsError set, never as a Go error.
func (s *ToolServer) Call(ctx context.Context, name string, args map[string]interface{}) *MCPToolCallResult {
	if args == nil {
		args = map[string]interface{}{}
	}

	h, ok := s.handlers[name]
	if !ok {
		s.observe(name, true)
		return textResult("Unknown tool: "+name, true)
	}

	res := h(ctx, args)
	s.observe(name, res.IsError)
	return res
}

// Register binds the tool methods and the MCP lifecycle methods on d.
func (s *ToolServer) Register(d *Dispatcher) {
	listTools := func(context.Context, json.RawMessage) (interface{}, error) {
		return MCPToolsListResult{Tools: s.Tools()}, nil
	}
	callTool := func(ctx context.Context, params json.RawMessage) (interface{}, error) {
		var p MCPToolCallParams
		if len(params) > 0 {
			if err := json.Unmarshal(params, &p); err != nil {
				return nil, fmt.Errorf("invalid call_tool params: %w", err)
			}
		}
		return s.Call(ctx, p.Name, p.Arguments), nil
	}

	d.Register("list_tools", listTools)
	d.Register("tools/list", listTools)
	d.Register("call_tool", callTool)
	d.Register("tools/call", callTool)
	d.Register("initialize", func(context.Context, json.RawMessage) (interface{}, error) {
		return MCPInitializeResult{
			ProtocolVersion: ProtocolVersion,
			Capabilities:    MCPServerCapabilities{Tools: &MCPToolsCapability{}},
			ServerInfo:      MCPServerInfo{Name: ServerName, Version: s.cfg.Version},
		}, nil
	})
	d.Register("notifications/initialized", func(context.Context, json.RawMessage) (interface{}, error) {
		return map[string]interface{}{}, nil
	})
}

func (s *ToolServer) observe(tool string, failed bool) {
	if s.cfg.Observer != nil {
		s.cfg.Observer.ObserveTool(tool, failed)
	}
}

// ---------------------------------------------------------------------------
// Reasoning tools
// ---------------------------------------------------------------------------

func (s *ToolServer) advancedReasoning(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	return s.engineResult(s.cfg.Reasoner.ProcessStep(ctx, args))
}

func (s *ToolServer) createReasoningSession(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	var a CreateReasoningSessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	return s.engineResult(s.cfg.Reasoner.CreateSession(ctx, a.Goal, ""))
}

func (s *ToolServer) createSession(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	var a CreateSessionArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	return s.engineResult(s.cfg.Reasoner.CreateSession(ctx, a.Goal, a.LibraryName))
}

func (s *ToolServer) queryReasoningMemory(_ context.Context, args map[string]interface{}) *MCPToolCallResult {
	var a QueryReasoningMemoryArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	return s.engineResult(s.cfg.Reasoner.QueryMemory(a.SessionID, a.Query))
}

// ---------------------------------------------------------------------------
// Library tools
// ---------------------------------------------------------------------------

type libraryCreatedPayload struct {
	Success     bool   `json:"success"`
	LibraryName string `json:"library_name"`
	Message     string `json:"message"`
}

type libraryListPayload struct {
	Libraries []types.LibraryInfo `json:"libraries"`
	Current   string              `json:"current"`
	Total     int                 `json:"total"`
}

type librarySwitchPayload struct {
	Success         bool        `json:"success"`
	LibraryName     string      `json:"library_name"`
	PreviousLibrary string      `json:"previous_library"`
	Stats           types.Stats `json:"stats"`
	Message         string      `json:"message"`
}

type libraryInfoPayload struct {
	LibraryName string      `json:"library_name"`
	Stats       types.Stats `json:"stats"`
}

func (s *ToolServer) createMemoryLibrary(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	var a LibraryArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	if err := s.cfg.Libraries.CreateLibrary(ctx, a.LibraryName); err != nil {
		return s.failure(err)
	}
	return s.success(libraryCreatedPayload{
		Success:     true,
		LibraryName: a.LibraryName,
		Message:     fmt.Sprintf("Library '%s' created successfully", a.LibraryName),
	})
}

func (s *ToolServer) listMemoryLibraries(ctx context.Context, _ map[string]interface{}) *MCPToolCallResult {
	libs, err := s.cfg.Libraries.ListLibraries(ctx)
	if err != nil {
		return s.failure(err)
	}
	return s.success(libraryListPayload{
		Libraries: libs,
		Current:   s.cfg.Libraries.CurrentLibrary().Name,
		Total:     len(libs),
	})
}

func (s *ToolServer) switchMemoryLibrary(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	var a LibraryArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	previous := s.cfg.Libraries.CurrentLibrary().Name
	if err := s.cfg.Libraries.SwitchLibrary(ctx, a.LibraryName); err != nil {
		return s.failure(err)
	}
	return s.success(librarySwitchPayload{
		Success:         true,
		LibraryName:     a.LibraryName,
		PreviousLibrary: previous,
		Stats:           s.cfg.Libraries.CurrentLibrary().Stats,
		Message:         fmt.Sprintf("Switched to library '%s'", a.LibraryName),
	})
}

func (s *ToolServer) currentLibraryInfo(context.Context, map[string]interface{}) *MCPToolCallResult {
	info := s.cfg.Libraries.CurrentLibrary()
	return s.success(libraryInfoPayload{LibraryName: info.Name, Stats: info.Stats})
}

// ---------------------------------------------------------------------------
// System JSON tools
// ---------------------------------------------------------------------------

var errDocumentsDisabled = errors.New("system JSON storage is not configured")

type systemJSONCreatedPayload struct {
	Success bool   `json:"success"`
	Name    string `json:"name"`
	Updated bool   `json:"updated"`
	Message string `json:"message"`
}

type systemJSONSearchPayload struct {
	Query   string                    `json:"query"`
	Results []systemjson.SearchResult `json:"results"`
	Total   int                       `json:"total"`
}

type systemJSONListPayload struct {
	Documents []types.SystemJSONSummary `json:"documents"`
	Total     int                       `json:"total"`
}

func (s *ToolServer) createSystemJSON(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	if s.cfg.Documents == nil {
		return s.failure(errDocumentsDisabled)
	}
	var a CreateSystemJSONArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	doc, updated, err := s.cfg.Documents.Create(ctx, systemjson.Input{
		Name:        a.Name,
		Domain:      a.Domain,
		Description: a.Description,
		Data:        a.Data,
		Tags:        a.Tags,
	})
	if err != nil {
		return s.failure(err)
	}
	verb := "created"
	if updated {
		verb = "updated"
	}
	return s.success(systemJSONCreatedPayload{
		Success: true,
		Name:    doc.Name,
		Updated: updated,
		Message: fmt.Sprintf("System JSON '%s' %s successfully", doc.Name, verb),
	})
}

func (s *ToolServer) getSystemJSON(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	if s.cfg.Documents == nil {
		return s.failure(errDocumentsDisabled)
	}
	var a NameArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	doc, err := s.cfg.Documents.Get(ctx, a.Name)
	if err != nil {
		return s.failure(err)
	}
	return s.success(doc)
}

func (s *ToolServer) searchSystemJSON(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	if s.cfg.Documents == nil {
		return s.failure(errDocumentsDisabled)
	}
	var a SearchArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	results, err := s.cfg.Documents.Search(ctx, a.Query)
	if err != nil {
		return s.failure(err)
	}
	if results == nil {
		results = []systemjson.SearchResult{}
	}
	return s.success(systemJSONSearchPayload{Query: a.Query, Results: results, Total: len(results)})
}

func (s *ToolServer) listSystemJSON(ctx context.Context, _ map[string]interface{}) *MCPToolCallResult {
	if s.cfg.Documents == nil {
		return s.failure(errDocumentsDisabled)
	}
	docs, err := s.cfg.Documents.List(ctx)
	if err != nil {
		return s.failure(err)
	}
	if docs == nil {
		docs = []types.SystemJSONSummary{}
	}
	return s.success(systemJSONListPayload{Documents: docs, Total: len(docs)})
}

// ---------------------------------------------------------------------------
// Generation tools
// ---------------------------------------------------------------------------

var errGeneratorDisabled = errors.New("text generation is not configured")

type modelsPayload struct {
	Provider string   `json:"provider"`
	Models   []string `json:"models"`
}

func (s *ToolServer) listModels(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	if s.cfg.Generator == nil {
		return s.failure(errGeneratorDisabled)
	}
	var a ListModelsArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	models, err := s.cfg.Generator.Models(ctx, a.Provider)
	if err != nil {
		return s.failure(err)
	}
	return s.success(modelsPayload{Provider: a.Provider, Models: models})
}

// generateText returns the model's text verbatim rather than a JSON payload.
func (s *ToolServer) generateText(ctx context.Context, args map[string]interface{}) *MCPToolCallResult {
	if s.cfg.Generator == nil {
		return s.failure(errGeneratorDisabled)
	}
	var a GenerateTextArgs
	if err := decodeArgs(args, &a); err != nil {
		return s.failure(err)
	}
	text, err := s.cfg.Generator.Generate(ctx, a.Provider, llm.Request{
		Model:         a.ModelName,
		Prompt:        a.Prompt,
		SystemMessage: a.SystemMessage,
		APIKey:        a.APIKey,
	})
	if err != nil {
		s.logger.Warn("mcp: generation failed",
			zap.String("provider", a.Provider),
			zap.String("model", a.ModelName),
			zap.Error(err))
		return s.failure(err)
	}
	return textResult(text, false)
}

// ---------------------------------------------------------------------------
// Result helpers
// ---------------------------------------------------------------------------

func (s *ToolServer) engineResult(res reasoning.Result) *MCPToolCallResult {
	return textResult(s.encode(res.Payload), res.IsError)
}

func (s *ToolServer) success(payload interface{}) *MCPToolCallResult {
	return textResult(s.encode(payload), false)
}

func (s *ToolServer) failure(err error) *MCPToolCallResult {
	return textResult(s.encode(reasoning.Failure{Error: err.Error(), Status: "failed"}), true)
}

func (s *ToolServer) encode(payload interface{}) string {
	text, err := IndentJSON(payload)
	if err != nil {
		s.logger.Error("mcp: failed to encode tool payload", zap.Error(err))
		text, _ = IndentJSON(reasoning.Failure{Error: err.Error(), Status: "failed"})
	}
	return text
}

// IndentJSON encodes v with two-space indentation and without HTML escaping.
func IndentJSON(v interface{}) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// decodeArgs copies args into dst and validates it. Type mismatches are
// reported per field in the same form as validation failures.
func decodeArgs(args map[string]interface{}, dst interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		var te *json.UnmarshalTypeError
		if errors.As(err, &te) && te.Field != "" {
			return validation.Invalid(te.Field, typeReason(te.Type))
		}
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return validation.Struct(dst)
}

func typeReason(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "must be a string"
	case reflect.Map:
		return "must be an object"
	case reflect.Slice:
		return "must be an array of strings"
	default:
		return "has the wrong type"
	}
}
