package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/llm"
)

type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// messageBody is the error shape of the JSON-RPC and REST helper routes.
type messageBody struct {
	Message string `json:"message"`
}

type healthBody struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

type reasoningRequest struct {
	APIKey string `json:"apiKey"`
	Prompt string `json:"prompt"`
}

type sessionRequest struct {
	Goal        string `json:"goal"`
	LibraryName string `json:"libraryName"`
}

type sessionResponse struct {
	SessionID string `json:"sessionId"`
}

type handlers struct {
	deps   Deps
	logger *zap.Logger
}

func (h *handlers) health(w http.ResponseWriter, _ *http.Request) {
	version := h.deps.Version
	if version == "" {
		version = "dev"
	}
	writeJSON(w, http.StatusOK, healthBody{Status: "healthy", Version: version})
}

// rpc dispatches one JSON-RPC request. Protocol-level failures travel in the
// envelope with status 200; only an unreadable body is a 500.
func (h *handlers) rpc(w http.ResponseWriter, r *http.Request) {
	var req mcp.JSONRPCRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Dispatcher.Handle(r.Context(), &req))
}

// advancedReasoning runs prompt as a single, final reasoning step.
func (h *handlers) advancedReasoning(w http.ResponseWriter, r *http.Request) {
	var req reasoningRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: err.Error()})
		return
	}
	res := h.deps.Tools.Call(r.Context(), mcp.ToolAdvancedReasoning, map[string]interface{}{
		"thought":           req.Prompt,
		"thoughtNumber":     1,
		"totalThoughts":     1,
		"nextThoughtNeeded": false,
	})
	writeJSON(w, http.StatusOK, res)
}

func (h *handlers) providers(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.deps.Models.Providers())
}

func (h *handlers) models(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	if provider == "" {
		writeJSON(w, http.StatusBadRequest, messageBody{Message: "Provider not specified"})
		return
	}
	models, err := h.deps.Models.Models(r.Context(), provider)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, llm.ErrUnknownProvider) {
			status = http.StatusNotFound
		}
		writeJSON(w, status, messageBody{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, models)
}

func (h *handlers) session(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: err.Error()})
		return
	}
	id, err := h.deps.Sessions.CreateSession(r.Context(), req.Goal, req.LibraryName)
	if err != nil {
		h.logger.Warn("server: create session failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, messageBody{Message: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{SessionID: id})
}

// decodeBody reads at most mcp.MaxMessageSize bytes of JSON into dst.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, mcp.MaxMessageSize))
	if err != nil {
		return fmt.Errorf("read request body: %w", err)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return fmt.Errorf("parse request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
