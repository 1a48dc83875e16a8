// Package server provides the HTTP front end for thinkgraph: JSON-RPC over
// POST /mcp and /ws, the REST helper endpoints, health and metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/config"
)

// ToolCaller runs MCP tools. *mcp.ToolServer implements it.
type ToolCaller interface {
	Call(ctx context.Context, name string, args map[string]interface{}) *mcp.MCPToolCallResult
}

// SessionCreator starts reasoning sessions. *memory.Store implements it.
type SessionCreator interface {
	CreateSession(ctx context.Context, goal, library string) (string, error)
}

// ModelCatalog lists providers and their models. *llm.Registry implements it.
type ModelCatalog interface {
	Providers() []string
	Models(ctx context.Context, provider string) ([]string, error)
}

// Deps are the components the HTTP routes call into. Dispatcher, Tools,
// Sessions and Models are required; Metrics is optional.
type Deps struct {
	Dispatcher *mcp.Dispatcher
	Tools      ToolCaller
	Sessions   SessionCreator
	Models     ModelCatalog
	Metrics    http.Handler
	Logger     *zap.Logger
	Version    string
}

func (d Deps) validate() error {
	switch {
	case d.Dispatcher == nil:
		return errors.New("server: dispatcher is required")
	case d.Tools == nil:
		return errors.New("server: tools are required")
	case d.Sessions == nil:
		return errors.New("server: session creator is required")
	case d.Models == nil:
		return errors.New("server: model catalog is required")
	}
	return nil
}

// NewRouter builds the HTTP handler. Feature flags in cfg decide whether the
// REST helpers, /ws and /metrics are mounted.
func NewRouter(cfg *config.Config, deps Deps) (http.Handler, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	h := &handlers{deps: deps, logger: deps.Logger}

	var limiter *RateLimiter
	if cfg.Server.RateLimit > 0 {
		limiter = NewRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(requestLogger(deps.Logger))
	r.Use(securityHeaders)
	r.Use(RateLimit(limiter))
	if len(cfg.Server.AllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: cfg.Server.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders: []string{"X-Request-ID"},
			MaxAge:         300,
		}))
	}

	// Unauthenticated: monitoring and the WebSocket transport, which relies on
	// origin checks.
	r.Get("/api/health", h.health)
	if cfg.Features.EnableMetrics && deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics)
	}
	if cfg.Features.EnableWebSocket {
		r.Handle("/ws", mcp.NewWebSocketTransport(deps.Dispatcher, cfg.Server.AllowedOrigins, deps.Logger))
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireAuth(cfg.Security))
		r.Post("/mcp", h.rpc)
		if cfg.Features.EnableREST {
			r.Post("/advanced-reasoning", h.advancedReasoning)
			r.Get("/providers", h.providers)
			r.Get("/models", h.models)
			r.Post("/session", h.session)
		}
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("Not Found"))
	})
	return r, nil
}

// Start listens on cfg.Server.Host:Port and serves handler until ctx is
// cancelled. It returns the bound address (useful with port 0) and a channel
// that receives the serve error, or nil after a clean shutdown.
func Start(ctx context.Context, cfg *config.Config, handler http.Handler, logger *zap.Logger) (string, <-chan error, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		// Generation calls can take as long as the provider timeout.
		WriteTimeout: cfg.LLM.Timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, fmt.Errorf("server: listen on %s: %w", addr, err)
	}
	actual := listener.Addr().String()
	logger.Info("server: listening", zap.String("addr", actual))

	done := make(chan error, 1)
	go func() {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		done <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server: shutdown", zap.Error(err))
		}
	}()

	return actual, done, nil
}
