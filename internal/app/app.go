// Package app assembles thinkgraph's object graph from a Config: storage,
// memory, system JSON, LLM providers, the reasoning engine, metrics and the
// MCP dispatcher. Both binaries build exactly one App.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/scrypster/thinkgraph/internal/api/mcp"
	"github.com/scrypster/thinkgraph/internal/config"
	"github.com/scrypster/thinkgraph/internal/llm"
	"github.com/scrypster/thinkgraph/internal/memory"
	"github.com/scrypster/thinkgraph/internal/metrics"
	"github.com/scrypster/thinkgraph/internal/reasoning"
	"github.com/scrypster/thinkgraph/internal/server"
	"github.com/scrypster/thinkgraph/internal/storage"
	"github.com/scrypster/thinkgraph/internal/storage/backends"
	"github.com/scrypster/thinkgraph/internal/systemjson"
	"github.com/scrypster/thinkgraph/internal/tracing"
)

// Version is reported by initialize and /api/health. Release builds set it
// with -ldflags "-X github.com/scrypster/thinkgraph/internal/app.Version=...".
var Version = "dev"

// Option configures New.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	renderOut io.Writer
	blobs     storage.BlobStore
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRenderOutput redirects the rendered reasoning steps. The default is
// stderr.
func WithRenderOutput(w io.Writer) Option {
	return func(o *options) { o.renderOut = w }
}

// WithBlobStore supplies the blob store instead of opening the configured
// backend. The App takes ownership and closes it.
func WithBlobStore(b storage.BlobStore) Option {
	return func(o *options) { o.blobs = b }
}

// App holds the wired components.
type App struct {
	Config     *config.Config
	Logger     *zap.Logger
	Blobs      storage.BlobStore
	Memory     *memory.Store
	Documents  *systemjson.Store
	Models     *llm.Registry
	Engine     *reasoning.Engine
	Metrics    *metrics.Collector
	Tracer     *sdktrace.TracerProvider
	Dispatcher *mcp.Dispatcher
	Tools      *mcp.ToolServer
}

// New opens storage, loads the default library and wires every component.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config is required")
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	blobs := o.blobs
	if blobs == nil {
		var err error
		blobs, err = backends.Open(cfg.Storage, logger.Named("storage"))
		if err != nil {
			return nil, fmt.Errorf("app: open storage: %w", err)
		}
	}

	collector := metrics.NewCollector()

	mem, err := memory.New(ctx, blobs, cfg.Storage.DefaultLibrary,
		memory.WithLogger(logger.Named("memory")),
		memory.WithObserver(collector))
	if err != nil {
		_ = blobs.Close()
		return nil, fmt.Errorf("app: open memory: %w", err)
	}

	registry, err := llm.NewRegistryFromConfig(cfg.LLM, logger.Named("llm"), collector)
	if err != nil {
		_ = mem.Close(ctx)
		_ = blobs.Close()
		return nil, fmt.Errorf("app: build provider registry: %w", err)
	}

	engineOpts := []reasoning.Option{reasoning.WithLogger(logger.Named("reasoning"))}
	switch {
	case cfg.Reasoning.DisableLogging:
		engineOpts = append(engineOpts, reasoning.WithoutRendering())
	case o.renderOut != nil:
		engineOpts = append(engineOpts, reasoning.WithOutput(o.renderOut))
	}
	engine := reasoning.New(mem, engineOpts...)

	docs := systemjson.NewStore(blobs, logger.Named("systemjson"))

	tracer := tracing.NewProvider(mcp.ServerName, Version, cfg.Features.EnableTracing, logger.Named("trace"))

	dispatcher := mcp.NewDispatcher(
		mcp.WithLogger(logger.Named("mcp")),
		mcp.WithTracerProvider(tracer),
		mcp.WithRPCObserver(collector))

	tools, err := mcp.NewToolServer(mcp.ToolServerConfig{
		Reasoner:  engine,
		Libraries: mem,
		Documents: docs,
		Generator: registry,
		Observer:  collector,
		Logger:    logger.Named("tools"),
		Version:   Version,
	})
	if err != nil {
		_ = tracer.Shutdown(ctx)
		_ = mem.Close(ctx)
		_ = blobs.Close()
		return nil, fmt.Errorf("app: build tools: %w", err)
	}
	tools.Register(dispatcher)

	logger.Info("thinkgraph ready",
		zap.String("version", Version),
		zap.String("storage_engine", cfg.Storage.StorageEngine),
		zap.String("library", mem.CurrentLibrary().Name),
		zap.Strings("providers", registry.Providers()))

	return &App{
		Config:     cfg,
		Logger:     logger,
		Blobs:      blobs,
		Memory:     mem,
		Documents:  docs,
		Models:     registry,
		Engine:     engine,
		Metrics:    collector,
		Tracer:     tracer,
		Dispatcher: dispatcher,
		Tools:      tools,
	}, nil
}

// HTTPHandler builds the router for the HTTP binary.
func (a *App) HTTPHandler() (http.Handler, error) {
	return server.NewRouter(a.Config, server.Deps{
		Dispatcher: a.Dispatcher,
		Tools:      a.Tools,
		Sessions:   a.Memory,
		Models:     a.Models,
		Metrics:    a.Metrics.Handler(),
		Logger:     a.Logger.Named("http"),
		Version:    Version,
	})
}

// Close drains pending memory writes, flushes spans and closes storage.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if err := a.Tracer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
	}
	if err := a.Memory.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("close memory: %w", err))
	}
	if err := a.Blobs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	return errors.Join(errs...)
}
