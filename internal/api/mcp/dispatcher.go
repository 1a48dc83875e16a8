package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// TracerName is the instrumentation name used for dispatch spans.
const TracerName = "github.com/scrypster/thinkgraph/internal/api/mcp"

// HandlerFunc handles one method. A returned error becomes a -32000 response
// carrying err.Error().
type HandlerFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

// RPCObserver receives one call per dispatched request. metrics.Collector
// implements it.
type RPCObserver interface {
	ObserveRPC(method string, failed bool, elapsed time.Duration)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the dispatcher's logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithTracerProvider sets where dispatch spans go. The default is the global
// provider.
func WithTracerProvider(tp trace.TracerProvider) DispatcherOption {
	return func(d *Dispatcher) {
		if tp != nil {
			d.tracer = tp.Tracer(TracerName)
		}
	}
}

// WithRPCObserver registers an observer for dispatch outcomes.
func WithRPCObserver(o RPCObserver) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// Dispatcher routes JSON-RPC requests to registered handlers. It keeps no
// per-request state and is safe for concurrent use.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	logger   *zap.Logger
	tracer   trace.Tracer
	observer RPCObserver
}

// NewDispatcher creates a dispatcher with no methods registered.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		logger:   zap.NewNop(),
		tracer:   otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds method to h. The last registration for a method wins.
func (d *Dispatcher) Register(method string, h HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[method] = h
}

// Handle executes req. The response always echoes req.ID.
func (d *Dispatcher) Handle(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	start := time.Now()

	ctx, span := d.tracer.Start(ctx, req.Method, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	span.SetAttributes(
		attribute.String("rpc.system", "jsonrpc"),
		attribute.String("rpc.method", req.Method),
	)

	d.mu.RLock()
	h, ok := d.handlers[req.Method]
	d.mu.RUnlock()

	if !ok {
		span.SetStatus(codes.Error, "method not found")
		d.observe(req.Method, true, start)
		return errorResponse(req.ID, ErrCodeMethodNotFound, fmt.Sprintf("Method not found: %s", req.Method))
	}

	result, err := d.invoke(ctx, h, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		d.observe(req.Method, true, start)
		d.logger.Warn("mcp: handler failed", zap.String("method", req.Method), zap.Error(err))
		return errorResponse(req.ID, ErrCodeServerError, err.Error())
	}

	span.SetStatus(codes.Ok, "")
	d.observe(req.Method, false, start)
	return &JSONRPCResponse{JSONRPC: "2.0", Result: result, ID: req.ID}
}

// HandleRaw parses one JSON message, dispatches it, and returns the encoded
// response. Unparseable input yields a -32700 response with a null id.
func (d *Dispatcher) HandleRaw(ctx context.Context, raw []byte) []byte {
	var req JSONRPCRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		d.logger.Debug("mcp: parse error", zap.Error(err))
		return encodeResponse(errorResponse(nil, ErrCodeParseError, "Parse error"))
	}
	return encodeResponse(d.Handle(ctx, &req))
}

// invoke runs h, turning a panic into an error so one bad handler cannot take
// a transport down.
func (d *Dispatcher) invoke(ctx context.Context, h HandlerFunc, req *JSONRPCRequest) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("mcp: handler panic", zap.String("method", req.Method), zap.Any("panic", r))
			result, err = nil, fmt.Errorf("%v", r)
		}
	}()
	return h(ctx, req.Params)
}

func (d *Dispatcher) observe(method string, failed bool, start time.Time) {
	if d.observer != nil {
		d.observer.ObserveRPC(method, failed, time.Since(start))
	}
}

func errorResponse(id interface{}, code int, message string) *JSONRPCResponse {
	return &JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &JSONRPCError{Code: code, Message: message},
		ID:      id,
	}
}

// encodeResponse marshals resp, falling back to a fixed internal error when a
// handler returned something that cannot be encoded.
func encodeResponse(resp *JSONRPCResponse) []byte {
	data, err := json.Marshal(resp)
	if err == nil {
		return data
	}
	fallback, ferr := json.Marshal(errorResponse(resp.ID, ErrCodeServerError, "failed to encode result: "+err.Error()))
	if ferr != nil {
		return []byte(`{"jsonrpc":"2.0","error":{"code":-32000,"message":"internal error"},"id":null}`)
	}
	return fallback
}
