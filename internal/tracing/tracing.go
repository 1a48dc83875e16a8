// Package tracing builds the OpenTelemetry tracer provider behind the
// dispatch spans, and an exporter that writes finished spans to the
// application logger.
package tracing

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

// NewProvider returns a provider whose spans carry service.name and
// service.version. With export set, every span is logged as it ends;
// otherwise spans are recorded and dropped.
func NewProvider(service, version string, export bool, logger *zap.Logger) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(
		attribute.String("service.name", service),
		attribute.String("service.version", version),
	)
	opts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}
	if export {
		// Simple processor: spans are written as soon as they end, no batching.
		opts = append(opts, sdktrace.WithSpanProcessor(
			sdktrace.NewSimpleSpanProcessor(NewLogExporter(logger))))
	}
	return sdktrace.NewTracerProvider(opts...)
}

// LogExporter is an sdktrace.SpanExporter that writes one log entry per
// span. It drops spans after Shutdown.
type LogExporter struct {
	logger *zap.Logger

	mu      sync.Mutex
	stopped bool
}

// NewLogExporter returns an exporter writing to logger.
func NewLogExporter(logger *zap.Logger) *LogExporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogExporter{logger: logger}
}

// ExportSpans implements sdktrace.SpanExporter.
func (e *LogExporter) ExportSpans(_ context.Context, spans []sdktrace.ReadOnlySpan) error {
	e.mu.Lock()
	stopped := e.stopped
	e.mu.Unlock()
	if stopped {
		return nil
	}

	for _, s := range spans {
		sc := s.SpanContext()
		status := s.Status()
		fields := []zap.Field{
			zap.String("span", s.Name()),
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
			zap.Duration("duration", s.EndTime().Sub(s.StartTime())),
			zap.String("status", status.Code.String()),
		}
		if status.Description != "" {
			fields = append(fields, zap.String("status_message", status.Description))
		}
		for _, kv := range s.Attributes() {
			fields = append(fields, zap.String(string(kv.Key), kv.Value.Emit()))
		}
		e.logger.Info("trace: span ended", fields...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *LogExporter) Shutdown(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopped = true
	return nil
}

var _ sdktrace.SpanExporter = (*LogExporter)(nil)
