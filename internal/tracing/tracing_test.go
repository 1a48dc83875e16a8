package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/scrypster/thinkgraph/internal/tracing"
)

func observed() (*zap.Logger, *observer.ObservedLogs) {
	core, logs := observer.New(zap.InfoLevel)
	return zap.New(core), logs
}

func TestNewProvider_ExportsEndedSpans(t *testing.T) {
	logger, logs := observed()
	tp := tracing.NewProvider("thinkgraph", "test", true, logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("t").Start(context.Background(), "tools/call")
	span.SetAttributes(attribute.String("rpc.method", "tools/call"))
	span.SetStatus(codes.Error, "boom")
	span.End()

	entries := logs.FilterMessage("trace: span ended").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "tools/call", fields["span"])
	assert.Equal(t, "tools/call", fields["rpc.method"])
	assert.Equal(t, "Error", fields["status"])
	assert.Equal(t, "boom", fields["status_message"])
	assert.Len(t, fields["trace_id"], 32)
}

func TestNewProvider_WithoutExport(t *testing.T) {
	logger, logs := observed()
	tp := tracing.NewProvider("thinkgraph", "test", false, logger)
	defer func() { _ = tp.Shutdown(context.Background()) }()

	_, span := tp.Tracer("t").Start(context.Background(), "list_tools")
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	assert.Zero(t, logs.Len())
}

func TestLogExporter_DropsAfterShutdown(t *testing.T) {
	logger, logs := observed()
	exp := tracing.NewLogExporter(logger)
	require.NoError(t, exp.Shutdown(context.Background()))

	spans := tracetest.SpanStubs{{Name: "late"}}.Snapshots()
	assert.NoError(t, exp.ExportSpans(context.Background(), spans))
	assert.Zero(t, logs.Len())
}
