package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestNewLogger_AddsTraceIDs(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", false)

	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "stage.skeleton")
	logger.InfoContext(ctx, "stage started", "stage", "skeleton")
	span.End()

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "stage started", rec["msg"])
	assert.Equal(t, span.SpanContext().TraceID().String(), rec["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), rec["span_id"])
}

func TestNewLogger_NoSpan(t *testing.T) {
	var buf bytes.Buffer
	NewLogger(&buf, "json", false).With("component", "cli").Info("hello")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.NotContains(t, rec, "trace_id")
	assert.Equal(t, "cli", rec["component"])
}

func TestNewLogger_Levels(t *testing.T) {
	var quiet, loud bytes.Buffer
	NewLogger(&quiet, "text", false).Debug("hidden")
	NewLogger(&loud, "text", true).Debug("shown")

	assert.Empty(t, quiet.String())
	assert.Contains(t, loud.String(), "msg=shown")
}

func TestSetup_NoopWhenEndpointEmpty(t *testing.T) {
	shutdown, err := Setup(context.Background(), "mcp-bootstrap", "test", "")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, shutdown(ctx), "noop shutdown ignores a cancelled context")
}

func TestSetup_CreatesProviderWhenEndpointSet(t *testing.T) {
	// Non-routable address; nothing is exported because no span is ended.
	shutdown, err := Setup(context.Background(), "mcp-bootstrap", "test", "http://192.0.2.1:4318")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
