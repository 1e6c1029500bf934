package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/trace"
)

func TestInstrument_JSONAddsTraceContext(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelInfo, Format: "json", Writer: &buf})
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	slog.DebugContext(ctx, "hidden")
	slog.InfoContext(ctx, "device code obtained", "provider", "copilot")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record), buf.String())
	assert.Equal(t, "device code obtained", record["msg"])
	assert.Equal(t, "copilot", record["provider"])
	assert.Equal(t, sc.TraceID().String(), record["trace_id"])
	assert.Equal(t, sc.SpanID().String(), record["span_id"])
}

func TestInstrument_TextWithoutSpan(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	_, err := Instrument(context.Background(), Options{Level: slog.LevelDebug, Format: "TEXT", Writer: &buf})
	require.NoError(t, err)

	slog.Debug("polling", "attempt", 1)

	assert.Contains(t, buf.String(), "msg=polling")
	assert.NotContains(t, buf.String(), "trace_id")
}

func TestInstrument_Otel(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	shutdown, err := Instrument(context.Background(), Options{Level: slog.LevelWarn, Format: "otel", Writer: &buf})
	require.NoError(t, err)

	slog.Info("filtered out")
	slog.Warn("window closed", "provider", "anthropic")
	require.NoError(t, shutdown(context.Background()))

	assert.Contains(t, buf.String(), "window closed")
	assert.NotContains(t, buf.String(), "filtered out")
}

func TestInstrument_Errors(t *testing.T) {
	_, err := Instrument(context.Background(), Options{Format: "xml"})
	assert.ErrorContains(t, err, "unsupported log format")

	_, err = Instrument(context.Background(), Options{Format: "otel", OTLPEndpoint: "localhost:4317", OTLPProtocol: "carrier-pigeon"})
	assert.ErrorContains(t, err, "unsupported OTLP protocol")
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, minsev.SeverityDebug, severity(slog.LevelDebug))
	assert.Equal(t, minsev.SeverityInfo, severity(slog.LevelInfo))
	assert.Equal(t, minsev.SeverityWarn, severity(slog.LevelWarn))
	assert.Equal(t, minsev.SeverityError, severity(slog.LevelError+4))
}

func TestContextWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newContextHandler(slog.NewJSONHandler(&buf, nil), true))

	ctx := ContextWithAttrs(context.Background(), slog.String("provider", "anthropic"))
	ctx = ContextWithAttrs(ctx, slog.String("request_id", "r-1"))
	assert.Equal(t, ctx, ContextWithAttrs(ctx))

	logger.InfoContext(ctx, "starting login")
	logger.Info("no context attrs")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var first, second map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &first))
	require.NoError(t, json.Unmarshal(lines[1], &second))
	assert.Equal(t, "anthropic", first["provider"])
	assert.Equal(t, "r-1", first["request_id"])
	assert.NotContains(t, second, "provider")
}

func TestContextHandler_WithoutTrace(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newContextHandler(slog.NewJSONHandler(&buf, nil), false))

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: trace.TraceID{0x01},
		SpanID:  trace.SpanID{0x01},
	})
	logger.InfoContext(trace.ContextWithSpanContext(context.Background(), sc), "x")

	assert.NotContains(t, buf.String(), "trace_id")
}
