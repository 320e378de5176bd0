package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/logging"
)

func newJSONLogger(buf *bytes.Buffer) logging.Logger {
	return logging.New(slog.New(slog.NewJSONHandler(buf, nil)))
}

func TestInfoCtxWithoutSpanOmitsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)

	l.InfoCtx(context.Background(), "instance registered", "name", "ping")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "instance registered", record["msg"])
	assert.Equal(t, "ping", record["name"])
	_, hasTrace := record["trace_id"]
	assert.False(t, hasTrace)
}

func TestWarnCtxWithSpanAddsCorrelation(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)

	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	sid, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: tid, SpanID: sid, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	l.WarnCtx(ctx, "queue nearly full")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", record["trace_id"])
	assert.Equal(t, "00f067aa0ba902b7", record["span_id"])
}

func TestErrorCtxLogsAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	l := newJSONLogger(&buf)

	l.ErrorCtx(context.Background(), "archive write failed", "chunk_id", 3)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "ERROR", record["level"])
}

func TestNewWithNilBaseFallsBackToDefault(t *testing.T) {
	l := logging.New(nil)
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.InfoCtx(context.Background(), "no-op smoke test")
	})
}
