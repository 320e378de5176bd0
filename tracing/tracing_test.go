package tracing_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace"

	"github.com/alexanderoster/AutodeskMachineControlFramework-sub000/tracing"
)

func TestExtractIDsWithoutSpanReturnsEmpty(t *testing.T) {
	traceID, spanID := tracing.ExtractIDs(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}

func TestExtractIDsWithValidSpanContext(t *testing.T) {
	tid, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	assert.NoError(t, err)
	sid, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	assert.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    tid,
		SpanID:     sid,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	gotTrace, gotSpan := tracing.ExtractIDs(ctx)
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", gotTrace)
	assert.Equal(t, "00f067aa0ba902b7", gotSpan)
}
