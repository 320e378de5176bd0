// Package tracing extracts OpenTelemetry trace/span identifiers from a
// context for log and event correlation, mirroring the teacher's
// engine/internal/telemetry/tracing helper.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// ExtractIDs returns the hex trace and span IDs recorded on ctx's current
// span, or empty strings if ctx carries no valid span context.
func ExtractIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
