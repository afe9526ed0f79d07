package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// SyncTracerName is the name used for the sync tracer
const SyncTracerName = "github.com/kmjayadeep/baskit-sub000/sync"

// Shared attribute keys for annotating sync spans with business
// context. Keeping them here avoids drift between instrumentation
// sites.
const (
	// AttrPrincipal is the attribute key for the syncing principal
	AttrPrincipal = attribute.Key("principal.id")
	// AttrDirection is the attribute key for the sync direction
	AttrDirection = attribute.Key("sync.direction")
	// AttrListCount is the attribute key for the number of lists in a snapshot
	AttrListCount = attribute.Key("sync.list_count")
)

// StartSpan starts a new span when the tracer is non-nil and otherwise
// returns a no-op span, so instrumented code degrades gracefully when
// tracing is disabled.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records an error on a span and marks the span status as
// failed. Nil spans and nil errors are handled safely. The status
// description stays generic so connection strings and statement text
// never end up in the trace status; the detail lives on the span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
