package interceptor

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Error kinds reported to a Recorder.
const (
	ErrorKindLoad          = "load"
	ErrorKindPut           = "put"
	ErrorKindInvalidate    = "invalidate"
	ErrorKindInvalidateAll = "invalidate_all"
)

// SpanName is the name of the span wrapping every dispatch.
const SpanName = "cache.dispatch"

// Recorder receives read outcomes and backend failures.
// Implementations must be safe for concurrent use.
type Recorder interface {
	RecordHit(cache, operation string)
	RecordMiss(cache, operation string)
	RecordError(cache, kind string)
}

type noopRecorder struct{}

func (noopRecorder) RecordHit(string, string)   {}
func (noopRecorder) RecordMiss(string, string)  {}
func (noopRecorder) RecordError(string, string) {}

func (d *Dispatcher) startSpan(ctx context.Context, plan *Plan) (context.Context, trace.Span) {
	return d.tracer.Start(ctx, SpanName,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("cache.operation", plan.Operation),
			attribute.String("cache.invocation_id", uuid.NewString()),
			attribute.StringSlice("cache.names", plan.CacheNames),
			attribute.Bool("cache.atomic", plan.Atomic),
		),
	)
}

func endSpan(span trace.Span, inv *invocation, err error) {
	span.SetAttributes(attribute.Bool("cache.hit", inv.hit.Load()))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
