package runtime

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "statetree"

func newTracer(provider trace.TracerProvider) trace.Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return provider.Tracer(tracerName)
}

// startRequestSpan opens one span per dispatched operation.
func startRequestSpan(ctx context.Context, tracer trace.Tracer, rc RequestContext) (context.Context, trace.Span) {
	ctx, span := tracer.Start(ctx, "statetree."+rc.Operation, trace.WithSpanKind(trace.SpanKindInternal))
	span.SetAttributes(
		attribute.Int64("statetree.request_id", int64(rc.RequestID)),
		attribute.String("statetree.operation", rc.Operation),
		attribute.String("statetree.kind", rc.Kind),
		attribute.String("statetree.target.type", rc.Target.Type),
		attribute.String("statetree.target.id", rc.Target.ID),
	)
	return ctx, span
}

func endRequestSpan(span trace.Span, outcome string, err error) {
	span.SetAttributes(attribute.String("statetree.outcome", outcome))
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case outcome == OutcomeFailed:
		span.SetStatus(codes.Error, "domain failure")
	default:
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
