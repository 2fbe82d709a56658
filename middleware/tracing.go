package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// tracerName is the instrumentation scope name for dispatch tracing.
const tracerName = "github.com/bikramjeet/queue-service"

// Tracing returns middleware that wraps each dispatch operation in an
// OpenTelemetry span. If no TracerProvider is configured globally, the
// default noop tracer is used and this middleware becomes a
// pass-through with zero overhead.
//
// Span attributes include: queue.op, queue.op_id, queue.identifier,
// and queue.key when set. On error, the span status is set to
// codes.Error with the error message.
func Tracing() Middleware {
	tracer := otel.Tracer(tracerName)
	return TracingWithTracer(tracer)
}

// TracingWithTracer returns tracing middleware using the provided
// tracer. This variant allows injecting a specific TracerProvider for
// testing or when multiple providers are in use.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, op *Operation, next Handler) error {
		attrs := []attribute.KeyValue{
			attribute.String("queue.op", op.Name),
			attribute.String("queue.op_id", op.ID),
			attribute.String("queue.identifier", op.Identifier),
		}
		if op.Key != "" {
			attrs = append(attrs, attribute.String("queue.key", op.Key))
		}

		ctx, span := tracer.Start(ctx, "queueservice.dispatch",
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}

		return err
	}
}
