package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

const tracerName = "github.com/adiazcan/timesheet-speck-kit-sub001"

// Tracing wraps each attempt in a span from the global TracerProvider.
// With no provider configured it is a no-op.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer is Tracing with an explicit tracer.
//
// Span attributes: timesheet.item.id, timesheet.employee.id,
// timesheet.action, timesheet.retry_count.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, it *submission.Item, next Handler) error {
		ctx, span := tracer.Start(ctx, "timesheet.submission.attempt",
			trace.WithAttributes(
				attribute.String("timesheet.item.id", it.ID.String()),
				attribute.String("timesheet.employee.id", it.EmployeeID),
				attribute.String("timesheet.action", string(it.Action)),
				attribute.Int("timesheet.retry_count", it.RetryCount),
			),
			trace.WithSpanKind(trace.SpanKindClient),
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
