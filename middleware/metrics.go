package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

const meterName = "github.com/adiazcan/timesheet-speck-kit-sub001"

// Metrics records attempt duration and count on the global MeterProvider.
//
// Instruments:
//   - timesheet.attempt.duration (Float64Histogram, seconds)
//   - timesheet.attempt.count (Int64Counter)
//
// Both carry the attributes action and status ("ok" or "error").
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter is Metrics with an explicit meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// The API returns noop instruments on error.
	duration, _ := meter.Float64Histogram(
		"timesheet.attempt.duration",
		metric.WithDescription("Duration of submission delivery attempts in seconds"),
		metric.WithUnit("s"),
	)
	attempts, _ := meter.Int64Counter(
		"timesheet.attempt.count",
		metric.WithDescription("Total number of submission delivery attempts"),
		metric.WithUnit("{attempt}"),
	)

	return func(ctx context.Context, it *submission.Item, next Handler) error {
		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("action", string(it.Action)),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		attempts.Add(ctx, 1, attrs)
		return err
	}
}
