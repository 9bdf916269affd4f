package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.ItemEnqueued      = (*MetricsExtension)(nil)
	_ ext.AttemptSucceeded  = (*MetricsExtension)(nil)
	_ ext.AttemptRetrying   = (*MetricsExtension)(nil)
	_ ext.ItemFailed        = (*MetricsExtension)(nil)
	_ ext.DeletionSubmitted = (*MetricsExtension)(nil)
	_ ext.DeletionCancelled = (*MetricsExtension)(nil)
	_ ext.DeletionCompleted = (*MetricsExtension)(nil)
	_ ext.DeletionFailed    = (*MetricsExtension)(nil)
	_ ext.SweepCompleted    = (*MetricsExtension)(nil)
)

const meterName = "github.com/adiazcan/timesheet-speck-kit-sub001/observability"

// MetricsExtension counts lifecycle events.
type MetricsExtension struct {
	ItemEnqueued      metric.Int64Counter
	ItemSucceeded     metric.Int64Counter
	ItemRetried       metric.Int64Counter
	ItemFailed        metric.Int64Counter
	DeletionSubmitted metric.Int64Counter
	DeletionCancelled metric.Int64Counter
	DeletionCompleted metric.Int64Counter
	DeletionFailed    metric.Int64Counter
	ConversationsGone metric.Int64Counter
	SweepDuration     metric.Float64Histogram
}

// NewMetricsExtension uses the global MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter uses the provided meter. Instrument
// creation errors fall back to the API's noop instruments.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc))
		return c
	}
	sweep, _ := meter.Float64Histogram("timesheet.deletion.sweep.duration",
		metric.WithDescription("Duration of deletion sweep passes in seconds"),
		metric.WithUnit("s"),
	)
	return &MetricsExtension{
		ItemEnqueued:      counter("timesheet.submission.enqueued", "Submissions queued for retry"),
		ItemSucceeded:     counter("timesheet.submission.succeeded", "Queued submissions delivered"),
		ItemRetried:       counter("timesheet.submission.retried", "Failed attempts rescheduled"),
		ItemFailed:        counter("timesheet.submission.failed", "Submissions abandoned after the retry budget"),
		DeletionSubmitted: counter("timesheet.deletion.submitted", "Deletion requests submitted"),
		DeletionCancelled: counter("timesheet.deletion.cancelled", "Deletion requests cancelled"),
		DeletionCompleted: counter("timesheet.deletion.completed", "Deletion requests carried out"),
		DeletionFailed:    counter("timesheet.deletion.failed", "Deletion attempts that failed"),
		ConversationsGone: counter("timesheet.deletion.conversations", "Conversations erased"),
		SweepDuration:     sweep,
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

func actionAttr(it *submission.Item) metric.AddOption {
	return metric.WithAttributes(attribute.String("action", string(it.Action)))
}

// OnItemEnqueued implements ext.ItemEnqueued.
func (m *MetricsExtension) OnItemEnqueued(ctx context.Context, it *submission.Item) error {
	m.ItemEnqueued.Add(ctx, 1, actionAttr(it))
	return nil
}

// OnAttemptSucceeded implements ext.AttemptSucceeded.
func (m *MetricsExtension) OnAttemptSucceeded(ctx context.Context, it *submission.Item, _ time.Duration) error {
	m.ItemSucceeded.Add(ctx, 1, actionAttr(it))
	return nil
}

// OnAttemptRetrying implements ext.AttemptRetrying.
func (m *MetricsExtension) OnAttemptRetrying(ctx context.Context, it *submission.Item, _ error, _ time.Duration) error {
	m.ItemRetried.Add(ctx, 1, actionAttr(it))
	return nil
}

// OnItemFailed implements ext.ItemFailed.
func (m *MetricsExtension) OnItemFailed(ctx context.Context, it *submission.Item, _ error, _ time.Duration) error {
	m.ItemFailed.Add(ctx, 1, actionAttr(it))
	return nil
}

// OnDeletionSubmitted implements ext.DeletionSubmitted.
func (m *MetricsExtension) OnDeletionSubmitted(ctx context.Context, _ *deletion.Request) error {
	m.DeletionSubmitted.Add(ctx, 1)
	return nil
}

// OnDeletionCancelled implements ext.DeletionCancelled.
func (m *MetricsExtension) OnDeletionCancelled(ctx context.Context, _ *deletion.Request) error {
	m.DeletionCancelled.Add(ctx, 1)
	return nil
}

// OnDeletionCompleted implements ext.DeletionCompleted.
func (m *MetricsExtension) OnDeletionCompleted(ctx context.Context, r *deletion.Request, _ time.Duration) error {
	m.DeletionCompleted.Add(ctx, 1)
	m.ConversationsGone.Add(ctx, int64(r.ConversationsDeleted))
	return nil
}

// OnDeletionFailed implements ext.DeletionFailed.
func (m *MetricsExtension) OnDeletionFailed(ctx context.Context, _ *deletion.Request, _ error) error {
	m.DeletionFailed.Add(ctx, 1)
	return nil
}

// OnSweepCompleted implements ext.SweepCompleted.
func (m *MetricsExtension) OnSweepCompleted(ctx context.Context, report deletion.SweepReport) error {
	m.SweepDuration.Record(ctx, report.Elapsed.Seconds())
	return nil
}
