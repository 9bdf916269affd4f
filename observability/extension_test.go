package observability_test

import (
	"context"
	"errors"
	"testing"
	"time"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/observability"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s is not an int64 sum", name)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func newTestItem() *submission.Item {
	return &submission.Item{ID: id.NewSubmissionID(), EmployeeID: "emp-1", Action: action.KindClockOut}
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("unexpected name %q", e.Name())
	}
}

func TestMetricsExtension_SubmissionCounters(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnItemEnqueued(ctx, newTestItem())
	_ = e.OnAttemptRetrying(ctx, newTestItem(), errors.New("x"), time.Millisecond)
	_ = e.OnAttemptRetrying(ctx, newTestItem(), errors.New("x"), time.Millisecond)
	_ = e.OnAttemptSucceeded(ctx, newTestItem(), time.Millisecond)
	_ = e.OnItemFailed(ctx, newTestItem(), errors.New("x"), time.Millisecond)

	tests := map[string]int64{
		"timesheet.submission.enqueued":  1,
		"timesheet.submission.retried":   2,
		"timesheet.submission.succeeded": 1,
		"timesheet.submission.failed":    1,
	}
	for name, want := range tests {
		if got := counterValue(t, reader, name); got != want {
			t.Errorf("%s = %d, want %d", name, got, want)
		}
	}
}

func TestMetricsExtension_DeletionCounters(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()
	r := &deletion.Request{ID: id.NewDeletionID(), ConversationsDeleted: 7}

	_ = e.OnDeletionSubmitted(ctx, r)
	_ = e.OnDeletionCancelled(ctx, r)
	_ = e.OnDeletionCompleted(ctx, r, time.Second)
	_ = e.OnDeletionFailed(ctx, r, errors.New("x"))
	_ = e.OnSweepCompleted(ctx, deletion.SweepReport{Elapsed: time.Second})

	if got := counterValue(t, reader, "timesheet.deletion.completed"); got != 1 {
		t.Errorf("completed = %d", got)
	}
	if got := counterValue(t, reader, "timesheet.deletion.conversations"); got != 7 {
		t.Errorf("conversations = %d", got)
	}
	if got := counterValue(t, reader, "timesheet.deletion.failed"); got != 1 {
		t.Errorf("failed = %d", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()
	reg := ext.NewRegistry(nil)
	reg.Register(e)

	reg.EmitItemEnqueued(context.Background(), newTestItem())
	if got := counterValue(t, reader, "timesheet.submission.enqueued"); got != 1 {
		t.Errorf("enqueued via registry = %d", got)
	}
}
