package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	audithook "github.com/adiazcan/timesheet-speck-kit-sub001/audit_hook"
	"github.com/adiazcan/timesheet-speck-kit-sub001/backoff"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/middleware"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/memory"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
	"github.com/adiazcan/timesheet-speck-kit-sub001/worker"
)

var _ worker.Emitter = (*ext.Registry)(nil)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

type fixture struct {
	store    *memory.Store
	queue    *submission.Queue
	registry *action.Registry
	clock    *timesheet.ManualClock
}

func newFixture(t *testing.T, exec action.Executor) *fixture {
	t.Helper()
	clock := timesheet.NewManualClock(t0)
	st := memory.New()
	reg := action.NewRegistry()
	for _, k := range action.Kinds() {
		if err := reg.Register(k, exec); err != nil {
			t.Fatalf("register %s: %v", k, err)
		}
	}
	return &fixture{
		store:    st,
		queue:    submission.NewQueue(st, submission.WithClock(clock)),
		registry: reg,
		clock:    clock,
	}
}

func (f *fixture) processor(opts ...worker.Option) *worker.Processor {
	opts = append([]worker.Option{worker.WithClock(f.clock)}, opts...)
	return worker.NewProcessor(f.queue, f.registry, opts...)
}

func (f *fixture) enqueue(t *testing.T, employee string) *submission.Item {
	t.Helper()
	it, err := f.queue.Enqueue(context.Background(), submission.EnqueueParams{
		EmployeeID:   employee,
		Action:       action.KindClockIn,
		Timestamp:    t0.Add(-time.Minute),
		ErrorMessage: "503 Service Unavailable",
		StatusCode:   503,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	return it
}

func (f *fixture) item(t *testing.T, it *submission.Item) *submission.Item {
	t.Helper()
	got, err := f.queue.GetItem(context.Background(), it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	return got
}

func failing(code int) action.Executor {
	return action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		return action.Result{Success: false, StatusCode: code, Error: "service unavailable"}, nil
	})
}

func succeeding() action.Executor {
	return action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		return action.Result{Success: true, StatusCode: 200}, nil
	})
}

func TestRunOnce_SkipsItemsNotYetDue(t *testing.T) {
	var calls atomic.Int32
	f := newFixture(t, action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		calls.Add(1)
		return action.Result{Success: true}, nil
	}))
	f.enqueue(t, "emp-1")

	report, err := f.processor().RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Fetched != 0 || calls.Load() != 0 {
		t.Fatalf("item attempted before its retry time: %+v calls=%d", report, calls.Load())
	}
}

func TestRunOnce_Success(t *testing.T) {
	f := newFixture(t, succeeding())
	it := f.enqueue(t, "emp-1")
	f.clock.Advance(time.Second)

	report, err := f.processor().RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}
	got := f.item(t, it)
	if got.Status != submission.StatusCompleted || got.CompletedAt == nil {
		t.Errorf("status = %s completed_at = %v", got.Status, got.CompletedAt)
	}
}

func TestRunOnce_RetriesThenFails(t *testing.T) {
	f := newFixture(t, failing(503))
	it := f.enqueue(t, "emp-1")
	p := f.processor()
	ctx := context.Background()

	// Due after 1s, then 2s, then 4s.
	for i, wait := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		f.clock.Advance(wait - time.Millisecond)
		if r, _ := p.RunOnce(ctx); r.Fetched != 0 {
			t.Fatalf("attempt %d ran early", i+1)
		}
		f.clock.Advance(time.Millisecond)
		if _, err := p.RunOnce(ctx); err != nil {
			t.Fatalf("RunOnce: %v", err)
		}
	}

	got := f.item(t, it)
	if got.Status != submission.StatusFailed {
		t.Fatalf("status = %s, want failed", got.Status)
	}
	if got.RetryCount != 3 {
		t.Errorf("retry count = %d, want 3", got.RetryCount)
	}
	if got.LastStatusCode != 503 {
		t.Errorf("last status = %d", got.LastStatusCode)
	}

	f.clock.Advance(time.Hour)
	if r, _ := p.RunOnce(ctx); r.Fetched != 0 {
		t.Error("failed item was fetched again")
	}
}

type hookRecorder struct {
	mu        sync.Mutex
	succeeded int
	retrying  int
	failed    []*submission.Item
}

func (h *hookRecorder) Name() string { return "recorder" }

func (h *hookRecorder) OnAttemptSucceeded(context.Context, *submission.Item, time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.succeeded++
	return nil
}

func (h *hookRecorder) OnAttemptRetrying(context.Context, *submission.Item, error, time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.retrying++
	return nil
}

func (h *hookRecorder) OnItemFailed(_ context.Context, it *submission.Item, _ error, _ time.Duration) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.failed = append(h.failed, it)
	return nil
}

func TestRunOnce_EmitsHooks(t *testing.T) {
	f := newFixture(t, failing(500))
	rec := &hookRecorder{}
	reg := ext.NewRegistry(slog.Default())
	reg.Register(rec)
	p := f.processor(worker.WithEmitter(reg))
	f.enqueue(t, "emp-1")

	for _, wait := range []time.Duration{time.Second, 2 * time.Second, 4 * time.Second} {
		f.clock.Advance(wait)
		if _, err := p.RunOnce(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	if rec.retrying != 2 {
		t.Errorf("retrying hooks = %d, want 2", rec.retrying)
	}
	if len(rec.failed) != 1 || rec.failed[0].Status != submission.StatusFailed {
		t.Fatalf("failed hooks = %+v", rec.failed)
	}
}

func TestRunOnce_AuditFailureDoesNotChangeOutcome(t *testing.T) {
	f := newFixture(t, succeeding())
	reg := ext.NewRegistry(slog.Default())
	reg.Register(audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("audit store offline")
	})))
	it := f.enqueue(t, "emp-1")
	f.clock.Advance(time.Second)

	report, err := f.processor(worker.WithEmitter(reg)).RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := f.item(t, it); got.Status != submission.StatusCompleted {
		t.Errorf("status = %s", got.Status)
	}
}

func TestRunOnce_PanicIsolatedToItem(t *testing.T) {
	f := newFixture(t, action.ExecutorFunc(func(_ context.Context, req action.Request) (action.Result, error) {
		if req.EmployeeID == "emp-panic" {
			panic("executor bug")
		}
		return action.Result{Success: true}, nil
	}))
	bad := f.enqueue(t, "emp-panic")
	good := f.enqueue(t, "emp-ok")
	f.clock.Advance(time.Second)

	p := f.processor(worker.WithMiddleware(middleware.Recover(slog.Default())))
	report, err := p.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Succeeded != 1 || report.Retrying != 1 {
		t.Fatalf("report = %+v", report)
	}
	if got := f.item(t, good); got.Status != submission.StatusCompleted {
		t.Errorf("good item status = %s", got.Status)
	}
	if got := f.item(t, bad); got.Status != submission.StatusPending || got.RetryCount != 1 {
		t.Errorf("panicking item = %s retry %d", got.Status, got.RetryCount)
	}
}

func TestRunOnce_PanicWithoutRecoverMiddleware(t *testing.T) {
	f := newFixture(t, action.ExecutorFunc(func(_ context.Context, req action.Request) (action.Result, error) {
		if req.EmployeeID == "emp-panic" {
			panic("executor bug")
		}
		return action.Result{Success: true}, nil
	}))
	f.enqueue(t, "emp-panic")
	f.enqueue(t, "emp-ok")
	f.clock.Advance(time.Second)

	report, err := f.processor().RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Errors != 1 || report.Succeeded != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestRunOnce_ExecutorError(t *testing.T) {
	f := newFixture(t, action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		return action.Result{}, errors.New("connection refused")
	}))
	it := f.enqueue(t, "emp-1")
	f.clock.Advance(time.Second)

	if _, err := f.processor().RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	got := f.item(t, it)
	if got.Status != submission.StatusPending || got.LastError != "connection refused" {
		t.Errorf("status = %s last error = %q", got.Status, got.LastError)
	}
}

func TestRunOnce_UnregisteredActionCountsAsFailure(t *testing.T) {
	clock := timesheet.NewManualClock(t0)
	q := submission.NewQueue(memory.New(), submission.WithClock(clock))
	it, err := q.Enqueue(context.Background(), submission.EnqueueParams{
		EmployeeID: "emp-1", Action: action.KindClockOut, Timestamp: t0,
	})
	if err != nil {
		t.Fatal(err)
	}
	clock.Advance(time.Second)

	p := worker.NewProcessor(q, action.NewRegistry(), worker.WithClock(clock))
	if _, err := p.RunOnce(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, _ := q.GetItem(context.Background(), it.ID)
	if got.RetryCount != 1 {
		t.Errorf("retry count = %d, want 1", got.RetryCount)
	}
}

func TestRunOnce_BatchSize(t *testing.T) {
	f := newFixture(t, succeeding())
	for range 5 {
		f.enqueue(t, "emp-1")
	}
	f.clock.Advance(time.Second)

	report, err := f.processor(worker.WithBatchSize(2)).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Fetched != 2 || report.Succeeded != 2 {
		t.Errorf("report = %+v", report)
	}
}

func TestRunOnce_CancelledContextStopsBetweenItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	f := newFixture(t, action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		calls.Add(1)
		cancel()
		return action.Result{Success: true}, nil
	}))
	first := f.enqueue(t, "emp-1")
	f.enqueue(t, "emp-2")
	f.clock.Advance(time.Second)

	_, err := f.processor().RunOnce(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("executor calls = %d, want 1", calls.Load())
	}
	if got := f.item(t, first); got.Status != submission.StatusCompleted {
		t.Errorf("in-flight item was not recorded: %s", got.Status)
	}
}

func TestRunOnce_ReleasesStaleClaims(t *testing.T) {
	f := newFixture(t, succeeding())
	it := f.enqueue(t, "emp-1")
	f.clock.Advance(time.Second)

	// Another worker claims the item and disappears.
	other := submission.NewQueue(f.store, submission.WithClock(f.clock), submission.WithClaimant("crashed"))
	claimed, err := other.TryClaim(context.Background(), it)
	if err != nil || !claimed {
		t.Fatalf("TryClaim = %v, %v", claimed, err)
	}

	f.clock.Advance(6 * time.Minute)
	report, err := f.processor().RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Released != 1 || report.Succeeded != 1 {
		t.Errorf("report = %+v", report)
	}
}

func TestStartStop(t *testing.T) {
	st := memory.New()
	q := submission.NewQueue(st, submission.WithBackoff(backoff.NewConstant(0)))
	reg := action.NewRegistry()
	done := make(chan struct{}, 1)
	_ = reg.Register(action.KindClockIn, action.ExecutorFunc(func(context.Context, action.Request) (action.Result, error) {
		select {
		case done <- struct{}{}:
		default:
		}
		return action.Result{Success: true}, nil
	}))

	p := worker.NewProcessor(q, reg, worker.WithPollInterval(10*time.Millisecond))
	if err := p.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := q.Enqueue(context.Background(), submission.EnqueueParams{
		EmployeeID: "emp-1", Action: action.KindClockIn, Timestamp: time.Now(),
	}); err != nil {
		t.Fatal(err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("item was not processed")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if err := p.Stop(ctx); err != nil {
		t.Fatalf("second Stop: %v", err)
	}
}

func TestRateLimit(t *testing.T) {
	f := newFixture(t, succeeding())
	for range 3 {
		f.enqueue(t, "emp-1")
	}
	f.clock.Advance(time.Second)

	start := time.Now()
	report, err := f.processor(worker.WithRateLimit(20)).RunOnce(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if report.Succeeded != 3 {
		t.Fatalf("report = %+v", report)
	}
	// Burst of one: the second and third calls wait ~50ms each.
	if elapsed := time.Since(start); elapsed < 80*time.Millisecond {
		t.Errorf("rate limit not applied, elapsed %v", elapsed)
	}
}

func TestAttemptError(t *testing.T) {
	tests := []struct {
		err  worker.AttemptError
		want string
	}{
		{worker.AttemptError{StatusCode: 503, Message: "down"}, "status 503: down"},
		{worker.AttemptError{Message: "down"}, "down"},
		{worker.AttemptError{StatusCode: 429}, "status 429"},
	}
	for _, tt := range tests {
		if got := tt.err.Error(); got != tt.want {
			t.Errorf("Error() = %q, want %q", got, tt.want)
		}
	}
}
