package engine_test

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
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/engine"
	"github.com/adiazcan/timesheet-speck-kit-sub001/notify"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/memory"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// ──────────────────────────────────────────────────
// Test doubles
// ──────────────────────────────────────────────────

// flakyHR fails the first n calls with a 503 and succeeds afterwards.
type flakyHR struct {
	failures atomic.Int32
	calls    atomic.Int32
}

func (h *flakyHR) Execute(_ context.Context, _ action.Request) (action.Result, error) {
	h.calls.Add(1)
	if h.failures.Add(-1) >= 0 {
		return action.Result{StatusCode: 503, Error: "service unavailable"}, nil
	}
	return action.Result{Success: true, StatusCode: 200}, nil
}

type eraser struct{ calls atomic.Int32 }

func (e *eraser) DeleteAllData(context.Context, string) (int, error) {
	e.calls.Add(1)
	return 2, nil
}

type journal struct {
	mu      sync.Mutex
	actions []string
}

func (j *journal) Record(_ context.Context, evt *audithook.AuditEvent) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.actions = append(j.actions, evt.Action)
	return nil
}

func (j *journal) has(action string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, a := range j.actions {
		if a == action {
			return true
		}
	}
	return false
}

type outbox struct {
	mu   sync.Mutex
	msgs []notify.Message
}

func (o *outbox) Notify(_ context.Context, m notify.Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.msgs = append(o.msgs, m)
	return nil
}

func (o *outbox) kinds() []notify.Kind {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]notify.Kind, 0, len(o.msgs))
	for _, m := range o.msgs {
		out = append(out, m.Kind)
	}
	return out
}

type shutdownExt struct{ called atomic.Bool }

func (s *shutdownExt) Name() string { return "shutdown-probe" }

func (s *shutdownExt) OnShutdown(context.Context) error {
	s.called.Store(true)
	return nil
}

func build(t *testing.T, cfg timesheet.Config, opts ...engine.Option) *engine.Engine {
	t.Helper()
	eng, err := engine.Build(cfg, memory.New(), opts...)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return eng
}

func executors(exec action.Executor) []engine.Option {
	return []engine.Option{
		engine.WithActionExecutor(action.KindClockIn, exec),
		engine.WithActionExecutor(action.KindClockOut, exec),
	}
}

// ──────────────────────────────────────────────────
// Build
// ──────────────────────────────────────────────────

func TestBuild_NoStore(t *testing.T) {
	_, err := engine.Build(timesheet.DefaultConfig(), nil)
	if !errors.Is(err, timesheet.ErrNoStore) {
		t.Fatalf("expected ErrNoStore, got %v", err)
	}
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := timesheet.DefaultConfig()
	cfg.MaxRetries = 0
	_, err := engine.Build(cfg, memory.New())
	if !errors.Is(err, timesheet.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuild_MissingActionExecutor(t *testing.T) {
	_, err := engine.Build(timesheet.DefaultConfig(), memory.New(),
		engine.WithActionExecutor(action.KindClockIn, &flakyHR{}),
		engine.WithDeletionExecutor(&eraser{}),
	)
	if !errors.Is(err, timesheet.ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}

func TestBuild_MissingDeletionExecutor(t *testing.T) {
	_, err := engine.Build(timesheet.DefaultConfig(), memory.New(), executors(&flakyHR{})...)
	if !errors.Is(err, timesheet.ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestBuild_CustomActionKind(t *testing.T) {
	breakStart := action.Kind("break-start")
	opts := append(executors(&flakyHR{}),
		engine.WithActionExecutor(breakStart, &flakyHR{}),
		engine.WithDeletionExecutor(&eraser{}),
	)
	eng := build(t, timesheet.DefaultConfig(), opts...)

	if _, err := eng.Queue().Enqueue(context.Background(), submission.EnqueueParams{
		EmployeeID: "emp-1",
		Action:     breakStart,
		Timestamp:  time.Now(),
	}); err != nil {
		t.Fatalf("Enqueue(break-start): %v", err)
	}
	_, err := eng.Queue().Enqueue(context.Background(), submission.EnqueueParams{
		EmployeeID: "emp-1",
		Action:     "break-end",
		Timestamp:  time.Now(),
	})
	if !errors.Is(err, timesheet.ErrUnknownAction) {
		t.Fatalf("unbound kind err = %v, want ErrUnknownAction", err)
	}
}

func TestBuild_RetryBackoffJitter(t *testing.T) {
	opts := append(executors(&flakyHR{}), engine.WithDeletionExecutor(&eraser{}))

	cfg := timesheet.DefaultConfig()
	cfg.RetryBackoffJitter = 0.2
	build(t, cfg, opts...)

	cfg.RetryBackoffJitter = 1.5
	if _, err := engine.Build(cfg, memory.New(), opts...); !errors.Is(err, timesheet.ErrInvalidConfig) {
		t.Fatalf("jitter 1.5: err = %v, want ErrInvalidConfig", err)
	}
}

func TestBuild_BadDeletionSchedule(t *testing.T) {
	cfg := timesheet.DefaultConfig()
	cfg.DeletionSchedule = "every now and then"
	opts := append(executors(&flakyHR{}), engine.WithDeletionExecutor(&eraser{}))
	if _, err := engine.Build(cfg, memory.New(), opts...); err == nil {
		t.Fatal("expected schedule parse error")
	}
}

func TestBuild_Accessors(t *testing.T) {
	opts := append(executors(&flakyHR{}),
		engine.WithDeletionExecutor(&eraser{}),
		engine.WithClaimant("node-a"),
	)
	eng := build(t, timesheet.DefaultConfig(), opts...)

	if eng.Claimant() != "node-a" {
		t.Errorf("Claimant = %q, want node-a", eng.Claimant())
	}
	if eng.Queue().Claimant() != "node-a" {
		t.Errorf("queue claimant = %q, want node-a", eng.Queue().Claimant())
	}
	if got := eng.Actions().Registered(); len(got) != len(action.Kinds()) {
		t.Errorf("registered kinds = %v", got)
	}
	// The built-in metrics extension is always present.
	if len(eng.Extensions().Extensions()) != 1 {
		t.Errorf("extensions = %d, want 1", len(eng.Extensions().Extensions()))
	}
	if eng.Store() == nil || eng.Deletions() == nil || eng.Processor() == nil || eng.Sweeper() == nil {
		t.Error("accessor returned nil")
	}
}

// ──────────────────────────────────────────────────
// End-to-end flows
// ──────────────────────────────────────────────────

func TestEngine_RetryThenSucceed(t *testing.T) {
	ctx := context.Background()
	clock := timesheet.NewManualClock(t0)
	hr := &flakyHR{}
	hr.failures.Store(1)
	audit := &journal{}

	opts := append(executors(hr),
		engine.WithDeletionExecutor(&eraser{}),
		engine.WithExtension(audithook.New(audit)),
		engine.WithClock(clock),
		engine.WithLogger(slog.Default()),
	)
	eng := build(t, timesheet.DefaultConfig(), opts...)

	it, err := eng.Queue().Enqueue(ctx, submission.EnqueueParams{
		EmployeeID:   "emp-1",
		Action:       action.KindClockIn,
		Timestamp:    t0,
		ErrorMessage: "503 Service Unavailable",
		StatusCode:   503,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	clock.Advance(time.Minute)
	report, err := eng.Processor().RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Retrying != 1 {
		t.Fatalf("first cycle: %+v, want one retrying", report)
	}

	clock.Advance(time.Minute)
	report, err = eng.Processor().RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("second cycle: %+v, want one success", report)
	}

	got, err := eng.Queue().GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != submission.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}
	if hr.calls.Load() != 2 {
		t.Errorf("executor calls = %d, want 2", hr.calls.Load())
	}
	for _, a := range []string{audithook.ActionSubmissionQueued, audithook.ActionSubmissionRetrying, audithook.ActionSubmissionSucceeded} {
		if !audit.has(a) {
			t.Errorf("audit trail missing %s", a)
		}
	}

	stats, err := eng.Queue().GetStatistics(ctx, "")
	if err != nil {
		t.Fatalf("GetStatistics: %v", err)
	}
	if stats.Completed != 1 || stats.Total != 1 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestEngine_DeletionAfterWindow(t *testing.T) {
	ctx := context.Background()
	clock := timesheet.NewManualClock(t0)
	erase := &eraser{}
	mail := &outbox{}
	audit := &journal{}

	opts := append(executors(&flakyHR{}),
		engine.WithDeletionExecutor(erase),
		engine.WithNotifier(mail),
		engine.WithExtension(audithook.New(audit)),
		engine.WithClock(clock),
	)
	cfg := timesheet.DefaultConfig()
	eng := build(t, cfg, opts...)

	req, err := eng.Deletions().SubmitRequest(ctx, deletion.SubmitParams{
		EmployeeID: "emp-1",
		Email:      "emp-1@example.com",
		Name:       "Emp One",
	})
	if err != nil {
		t.Fatalf("SubmitRequest: %v", err)
	}

	clock.Advance(cfg.DeletionWindow - time.Hour)
	report, err := eng.Sweeper().RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Processed != 0 || erase.calls.Load() != 0 {
		t.Fatalf("processed before the window elapsed: %+v", report)
	}

	clock.Advance(2 * time.Hour)
	report, err = eng.Sweeper().RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if report.Processed != 1 || report.ConversationsDeleted != 2 {
		t.Fatalf("report = %+v, want one processed", report)
	}

	got, err := eng.Deletions().GetRequest(ctx, req.ID, "emp-1")
	if err != nil {
		t.Fatalf("GetRequest: %v", err)
	}
	if got.Status != deletion.StatusCompleted {
		t.Errorf("status = %s, want completed", got.Status)
	}

	kinds := mail.kinds()
	if len(kinds) != 1 || kinds[0] != notify.KindDeletionCompleted {
		t.Errorf("notifications = %v, want one completion notice", kinds)
	}
	for _, a := range []string{audithook.ActionDeletionRequested, audithook.ActionDeletionCompleted, audithook.ActionDeletionSweepFinished} {
		if !audit.has(a) {
			t.Errorf("audit trail missing %s", a)
		}
	}
}

func TestEngine_StartStop(t *testing.T) {
	ctx := context.Background()
	clock := timesheet.NewManualClock(t0)
	probe := &shutdownExt{}

	cfg := timesheet.DefaultConfig()
	cfg.RetryPollInterval = 10 * time.Millisecond
	cfg.DeletionStartupDelay = time.Hour

	opts := append(executors(&flakyHR{}),
		engine.WithDeletionExecutor(&eraser{}),
		engine.WithExtension(probe),
		engine.WithClock(clock),
	)
	eng := build(t, cfg, opts...)

	it, err := eng.Queue().Enqueue(ctx, submission.EnqueueParams{
		EmployeeID: "emp-2",
		Action:     action.KindClockOut,
		Timestamp:  t0,
	})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	clock.Advance(time.Minute)

	if err := eng.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		got, err := eng.Queue().GetItem(ctx, it.ID)
		if err != nil {
			t.Fatalf("GetItem: %v", err)
		}
		if got.Status == submission.StatusCompleted {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("item still %s after 2s", got.Status)
		}
		time.Sleep(10 * time.Millisecond)
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := eng.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !probe.called.Load() {
		t.Error("shutdown hook not called")
	}
}
