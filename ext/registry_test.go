package ext_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// ──────────────────────────────────────────────────
// Test extensions
// ──────────────────────────────────────────────────

// allHooksExt implements every lifecycle hook for testing.
type allHooksExt struct {
	calls []string
}

func (e *allHooksExt) Name() string { return "all-hooks" }

func (e *allHooksExt) record(name string) error {
	e.calls = append(e.calls, name)
	return nil
}

func (e *allHooksExt) OnItemEnqueued(context.Context, *submission.Item) error {
	return e.record("OnItemEnqueued")
}

func (e *allHooksExt) OnAttemptSucceeded(context.Context, *submission.Item, time.Duration) error {
	return e.record("OnAttemptSucceeded")
}

func (e *allHooksExt) OnAttemptRetrying(context.Context, *submission.Item, error, time.Duration) error {
	return e.record("OnAttemptRetrying")
}

func (e *allHooksExt) OnItemFailed(context.Context, *submission.Item, error, time.Duration) error {
	return e.record("OnItemFailed")
}

func (e *allHooksExt) OnDeletionSubmitted(context.Context, *deletion.Request) error {
	return e.record("OnDeletionSubmitted")
}

func (e *allHooksExt) OnDeletionCancelled(context.Context, *deletion.Request) error {
	return e.record("OnDeletionCancelled")
}

func (e *allHooksExt) OnDeletionCompleted(context.Context, *deletion.Request, time.Duration) error {
	return e.record("OnDeletionCompleted")
}

func (e *allHooksExt) OnDeletionFailed(context.Context, *deletion.Request, error) error {
	return e.record("OnDeletionFailed")
}

func (e *allHooksExt) OnDeletionConfirmationSent(context.Context, *deletion.Request, error) error {
	return e.record("OnDeletionConfirmationSent")
}

func (e *allHooksExt) OnSweepCompleted(context.Context, deletion.SweepReport) error {
	return e.record("OnSweepCompleted")
}

func (e *allHooksExt) OnShutdown(context.Context) error {
	return e.record("OnShutdown")
}

// submissionOnlyExt only implements two submission hooks.
type submissionOnlyExt struct {
	calls []string
}

func (e *submissionOnlyExt) Name() string { return "submission-only" }

func (e *submissionOnlyExt) OnItemEnqueued(context.Context, *submission.Item) error {
	e.calls = append(e.calls, "OnItemEnqueued")
	return nil
}

func (e *submissionOnlyExt) OnItemFailed(context.Context, *submission.Item, error, time.Duration) error {
	e.calls = append(e.calls, "OnItemFailed")
	return nil
}

// failingExt returns errors from hooks.
type failingExt struct{}

func (e *failingExt) Name() string { return "failing" }

func (e *failingExt) OnItemEnqueued(context.Context, *submission.Item) error {
	return errors.New("boom")
}

func (e *failingExt) OnShutdown(context.Context) error {
	return errors.New("shutdown boom")
}

// ──────────────────────────────────────────────────
// Tests
// ──────────────────────────────────────────────────

func TestRegistry_RegisterDiscoversInterfaces(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	r.Register(&allHooksExt{})

	if got := len(r.Extensions()); got != 1 {
		t.Fatalf("expected 1 extension, got %d", got)
	}
	if got := r.Extensions()[0].Name(); got != "all-hooks" {
		t.Fatalf("expected name 'all-hooks', got %q", got)
	}
}

func TestRegistry_EmitFiresOnlyImplementors(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	so := &submissionOnlyExt{}
	r.Register(all)
	r.Register(so)

	ctx := context.Background()
	it := &submission.Item{EmployeeID: "emp-1"}

	r.EmitItemEnqueued(ctx, it)
	if len(all.calls) != 1 || len(so.calls) != 1 {
		t.Fatalf("both should see OnItemEnqueued: all=%v so=%v", all.calls, so.calls)
	}

	r.EmitAttemptSucceeded(ctx, it, time.Second)
	if len(all.calls) != 2 {
		t.Fatalf("all: expected OnAttemptSucceeded, got %v", all.calls)
	}
	if len(so.calls) != 1 {
		t.Fatalf("so: should still have 1 call, got %v", so.calls)
	}
}

func TestRegistry_AllHooksFire(t *testing.T) {
	r := ext.NewRegistry(slog.Default())
	all := &allHooksExt{}
	r.Register(all)

	ctx := context.Background()
	it := &submission.Item{EmployeeID: "emp-1"}
	req := &deletion.Request{EmployeeID: "emp-1"}
	fail := errors.New("fail")

	r.EmitItemEnqueued(ctx, it)
	r.EmitAttemptSucceeded(ctx, it, time.Second)
	r.EmitAttemptRetrying(ctx, it, fail, time.Second)
	r.EmitItemFailed(ctx, it, fail, time.Second)
	r.EmitDeletionSubmitted(ctx, req)
	r.EmitDeletionCancelled(ctx, req)
	r.EmitDeletionCompleted(ctx, req, time.Second)
	r.EmitDeletionFailed(ctx, req, fail)
	r.EmitDeletionConfirmationSent(ctx, req, nil)
	r.EmitSweepCompleted(ctx, deletion.SweepReport{Ready: 1, Processed: 1})
	r.EmitShutdown(ctx)

	expected := []string{
		"OnItemEnqueued", "OnAttemptSucceeded", "OnAttemptRetrying", "OnItemFailed",
		"OnDeletionSubmitted", "OnDeletionCancelled", "OnDeletionCompleted",
		"OnDeletionFailed", "OnDeletionConfirmationSent", "OnSweepCompleted",
		"OnShutdown",
	}
	if len(all.calls) != len(expected) {
		t.Fatalf("expected %d calls, got %d: %v", len(expected), len(all.calls), all.calls)
	}
	for i, want := range expected {
		if all.calls[i] != want {
			t.Errorf("call[%d] = %q, want %q", i, all.calls[i], want)
		}
	}
}

func TestRegistry_HookErrorsLoggedNotPropagated(t *testing.T) {
	var buf bytes.Buffer
	r := ext.NewRegistry(slog.New(slog.NewTextHandler(&buf, nil)))
	all := &allHooksExt{}

	// Register failing first, then all-hooks. Both should be called.
	r.Register(&failingExt{})
	r.Register(all)

	ctx := context.Background()
	r.EmitItemEnqueued(ctx, &submission.Item{})
	r.EmitShutdown(ctx)

	if len(all.calls) != 2 {
		t.Fatalf("all: expected 2 calls despite failing ext, got %v", all.calls)
	}
	logged := buf.String()
	if !strings.Contains(logged, "hook=OnItemEnqueued") || !strings.Contains(logged, "extension=failing") {
		t.Errorf("hook error not logged: %s", logged)
	}
}

func TestRegistry_EmptyRegistryIsSafe(t *testing.T) {
	r := ext.NewRegistry(nil)
	ctx := context.Background()

	r.EmitItemEnqueued(ctx, &submission.Item{})
	r.EmitSweepCompleted(ctx, deletion.SweepReport{})
	r.EmitShutdown(ctx)
}
