package action_test

import (
	"context"
	"errors"
	"testing"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
)

func okExecutor() action.Executor {
	return action.ExecutorFunc(func(_ context.Context, _ action.Request) (action.Result, error) {
		return action.Result{Success: true, StatusCode: 200}, nil
	})
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := action.NewRegistry()
	if err := r.Register(action.KindClockIn, okExecutor()); err != nil {
		t.Fatalf("Register: %v", err)
	}

	exec, ok := r.Get(action.KindClockIn)
	if !ok {
		t.Fatal("expected executor for clock-in")
	}
	res, err := exec.Execute(context.Background(), action.Request{Kind: action.KindClockIn})
	if err != nil || !res.Success {
		t.Fatalf("Execute = %+v, %v", res, err)
	}

	if _, ok := r.Get(action.KindClockOut); ok {
		t.Error("unexpected executor for clock-out")
	}
}

func TestRegistry_CustomKind(t *testing.T) {
	r := action.NewRegistry()
	lunch := action.Kind("lunch-break")
	if lunch.Builtin() {
		t.Fatal("lunch-break reported as built-in")
	}
	if err := r.Register(lunch, okExecutor()); err != nil {
		t.Fatalf("Register(lunch-break): %v", err)
	}
	if !r.Has(lunch) {
		t.Error("Has(lunch-break) = false after Register")
	}
	if err := r.Validate(lunch); err != nil {
		t.Errorf("Validate(lunch-break) = %v", err)
	}
	if err := r.Register(" ", okExecutor()); !errors.Is(err, timesheet.ErrInvalidInput) {
		t.Fatalf("blank kind err = %v, want ErrInvalidInput", err)
	}
}

func TestRegistry_RejectsNilExecutor(t *testing.T) {
	r := action.NewRegistry()
	if err := r.Register(action.KindClockIn, nil); !errors.Is(err, timesheet.ErrInvalidInput) {
		t.Fatalf("err = %v, want ErrInvalidInput", err)
	}
}

func TestRegistry_Validate(t *testing.T) {
	r := action.NewRegistry()
	_ = r.Register(action.KindClockIn, okExecutor())

	if err := r.Validate(); !errors.Is(err, timesheet.ErrUnknownAction) {
		t.Fatalf("Validate with clock-out missing = %v, want ErrUnknownAction", err)
	}
	if err := r.Validate(action.KindClockIn); err != nil {
		t.Fatalf("Validate(clock-in) = %v", err)
	}

	_ = r.Register(action.KindClockOut, okExecutor())
	if err := r.Validate(); err != nil {
		t.Fatalf("Validate with all kinds = %v", err)
	}
	if got := r.Registered(); len(got) != 2 || got[0] != action.KindClockIn {
		t.Errorf("Registered() = %v", got)
	}
}

func TestRegistry_ParseKind(t *testing.T) {
	r := action.NewRegistry()
	_ = r.Register(action.KindClockOut, okExecutor())
	_ = r.Register("break-end", okExecutor())

	if k, err := r.ParseKind("clock-out"); err != nil || k != action.KindClockOut {
		t.Fatalf("ParseKind(clock-out) = %q, %v", k, err)
	}
	if k, err := r.ParseKind("break-end"); err != nil || k != "break-end" {
		t.Fatalf("ParseKind(break-end) = %q, %v", k, err)
	}
	for _, s := range []string{"clock_out", "clock-in"} {
		if _, err := r.ParseKind(s); !errors.Is(err, timesheet.ErrUnknownAction) {
			t.Errorf("ParseKind(%s) err = %v, want ErrUnknownAction", s, err)
		}
	}
}
