package action

import (
	"context"
	"time"
)

// Kind names an action that can be submitted to the HR system.
type Kind string

const (
	// KindClockIn records the start of a work period.
	KindClockIn Kind = "clock-in"
	// KindClockOut records the end of a work period.
	KindClockOut Kind = "clock-out"
)

// Kinds returns the built-in action kinds. A Registry may bind more.
func Kinds() []Kind { return []Kind{KindClockIn, KindClockOut} }

// Builtin reports whether k is one of Kinds.
func (k Kind) Builtin() bool {
	switch k {
	case KindClockIn, KindClockOut:
		return true
	}
	return false
}

// Request is one attempt to perform an action on behalf of an employee.
type Request struct {
	Kind       Kind
	EmployeeID string
	// Timestamp is when the employee performed the action, not when the
	// attempt runs.
	Timestamp time.Time
	Context   map[string]string
	// Attempt is 1 for the first retry made by the processor.
	Attempt int
}

// Result is what the HR system answered.
type Result struct {
	Success    bool           `json:"success"`
	StatusCode int            `json:"status_code,omitempty"`
	Error      string         `json:"error,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Executor performs an action against the HR system. A returned error is
// a failed attempt, the same as a Result with Success false.
type Executor interface {
	Execute(ctx context.Context, req Request) (Result, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, req Request) (Result, error)

// Execute calls f.
func (f ExecutorFunc) Execute(ctx context.Context, req Request) (Result, error) {
	return f(ctx, req)
}
