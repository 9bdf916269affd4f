package deletion

import "context"

// Executor erases everything stored for an employee and reports how many
// conversations were removed. It must be idempotent: erasing an employee
// with no data left succeeds with a count of zero.
type Executor interface {
	DeleteAllData(ctx context.Context, employeeID string) (int, error)
}

// ExecutorFunc adapts a function to Executor.
type ExecutorFunc func(ctx context.Context, employeeID string) (int, error)

// DeleteAllData calls f.
func (f ExecutorFunc) DeleteAllData(ctx context.Context, employeeID string) (int, error) {
	return f(ctx, employeeID)
}
