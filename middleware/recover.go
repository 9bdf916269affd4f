package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Recover converts a panic in the chain into an error so that one
// misbehaving executor cannot take the processor down.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, it *submission.Item, next Handler) (retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("executor panicked",
					slog.String("item_id", it.ID.String()),
					slog.String("action", string(it.Action)),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				retErr = fmt.Errorf("panic while executing %s: %v", it.Action, r)
			}
		}()
		return next(ctx)
	}
}
