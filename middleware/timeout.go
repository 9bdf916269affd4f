package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Timeout bounds a single attempt. A non-positive d disables the bound.
func Timeout(d time.Duration, logger *slog.Logger) Middleware {
	return func(ctx context.Context, it *submission.Item, next Handler) error {
		if d <= 0 {
			return next(ctx)
		}
		logger.Debug("attempt deadline set",
			slog.String("item_id", it.ID.String()),
			slog.Duration("timeout", d),
		)
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
