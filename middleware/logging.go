package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Logging logs the start and end of each attempt.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, it *submission.Item, next Handler) error {
		logger.Debug("attempt started",
			slog.String("item_id", it.ID.String()),
			slog.String("employee_id", it.EmployeeID),
			slog.String("action", string(it.Action)),
			slog.Int("retry_count", it.RetryCount),
		)

		start := time.Now()
		err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Warn("attempt failed",
				slog.String("item_id", it.ID.String()),
				slog.String("action", string(it.Action)),
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)
		} else {
			logger.Info("attempt succeeded",
				slog.String("item_id", it.ID.String()),
				slog.String("action", string(it.Action)),
				slog.Duration("elapsed", elapsed),
			)
		}
		return err
	}
}
