package audithook

import (
	"context"
	"errors"
	"log/slog"
)

// LogRecorder writes audit events to a structured logger. It is the
// default sink when no durable trail is configured.
type LogRecorder struct {
	logger *slog.Logger
}

// NewLogRecorder returns a LogRecorder writing to l.
func NewLogRecorder(l *slog.Logger) *LogRecorder {
	if l == nil {
		l = slog.Default()
	}
	return &LogRecorder{logger: l}
}

// Record implements Recorder.
func (r *LogRecorder) Record(ctx context.Context, evt *AuditEvent) error {
	level := slog.LevelInfo
	switch evt.Severity {
	case SeverityWarning:
		level = slog.LevelWarn
	case SeverityCritical:
		level = slog.LevelError
	}
	r.logger.LogAttrs(ctx, level, "audit",
		slog.String("action", evt.Action),
		slog.String("resource", evt.Resource),
		slog.String("resource_id", evt.ResourceID),
		slog.String("employee_id", evt.EmployeeID),
		slog.String("outcome", evt.Outcome),
		slog.String("reason", evt.Reason),
		slog.Any("metadata", evt.Metadata),
	)
	return nil
}

// MultiRecorder sends every event to all recorders and joins their errors.
type MultiRecorder []Recorder

// Record implements Recorder.
func (m MultiRecorder) Record(ctx context.Context, evt *AuditEvent) error {
	var errs []error
	for _, r := range m {
		if err := r.Record(ctx, evt); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
