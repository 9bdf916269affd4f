// Package notifyhook is an extension that turns lifecycle events into
// employee notifications.
//
// It sends the deletion confirmation on submit, the cancellation notice on
// cancel, and the manual-entry notice when a queued submission is
// abandoned. The completion notice is sent by the sweep itself so that
// its outcome can be audited.
package notifyhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/notify"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*Extension)(nil)
	_ ext.DeletionSubmitted = (*Extension)(nil)
	_ ext.DeletionCancelled = (*Extension)(nil)
	_ ext.ItemFailed        = (*Extension)(nil)
)

// ContextEmailKey is the submission context key holding the employee's
// address.
const ContextEmailKey = "email"

// RecipientResolver looks up an employee's address when the item does
// not carry one.
type RecipientResolver func(ctx context.Context, employeeID string) (string, error)

// Option configures an Extension.
type Option func(*Extension)

// WithResolver sets the fallback address lookup for submission items.
func WithResolver(r RecipientResolver) Option {
	return func(e *Extension) { e.resolve = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// Extension sends notifications for lifecycle events.
type Extension struct {
	notifier notify.Notifier
	resolve  RecipientResolver
	logger   *slog.Logger
}

// New creates an Extension that delivers through n.
func New(n notify.Notifier, opts ...Option) *Extension {
	e := &Extension{notifier: n, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "notify-hook" }

// OnDeletionSubmitted implements ext.DeletionSubmitted.
func (e *Extension) OnDeletionSubmitted(ctx context.Context, r *deletion.Request) error {
	return e.send(ctx, notify.DeletionConfirmation(r))
}

// OnDeletionCancelled implements ext.DeletionCancelled.
func (e *Extension) OnDeletionCancelled(ctx context.Context, r *deletion.Request) error {
	return e.send(ctx, notify.DeletionCancelled(r))
}

// OnItemFailed implements ext.ItemFailed.
func (e *Extension) OnItemFailed(ctx context.Context, it *submission.Item, _ error, _ time.Duration) error {
	to := it.Context[ContextEmailKey]
	if to == "" && e.resolve != nil {
		addr, err := e.resolve(ctx, it.EmployeeID)
		if err != nil {
			e.logger.Warn("notify_hook: resolve recipient",
				slog.String("employee_id", it.EmployeeID),
				slog.String("error", err.Error()),
			)
		}
		to = addr
	}
	if to == "" {
		e.logger.Warn("notify_hook: no recipient for failed submission",
			slog.String("item_id", it.ID.String()),
			slog.String("employee_id", it.EmployeeID),
		)
		return nil
	}
	return e.send(ctx, notify.SubmissionFailed(it, to))
}

// send returns the delivery error so the registry logs it under the
// hook name.
func (e *Extension) send(ctx context.Context, msg notify.Message) error {
	return e.notifier.Notify(ctx, msg)
}
