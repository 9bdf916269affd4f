package ext

import (
	"context"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Submission lifecycle hooks
// ──────────────────────────────────────────────────

// ItemEnqueued is called after an item is durably queued.
type ItemEnqueued interface {
	OnItemEnqueued(ctx context.Context, it *submission.Item) error
}

// AttemptSucceeded is called after an attempt completes the item.
type AttemptSucceeded interface {
	OnAttemptSucceeded(ctx context.Context, it *submission.Item, elapsed time.Duration) error
}

// AttemptRetrying is called when an attempt fails and another is
// scheduled at it.NextRetryAt.
type AttemptRetrying interface {
	OnAttemptRetrying(ctx context.Context, it *submission.Item, err error, elapsed time.Duration) error
}

// ItemFailed is called when the last attempt fails and the item becomes
// terminally failed.
type ItemFailed interface {
	OnItemFailed(ctx context.Context, it *submission.Item, err error, elapsed time.Duration) error
}

// ──────────────────────────────────────────────────
// Deletion lifecycle hooks
// ──────────────────────────────────────────────────

// DeletionSubmitted is called after a deletion request is created.
type DeletionSubmitted interface {
	OnDeletionSubmitted(ctx context.Context, r *deletion.Request) error
}

// DeletionCancelled is called after a deletion request is cancelled.
type DeletionCancelled interface {
	OnDeletionCancelled(ctx context.Context, r *deletion.Request) error
}

// DeletionCompleted is called after an employee's data is erased.
type DeletionCompleted interface {
	OnDeletionCompleted(ctx context.Context, r *deletion.Request, elapsed time.Duration) error
}

// DeletionFailed is called when erasing an employee's data fails.
type DeletionFailed interface {
	OnDeletionFailed(ctx context.Context, r *deletion.Request, err error) error
}

// DeletionConfirmationSent is called after the completion notice was
// handed to the notifier. sendErr is nil when it was accepted.
type DeletionConfirmationSent interface {
	OnDeletionConfirmationSent(ctx context.Context, r *deletion.Request, sendErr error) error
}

// SweepCompleted is called once per deletion sweep pass.
type SweepCompleted interface {
	OnSweepCompleted(ctx context.Context, report deletion.SweepReport) error
}

// ──────────────────────────────────────────────────
// Other hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
