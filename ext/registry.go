package ext

import (
	"context"
	"log/slog"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// The registry is the event sink of both managers.
var (
	_ submission.Emitter = (*Registry)(nil)
	_ deletion.Emitter   = (*Registry)(nil)
)

// Named entry types pair a hook implementation with the extension name
// captured at registration time. This avoids type-asserting back to
// Extension inside the emit methods.
type itemEnqueuedEntry struct {
	name string
	hook ItemEnqueued
}
type attemptSucceededEntry struct {
	name string
	hook AttemptSucceeded
}
type attemptRetryingEntry struct {
	name string
	hook AttemptRetrying
}
type itemFailedEntry struct {
	name string
	hook ItemFailed
}
type deletionSubmittedEntry struct {
	name string
	hook DeletionSubmitted
}
type deletionCancelledEntry struct {
	name string
	hook DeletionCancelled
}
type deletionCompletedEntry struct {
	name string
	hook DeletionCompleted
}
type deletionFailedEntry struct {
	name string
	hook DeletionFailed
}
type confirmationSentEntry struct {
	name string
	hook DeletionConfirmationSent
}
type sweepCompletedEntry struct {
	name string
	hook SweepCompleted
}
type shutdownEntry struct {
	name string
	hook Shutdown
}
// Registry holds registered extensions and dispatches lifecycle events
// to them. It type-caches extensions at registration time so emit calls
// iterate only over extensions that implement the relevant hook.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	// Type-cached slices for each lifecycle hook.
	itemEnqueued      []itemEnqueuedEntry
	attemptSucceeded  []attemptSucceededEntry
	attemptRetrying   []attemptRetryingEntry
	itemFailed        []itemFailedEntry
	deletionSubmitted []deletionSubmittedEntry
	deletionCancelled []deletionCancelledEntry
	deletionCompleted []deletionCompletedEntry
	deletionFailed    []deletionFailedEntry
	confirmationSent  []confirmationSentEntry
	sweepCompleted    []sweepCompletedEntry
	shutdown          []shutdownEntry
}

// NewRegistry creates an extension registry with the given logger.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{logger: logger}
}

// Register adds an extension and type-asserts it into all applicable
// hook caches. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	if h, ok := e.(ItemEnqueued); ok {
		r.itemEnqueued = append(r.itemEnqueued, itemEnqueuedEntry{name, h})
	}
	if h, ok := e.(AttemptSucceeded); ok {
		r.attemptSucceeded = append(r.attemptSucceeded, attemptSucceededEntry{name, h})
	}
	if h, ok := e.(AttemptRetrying); ok {
		r.attemptRetrying = append(r.attemptRetrying, attemptRetryingEntry{name, h})
	}
	if h, ok := e.(ItemFailed); ok {
		r.itemFailed = append(r.itemFailed, itemFailedEntry{name, h})
	}
	if h, ok := e.(DeletionSubmitted); ok {
		r.deletionSubmitted = append(r.deletionSubmitted, deletionSubmittedEntry{name, h})
	}
	if h, ok := e.(DeletionCancelled); ok {
		r.deletionCancelled = append(r.deletionCancelled, deletionCancelledEntry{name, h})
	}
	if h, ok := e.(DeletionCompleted); ok {
		r.deletionCompleted = append(r.deletionCompleted, deletionCompletedEntry{name, h})
	}
	if h, ok := e.(DeletionFailed); ok {
		r.deletionFailed = append(r.deletionFailed, deletionFailedEntry{name, h})
	}
	if h, ok := e.(DeletionConfirmationSent); ok {
		r.confirmationSent = append(r.confirmationSent, confirmationSentEntry{name, h})
	}
	if h, ok := e.(SweepCompleted); ok {
		r.sweepCompleted = append(r.sweepCompleted, sweepCompletedEntry{name, h})
	}
	if h, ok := e.(Shutdown); ok {
		r.shutdown = append(r.shutdown, shutdownEntry{name, h})
	}
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// ──────────────────────────────────────────────────
// Submission event emitters
// ──────────────────────────────────────────────────

// EmitItemEnqueued notifies all extensions that implement ItemEnqueued.
func (r *Registry) EmitItemEnqueued(ctx context.Context, it *submission.Item) {
	for _, e := range r.itemEnqueued {
		if err := e.hook.OnItemEnqueued(ctx, it); err != nil {
			r.logHookError("OnItemEnqueued", e.name, err)
		}
	}
}

// EmitAttemptSucceeded notifies all extensions that implement AttemptSucceeded.
func (r *Registry) EmitAttemptSucceeded(ctx context.Context, it *submission.Item, elapsed time.Duration) {
	for _, e := range r.attemptSucceeded {
		if err := e.hook.OnAttemptSucceeded(ctx, it, elapsed); err != nil {
			r.logHookError("OnAttemptSucceeded", e.name, err)
		}
	}
}

// EmitAttemptRetrying notifies all extensions that implement AttemptRetrying.
func (r *Registry) EmitAttemptRetrying(ctx context.Context, it *submission.Item, attemptErr error, elapsed time.Duration) {
	for _, e := range r.attemptRetrying {
		if err := e.hook.OnAttemptRetrying(ctx, it, attemptErr, elapsed); err != nil {
			r.logHookError("OnAttemptRetrying", e.name, err)
		}
	}
}

// EmitItemFailed notifies all extensions that implement ItemFailed.
func (r *Registry) EmitItemFailed(ctx context.Context, it *submission.Item, attemptErr error, elapsed time.Duration) {
	for _, e := range r.itemFailed {
		if err := e.hook.OnItemFailed(ctx, it, attemptErr, elapsed); err != nil {
			r.logHookError("OnItemFailed", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Deletion event emitters
// ──────────────────────────────────────────────────

// EmitDeletionSubmitted notifies all extensions that implement DeletionSubmitted.
func (r *Registry) EmitDeletionSubmitted(ctx context.Context, req *deletion.Request) {
	for _, e := range r.deletionSubmitted {
		if err := e.hook.OnDeletionSubmitted(ctx, req); err != nil {
			r.logHookError("OnDeletionSubmitted", e.name, err)
		}
	}
}

// EmitDeletionCancelled notifies all extensions that implement DeletionCancelled.
func (r *Registry) EmitDeletionCancelled(ctx context.Context, req *deletion.Request) {
	for _, e := range r.deletionCancelled {
		if err := e.hook.OnDeletionCancelled(ctx, req); err != nil {
			r.logHookError("OnDeletionCancelled", e.name, err)
		}
	}
}

// EmitDeletionCompleted notifies all extensions that implement DeletionCompleted.
func (r *Registry) EmitDeletionCompleted(ctx context.Context, req *deletion.Request, elapsed time.Duration) {
	for _, e := range r.deletionCompleted {
		if err := e.hook.OnDeletionCompleted(ctx, req, elapsed); err != nil {
			r.logHookError("OnDeletionCompleted", e.name, err)
		}
	}
}

// EmitDeletionFailed notifies all extensions that implement DeletionFailed.
func (r *Registry) EmitDeletionFailed(ctx context.Context, req *deletion.Request, deleteErr error) {
	for _, e := range r.deletionFailed {
		if err := e.hook.OnDeletionFailed(ctx, req, deleteErr); err != nil {
			r.logHookError("OnDeletionFailed", e.name, err)
		}
	}
}

// EmitDeletionConfirmationSent notifies all extensions that implement DeletionConfirmationSent.
func (r *Registry) EmitDeletionConfirmationSent(ctx context.Context, req *deletion.Request, sendErr error) {
	for _, e := range r.confirmationSent {
		if err := e.hook.OnDeletionConfirmationSent(ctx, req, sendErr); err != nil {
			r.logHookError("OnDeletionConfirmationSent", e.name, err)
		}
	}
}

// EmitSweepCompleted notifies all extensions that implement SweepCompleted.
func (r *Registry) EmitSweepCompleted(ctx context.Context, report deletion.SweepReport) {
	for _, e := range r.sweepCompleted {
		if err := e.hook.OnSweepCompleted(ctx, report); err != nil {
			r.logHookError("OnSweepCompleted", e.name, err)
		}
	}
}

// ──────────────────────────────────────────────────
// Other event emitters
// ──────────────────────────────────────────────────

// EmitShutdown notifies all extensions that implement Shutdown.
func (r *Registry) EmitShutdown(ctx context.Context) {
	for _, e := range r.shutdown {
		if err := e.hook.OnShutdown(ctx); err != nil {
			r.logHookError("OnShutdown", e.name, err)
		}
	}
}

// logHookError logs a warning when a lifecycle hook returns an error.
// Errors from hooks are never propagated; they must not block the pipeline.
func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
