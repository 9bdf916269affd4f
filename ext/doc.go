// Package ext defines the extension system for the timesheet pipeline.
//
// Extensions are notified of lifecycle events and react to them: audit
// records, notifications to the employee, metrics. Each lifecycle hook is
// a separate interface so extensions opt in only to the events they care
// about.
//
// # Implementing an Extension
//
//	type MyExtension struct{}
//
//	func (e *MyExtension) Name() string { return "my-extension" }
//
//	func (e *MyExtension) OnItemFailed(ctx context.Context, it *submission.Item, err error, elapsed time.Duration) error {
//	    log.Printf("gave up on %s for %s: %v", it.Action, it.EmployeeID, err)
//	    return nil
//	}
//
// # Submission Hooks
//
//   - [ItemEnqueued] — a failed action was queued for retry
//   - [AttemptSucceeded] — a retry attempt reached the HR system
//   - [AttemptRetrying] — a retry attempt failed and another is scheduled
//   - [ItemFailed] — the last attempt failed; the item is abandoned
//
// # Deletion Hooks
//
//   - [DeletionSubmitted] — an employee asked for their data to be erased
//   - [DeletionCancelled] — the employee withdrew the request
//   - [DeletionCompleted] — the data was erased
//   - [DeletionFailed] — an erase attempt failed and will be retried
//   - [DeletionConfirmationSent] — the completion notice was sent (or not)
//   - [SweepCompleted] — one pass of the deletion sweep finished
//
// # Other Hooks
//
//   - [Shutdown] — the engine is shutting down gracefully
//
// The [Registry] fans out each event to all registered extensions that
// implement the corresponding hook interface. Hook errors are logged and
// never reach the caller.
package ext
