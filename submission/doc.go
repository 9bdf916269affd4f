// Package submission defines the durable retry queue for timesheet
// actions that could not be delivered to the HR system on the first try.
//
// # Item lifecycle
//
//	pending → processing → completed
//	pending → processing → pending (retry scheduled) → processing → ...
//	pending → processing → failed
//
// completed and failed are terminal. An item is due when it is pending
// and its NextRetryAt has passed. The delay before retry n is
// base·2^n (1s, 2s, 4s with the defaults) and an item is attempted at
// most MaxRetries times by the retry processor.
//
// # Claiming
//
// [Queue.TryClaim] is a single conditional write against the store: the
// transition to processing only happens if the item is still pending at
// the version the caller read. Exactly one of several concurrent callers
// wins. Claims are time-bounded; [Queue.ReleaseStaleClaims] hands items
// held longer than the claim timeout back to the queue.
package submission
