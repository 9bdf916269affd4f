// Package worker runs the retry processor: a polling loop that claims due
// submission items, attempts them through the action registry and records
// the outcome on the queue.
//
// Each cycle releases stale claims, fetches up to a batch of due items
// and processes them one at a time. A failure on one item is logged and
// the cycle moves on; a failed fetch is logged and retried on the next
// tick. Cancellation is honoured between items. An attempt that has
// started always runs to its recorded outcome.
package worker
