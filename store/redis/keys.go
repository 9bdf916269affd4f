package redis

// Redis key naming conventions for timesheet data.
// All keys are prefixed with "timesheet:" to avoid collisions.

const keyPrefix = "timesheet:"

// ── Submission keys ──

// itemKey returns the Hash key for an item: timesheet:item:{id}
func itemKey(id string) string { return keyPrefix + "item:" + id }

// itemIDsKey is the Set tracking all item IDs for enumeration.
const itemIDsKey = keyPrefix + "item_ids"

// dueKey is the Sorted Set of pending items scored by next_retry_at.
const dueKey = keyPrefix + "due"

// processingKey is the Sorted Set of claimed items scored by claimed_at.
const processingKey = keyPrefix + "processing"

// employeeItemsKey returns the Sorted Set of an employee's items scored
// by created_at.
func employeeItemsKey(employeeID string) string {
	return keyPrefix + "employee_items:" + employeeID
}

// ── Deletion keys ──

// requestKey returns the Hash key for a deletion request.
func requestKey(id string) string { return keyPrefix + "deletion:" + id }

// requestIDsKey is the Set tracking all deletion request IDs.
const requestIDsKey = keyPrefix + "deletion_ids"

// pendingKey maps employee IDs to their pending request ID.
const pendingKey = keyPrefix + "deletion_pending"

// deletionDueKey is the Sorted Set of pending requests scored by
// scheduled_deletion_date.
const deletionDueKey = keyPrefix + "deletion_due"

// employeeRequestsKey returns the Sorted Set of an employee's requests
// scored by submitted_at.
func employeeRequestsKey(employeeID string) string {
	return keyPrefix + "employee_deletions:" + employeeID
}
