package submission

import (
	"context"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// ListOpts controls pagination for item list queries.
type ListOpts struct {
	// Limit is the maximum number of items to return. Zero means no limit.
	Limit int
	// Offset is the number of items to skip.
	Offset int
}

// CountOpts controls filtering for item count queries.
type CountOpts struct {
	// EmployeeID filters by employee. Empty means all employees.
	EmployeeID string
	// Status filters by status. Empty means all statuses.
	Status Status
	// DueAt, when set, counts only pending items with NextRetryAt ≤ DueAt.
	DueAt *time.Time
}

// Store defines the persistence contract for queue items.
//
// Writes that change an existing item are conditional on Item.Version.
// On success the store increments the caller's Version so that the same
// value can be used for the next conditional write.
type Store interface {
	// CreateItem persists a new item.
	CreateItem(ctx context.Context, it *Item) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, itemID id.SubmissionID) (*Item, error)

	// ClaimItem moves it to processing in one conditional write, only if
	// the stored item is pending at it.Version. It reports whether the
	// claim was won; on success it is updated to the stored state.
	ClaimItem(ctx context.Context, it *Item, claimedBy string, now time.Time) (bool, error)

	// UpdateItem persists it if the stored version equals it.Version.
	// Returns ErrConcurrentUpdate on a version mismatch.
	UpdateItem(ctx context.Context, it *Item) error

	// ListDueItems returns up to limit pending items with
	// NextRetryAt ≤ now, oldest due first.
	ListDueItems(ctx context.Context, now time.Time, limit int) ([]*Item, error)

	// ListItemsByEmployee returns an employee's items, newest first.
	ListItemsByEmployee(ctx context.Context, employeeID string, opts ListOpts) ([]*Item, error)

	// ReleaseStaleClaims returns processing items claimed before cutoff
	// to pending and reports how many were released.
	ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error)

	// CountItems returns the number of items matching the options.
	CountItems(ctx context.Context, opts CountOpts) (int64, error)
}
