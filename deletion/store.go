package deletion

import (
	"context"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// CountOpts controls filtering for request count queries.
type CountOpts struct {
	// EmployeeID filters by employee. Empty means all employees.
	EmployeeID string
	// Status filters by status. Empty means all statuses.
	Status Status
}

// Store defines the persistence contract for deletion requests.
type Store interface {
	// CreateDeletionRequest persists a new pending request. It returns
	// ErrDeletionPending, atomically, if the employee already has one.
	CreateDeletionRequest(ctx context.Context, r *Request) error

	// GetDeletionRequest retrieves a request by ID.
	GetDeletionRequest(ctx context.Context, requestID id.DeletionID) (*Request, error)

	// GetPendingDeletionRequest returns the employee's pending request or
	// ErrDeletionNotFound.
	GetPendingDeletionRequest(ctx context.Context, employeeID string) (*Request, error)

	// UpdateDeletionRequest persists r if the stored version equals
	// r.Version and increments r.Version. Returns ErrConcurrentUpdate on
	// a version mismatch.
	UpdateDeletionRequest(ctx context.Context, r *Request) error

	// ListDueDeletionRequests returns up to limit pending requests whose
	// scheduled date is at or before now, earliest first. A limit of zero
	// means no limit.
	ListDueDeletionRequests(ctx context.Context, now time.Time, limit int) ([]*Request, error)

	// ListDeletionRequestsByEmployee returns an employee's requests,
	// newest first.
	ListDeletionRequestsByEmployee(ctx context.Context, employeeID string) ([]*Request, error)

	// CountDeletionRequests returns the number of requests matching opts.
	CountDeletionRequests(ctx context.Context, opts CountOpts) (int64, error)
}
