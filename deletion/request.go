package deletion

import (
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// Status is the lifecycle state of a deletion request.
type Status string

const (
	// StatusPending means the request waits for its scheduled date.
	StatusPending Status = "pending"
	// StatusCancelled means the employee withdrew the request.
	StatusCancelled Status = "cancelled"
	// StatusCompleted means the employee's data has been erased.
	StatusCompleted Status = "completed"
)

// Statuses lists every status.
func Statuses() []Status {
	return []Status{StatusPending, StatusCancelled, StatusCompleted}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusCompleted
}

// Request is an employee's request to have all their data erased.
type Request struct {
	timesheet.Entity

	ID                    id.DeletionID `json:"id"`
	EmployeeID            string        `json:"employee_id"`
	Email                 string        `json:"email"`
	Name                  string        `json:"name,omitempty"`
	OriginIP              string        `json:"origin_ip,omitempty"`
	Status                Status        `json:"status"`
	SubmittedAt           time.Time     `json:"submitted_at"`
	ScheduledDeletionDate time.Time     `json:"scheduled_deletion_date"`
	CompletedAt           *time.Time    `json:"completed_at,omitempty"`
	CancelledAt           *time.Time    `json:"cancelled_at,omitempty"`
	ConversationsDeleted  int           `json:"conversations_deleted"`
	CancellationReason    string        `json:"cancellation_reason,omitempty"`

	// ClaimedBy and ClaimedAt hold the processing lease.
	ClaimedBy string     `json:"claimed_by,omitempty"`
	ClaimedAt *time.Time `json:"claimed_at,omitempty"`

	Version int64 `json:"version"`
}

// IsReady reports whether the request is pending and its scheduled date
// has been reached.
func (r *Request) IsReady(now time.Time) bool {
	return r.Status == StatusPending && !r.ScheduledDeletionDate.After(now)
}

// Clone returns a deep copy.
func (r *Request) Clone() *Request {
	cp := *r
	cp.CompletedAt = copyTime(r.CompletedAt)
	cp.CancelledAt = copyTime(r.CancelledAt)
	cp.ClaimedAt = copyTime(r.ClaimedAt)
	return &cp
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SweepReport summarizes one pass of the deletion sweep.
type SweepReport struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Ready     int           `json:"ready"`
	Processed int           `json:"processed"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	// ConversationsDeleted is the total across processed requests.
	ConversationsDeleted int `json:"conversations_deleted"`
}
