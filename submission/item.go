package submission

import (
	"maps"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// Status is the lifecycle state of a queue item.
type Status string

const (
	// StatusPending means the item waits for its next attempt.
	StatusPending Status = "pending"
	// StatusProcessing means a worker holds the claim and is attempting it.
	StatusProcessing Status = "processing"
	// StatusCompleted means the HR system accepted the action.
	StatusCompleted Status = "completed"
	// StatusFailed means every attempt failed; the item is abandoned.
	StatusFailed Status = "failed"
)

// Statuses lists every status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusPending, StatusProcessing, StatusCompleted, StatusFailed}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Item is an action awaiting delivery to the HR system.
type Item struct {
	timesheet.Entity

	ID          id.SubmissionID   `json:"id"`
	EmployeeID  string            `json:"employee_id"`
	Action      action.Kind       `json:"action"`
	Timestamp   time.Time         `json:"timestamp"`
	ThreadID    string            `json:"thread_id,omitempty"`
	MessageID   string            `json:"message_id,omitempty"`
	UserMessage string            `json:"user_message,omitempty"`
	Context     map[string]string `json:"context,omitempty"`

	Status         Status     `json:"status"`
	RetryCount     int        `json:"retry_count"`
	MaxRetries     int        `json:"max_retries"`
	NextRetryAt    time.Time  `json:"next_retry_at"`
	LastError      string     `json:"last_error,omitempty"`
	LastStatusCode int        `json:"last_status_code,omitempty"`
	ClaimedBy      string     `json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	// Version is incremented by the store on every write. Conditional
	// writes compare it to detect concurrent modification.
	Version int64 `json:"version"`
}

// IsDue reports whether the item is pending and its retry time has come.
func (it *Item) IsDue(now time.Time) bool {
	return it.Status == StatusPending && !it.NextRetryAt.After(now)
}

// Clone returns a deep copy.
func (it *Item) Clone() *Item {
	cp := *it
	cp.Context = maps.Clone(it.Context)
	if it.ClaimedAt != nil {
		t := *it.ClaimedAt
		cp.ClaimedAt = &t
	}
	if it.CompletedAt != nil {
		t := *it.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}
