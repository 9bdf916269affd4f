package dynamo

import (
	"fmt"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

type itemRecord struct {
	ID             string            `dynamodbav:"id"`
	EmployeeID     string            `dynamodbav:"employee_id"`
	Action         string            `dynamodbav:"action"`
	Timestamp      int64             `dynamodbav:"action_timestamp"`
	ThreadID       string            `dynamodbav:"thread_id"`
	MessageID      string            `dynamodbav:"message_id"`
	UserMessage    string            `dynamodbav:"user_message"`
	Context        map[string]string `dynamodbav:"context,omitempty"`
	Status         string            `dynamodbav:"status"`
	RetryCount     int               `dynamodbav:"retry_count"`
	MaxRetries     int               `dynamodbav:"max_retries"`
	NextRetryAt    int64             `dynamodbav:"next_retry_at"`
	LastError      string            `dynamodbav:"last_error"`
	LastStatusCode int               `dynamodbav:"last_status_code"`
	ClaimedBy      string            `dynamodbav:"claimed_by"`
	ClaimedAt      *int64            `dynamodbav:"claimed_at,omitempty"`
	CompletedAt    *int64            `dynamodbav:"completed_at,omitempty"`
	Version        int64             `dynamodbav:"version"`
	CreatedAt      int64             `dynamodbav:"created_at"`
	UpdatedAt      int64             `dynamodbav:"updated_at"`
}

func toItemRecord(it *submission.Item) itemRecord {
	return itemRecord{
		ID:             it.ID.String(),
		EmployeeID:     it.EmployeeID,
		Action:         string(it.Action),
		Timestamp:      millis(it.Timestamp),
		ThreadID:       it.ThreadID,
		MessageID:      it.MessageID,
		UserMessage:    it.UserMessage,
		Context:        it.Context,
		Status:         string(it.Status),
		RetryCount:     it.RetryCount,
		MaxRetries:     it.MaxRetries,
		NextRetryAt:    millis(it.NextRetryAt),
		LastError:      it.LastError,
		LastStatusCode: it.LastStatusCode,
		ClaimedBy:      it.ClaimedBy,
		ClaimedAt:      millisPtr(it.ClaimedAt),
		CompletedAt:    millisPtr(it.CompletedAt),
		Version:        it.Version,
		CreatedAt:      millis(it.CreatedAt),
		UpdatedAt:      millis(it.UpdatedAt),
	}
}

func fromItemRecord(r *itemRecord) (*submission.Item, error) {
	parsedID, err := id.ParseSubmissionID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: parse item id %q: %w", r.ID, err)
	}
	return &submission.Item{
		Entity: timesheet.Entity{
			CreatedAt: fromMillis(r.CreatedAt),
			UpdatedAt: fromMillis(r.UpdatedAt),
		},
		ID:             parsedID,
		EmployeeID:     r.EmployeeID,
		Action:         action.Kind(r.Action),
		Timestamp:      fromMillis(r.Timestamp),
		ThreadID:       r.ThreadID,
		MessageID:      r.MessageID,
		UserMessage:    r.UserMessage,
		Context:        r.Context,
		Status:         submission.Status(r.Status),
		RetryCount:     r.RetryCount,
		MaxRetries:     r.MaxRetries,
		NextRetryAt:    fromMillis(r.NextRetryAt),
		LastError:      r.LastError,
		LastStatusCode: r.LastStatusCode,
		ClaimedBy:      r.ClaimedBy,
		ClaimedAt:      fromMillisPtr(r.ClaimedAt),
		CompletedAt:    fromMillisPtr(r.CompletedAt),
		Version:        r.Version,
	}, nil
}

type requestRecord struct {
	ID                    string `dynamodbav:"id"`
	EmployeeID            string `dynamodbav:"employee_id"`
	Email                 string `dynamodbav:"email"`
	Name                  string `dynamodbav:"name"`
	OriginIP              string `dynamodbav:"origin_ip"`
	Status                string `dynamodbav:"status"`
	SubmittedAt           int64  `dynamodbav:"submitted_at"`
	ScheduledDeletionDate int64  `dynamodbav:"scheduled_deletion_date"`
	CompletedAt           *int64 `dynamodbav:"completed_at,omitempty"`
	CancelledAt           *int64 `dynamodbav:"cancelled_at,omitempty"`
	ConversationsDeleted  int    `dynamodbav:"conversations_deleted"`
	CancellationReason    string `dynamodbav:"cancellation_reason"`
	ClaimedBy             string `dynamodbav:"claimed_by"`
	ClaimedAt             *int64 `dynamodbav:"claimed_at,omitempty"`
	Version               int64  `dynamodbav:"version"`
	CreatedAt             int64  `dynamodbav:"created_at"`
	UpdatedAt             int64  `dynamodbav:"updated_at"`
}

// pendingMarker reserves an employee's single pending slot.
type pendingMarker struct {
	ID        string `dynamodbav:"id"`
	RequestID string `dynamodbav:"request_id"`
}

func markerID(employeeID string) string { return "pending#" + employeeID }

func toRequestRecord(r *deletion.Request) requestRecord {
	return requestRecord{
		ID:                    r.ID.String(),
		EmployeeID:            r.EmployeeID,
		Email:                 r.Email,
		Name:                  r.Name,
		OriginIP:              r.OriginIP,
		Status:                string(r.Status),
		SubmittedAt:           millis(r.SubmittedAt),
		ScheduledDeletionDate: millis(r.ScheduledDeletionDate),
		CompletedAt:           millisPtr(r.CompletedAt),
		CancelledAt:           millisPtr(r.CancelledAt),
		ConversationsDeleted:  r.ConversationsDeleted,
		CancellationReason:    r.CancellationReason,
		ClaimedBy:             r.ClaimedBy,
		ClaimedAt:             millisPtr(r.ClaimedAt),
		Version:               r.Version,
		CreatedAt:             millis(r.CreatedAt),
		UpdatedAt:             millis(r.UpdatedAt),
	}
}

func fromRequestRecord(m *requestRecord) (*deletion.Request, error) {
	parsedID, err := id.ParseDeletionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: parse deletion id %q: %w", m.ID, err)
	}
	return &deletion.Request{
		Entity: timesheet.Entity{
			CreatedAt: fromMillis(m.CreatedAt),
			UpdatedAt: fromMillis(m.UpdatedAt),
		},
		ID:                    parsedID,
		EmployeeID:            m.EmployeeID,
		Email:                 m.Email,
		Name:                  m.Name,
		OriginIP:              m.OriginIP,
		Status:                deletion.Status(m.Status),
		SubmittedAt:           fromMillis(m.SubmittedAt),
		ScheduledDeletionDate: fromMillis(m.ScheduledDeletionDate),
		CompletedAt:           fromMillisPtr(m.CompletedAt),
		CancelledAt:           fromMillisPtr(m.CancelledAt),
		ConversationsDeleted:  m.ConversationsDeleted,
		CancellationReason:    m.CancellationReason,
		ClaimedBy:             m.ClaimedBy,
		ClaimedAt:             fromMillisPtr(m.ClaimedAt),
		Version:               m.Version,
	}, nil
}

func millis(t time.Time) int64 { return t.UnixMilli() }

func millisPtr(t *time.Time) *int64 {
	if t == nil {
		return nil
	}
	v := t.UnixMilli()
	return &v
}

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromMillisPtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMillis(*ms)
	return &t
}
