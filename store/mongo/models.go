package mongo

import (
	"fmt"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// ── Submission item model ─────────────────────────────────────────

type itemModel struct {
	ID             string            `bson:"_id"`
	EmployeeID     string            `bson:"employee_id"`
	Action         string            `bson:"action"`
	Timestamp      time.Time         `bson:"action_timestamp"`
	ThreadID       string            `bson:"thread_id"`
	MessageID      string            `bson:"message_id"`
	UserMessage    string            `bson:"user_message"`
	Context        map[string]string `bson:"context,omitempty"`
	Status         string            `bson:"status"`
	RetryCount     int               `bson:"retry_count"`
	MaxRetries     int               `bson:"max_retries"`
	NextRetryAt    time.Time         `bson:"next_retry_at"`
	LastError      string            `bson:"last_error"`
	LastStatusCode int               `bson:"last_status_code"`
	ClaimedBy      string            `bson:"claimed_by"`
	ClaimedAt      *time.Time        `bson:"claimed_at,omitempty"`
	CompletedAt    *time.Time        `bson:"completed_at,omitempty"`
	Version        int64             `bson:"version"`
	CreatedAt      time.Time         `bson:"created_at"`
	UpdatedAt      time.Time         `bson:"updated_at"`
}

func toItemModel(it *submission.Item) *itemModel {
	return &itemModel{
		ID:             it.ID.String(),
		EmployeeID:     it.EmployeeID,
		Action:         string(it.Action),
		Timestamp:      it.Timestamp,
		ThreadID:       it.ThreadID,
		MessageID:      it.MessageID,
		UserMessage:    it.UserMessage,
		Context:        it.Context,
		Status:         string(it.Status),
		RetryCount:     it.RetryCount,
		MaxRetries:     it.MaxRetries,
		NextRetryAt:    it.NextRetryAt,
		LastError:      it.LastError,
		LastStatusCode: it.LastStatusCode,
		ClaimedBy:      it.ClaimedBy,
		ClaimedAt:      it.ClaimedAt,
		CompletedAt:    it.CompletedAt,
		Version:        it.Version,
		CreatedAt:      it.CreatedAt,
		UpdatedAt:      it.UpdatedAt,
	}
}

func fromItemModel(m *itemModel) (*submission.Item, error) {
	parsedID, err := id.ParseSubmissionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("timesheet/mongo: parse item id %q: %w", m.ID, err)
	}

	return &submission.Item{
		Entity: timesheet.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:             parsedID,
		EmployeeID:     m.EmployeeID,
		Action:         action.Kind(m.Action),
		Timestamp:      m.Timestamp.UTC(),
		ThreadID:       m.ThreadID,
		MessageID:      m.MessageID,
		UserMessage:    m.UserMessage,
		Context:        m.Context,
		Status:         submission.Status(m.Status),
		RetryCount:     m.RetryCount,
		MaxRetries:     m.MaxRetries,
		NextRetryAt:    m.NextRetryAt.UTC(),
		LastError:      m.LastError,
		LastStatusCode: m.LastStatusCode,
		ClaimedBy:      m.ClaimedBy,
		ClaimedAt:      utcPtr(m.ClaimedAt),
		CompletedAt:    utcPtr(m.CompletedAt),
		Version:        m.Version,
	}, nil
}

// ── Deletion request model ────────────────────────────────────────

type requestModel struct {
	ID                    string     `bson:"_id"`
	EmployeeID            string     `bson:"employee_id"`
	Email                 string     `bson:"email"`
	Name                  string     `bson:"name"`
	OriginIP              string     `bson:"origin_ip"`
	Status                string     `bson:"status"`
	SubmittedAt           time.Time  `bson:"submitted_at"`
	ScheduledDeletionDate time.Time  `bson:"scheduled_deletion_date"`
	CompletedAt           *time.Time `bson:"completed_at,omitempty"`
	CancelledAt           *time.Time `bson:"cancelled_at,omitempty"`
	ConversationsDeleted  int        `bson:"conversations_deleted"`
	CancellationReason    string     `bson:"cancellation_reason"`
	ClaimedBy             string     `bson:"claimed_by"`
	ClaimedAt             *time.Time `bson:"claimed_at,omitempty"`
	Version               int64      `bson:"version"`
	CreatedAt             time.Time  `bson:"created_at"`
	UpdatedAt             time.Time  `bson:"updated_at"`
}

func toRequestModel(r *deletion.Request) *requestModel {
	return &requestModel{
		ID:                    r.ID.String(),
		EmployeeID:            r.EmployeeID,
		Email:                 r.Email,
		Name:                  r.Name,
		OriginIP:              r.OriginIP,
		Status:                string(r.Status),
		SubmittedAt:           r.SubmittedAt,
		ScheduledDeletionDate: r.ScheduledDeletionDate,
		CompletedAt:           r.CompletedAt,
		CancelledAt:           r.CancelledAt,
		ConversationsDeleted:  r.ConversationsDeleted,
		CancellationReason:    r.CancellationReason,
		ClaimedBy:             r.ClaimedBy,
		ClaimedAt:             r.ClaimedAt,
		Version:               r.Version,
		CreatedAt:             r.CreatedAt,
		UpdatedAt:             r.UpdatedAt,
	}
}

func fromRequestModel(m *requestModel) (*deletion.Request, error) {
	parsedID, err := id.ParseDeletionID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("timesheet/mongo: parse deletion id %q: %w", m.ID, err)
	}

	return &deletion.Request{
		Entity: timesheet.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:                    parsedID,
		EmployeeID:            m.EmployeeID,
		Email:                 m.Email,
		Name:                  m.Name,
		OriginIP:              m.OriginIP,
		Status:                deletion.Status(m.Status),
		SubmittedAt:           m.SubmittedAt.UTC(),
		ScheduledDeletionDate: m.ScheduledDeletionDate.UTC(),
		CompletedAt:           utcPtr(m.CompletedAt),
		CancelledAt:           utcPtr(m.CancelledAt),
		ConversationsDeleted:  m.ConversationsDeleted,
		CancellationReason:    m.CancellationReason,
		ClaimedBy:             m.ClaimedBy,
		ClaimedAt:             utcPtr(m.ClaimedAt),
		Version:               m.Version,
	}, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := t.UTC()
	return &v
}
