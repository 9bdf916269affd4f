package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Kind identifies the template a message was built from.
type Kind string

const (
	KindDeletionConfirmation Kind = "deletion_confirmation"
	KindDeletionCancelled    Kind = "deletion_cancelled"
	KindDeletionCompleted    Kind = "deletion_completed"
	KindSubmissionFailed     Kind = "submission_failed"
)

// Message is a rendered notification.
type Message struct {
	Kind       Kind
	EmployeeID string
	To         string
	Subject    string
	Body       string
}

const dateLayout = "January 2, 2006"

// DeletionConfirmation tells the employee their request was accepted and
// when it will take effect.
func DeletionConfirmation(r *deletion.Request) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting(r.Name))
	b.WriteString("We received your request to delete your conversation history.\n")
	fmt.Fprintf(&b, "Your data will be permanently deleted on %s.\n\n", r.ScheduledDeletionDate.Format(dateLayout))
	b.WriteString("You can cancel this request at any time before that date.\n")
	return Message{
		Kind:       KindDeletionConfirmation,
		EmployeeID: r.EmployeeID,
		To:         r.Email,
		Subject:    "Your data deletion request has been received",
		Body:       b.String(),
	}
}

// DeletionCancelled confirms a cancellation.
func DeletionCancelled(r *deletion.Request) Message {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting(r.Name))
	b.WriteString("Your data deletion request has been cancelled. Your conversation history will be kept.\n")
	if r.CancellationReason != "" {
		fmt.Fprintf(&b, "\nReason: %s\n", r.CancellationReason)
	}
	return Message{
		Kind:       KindDeletionCancelled,
		EmployeeID: r.EmployeeID,
		To:         r.Email,
		Subject:    "Your data deletion request was cancelled",
		Body:       b.String(),
	}
}

// DeletionCompleted reports that erasure has been carried out.
func DeletionCompleted(r *deletion.Request) Message {
	completed := r.ScheduledDeletionDate
	if r.CompletedAt != nil {
		completed = *r.CompletedAt
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\n", greeting(r.Name))
	fmt.Fprintf(&b, "Your conversation history was permanently deleted on %s.\n", completed.Format(dateLayout))
	fmt.Fprintf(&b, "Conversations removed: %d.\n", r.ConversationsDeleted)
	return Message{
		Kind:       KindDeletionCompleted,
		EmployeeID: r.EmployeeID,
		To:         r.Email,
		Subject:    "Your data has been deleted",
		Body:       b.String(),
	}
}

// SubmissionFailed tells the employee an action could not be recorded
// and must be entered manually.
func SubmissionFailed(it *submission.Item, to string) Message {
	var b strings.Builder
	b.WriteString("Hello,\n\n")
	fmt.Fprintf(&b, "We could not record your %s for %s after %d attempts.\n",
		it.Action, it.Timestamp.Format(time.RFC1123), it.RetryCount)
	if it.LastError != "" {
		fmt.Fprintf(&b, "Last error: %s\n", it.LastError)
	}
	b.WriteString("\nPlease enter it manually in the HR system.\n")
	return Message{
		Kind:       KindSubmissionFailed,
		EmployeeID: it.EmployeeID,
		To:         to,
		Subject:    fmt.Sprintf("Action required: your %s was not recorded", it.Action),
		Body:       b.String(),
	}
}

func greeting(name string) string {
	if name == "" {
		return "there"
	}
	return name
}
