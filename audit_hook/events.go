package audithook

// Audit event actions. Each constant corresponds to one ext lifecycle hook
// and becomes the Action field of the audit event.
const (
	ActionSubmissionQueued      = "submission.queued"
	ActionSubmissionSucceeded   = "submission.succeeded"
	ActionSubmissionRetrying    = "submission.retrying"
	ActionSubmissionFailed      = "submission.failed"
	ActionDeletionRequested     = "deletion.requested"
	ActionDeletionCancelled     = "deletion.cancelled"
	ActionDeletionCompleted     = "deletion.completed"
	ActionDeletionFailed        = "deletion.failed"
	ActionDeletionConfirmation  = "deletion.confirmation_sent"
	ActionDeletionSweepFinished = "deletion.sweep_finished"
)

// Audit event categories group related actions.
const (
	CategorySubmission = "timesheet.submission"
	CategoryDeletion   = "timesheet.deletion"
)

// Resource types used as the Resource field in audit events.
const (
	ResourceSubmission = "submission_item"
	ResourceDeletion   = "deletion_request"
	ResourceSweep      = "deletion_sweep"
)

// AllActions returns every action this extension can emit.
func AllActions() []string {
	return []string{
		ActionSubmissionQueued,
		ActionSubmissionSucceeded,
		ActionSubmissionRetrying,
		ActionSubmissionFailed,
		ActionDeletionRequested,
		ActionDeletionCancelled,
		ActionDeletionCompleted,
		ActionDeletionFailed,
		ActionDeletionConfirmation,
		ActionDeletionSweepFinished,
	}
}
