package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Compile-time interface checks.
var (
	_ ext.Extension                = (*Extension)(nil)
	_ ext.ItemEnqueued             = (*Extension)(nil)
	_ ext.AttemptSucceeded         = (*Extension)(nil)
	_ ext.AttemptRetrying          = (*Extension)(nil)
	_ ext.ItemFailed               = (*Extension)(nil)
	_ ext.DeletionSubmitted        = (*Extension)(nil)
	_ ext.DeletionCancelled        = (*Extension)(nil)
	_ ext.DeletionCompleted        = (*Extension)(nil)
	_ ext.DeletionFailed           = (*Extension)(nil)
	_ ext.DeletionConfirmationSent = (*Extension)(nil)
	_ ext.SweepCompleted           = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	// Record persists a fully-formed audit event.
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one entry of the audit trail.
type AuditEvent struct {
	// What happened
	Action   string    `json:"action"`
	Resource string    `json:"resource"`
	Category string    `json:"category"`
	At       time.Time `json:"at"`

	// Who it happened to
	EmployeeID string `json:"employee_id,omitempty"`

	// Details
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Severity constants.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcome constants.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension bridges lifecycle events to an audit trail backend.
// Each lifecycle hook emits a structured audit event through the [Recorder].
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
	clock    timesheet.Clock
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
		clock:    timesheet.SystemClock,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// ── Submission lifecycle hooks ──────────────────────

// OnItemEnqueued implements ext.ItemEnqueued.
func (e *Extension) OnItemEnqueued(ctx context.Context, it *submission.Item) error {
	return e.record(ctx, ActionSubmissionQueued, SeverityInfo, OutcomeSuccess,
		ResourceSubmission, it.ID.String(), CategorySubmission, it.EmployeeID, nil,
		"action", string(it.Action),
		"action_timestamp", it.Timestamp.Format(time.RFC3339),
		"thread_id", it.ThreadID,
		"original_error", it.LastError,
		"next_retry_at", it.NextRetryAt.Format(time.RFC3339),
	)
}

// OnAttemptSucceeded implements ext.AttemptSucceeded.
func (e *Extension) OnAttemptSucceeded(ctx context.Context, it *submission.Item, elapsed time.Duration) error {
	return e.record(ctx, ActionSubmissionSucceeded, SeverityInfo, OutcomeSuccess,
		ResourceSubmission, it.ID.String(), CategorySubmission, it.EmployeeID, nil,
		"action", string(it.Action),
		"attempt", it.RetryCount+1,
		"status_code", it.LastStatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// OnAttemptRetrying implements ext.AttemptRetrying.
func (e *Extension) OnAttemptRetrying(ctx context.Context, it *submission.Item, attemptErr error, elapsed time.Duration) error {
	return e.record(ctx, ActionSubmissionRetrying, SeverityWarning, OutcomeFailure,
		ResourceSubmission, it.ID.String(), CategorySubmission, it.EmployeeID, attemptErr,
		"action", string(it.Action),
		"retry_count", it.RetryCount,
		"max_retries", it.MaxRetries,
		"status_code", it.LastStatusCode,
		"next_retry_at", it.NextRetryAt.Format(time.RFC3339),
		"duration_ms", elapsed.Milliseconds(),
	)
}

// OnItemFailed implements ext.ItemFailed.
func (e *Extension) OnItemFailed(ctx context.Context, it *submission.Item, attemptErr error, elapsed time.Duration) error {
	return e.record(ctx, ActionSubmissionFailed, SeverityCritical, OutcomeFailure,
		ResourceSubmission, it.ID.String(), CategorySubmission, it.EmployeeID, attemptErr,
		"action", string(it.Action),
		"retry_count", it.RetryCount,
		"status_code", it.LastStatusCode,
		"duration_ms", elapsed.Milliseconds(),
	)
}

// ── Deletion lifecycle hooks ────────────────────────

// OnDeletionSubmitted implements ext.DeletionSubmitted.
func (e *Extension) OnDeletionSubmitted(ctx context.Context, r *deletion.Request) error {
	return e.record(ctx, ActionDeletionRequested, SeverityInfo, OutcomeSuccess,
		ResourceDeletion, r.ID.String(), CategoryDeletion, r.EmployeeID, nil,
		"origin_ip", r.OriginIP,
		"scheduled_deletion_date", r.ScheduledDeletionDate.Format(time.RFC3339),
	)
}

// OnDeletionCancelled implements ext.DeletionCancelled.
func (e *Extension) OnDeletionCancelled(ctx context.Context, r *deletion.Request) error {
	return e.record(ctx, ActionDeletionCancelled, SeverityInfo, OutcomeSuccess,
		ResourceDeletion, r.ID.String(), CategoryDeletion, r.EmployeeID, nil,
		"reason", r.CancellationReason,
	)
}

// OnDeletionCompleted implements ext.DeletionCompleted.
func (e *Extension) OnDeletionCompleted(ctx context.Context, r *deletion.Request, elapsed time.Duration) error {
	return e.record(ctx, ActionDeletionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceDeletion, r.ID.String(), CategoryDeletion, r.EmployeeID, nil,
		"conversations_deleted", r.ConversationsDeleted,
		"scheduled_deletion_date", r.ScheduledDeletionDate.Format(time.RFC3339),
		"duration_ms", elapsed.Milliseconds(),
	)
}

// OnDeletionFailed implements ext.DeletionFailed.
func (e *Extension) OnDeletionFailed(ctx context.Context, r *deletion.Request, deleteErr error) error {
	return e.record(ctx, ActionDeletionFailed, SeverityWarning, OutcomeFailure,
		ResourceDeletion, r.ID.String(), CategoryDeletion, r.EmployeeID, deleteErr,
	)
}

// OnDeletionConfirmationSent implements ext.DeletionConfirmationSent.
func (e *Extension) OnDeletionConfirmationSent(ctx context.Context, r *deletion.Request, sendErr error) error {
	outcome, severity := OutcomeSuccess, SeverityInfo
	if sendErr != nil {
		outcome, severity = OutcomeFailure, SeverityWarning
	}
	return e.record(ctx, ActionDeletionConfirmation, severity, outcome,
		ResourceDeletion, r.ID.String(), CategoryDeletion, r.EmployeeID, sendErr,
		"email", r.Email,
	)
}

// OnSweepCompleted implements ext.SweepCompleted.
func (e *Extension) OnSweepCompleted(ctx context.Context, report deletion.SweepReport) error {
	outcome, severity := OutcomeSuccess, SeverityInfo
	if report.Failed > 0 {
		outcome, severity = OutcomeFailure, SeverityWarning
	}
	return e.record(ctx, ActionDeletionSweepFinished, severity, outcome,
		ResourceSweep, report.StartedAt.Format(time.RFC3339), CategoryDeletion, "", nil,
		"ready", report.Ready,
		"processed", report.Processed,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"conversations_deleted", report.ConversationsDeleted,
		"duration_ms", report.Elapsed.Milliseconds(),
	)
}

// ── Internal helpers ────────────────────────────────

// record builds and sends an audit event if the action is enabled.
// The kvPairs argument is a list of key-value pairs added to Metadata.
// It always returns nil: a recorder failure is logged and dropped.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category, employeeID string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		At:         e.clock.Now(),
		EmployeeID: employeeID,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}
