// Package audithook is an extension that bridges pipeline lifecycle
// events to an append-only audit trail.
//
// Every retry attempt, deletion lifecycle step, completion notice and
// sweep pass becomes a structured [AuditEvent] sent through a [Recorder].
// Severity follows the outcome: info for normal operations, warning for
// retries and recoverable failures, critical for abandoned submissions.
//
// Recorder failures are logged and dropped. An audit outage never changes
// the outcome of the operation being audited.
//
// # Recorders
//
//   - [LogRecorder] writes events to a slog.Logger.
//   - [KafkaRecorder] publishes events as JSON to a Kafka topic.
//   - [RecorderFunc] adapts any function.
//
// # Selective filtering
//
//	audithook.New(recorder,
//	    audithook.WithActions(
//	        audithook.ActionSubmissionFailed,
//	        audithook.ActionDeletionCompleted,
//	    ),
//	)
package audithook
