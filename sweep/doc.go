// Package sweep runs the deletion sweep: after a startup delay it
// periodically carries out every deletion request whose waiting period
// has ended.
//
// For each ready request the sweep calls the lifecycle manager, sends
// the completion notice and reports the notice through the
// DeletionConfirmationSent hook. A request that fails is logged and left
// pending for the next pass. Each pass ends with one SweepCompleted event
// carrying the counts.
//
// The schedule is a robfig/cron schedule: a fixed interval by default, or
// any cron expression such as "@daily" or "30 3 * * *".
package sweep
