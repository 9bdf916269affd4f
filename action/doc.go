// Package action defines the timesheet actions the assistant can submit
// to the HR system and the executor contract that performs them.
//
// The retry processor never knows how an action reaches the HR provider.
// It looks up the Executor registered for the item's Kind and calls it;
// a Registry must cover every Kind before the processor starts.
package action
