// Package remote holds the HTTP executors that reach systems outside the
// pipeline: the HR provider that records clock-in and clock-out actions,
// and the conversation store that erases an employee's history.
//
// Both clients speak JSON. Only transport failures are returned as errors.
// A non-2xx response from the HR provider becomes a failed action.Result
// carrying the status code, so the queue records it like any other failed
// attempt.
package remote
