// Package deletion implements the right-to-be-forgotten lifecycle: an
// employee asks for their data to be erased, the request waits out a
// legal window during which it can be cancelled, and the sweep erases the
// data exactly once when the window ends.
//
// # Request lifecycle
//
//	pending → cancelled   (employee changed their mind inside the window)
//	pending → completed   (window elapsed, data erased)
//
// Both end states are terminal. An employee has at most one pending
// request; the store enforces this atomically so that two simultaneous
// submissions cannot both succeed.
//
// Processing takes a short version-guarded lease on the request so that
// overlapping sweeps never erase the same employee twice.
package deletion
