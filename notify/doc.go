// Package notify delivers user-facing messages about submissions and
// deletion requests.
//
// A [Notifier] sends one [Message]. The builders in this package turn a
// lifecycle entity into a message with its subject and body already
// rendered. Callers treat notification failures as non-fatal: they log
// and continue.
package notify
