package audithook

import (
	"log/slog"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
)

// Option configures an Extension.
type Option func(*Extension)

// WithActions restricts the extension to emit only the listed actions.
// By default every action is enabled. Unknown actions are silently ignored.
func WithActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = make(map[string]bool, len(actions))
		for _, a := range actions {
			e.enabled[a] = true
		}
	}
}

// WithLogger sets a custom logger for the extension.
func WithLogger(l *slog.Logger) Option {
	return func(e *Extension) { e.logger = l }
}

// WithClock sets the time source used to stamp events.
func WithClock(c timesheet.Clock) Option {
	return func(e *Extension) { e.clock = c }
}
