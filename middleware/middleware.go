package middleware

import (
	"context"

	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Handler is the terminal function that performs the delivery attempt.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It must call next
// to continue the chain unless it short-circuits with an error.
type Middleware func(ctx context.Context, it *submission.Item, next Handler) error

// Chain composes middleware into one. The first middleware in the list
// is the outermost wrapper:
//
//	Chain(logging, recover) runs as logging → recover → handler
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, it *submission.Item, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw := mws[i]
			prev := h
			h = func(ctx context.Context) error {
				return mw(ctx, it, prev)
			}
		}
		return h(ctx)
	}
}
