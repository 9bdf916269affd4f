// Package middleware provides composable wrappers around one delivery
// attempt of a queued submission.
//
// A [Middleware] receives the item being attempted and the next
// [Handler]. The retry processor composes its chain once with [Chain]
// and runs every executor call through it.
//
//	chain := middleware.Chain(
//	    middleware.Logging(logger),
//	    middleware.Tracing(),
//	    middleware.Metrics(),
//	    middleware.Recover(logger),
//	    middleware.Timeout(30*time.Second, logger),
//	)
package middleware
