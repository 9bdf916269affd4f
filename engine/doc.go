// Package engine wires the timesheet subsystems together. It owns the
// extension registry, the action registry, the middleware chain, the
// submission queue, the deletion manager and the two background workers.
//
// This package exists to break an import cycle: submission and deletion
// are imported by ext, middleware and the hooks, so none of them can
// build the others. Engine sits above all subsystem packages and below
// the application layer.
//
// # Building an Engine
//
//	eng, err := engine.Build(cfg, pgStore,
//	    engine.WithActionExecutor(action.KindClockIn, hr),
//	    engine.WithActionExecutor(action.KindClockOut, hr),
//	    engine.WithDeletionExecutor(conversations),
//	    engine.WithNotifier(sesNotifier),
//	    engine.WithExtension(audithook.New(kafkaRecorder)),
//	)
//
// Build refuses to start without an executor for every action kind and
// without a deletion executor.
//
// # Running
//
//	if err := eng.Start(ctx); err != nil { ... }
//	defer eng.Stop(shutdownCtx)
//
// Start hands back claims abandoned by a crashed instance, then starts the
// retry processor and the deletion sweep. The chat front end talks to
// [Engine.Queue] and [Engine.Deletions] directly.
//
// # Options
//
//   - [WithExtension]: register a lifecycle extension
//   - [WithMiddleware]: add a middleware to the attempt chain
//   - [WithBackoff]: override the retry delay strategy
//   - [WithTracerProvider]: set the OpenTelemetry tracer provider
//   - [WithMeterProvider]: set the OpenTelemetry meter provider
package engine
