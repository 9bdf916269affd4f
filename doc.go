// Package timesheet provides the durable back half of a chat-based
// timesheet assistant: a retry queue that guarantees clock-in and
// clock-out intents eventually reach the HR system, and a deletion
// lifecycle that erases an employee's data once, at the end of a legal
// waiting window, with an audit trail.
//
// The root package holds what every subsystem shares: configuration,
// sentinel errors, the Entity timestamps, identifiers and the Clock.
//
// # Quick Start
//
//	eng, err := engine.Build(timesheet.DefaultConfig(), memory.New(),
//	    engine.WithActionExecutor(action.KindClockIn, hr),
//	    engine.WithActionExecutor(action.KindClockOut, hr),
//	    engine.WithDeletionExecutor(conversations),
//	)
//	if err != nil { ... }
//	_ = eng.Start(ctx)
//	defer eng.Stop(ctx)
//
// # Architecture
//
// Each subsystem (submission, deletion) defines its own store interface
// and a single backend implements all of them. Workers (the retry
// processor and the deletion sweep) only talk to the managers, and
// lifecycle events fan out to extensions (audit, notifications, metrics)
// whose failures never reach the caller.
package timesheet
