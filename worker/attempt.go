package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

type result int

const (
	resultSkipped result = iota
	resultSucceeded
	resultRetrying
	resultFailed
	resultError
)

// AttemptError is a delivery attempt the HR system answered with a
// failure.
type AttemptError struct {
	StatusCode int
	Message    string
}

func (e *AttemptError) Error() string {
	switch {
	case e.Message != "" && e.StatusCode != 0:
		return fmt.Sprintf("status %d: %s", e.StatusCode, e.Message)
	case e.Message != "":
		return e.Message
	default:
		return fmt.Sprintf("status %d", e.StatusCode)
	}
}

// processItem claims and attempts one item. A panic anywhere in here is
// contained to the item.
func (p *Processor) processItem(ctx context.Context, it *submission.Item) (res result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("retry item panicked",
				slog.String("item_id", it.ID.String()),
				slog.Any("panic", r),
			)
			res = resultError
		}
	}()

	if !it.IsDue(p.clock.Now()) {
		return resultSkipped
	}

	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return resultSkipped
		}
	}

	claimed, err := p.queue.TryClaim(ctx, it)
	if err != nil {
		p.logger.Warn("claim failed",
			slog.String("item_id", it.ID.String()),
			slog.String("error", err.Error()),
		)
		return resultError
	}
	if !claimed {
		return resultSkipped
	}

	// Once claimed the attempt and its bookkeeping run to completion.
	return p.attempt(context.WithoutCancel(ctx), it)
}

func (p *Processor) attempt(ctx context.Context, it *submission.Item) result {
	var res action.Result
	terminal := func(ctx context.Context) error {
		exec, ok := p.registry.Get(it.Action)
		if !ok {
			return fmt.Errorf("%w: %s", timesheet.ErrUnknownAction, it.Action)
		}
		var err error
		res, err = exec.Execute(ctx, action.Request{
			Kind:       it.Action,
			EmployeeID: it.EmployeeID,
			Timestamp:  it.Timestamp,
			Context:    it.Context,
			Attempt:    it.RetryCount + 1,
		})
		if err != nil {
			return err
		}
		if !res.Success {
			return &AttemptError{StatusCode: res.StatusCode, Message: res.Error}
		}
		return nil
	}

	start := time.Now()
	attemptErr := p.mw(ctx, it, terminal)
	elapsed := time.Since(start)

	out := submission.Outcome{Success: attemptErr == nil, StatusCode: res.StatusCode}
	if attemptErr != nil {
		out.Error = attemptErr.Error()
		var ae *AttemptError
		if errors.As(attemptErr, &ae) && ae.StatusCode != 0 {
			out.StatusCode = ae.StatusCode
		}
	}

	next, err := p.queue.UpdateAfterAttempt(ctx, it, out)
	if err != nil {
		p.logger.Error("recording attempt outcome failed",
			slog.String("item_id", it.ID.String()),
			slog.Bool("success", out.Success),
			slog.String("error", err.Error()),
		)
		return resultError
	}

	switch next.Status {
	case submission.StatusCompleted:
		if p.emitter != nil {
			p.emitter.EmitAttemptSucceeded(ctx, next, elapsed)
		}
		return resultSucceeded
	case submission.StatusFailed:
		p.logger.Warn("submission abandoned after retry budget",
			slog.String("item_id", next.ID.String()),
			slog.String("employee_id", next.EmployeeID),
			slog.String("action", string(next.Action)),
			slog.Int("retry_count", next.RetryCount),
			slog.String("error", out.Error),
		)
		if p.emitter != nil {
			p.emitter.EmitItemFailed(ctx, next, attemptErr, elapsed)
		}
		return resultFailed
	default:
		if p.emitter != nil {
			p.emitter.EmitAttemptRetrying(ctx, next, attemptErr, elapsed)
		}
		return resultRetrying
	}
}
