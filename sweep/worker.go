package sweep

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	cronlib "github.com/robfig/cron/v3"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/notify"
)

// Emitter receives sweep events. The ext.Registry satisfies it.
type Emitter interface {
	EmitDeletionConfirmationSent(ctx context.Context, r *deletion.Request, sendErr error)
	EmitSweepCompleted(ctx context.Context, report deletion.SweepReport)
}

// Option configures a Worker.
type Option func(*Worker)

// WithStartupDelay sets the wait before the first pass.
func WithStartupDelay(d time.Duration) Option {
	return func(w *Worker) { w.startupDelay = d }
}

// WithInterval runs passes at a fixed interval after the first.
func WithInterval(d time.Duration) Option {
	return func(w *Worker) { w.schedule = Every(d) }
}

// WithSchedule sets the schedule for passes after the first.
func WithSchedule(s cronlib.Schedule) Option {
	return func(w *Worker) { w.schedule = s }
}

// WithNotifier sets where completion notices go.
func WithNotifier(n notify.Notifier) Option {
	return func(w *Worker) { w.notifier = n }
}

// WithEmitter sets the sweep event receiver.
func WithEmitter(e Emitter) Option {
	return func(w *Worker) { w.emitter = e }
}

// WithClock sets the time source used for the ready query.
func WithClock(c timesheet.Clock) Option {
	return func(w *Worker) { w.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Worker) { w.logger = l }
}

// Worker is the deletion sweep.
type Worker struct {
	manager      *deletion.Manager
	notifier     notify.Notifier
	emitter      Emitter
	schedule     cronlib.Schedule
	startupDelay time.Duration
	clock        timesheet.Clock
	logger       *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWorker creates a sweep over manager.
func NewWorker(manager *deletion.Manager, opts ...Option) *Worker {
	cfg := timesheet.DefaultConfig()
	w := &Worker{
		manager:      manager,
		schedule:     Every(cfg.DeletionPollInterval),
		startupDelay: cfg.DeletionStartupDelay,
		clock:        timesheet.SystemClock,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the sweep loop and returns immediately.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}
	w.running = true
	w.stopCh = make(chan struct{})

	w.logger.Info("deletion sweep starting",
		slog.Duration("startup_delay", w.startupDelay),
	)

	loopCtx := context.WithoutCancel(ctx)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.loop(loopCtx)
	}()
	return nil
}

// Stop signals the loop to exit and waits for a running pass to finish,
// or for ctx to expire.
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	w.mu.Unlock()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("deletion sweep stopped")
		return nil
	case <-ctx.Done():
		w.logger.Warn("deletion sweep shutdown timed out")
		return ctx.Err()
	}
}

func (w *Worker) loop(ctx context.Context) {
	if !w.wait(w.startupDelay) {
		return
	}
	for {
		w.runPass(ctx)

		now := time.Now()
		next := w.schedule.Next(now)
		w.logger.Debug("next deletion sweep", slog.Time("at", next))
		if !w.wait(next.Sub(now)) {
			return
		}
	}
}

// wait sleeps for d and reports false if the worker was stopped first.
func (w *Worker) wait(d time.Duration) bool {
	if d <= 0 {
		select {
		case <-w.stopCh:
			return false
		default:
			return true
		}
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-w.stopCh:
		return false
	case <-t.C:
		return true
	}
}

// stopping reports whether Stop has been called on a started worker.
func (w *Worker) stopping() bool {
	w.mu.Lock()
	ch := w.stopCh
	w.mu.Unlock()
	if ch == nil {
		return false
	}
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (w *Worker) runPass(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("deletion sweep panicked", slog.Any("panic", r))
		}
	}()
	if _, err := w.RunOnce(ctx); err != nil {
		w.logger.Error("deletion sweep failed", slog.String("error", err.Error()))
	}
}

// RunOnce runs a single pass. It returns an error only when the ready
// requests could not be listed. A pass stops before its next request once
// Stop is called or ctx is done; the request in flight is finished.
func (w *Worker) RunOnce(ctx context.Context) (deletion.SweepReport, error) {
	report := deletion.SweepReport{StartedAt: w.clock.Now()}
	start := time.Now()

	ready, err := w.manager.GetRequestsReadyForProcessing(ctx, report.StartedAt)
	if err != nil {
		return report, err
	}
	report.Ready = len(ready)

	for i, r := range ready {
		if w.stopping() || ctx.Err() != nil {
			w.logger.Info("deletion sweep interrupted",
				slog.Int("remaining", len(ready)-i),
			)
			break
		}
		done, outcome := w.process(ctx, r)
		switch outcome {
		case outcomeProcessed:
			report.Processed++
			report.ConversationsDeleted += done.ConversationsDeleted
		case outcomeSkipped:
			report.Skipped++
		case outcomeFailed:
			report.Failed++
		}
	}

	report.Elapsed = time.Since(start)
	w.logger.Info("deletion sweep completed",
		slog.Int("ready", report.Ready),
		slog.Int("processed", report.Processed),
		slog.Int("skipped", report.Skipped),
		slog.Int("failed", report.Failed),
		slog.Int("conversations_deleted", report.ConversationsDeleted),
		slog.Duration("elapsed", report.Elapsed),
	)
	if w.emitter != nil {
		w.emitter.EmitSweepCompleted(ctx, report)
	}
	return report, nil
}

type outcome int

const (
	outcomeProcessed outcome = iota
	outcomeSkipped
	outcomeFailed
)

func (w *Worker) process(ctx context.Context, r *deletion.Request) (done *deletion.Request, res outcome) {
	defer func() {
		if p := recover(); p != nil {
			w.logger.Error("deletion request panicked",
				slog.String("request_id", r.ID.String()),
				slog.Any("panic", p),
			)
			done, res = nil, outcomeFailed
		}
	}()

	done, err := w.manager.ProcessRequest(ctx, r.ID, r.EmployeeID)
	switch {
	case err == nil:
	case errors.Is(err, timesheet.ErrAlreadyProcessed),
		errors.Is(err, timesheet.ErrConcurrentUpdate),
		errors.Is(err, timesheet.ErrNotDue),
		errors.Is(err, timesheet.ErrInvalidState):
		w.logger.Info("deletion request skipped",
			slog.String("request_id", r.ID.String()),
			slog.String("reason", err.Error()),
		)
		return nil, outcomeSkipped
	default:
		w.logger.Error("deletion request failed",
			slog.String("request_id", r.ID.String()),
			slog.String("employee_id", r.EmployeeID),
			slog.String("error", err.Error()),
		)
		return nil, outcomeFailed
	}

	var sendErr error
	if w.notifier != nil {
		sendErr = w.notifier.Notify(ctx, notify.DeletionCompleted(done))
		if sendErr != nil {
			w.logger.Warn("deletion completion notice failed",
				slog.String("request_id", done.ID.String()),
				slog.String("error", sendErr.Error()),
			)
		}
	}
	if w.emitter != nil {
		w.emitter.EmitDeletionConfirmationSent(ctx, done, sendErr)
	}
	return done, outcomeProcessed
}
