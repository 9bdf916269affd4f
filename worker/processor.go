package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/middleware"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Emitter receives attempt lifecycle events. The ext.Registry satisfies it.
type Emitter interface {
	EmitAttemptSucceeded(ctx context.Context, it *submission.Item, elapsed time.Duration)
	EmitAttemptRetrying(ctx context.Context, it *submission.Item, err error, elapsed time.Duration)
	EmitItemFailed(ctx context.Context, it *submission.Item, err error, elapsed time.Duration)
}

// CycleReport summarizes one processor cycle.
type CycleReport struct {
	StartedAt time.Time     `json:"started_at"`
	Elapsed   time.Duration `json:"elapsed"`
	Released  int64         `json:"released"`
	Fetched   int           `json:"fetched"`
	// Skipped counts items that were not due or were claimed elsewhere.
	Skipped   int `json:"skipped"`
	Succeeded int `json:"succeeded"`
	Retrying  int `json:"retrying"`
	Failed    int `json:"failed"`
	// Errors counts items whose attempt could not be recorded.
	Errors int `json:"errors"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithPollInterval sets the time between cycles.
func WithPollInterval(d time.Duration) Option {
	return func(p *Processor) { p.interval = d }
}

// WithBatchSize sets the maximum number of items fetched per cycle.
func WithBatchSize(n int) Option {
	return func(p *Processor) { p.batchSize = n }
}

// WithRateLimit caps executor calls per second. Zero disables the cap.
func WithRateLimit(perSecond float64) Option {
	return func(p *Processor) {
		if perSecond <= 0 {
			p.limiter = nil
			return
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// WithMiddleware sets the chain every attempt runs through.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(p *Processor) { p.mw = middleware.Chain(mws...) }
}

// WithEmitter sets the lifecycle event receiver.
func WithEmitter(e Emitter) Option {
	return func(p *Processor) { p.emitter = e }
}

// WithClock sets the time source used for due checks.
func WithClock(c timesheet.Clock) Option {
	return func(p *Processor) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) { p.logger = l }
}

// Processor drives the submission retry loop.
type Processor struct {
	queue     *submission.Queue
	registry  *action.Registry
	mw        middleware.Middleware
	emitter   Emitter
	limiter   *rate.Limiter
	interval  time.Duration
	batchSize int
	clock     timesheet.Clock
	logger    *slog.Logger

	stopCh  chan struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewProcessor creates a processor that attempts queue items through
// registry.
func NewProcessor(queue *submission.Queue, registry *action.Registry, opts ...Option) *Processor {
	cfg := timesheet.DefaultConfig()
	p := &Processor{
		queue:     queue,
		registry:  registry,
		mw:        middleware.Chain(),
		interval:  cfg.RetryPollInterval,
		batchSize: cfg.RetryBatchSize,
		clock:     timesheet.SystemClock,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the polling loop and returns immediately. The first
// cycle runs right away.
func (p *Processor) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true
	p.stopCh = make(chan struct{})

	p.logger.Info("retry processor starting",
		slog.String("claimant", p.queue.Claimant()),
		slog.Duration("poll_interval", p.interval),
		slog.Int("batch_size", p.batchSize),
	)

	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.loop(loopCtx)
	}()
	return nil
}

// Stop signals the loop to exit and waits for the current item to
// finish, or for ctx to expire.
func (p *Processor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	close(p.stopCh)
	// The cycle exits at the next item boundary.
	p.cancel()
	p.mu.Unlock()

	p.logger.Info("retry processor stopping")

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("retry processor stopped")
		return nil
	case <-ctx.Done():
		p.logger.Warn("retry processor shutdown timed out")
		return ctx.Err()
	}
}

func (p *Processor) loop(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		p.runCycle(ctx)
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runCycle runs one cycle and recovers from anything that escapes it, so
// the loop never dies.
func (p *Processor) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("retry cycle panicked", slog.Any("panic", r))
		}
	}()
	report, err := p.RunOnce(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		p.logger.Error("retry cycle failed", slog.String("error", err.Error()))
		return
	}
	if report.Fetched > 0 || report.Released > 0 {
		p.logger.Info("retry cycle completed",
			slog.Int("fetched", report.Fetched),
			slog.Int("succeeded", report.Succeeded),
			slog.Int("retrying", report.Retrying),
			slog.Int("failed", report.Failed),
			slog.Int("skipped", report.Skipped),
			slog.Int("errors", report.Errors),
			slog.Int64("released", report.Released),
			slog.Duration("elapsed", report.Elapsed),
		)
	}
}

// RunOnce runs a single cycle. It returns an error only when the due
// items could not be fetched or ctx was cancelled before the batch
// finished.
func (p *Processor) RunOnce(ctx context.Context) (CycleReport, error) {
	report := CycleReport{StartedAt: p.clock.Now()}
	start := time.Now()

	released, err := p.queue.ReleaseStaleClaims(ctx)
	if err != nil {
		p.logger.Warn("stale claim release failed", slog.String("error", err.Error()))
	}
	report.Released = released

	items, err := p.queue.GetPendingItems(ctx, p.batchSize)
	if err != nil {
		report.Elapsed = time.Since(start)
		return report, err
	}
	report.Fetched = len(items)

	for _, it := range items {
		if err := ctx.Err(); err != nil {
			report.Elapsed = time.Since(start)
			return report, err
		}
		p.tally(&report, p.processItem(ctx, it))
	}
	report.Elapsed = time.Since(start)
	return report, nil
}

func (p *Processor) tally(r *CycleReport, res result) {
	switch res {
	case resultSkipped:
		r.Skipped++
	case resultSucceeded:
		r.Succeeded++
	case resultRetrying:
		r.Retrying++
	case resultFailed:
		r.Failed++
	case resultError:
		r.Errors++
	}
}
