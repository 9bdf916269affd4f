package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/backoff"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/ext"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	mw "github.com/adiazcan/timesheet-speck-kit-sub001/middleware"
	"github.com/adiazcan/timesheet-speck-kit-sub001/notify"
	"github.com/adiazcan/timesheet-speck-kit-sub001/observability"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
	"github.com/adiazcan/timesheet-speck-kit-sub001/sweep"
	"github.com/adiazcan/timesheet-speck-kit-sub001/worker"
)

const instrumentationName = "github.com/adiazcan/timesheet-speck-kit-sub001"

// DefaultAttemptTimeout bounds one call to an action executor.
const DefaultAttemptTimeout = 30 * time.Second

// Engine holds the assembled pipeline. Use Build to create one.
type Engine struct {
	cfg        timesheet.Config
	store      store.Store
	extensions *ext.Registry
	exts       []ext.Extension
	actions    *action.Registry
	executors  map[action.Kind]action.Executor
	deleter    deletion.Executor
	notifier   notify.Notifier
	bo         backoff.Strategy
	mws        []mw.Middleware
	timeout    time.Duration
	clock      timesheet.Clock
	claimant   string
	logger     *slog.Logger

	queue     *submission.Queue
	manager   *deletion.Manager
	processor *worker.Processor
	sweeper   *sweep.Worker

	// OpenTelemetry providers (optional; nil means use global).
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures an Engine.
type Option func(*Engine)

// WithExtension registers an extension. Extensions are notified in
// registration order, after the built-in metrics extension.
func WithExtension(e ext.Extension) Option {
	return func(eng *Engine) {
		eng.exts = append(eng.exts, e)
	}
}

// WithMiddleware appends middleware after the default chain.
func WithMiddleware(m mw.Middleware) Option {
	return func(eng *Engine) {
		eng.mws = append(eng.mws, m)
	}
}

// WithActionExecutor routes one action kind to exec.
func WithActionExecutor(kind action.Kind, exec action.Executor) Option {
	return func(eng *Engine) {
		eng.executors[kind] = exec
	}
}

// WithDeletionExecutor sets the component that erases an employee's data.
func WithDeletionExecutor(d deletion.Executor) Option {
	return func(eng *Engine) {
		eng.deleter = d
	}
}

// WithNotifier sets where the sweep sends completion notices. Defaults to
// a LogNotifier.
func WithNotifier(n notify.Notifier) Option {
	return func(eng *Engine) {
		eng.notifier = n
	}
}

// WithBackoff replaces the retry delay strategy derived from the config
// (RetryBackoffBase and RetryBackoffJitter).
func WithBackoff(b backoff.Strategy) Option {
	return func(eng *Engine) {
		eng.bo = b
	}
}

// WithAttemptTimeout bounds each executor call. Zero disables the bound.
func WithAttemptTimeout(d time.Duration) Option {
	return func(eng *Engine) {
		eng.timeout = d
	}
}

// WithClock sets the time source shared by every component.
func WithClock(c timesheet.Clock) Option {
	return func(eng *Engine) {
		eng.clock = c
	}
}

// WithClaimant sets the identity recorded on claims and leases. Defaults
// to the hostname plus a fresh worker ID.
func WithClaimant(name string) Option {
	return func(eng *Engine) {
		eng.claimant = name
	}
}

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(eng *Engine) {
		eng.logger = l
	}
}

// WithTracerProvider sets a custom OTel TracerProvider for the tracing
// middleware. If not set, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(eng *Engine) {
		eng.tracerProvider = tp
	}
}

// WithMeterProvider sets a custom OTel MeterProvider for the metrics
// middleware and the observability extension. If not set, the global
// provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(eng *Engine) {
		eng.meterProvider = mp
	}
}

// Build validates cfg and assembles an Engine over s. Every action kind
// must have an executor and a deletion executor is required.
func Build(cfg timesheet.Config, s store.Store, opts ...Option) (*Engine, error) {
	if s == nil {
		return nil, timesheet.ErrNoStore
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	eng := &Engine{
		cfg:       cfg,
		store:     s,
		actions:   action.NewRegistry(),
		executors: make(map[action.Kind]action.Executor),
		timeout:   DefaultAttemptTimeout,
		clock:     timesheet.SystemClock,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(eng)
	}

	eng.extensions = ext.NewRegistry(eng.logger)
	if eng.meterProvider != nil {
		eng.extensions.Register(observability.NewMetricsExtensionWithMeter(
			eng.meterProvider.Meter(instrumentationName + "/observability")))
	} else {
		eng.extensions.Register(observability.NewMetricsExtension())
	}
	for _, e := range eng.exts {
		eng.extensions.Register(e)
	}

	for kind, exec := range eng.executors {
		if err := eng.actions.Register(kind, exec); err != nil {
			return nil, err
		}
	}
	if err := eng.actions.Validate(action.Kinds()...); err != nil {
		return nil, err
	}
	if eng.deleter == nil {
		return nil, fmt.Errorf("%w: deletion executor is required", timesheet.ErrInvalidConfig)
	}
	if eng.notifier == nil {
		eng.notifier = notify.NewLogNotifier(eng.logger)
	}
	if eng.bo == nil {
		eng.bo = retryBackoff(cfg)
	}
	if eng.claimant == "" {
		eng.claimant = defaultClaimant()
	}

	eng.queue = submission.NewQueue(s,
		submission.WithMaxRetries(cfg.MaxRetries),
		submission.WithBackoff(eng.bo),
		submission.WithKnownKinds(eng.actions.Has),
		submission.WithClaimTimeout(cfg.ClaimTimeout),
		submission.WithClaimant(eng.claimant),
		submission.WithClock(eng.clock),
		submission.WithEmitter(eng.extensions),
		submission.WithLogger(eng.logger),
	)

	eng.manager = deletion.NewManager(s, eng.deleter,
		deletion.WithWindow(cfg.DeletionWindow),
		deletion.WithLeaseTimeout(cfg.ClaimTimeout),
		deletion.WithClaimant(eng.claimant),
		deletion.WithClock(eng.clock),
		deletion.WithEmitter(eng.extensions),
		deletion.WithLogger(eng.logger),
	)

	eng.processor = worker.NewProcessor(eng.queue, eng.actions,
		worker.WithPollInterval(cfg.RetryPollInterval),
		worker.WithBatchSize(cfg.RetryBatchSize),
		worker.WithRateLimit(cfg.RetryRateLimit),
		worker.WithMiddleware(eng.middlewares()...),
		worker.WithEmitter(eng.extensions),
		worker.WithClock(eng.clock),
		worker.WithLogger(eng.logger),
	)

	schedule := sweep.Every(cfg.DeletionPollInterval)
	if cfg.DeletionSchedule != "" {
		parsed, err := sweep.ParseSchedule(cfg.DeletionSchedule)
		if err != nil {
			return nil, err
		}
		schedule = parsed
	}
	eng.sweeper = sweep.NewWorker(eng.manager,
		sweep.WithStartupDelay(cfg.DeletionStartupDelay),
		sweep.WithSchedule(schedule),
		sweep.WithNotifier(eng.notifier),
		sweep.WithEmitter(eng.extensions),
		sweep.WithClock(eng.clock),
		sweep.WithLogger(eng.logger),
	)

	return eng, nil
}

// middlewares builds the default chain: recover → tracing → metrics →
// logging → timeout, followed by user middleware.
func (eng *Engine) middlewares() []mw.Middleware {
	tracingMw := mw.Tracing()
	if eng.tracerProvider != nil {
		tracingMw = mw.TracingWithTracer(eng.tracerProvider.Tracer(instrumentationName))
	}
	metricsMw := mw.Metrics()
	if eng.meterProvider != nil {
		metricsMw = mw.MetricsWithMeter(eng.meterProvider.Meter(instrumentationName))
	}

	all := []mw.Middleware{
		mw.Recover(eng.logger),
		tracingMw,
		metricsMw,
		mw.Logging(eng.logger),
		mw.Timeout(eng.timeout, eng.logger),
	}
	return append(all, eng.mws...)
}

// retryBackoff derives the delay strategy from cfg. Jitter spreads the
// retries of items that failed together.
func retryBackoff(cfg timesheet.Config) backoff.Strategy {
	if cfg.RetryBackoffJitter > 0 {
		return backoff.NewExponentialWithJitter(cfg.RetryBackoffBase, 0, cfg.RetryBackoffJitter)
	}
	return backoff.NewExponential(cfg.RetryBackoffBase, 0)
}

func defaultClaimant() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	return hostname + "/" + id.NewWorkerID().String()
}

// Start releases claims left behind by a crashed instance, then starts the
// retry processor and the deletion sweep.
func (eng *Engine) Start(ctx context.Context) error {
	if _, err := eng.queue.ReleaseStaleClaims(ctx); err != nil {
		eng.logger.Warn("failed to release stale claims", slog.String("error", err.Error()))
	}
	if err := eng.processor.Start(ctx); err != nil {
		return fmt.Errorf("start retry processor: %w", err)
	}
	if err := eng.sweeper.Start(ctx); err != nil {
		_ = eng.processor.Stop(ctx)
		return fmt.Errorf("start deletion sweep: %w", err)
	}
	eng.logger.Info("timesheet engine started", slog.String("claimant", eng.claimant))
	return nil
}

// Stop shuts both workers down, waiting for in-flight work until ctx
// expires, then notifies Shutdown extensions.
func (eng *Engine) Stop(ctx context.Context) error {
	var firstErr error
	if err := eng.processor.Stop(ctx); err != nil {
		eng.logger.Error("retry processor stop error", slog.String("error", err.Error()))
		firstErr = err
	}
	if err := eng.sweeper.Stop(ctx); err != nil {
		eng.logger.Error("deletion sweep stop error", slog.String("error", err.Error()))
		if firstErr == nil {
			firstErr = err
		}
	}
	eng.extensions.EmitShutdown(ctx)
	return firstErr
}

// Config returns the configuration the engine was built with.
func (eng *Engine) Config() timesheet.Config { return eng.cfg }

// Store returns the backing store.
func (eng *Engine) Store() store.Store { return eng.store }

// Extensions returns the extension registry.
func (eng *Engine) Extensions() *ext.Registry { return eng.extensions }

// Actions returns the action registry.
func (eng *Engine) Actions() *action.Registry { return eng.actions }

// Queue returns the submission queue.
func (eng *Engine) Queue() *submission.Queue { return eng.queue }

// Deletions returns the deletion lifecycle manager.
func (eng *Engine) Deletions() *deletion.Manager { return eng.manager }

// Processor returns the retry processor.
func (eng *Engine) Processor() *worker.Processor { return eng.processor }

// Sweeper returns the deletion sweep.
func (eng *Engine) Sweeper() *sweep.Worker { return eng.sweeper }

// Claimant returns the identity recorded on claims made by this engine.
func (eng *Engine) Claimant() string { return eng.claimant }
