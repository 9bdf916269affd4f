package submission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/backoff"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// Emitter receives queue lifecycle events. The ext.Registry satisfies it.
type Emitter interface {
	EmitItemEnqueued(ctx context.Context, it *Item)
}

// EnqueueParams describes an action whose first delivery attempt failed.
type EnqueueParams struct {
	EmployeeID  string
	Action      action.Kind
	Timestamp   time.Time
	ThreadID    string
	MessageID   string
	UserMessage string
	// ErrorMessage and StatusCode describe the failure that caused the
	// action to be queued.
	ErrorMessage string
	StatusCode   int
	Context      map[string]string
}

// Outcome is the result of one delivery attempt.
type Outcome struct {
	Success    bool
	StatusCode int
	Error      string
}

// Statistics summarizes queue contents.
type Statistics struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	Completed  int64 `json:"completed"`
	Failed     int64 `json:"failed"`
	// Ready counts pending items whose retry time has passed.
	Ready int64 `json:"ready"`
	Total int64 `json:"total"`
}

// Option configures a Queue.
type Option func(*Queue)

// WithMaxRetries sets the attempt budget given to new items.
func WithMaxRetries(n int) Option {
	return func(q *Queue) { q.maxRetries = n }
}

// WithBackoff sets the retry delay strategy.
func WithBackoff(s backoff.Strategy) Option {
	return func(q *Queue) { q.backoff = s }
}

// WithClaimTimeout sets how long a claim is honoured.
func WithClaimTimeout(d time.Duration) Option {
	return func(q *Queue) { q.claimTimeout = d }
}

// WithClaimant sets the identity recorded on claims made by this queue.
func WithClaimant(name string) Option {
	return func(q *Queue) { q.claimant = name }
}

// WithClock sets the time source.
func WithClock(c timesheet.Clock) Option {
	return func(q *Queue) { q.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(q *Queue) { q.logger = l }
}

// WithKnownKinds sets the check Enqueue applies to action kinds. Defaults
// to the built-in kinds; the engine passes its action registry.
func WithKnownKinds(known func(action.Kind) bool) Option {
	return func(q *Queue) { q.known = known }
}

// WithEmitter sets the lifecycle event receiver.
func WithEmitter(e Emitter) Option {
	return func(q *Queue) { q.emitter = e }
}

// Queue is the submission queue manager. All state lives in the Store;
// Queue itself is safe for concurrent use.
type Queue struct {
	store        Store
	backoff      backoff.Strategy
	known        func(action.Kind) bool
	maxRetries   int
	claimTimeout time.Duration
	claimant     string
	clock        timesheet.Clock
	logger       *slog.Logger
	emitter      Emitter
}

// NewQueue creates a queue over store.
func NewQueue(store Store, opts ...Option) *Queue {
	cfg := timesheet.DefaultConfig()
	q := &Queue{
		store:        store,
		backoff:      backoff.DefaultStrategy(),
		known:        action.Kind.Builtin,
		maxRetries:   cfg.MaxRetries,
		claimTimeout: cfg.ClaimTimeout,
		claimant:     id.NewWorkerID().String(),
		clock:        timesheet.SystemClock,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Claimant returns the identity this queue records on claims.
func (q *Queue) Claimant() string { return q.claimant }

// Enqueue persists a failed action for later retry. The item is durable
// when Enqueue returns.
func (q *Queue) Enqueue(ctx context.Context, p EnqueueParams) (*Item, error) {
	if strings.TrimSpace(p.EmployeeID) == "" {
		return nil, fmt.Errorf("%w: employee id is required", timesheet.ErrInvalidInput)
	}
	if !q.known(p.Action) {
		return nil, fmt.Errorf("%w: %w: %q", timesheet.ErrInvalidInput, timesheet.ErrUnknownAction, p.Action)
	}
	if p.Timestamp.IsZero() {
		return nil, fmt.Errorf("%w: action timestamp is required", timesheet.ErrInvalidInput)
	}

	now := q.clock.Now()
	it := &Item{
		Entity:         timesheet.NewEntityAt(now),
		ID:             id.NewSubmissionID(),
		EmployeeID:     p.EmployeeID,
		Action:         p.Action,
		Timestamp:      p.Timestamp,
		ThreadID:       p.ThreadID,
		MessageID:      p.MessageID,
		UserMessage:    p.UserMessage,
		Context:        p.Context,
		Status:         StatusPending,
		MaxRetries:     q.maxRetries,
		NextRetryAt:    now.Add(q.backoff.Delay(0)),
		LastError:      p.ErrorMessage,
		LastStatusCode: p.StatusCode,
	}

	if err := q.store.CreateItem(ctx, it); err != nil {
		return nil, fmt.Errorf("enqueue %s for %s: %w", p.Action, p.EmployeeID, err)
	}

	q.logger.Info("submission queued for retry",
		slog.String("item_id", it.ID.String()),
		slog.String("employee_id", it.EmployeeID),
		slog.String("action", string(it.Action)),
		slog.Time("next_retry_at", it.NextRetryAt),
	)
	if q.emitter != nil {
		q.emitter.EmitItemEnqueued(ctx, it)
	}
	return it, nil
}

// TryClaim takes exclusive ownership of it for one attempt. It returns
// false when the item is no longer pending or another worker claimed it
// first. On success it reflects the stored, claimed state.
func (q *Queue) TryClaim(ctx context.Context, it *Item) (bool, error) {
	if it.Status != StatusPending {
		return false, nil
	}
	ok, err := q.store.ClaimItem(ctx, it, q.claimant, q.clock.Now())
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", it.ID, err)
	}
	return ok, nil
}

// UpdateAfterAttempt records the outcome of an attempt: success completes
// the item, a failure either schedules the next retry or, once the attempt
// budget is spent, marks the item failed. Terminal items are rejected.
// The returned item is the stored state; it is left untouched.
func (q *Queue) UpdateAfterAttempt(ctx context.Context, it *Item, out Outcome) (*Item, error) {
	if it.Status.IsTerminal() {
		return nil, &timesheet.StateError{
			Op:     "update after attempt",
			ID:     it.ID.String(),
			Status: string(it.Status),
		}
	}

	next := it.Clone()
	now := q.clock.Now()
	next.Touch(now)
	next.ClaimedBy = ""
	next.ClaimedAt = nil
	if out.StatusCode != 0 {
		next.LastStatusCode = out.StatusCode
	}

	switch {
	case out.Success:
		next.Status = StatusCompleted
		next.CompletedAt = &now
		next.LastError = ""
	case next.RetryCount+1 >= next.MaxRetries:
		next.Status = StatusFailed
		next.RetryCount = next.MaxRetries
		next.LastError = out.Error
	default:
		next.Status = StatusPending
		next.RetryCount++
		next.NextRetryAt = now.Add(q.backoff.Delay(next.RetryCount))
		next.LastError = out.Error
	}

	if err := q.store.UpdateItem(ctx, next); err != nil {
		return nil, fmt.Errorf("update %s after attempt: %w", it.ID, err)
	}
	return next, nil
}

// GetPendingItems returns up to limit items that are due now, oldest due
// first.
func (q *Queue) GetPendingItems(ctx context.Context, limit int) ([]*Item, error) {
	items, err := q.store.ListDueItems(ctx, q.clock.Now(), limit)
	if err != nil {
		return nil, fmt.Errorf("list due items: %w", err)
	}
	return items, nil
}

// GetItem returns a single item.
func (q *Queue) GetItem(ctx context.Context, itemID id.SubmissionID) (*Item, error) {
	return q.store.GetItem(ctx, itemID)
}

// GetEmployeeQueue returns every item of an employee, newest first.
func (q *Queue) GetEmployeeQueue(ctx context.Context, employeeID string) ([]*Item, error) {
	items, err := q.store.ListItemsByEmployee(ctx, employeeID, ListOpts{})
	if err != nil {
		return nil, fmt.Errorf("list items for %s: %w", employeeID, err)
	}
	return items, nil
}

// GetStatistics counts items by status. An empty employeeID covers the
// whole queue.
func (q *Queue) GetStatistics(ctx context.Context, employeeID string) (Statistics, error) {
	var stats Statistics
	counts := map[Status]*int64{
		StatusPending:    &stats.Pending,
		StatusProcessing: &stats.Processing,
		StatusCompleted:  &stats.Completed,
		StatusFailed:     &stats.Failed,
	}
	for _, s := range Statuses() {
		n, err := q.store.CountItems(ctx, CountOpts{EmployeeID: employeeID, Status: s})
		if err != nil {
			return Statistics{}, fmt.Errorf("count %s items: %w", s, err)
		}
		*counts[s] = n
		stats.Total += n
	}

	now := q.clock.Now()
	ready, err := q.store.CountItems(ctx, CountOpts{EmployeeID: employeeID, Status: StatusPending, DueAt: &now})
	if err != nil {
		return Statistics{}, fmt.Errorf("count ready items: %w", err)
	}
	stats.Ready = ready
	return stats, nil
}

// ReleaseStaleClaims hands items claimed longer than the claim timeout
// back to the queue. It returns the number of items released.
func (q *Queue) ReleaseStaleClaims(ctx context.Context) (int64, error) {
	n, err := q.store.ReleaseStaleClaims(ctx, q.clock.Now().Add(-q.claimTimeout))
	if err != nil {
		return 0, fmt.Errorf("release stale claims: %w", err)
	}
	if n > 0 {
		q.logger.Warn("released stale submission claims", slog.Int64("count", n))
	}
	return n, nil
}

// IsConflict reports whether err means another writer got there first.
func IsConflict(err error) bool {
	return errors.Is(err, timesheet.ErrConcurrentUpdate)
}
