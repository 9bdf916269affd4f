package deletion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// Emitter receives deletion lifecycle events. The ext.Registry satisfies
// it.
type Emitter interface {
	EmitDeletionSubmitted(ctx context.Context, r *Request)
	EmitDeletionCancelled(ctx context.Context, r *Request)
	EmitDeletionCompleted(ctx context.Context, r *Request, elapsed time.Duration)
	EmitDeletionFailed(ctx context.Context, r *Request, err error)
}

// SubmitParams describes a new deletion request.
type SubmitParams struct {
	EmployeeID string
	Email      string
	Name       string
	OriginIP   string
}

// Statistics summarizes deletion requests.
type Statistics struct {
	Pending   int64 `json:"pending"`
	Cancelled int64 `json:"cancelled"`
	Completed int64 `json:"completed"`
	Total     int64 `json:"total"`
}

// Option configures a Manager.
type Option func(*Manager)

// WithWindow sets the waiting period before erasure.
func WithWindow(d time.Duration) Option {
	return func(m *Manager) { m.window = d }
}

// WithLeaseTimeout sets how long a processing lease is honoured.
func WithLeaseTimeout(d time.Duration) Option {
	return func(m *Manager) { m.leaseTimeout = d }
}

// WithClaimant sets the identity recorded on processing leases.
func WithClaimant(name string) Option {
	return func(m *Manager) { m.claimant = name }
}

// WithClock sets the time source.
func WithClock(c timesheet.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithEmitter sets the lifecycle event receiver.
func WithEmitter(e Emitter) Option {
	return func(m *Manager) { m.emitter = e }
}

// Manager owns the deletion request lifecycle.
type Manager struct {
	store        Store
	executor     Executor
	window       time.Duration
	leaseTimeout time.Duration
	claimant     string
	clock        timesheet.Clock
	logger       *slog.Logger
	emitter      Emitter
}

// NewManager creates a manager that erases data through executor.
func NewManager(store Store, executor Executor, opts ...Option) *Manager {
	cfg := timesheet.DefaultConfig()
	m := &Manager{
		store:        store,
		executor:     executor,
		window:       cfg.DeletionWindow,
		leaseTimeout: cfg.ClaimTimeout,
		claimant:     id.NewWorkerID().String(),
		clock:        timesheet.SystemClock,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SubmitRequest opens a deletion request scheduled one window from now.
// It fails with ErrDeletionPending if the employee already has one.
func (m *Manager) SubmitRequest(ctx context.Context, p SubmitParams) (*Request, error) {
	if strings.TrimSpace(p.EmployeeID) == "" {
		return nil, fmt.Errorf("%w: employee id is required", timesheet.ErrInvalidInput)
	}

	existing, err := m.store.GetPendingDeletionRequest(ctx, p.EmployeeID)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %s scheduled for %s", timesheet.ErrDeletionPending,
			existing.ID, existing.ScheduledDeletionDate.Format(time.RFC3339))
	case !errors.Is(err, timesheet.ErrDeletionNotFound):
		return nil, fmt.Errorf("check pending deletion for %s: %w", p.EmployeeID, err)
	}

	now := m.clock.Now()
	r := &Request{
		Entity:                timesheet.NewEntityAt(now),
		ID:                    id.NewDeletionID(),
		EmployeeID:            p.EmployeeID,
		Email:                 p.Email,
		Name:                  p.Name,
		OriginIP:              p.OriginIP,
		Status:                StatusPending,
		SubmittedAt:           now,
		ScheduledDeletionDate: now.Add(m.window),
	}
	// The store re-checks atomically; the lookup above only improves the
	// error message.
	if err := m.store.CreateDeletionRequest(ctx, r); err != nil {
		if errors.Is(err, timesheet.ErrDeletionPending) {
			return nil, err
		}
		return nil, fmt.Errorf("create deletion request for %s: %w", p.EmployeeID, err)
	}

	m.logger.Info("deletion request submitted",
		slog.String("request_id", r.ID.String()),
		slog.String("employee_id", r.EmployeeID),
		slog.Time("scheduled_deletion_date", r.ScheduledDeletionDate),
	)
	if m.emitter != nil {
		m.emitter.EmitDeletionSubmitted(ctx, r)
	}
	return r, nil
}

// GetRequest returns a request owned by employeeID. A request that exists
// but belongs to someone else is reported as ErrDeletionNotFound.
func (m *Manager) GetRequest(ctx context.Context, requestID id.DeletionID, employeeID string) (*Request, error) {
	r, err := m.store.GetDeletionRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if r.EmployeeID != employeeID {
		return nil, timesheet.ErrDeletionNotFound
	}
	return r, nil
}

// GetPendingRequest returns the employee's pending request or
// ErrDeletionNotFound.
func (m *Manager) GetPendingRequest(ctx context.Context, employeeID string) (*Request, error) {
	return m.store.GetPendingDeletionRequest(ctx, employeeID)
}

// ListEmployeeRequests returns every request of an employee, newest first.
func (m *Manager) ListEmployeeRequests(ctx context.Context, employeeID string) ([]*Request, error) {
	return m.store.ListDeletionRequestsByEmployee(ctx, employeeID)
}

// CancelRequest withdraws a pending request. Requests that are no longer
// pending, whose window has elapsed, or that are being processed are
// rejected with a *timesheet.StateError.
func (m *Manager) CancelRequest(ctx context.Context, requestID id.DeletionID, employeeID, reason string) (*Request, error) {
	r, err := m.GetRequest(ctx, requestID, employeeID)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	if err := m.checkCancellable(r, now); err != nil {
		return nil, err
	}

	next := r.Clone()
	next.Status = StatusCancelled
	next.CancelledAt = &now
	next.CancellationReason = reason
	next.Touch(now)
	if err := m.store.UpdateDeletionRequest(ctx, next); err != nil {
		if errors.Is(err, timesheet.ErrConcurrentUpdate) {
			// Someone else moved it; report what it is now.
			if cur, getErr := m.store.GetDeletionRequest(ctx, requestID); getErr == nil {
				if stateErr := m.checkCancellable(cur, now); stateErr != nil {
					return nil, stateErr
				}
			}
		}
		return nil, fmt.Errorf("cancel deletion request %s: %w", requestID, err)
	}

	m.logger.Info("deletion request cancelled",
		slog.String("request_id", next.ID.String()),
		slog.String("employee_id", next.EmployeeID),
	)
	if m.emitter != nil {
		m.emitter.EmitDeletionCancelled(ctx, next)
	}
	return next, nil
}

func (m *Manager) checkCancellable(r *Request, now time.Time) error {
	stateErr := &timesheet.StateError{Op: "cancel", ID: r.ID.String(), Status: string(r.Status)}
	switch {
	case r.Status != StatusPending:
		return stateErr
	case !now.Before(r.ScheduledDeletionDate):
		stateErr.Reason = "deletion window has elapsed"
		return stateErr
	case m.leaseHeld(r, now):
		stateErr.Reason = "deletion in progress"
		return stateErr
	}
	return nil
}

// GetRequestsReadyForProcessing returns every pending request whose
// scheduled date is at or before now.
func (m *Manager) GetRequestsReadyForProcessing(ctx context.Context, now time.Time) ([]*Request, error) {
	reqs, err := m.store.ListDueDeletionRequests(ctx, now, 0)
	if err != nil {
		return nil, fmt.Errorf("list ready deletion requests: %w", err)
	}
	return reqs, nil
}

// ProcessRequest erases the employee's data and completes the request.
//
// It is idempotent: a completed request is returned together with
// ErrAlreadyProcessed and the executor is not called again. Requests
// before their scheduled date fail with ErrNotDue, cancelled ones with a
// *timesheet.StateError, and requests leased by another worker with
// ErrConcurrentUpdate.
func (m *Manager) ProcessRequest(ctx context.Context, requestID id.DeletionID, employeeID string) (*Request, error) {
	r, err := m.GetRequest(ctx, requestID, employeeID)
	if err != nil {
		return nil, err
	}

	now := m.clock.Now()
	switch {
	case r.Status == StatusCompleted:
		return r, timesheet.ErrAlreadyProcessed
	case r.Status != StatusPending:
		return nil, &timesheet.StateError{Op: "process", ID: r.ID.String(), Status: string(r.Status)}
	case now.Before(r.ScheduledDeletionDate):
		return nil, fmt.Errorf("%w: %s is scheduled for %s", timesheet.ErrNotDue,
			r.ID, r.ScheduledDeletionDate.Format(time.RFC3339))
	case m.leaseHeld(r, now) && r.ClaimedBy != m.claimant:
		return nil, fmt.Errorf("%w: %s is leased by %s", timesheet.ErrConcurrentUpdate, r.ID, r.ClaimedBy)
	}

	leased := r.Clone()
	leased.ClaimedBy = m.claimant
	leased.ClaimedAt = &now
	leased.Touch(now)
	if err := m.store.UpdateDeletionRequest(ctx, leased); err != nil {
		return nil, fmt.Errorf("lease deletion request %s: %w", requestID, err)
	}

	start := time.Now()
	deleted, execErr := m.executor.DeleteAllData(ctx, leased.EmployeeID)
	if execErr != nil {
		m.releaseLease(ctx, leased)
		m.logger.Error("deletion failed",
			slog.String("request_id", leased.ID.String()),
			slog.String("employee_id", leased.EmployeeID),
			slog.String("error", execErr.Error()),
		)
		if m.emitter != nil {
			m.emitter.EmitDeletionFailed(ctx, leased, execErr)
		}
		return nil, fmt.Errorf("delete data for %s: %w", leased.EmployeeID, execErr)
	}

	// Record the count while still pending so a failed completion write
	// does not lose it. A retry adds to it.
	erased := leased.Clone()
	erased.ConversationsDeleted += deleted
	erased.Touch(m.clock.Now())
	if err := m.store.UpdateDeletionRequest(ctx, erased); err != nil {
		m.logger.Warn("failed to record deleted conversation count",
			slog.String("request_id", erased.ID.String()),
			slog.String("error", err.Error()),
		)
	}

	done := erased.Clone()
	completedAt := m.clock.Now()
	done.Status = StatusCompleted
	done.CompletedAt = &completedAt
	done.ClaimedBy = ""
	done.ClaimedAt = nil
	done.Touch(completedAt)
	if err := m.store.UpdateDeletionRequest(ctx, done); err != nil {
		// The data is gone but the record still says pending. The next
		// sweep re-runs the idempotent erase and completes it.
		m.releaseLease(ctx, erased)
		m.logger.Error("deletion completion failed",
			slog.String("request_id", erased.ID.String()),
			slog.String("employee_id", erased.EmployeeID),
			slog.Int("conversations_deleted", erased.ConversationsDeleted),
			slog.String("error", err.Error()),
		)
		if m.emitter != nil {
			m.emitter.EmitDeletionFailed(ctx, erased, err)
		}
		return nil, fmt.Errorf("complete deletion request %s: %w", requestID, err)
	}

	m.logger.Info("deletion completed",
		slog.String("request_id", done.ID.String()),
		slog.String("employee_id", done.EmployeeID),
		slog.Int("conversations_deleted", done.ConversationsDeleted),
	)
	if m.emitter != nil {
		m.emitter.EmitDeletionCompleted(ctx, done, time.Since(start))
	}
	return done, nil
}

// GetStatistics counts requests by status. An empty employeeID covers
// every employee.
func (m *Manager) GetStatistics(ctx context.Context, employeeID string) (Statistics, error) {
	var stats Statistics
	counts := map[Status]*int64{
		StatusPending:   &stats.Pending,
		StatusCancelled: &stats.Cancelled,
		StatusCompleted: &stats.Completed,
	}
	for _, s := range Statuses() {
		n, err := m.store.CountDeletionRequests(ctx, CountOpts{EmployeeID: employeeID, Status: s})
		if err != nil {
			return Statistics{}, fmt.Errorf("count %s deletion requests: %w", s, err)
		}
		*counts[s] = n
		stats.Total += n
	}
	return stats, nil
}

func (m *Manager) leaseHeld(r *Request, now time.Time) bool {
	return r.ClaimedAt != nil && now.Sub(*r.ClaimedAt) < m.leaseTimeout
}

func (m *Manager) releaseLease(ctx context.Context, r *Request) {
	released := r.Clone()
	released.ClaimedBy = ""
	released.ClaimedAt = nil
	released.Touch(m.clock.Now())
	if err := m.store.UpdateDeletionRequest(ctx, released); err != nil {
		m.logger.Warn("release deletion lease",
			slog.String("request_id", r.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}
