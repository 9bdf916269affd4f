package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Ensure Store implements store.Store at compile time.
// We can't import store here (import cycle), so we verify each subsystem.
var (
	_ submission.Store = (*Store)(nil)
	_ deletion.Store   = (*Store)(nil)
)

// Store is a fully in-memory implementation of store.Store.
// Safe for concurrent access. Intended for unit testing and development.
type Store struct {
	mu sync.RWMutex

	items    map[string]*submission.Item
	requests map[string]*deletion.Request
	// pending maps an employee to their pending deletion request ID.
	pending map[string]string
}

// New returns a new empty Store.
func New() *Store {
	return &Store{
		items:    make(map[string]*submission.Item),
		requests: make(map[string]*deletion.Request),
		pending:  make(map[string]string),
	}
}

// ──────────────────────────────────────────────────
// Lifecycle — Migrate / Ping / Close
// ──────────────────────────────────────────────────

// Migrate is a no-op for the memory store.
func (m *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds for the memory store.
func (m *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (m *Store) Close() error { return nil }

// ──────────────────────────────────────────────────
// Submission Store
// ──────────────────────────────────────────────────

// CreateItem persists a new item.
func (m *Store) CreateItem(_ context.Context, it *submission.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := it.ID.String()
	if _, exists := m.items[key]; exists {
		return timesheet.ErrItemAlreadyExists
	}
	m.items[key] = it.Clone()
	return nil
}

// GetItem retrieves an item by ID.
func (m *Store) GetItem(_ context.Context, itemID id.SubmissionID) (*submission.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	it, ok := m.items[itemID.String()]
	if !ok {
		return nil, timesheet.ErrItemNotFound
	}
	return it.Clone(), nil
}

// ClaimItem moves a pending item at the caller's version to processing.
func (m *Store) ClaimItem(_ context.Context, it *submission.Item, claimedBy string, now time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[it.ID.String()]
	if !ok {
		return false, timesheet.ErrItemNotFound
	}
	if stored.Status != submission.StatusPending || stored.Version != it.Version {
		return false, nil
	}

	claimedAt := now
	stored.Status = submission.StatusProcessing
	stored.ClaimedBy = claimedBy
	stored.ClaimedAt = &claimedAt
	stored.UpdatedAt = now
	stored.Version++

	*it = *stored.Clone()
	return true, nil
}

// UpdateItem persists it if the stored version matches.
func (m *Store) UpdateItem(_ context.Context, it *submission.Item) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[it.ID.String()]
	if !ok {
		return timesheet.ErrItemNotFound
	}
	if stored.Version != it.Version {
		return timesheet.ErrConcurrentUpdate
	}
	it.Version++
	m.items[it.ID.String()] = it.Clone()
	return nil
}

// ListDueItems returns pending items with NextRetryAt ≤ now, oldest due
// first.
func (m *Store) ListDueItems(_ context.Context, now time.Time, limit int) ([]*submission.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*submission.Item
	for _, it := range m.items {
		if it.IsDue(now) {
			result = append(result, it.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].NextRetryAt.Equal(result[j].NextRetryAt) {
			return result[i].NextRetryAt.Before(result[j].NextRetryAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListItemsByEmployee returns an employee's items, newest first.
func (m *Store) ListItemsByEmployee(_ context.Context, employeeID string, opts submission.ListOpts) ([]*submission.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*submission.Item
	for _, it := range m.items {
		if it.EmployeeID == employeeID {
			result = append(result, it.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() > result[j].ID.String()
	})

	return page(result, opts.Offset, opts.Limit), nil
}

// ReleaseStaleClaims returns items claimed before cutoff to pending.
func (m *Store) ReleaseStaleClaims(_ context.Context, cutoff time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, it := range m.items {
		if it.Status != submission.StatusProcessing || it.ClaimedAt == nil || !it.ClaimedAt.Before(cutoff) {
			continue
		}
		it.Status = submission.StatusPending
		it.ClaimedBy = ""
		it.ClaimedAt = nil
		it.UpdatedAt = cutoff
		it.Version++
		n++
	}
	return n, nil
}

// CountItems returns the number of items matching opts.
func (m *Store) CountItems(_ context.Context, opts submission.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, it := range m.items {
		if opts.EmployeeID != "" && it.EmployeeID != opts.EmployeeID {
			continue
		}
		if opts.Status != "" && it.Status != opts.Status {
			continue
		}
		if opts.DueAt != nil && !it.IsDue(*opts.DueAt) {
			continue
		}
		count++
	}
	return count, nil
}

// ──────────────────────────────────────────────────
// Deletion Store
// ──────────────────────────────────────────────────

// CreateDeletionRequest persists a new request, refusing a second pending
// request for the same employee.
func (m *Store) CreateDeletionRequest(_ context.Context, r *deletion.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r.Status == deletion.StatusPending {
		if _, exists := m.pending[r.EmployeeID]; exists {
			return timesheet.ErrDeletionPending
		}
		m.pending[r.EmployeeID] = r.ID.String()
	}
	m.requests[r.ID.String()] = r.Clone()
	return nil
}

// GetDeletionRequest retrieves a request by ID.
func (m *Store) GetDeletionRequest(_ context.Context, requestID id.DeletionID) (*deletion.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.requests[requestID.String()]
	if !ok {
		return nil, timesheet.ErrDeletionNotFound
	}
	return r.Clone(), nil
}

// GetPendingDeletionRequest returns the employee's pending request.
func (m *Store) GetPendingDeletionRequest(_ context.Context, employeeID string) (*deletion.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	key, ok := m.pending[employeeID]
	if !ok {
		return nil, timesheet.ErrDeletionNotFound
	}
	return m.requests[key].Clone(), nil
}

// UpdateDeletionRequest persists r if the stored version matches and
// keeps the pending index in sync.
func (m *Store) UpdateDeletionRequest(_ context.Context, r *deletion.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := r.ID.String()
	stored, ok := m.requests[key]
	if !ok {
		return timesheet.ErrDeletionNotFound
	}
	if stored.Version != r.Version {
		return timesheet.ErrConcurrentUpdate
	}

	if r.Status == deletion.StatusPending {
		if owner, exists := m.pending[r.EmployeeID]; exists && owner != key {
			return timesheet.ErrDeletionPending
		}
		m.pending[r.EmployeeID] = key
	} else if m.pending[r.EmployeeID] == key {
		delete(m.pending, r.EmployeeID)
	}

	r.Version++
	m.requests[key] = r.Clone()
	return nil
}

// ListDueDeletionRequests returns pending requests scheduled at or before
// now, earliest first.
func (m *Store) ListDueDeletionRequests(_ context.Context, now time.Time, limit int) ([]*deletion.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*deletion.Request
	for _, r := range m.requests {
		if r.IsReady(now) {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ScheduledDeletionDate.Before(result[j].ScheduledDeletionDate)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// ListDeletionRequestsByEmployee returns an employee's requests, newest
// first.
func (m *Store) ListDeletionRequestsByEmployee(_ context.Context, employeeID string) ([]*deletion.Request, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*deletion.Request
	for _, r := range m.requests {
		if r.EmployeeID == employeeID {
			result = append(result, r.Clone())
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SubmittedAt.After(result[j].SubmittedAt)
	})
	return result, nil
}

// CountDeletionRequests returns the number of requests matching opts.
func (m *Store) CountDeletionRequests(_ context.Context, opts deletion.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64
	for _, r := range m.requests {
		if opts.EmployeeID != "" && r.EmployeeID != opts.EmployeeID {
			continue
		}
		if opts.Status != "" && r.Status != opts.Status {
			continue
		}
		count++
	}
	return count, nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
