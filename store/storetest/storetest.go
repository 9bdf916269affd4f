// Package storetest holds a behavioural suite that every store.Store
// backend runs against itself.
package storetest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/store"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Epoch is the reference time used by the suite. Backends that truncate
// timestamps still round-trip it exactly.
var Epoch = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// Factory returns an empty, migrated store. It is called once per subtest.
type Factory func(t *testing.T) store.Store

// Run executes the suite.
func Run(t *testing.T, newStore Factory) {
	t.Helper()

	t.Run("ItemRoundTrip", func(t *testing.T) { testItemRoundTrip(t, newStore(t)) })
	t.Run("ItemDuplicate", func(t *testing.T) { testItemDuplicate(t, newStore(t)) })
	t.Run("ClaimExactlyOnce", func(t *testing.T) { testClaimExactlyOnce(t, newStore(t)) })
	t.Run("UpdateVersionConflict", func(t *testing.T) { testUpdateVersionConflict(t, newStore(t)) })
	t.Run("ListDueItems", func(t *testing.T) { testListDueItems(t, newStore(t)) })
	t.Run("ReleaseStaleClaims", func(t *testing.T) { testReleaseStaleClaims(t, newStore(t)) })
	t.Run("CountItems", func(t *testing.T) { testCountItems(t, newStore(t)) })
	t.Run("OnePendingDeletion", func(t *testing.T) { testOnePendingDeletion(t, newStore(t)) })
	t.Run("DeletionLifecycle", func(t *testing.T) { testDeletionLifecycle(t, newStore(t)) })
	t.Run("ListDueDeletions", func(t *testing.T) { testListDueDeletions(t, newStore(t)) })
}

// NewItem returns a pending item for employee due at next.
func NewItem(employee string, next time.Time) *submission.Item {
	return &submission.Item{
		Entity:      timesheet.NewEntityAt(Epoch),
		ID:          id.NewSubmissionID(),
		EmployeeID:  employee,
		Action:      action.KindClockIn,
		Timestamp:   Epoch,
		ThreadID:    "thread-1",
		Context:     map[string]string{"projectCode": "P-100"},
		Status:      submission.StatusPending,
		MaxRetries:  3,
		NextRetryAt: next,
	}
}

// NewRequest returns a pending deletion request for employee scheduled at
// scheduled.
func NewRequest(employee string, scheduled time.Time) *deletion.Request {
	return &deletion.Request{
		Entity:                timesheet.NewEntityAt(Epoch),
		ID:                    id.NewDeletionID(),
		EmployeeID:            employee,
		Email:                 employee + "@example.com",
		Status:                deletion.StatusPending,
		SubmittedAt:           Epoch,
		ScheduledDeletionDate: scheduled,
	}
}

func testItemRoundTrip(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := NewItem("emp-1", Epoch)
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	got, err := s.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.ID.String() != it.ID.String() || got.EmployeeID != "emp-1" || got.Action != action.KindClockIn {
		t.Errorf("got %+v", got)
	}
	if got.Context["projectCode"] != "P-100" {
		t.Errorf("context = %v", got.Context)
	}
	if !got.NextRetryAt.Equal(Epoch) {
		t.Errorf("NextRetryAt = %v, want %v", got.NextRetryAt, Epoch)
	}

	if _, err := s.GetItem(ctx, id.NewSubmissionID()); !errors.Is(err, timesheet.ErrItemNotFound) {
		t.Errorf("GetItem(unknown) = %v, want ErrItemNotFound", err)
	}
}

func testItemDuplicate(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := NewItem("emp-1", Epoch)
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if err := s.CreateItem(ctx, it); !errors.Is(err, timesheet.ErrItemAlreadyExists) {
		t.Errorf("second CreateItem = %v, want ErrItemAlreadyExists", err)
	}
}

func testClaimExactlyOnce(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := NewItem("emp-1", Epoch)
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := it.Clone()
			ok, err := s.ClaimItem(ctx, cp, "worker", Epoch)
			if err != nil {
				t.Errorf("ClaimItem: %v", err)
				return
			}
			if ok {
				won.Add(1)
				if cp.Status != submission.StatusProcessing {
					t.Errorf("claimed status = %q", cp.Status)
				}
			}
		}()
	}
	wg.Wait()

	if won.Load() != 1 {
		t.Fatalf("winners = %d, want 1", won.Load())
	}
	got, err := s.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.Status != submission.StatusProcessing || got.ClaimedBy != "worker" || got.ClaimedAt == nil {
		t.Errorf("stored = %+v", got)
	}
}

func testUpdateVersionConflict(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := NewItem("emp-1", Epoch)
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}

	a, _ := s.GetItem(ctx, it.ID)
	b, _ := s.GetItem(ctx, it.ID)

	a.LastError = "first"
	if err := s.UpdateItem(ctx, a); err != nil {
		t.Fatalf("first UpdateItem: %v", err)
	}
	if a.Version != it.Version+1 {
		t.Errorf("version = %d, want %d", a.Version, it.Version+1)
	}

	b.LastError = "second"
	if err := s.UpdateItem(ctx, b); !errors.Is(err, timesheet.ErrConcurrentUpdate) {
		t.Errorf("stale UpdateItem = %v, want ErrConcurrentUpdate", err)
	}

	missing := NewItem("emp-1", Epoch)
	if err := s.UpdateItem(ctx, missing); !errors.Is(err, timesheet.ErrItemNotFound) {
		t.Errorf("UpdateItem(unknown) = %v, want ErrItemNotFound", err)
	}
}

func testListDueItems(t *testing.T, s store.Store) {
	ctx := context.Background()
	late := NewItem("emp-1", Epoch.Add(-time.Minute))
	early := NewItem("emp-2", Epoch.Add(-time.Hour))
	future := NewItem("emp-1", Epoch.Add(time.Hour))
	for _, it := range []*submission.Item{late, early, future} {
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	due, err := s.ListDueItems(ctx, Epoch, 10)
	if err != nil {
		t.Fatalf("ListDueItems: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d, want 2", len(due))
	}
	if due[0].ID.String() != early.ID.String() {
		t.Errorf("first due = %s, want %s", due[0].ID, early.ID)
	}

	limited, err := s.ListDueItems(ctx, Epoch, 1)
	if err != nil {
		t.Fatalf("ListDueItems(limit): %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}

	mine, err := s.ListItemsByEmployee(ctx, "emp-1", submission.ListOpts{})
	if err != nil {
		t.Fatalf("ListItemsByEmployee: %v", err)
	}
	if len(mine) != 2 {
		t.Errorf("emp-1 items = %d, want 2", len(mine))
	}
}

func testReleaseStaleClaims(t *testing.T, s store.Store) {
	ctx := context.Background()
	stale := NewItem("emp-1", Epoch)
	fresh := NewItem("emp-1", Epoch)
	for _, it := range []*submission.Item{stale, fresh} {
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}
	if ok, err := s.ClaimItem(ctx, stale, "w", Epoch.Add(-10*time.Minute)); !ok || err != nil {
		t.Fatalf("claim stale: %v %v", ok, err)
	}
	if ok, err := s.ClaimItem(ctx, fresh, "w", Epoch); !ok || err != nil {
		t.Fatalf("claim fresh: %v %v", ok, err)
	}

	n, err := s.ReleaseStaleClaims(ctx, Epoch.Add(-5*time.Minute))
	if err != nil {
		t.Fatalf("ReleaseStaleClaims: %v", err)
	}
	if n != 1 {
		t.Errorf("released = %d, want 1", n)
	}
	got, _ := s.GetItem(ctx, stale.ID)
	if got.Status != submission.StatusPending || got.ClaimedBy != "" {
		t.Errorf("released item = %+v", got)
	}
	got, _ = s.GetItem(ctx, fresh.ID)
	if got.Status != submission.StatusProcessing {
		t.Errorf("fresh status = %q", got.Status)
	}
}

func testCountItems(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := NewItem("emp-1", Epoch)
	b := NewItem("emp-1", Epoch.Add(time.Hour))
	c := NewItem("emp-2", Epoch)
	c.Status = submission.StatusFailed
	for _, it := range []*submission.Item{a, b, c} {
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatalf("CreateItem: %v", err)
		}
	}

	due := Epoch
	tests := []struct {
		name string
		opts submission.CountOpts
		want int64
	}{
		{"all", submission.CountOpts{}, 3},
		{"employee", submission.CountOpts{EmployeeID: "emp-1"}, 2},
		{"status", submission.CountOpts{Status: submission.StatusFailed}, 1},
		{"due", submission.CountOpts{DueAt: &due}, 1},
	}
	for _, tt := range tests {
		got, err := s.CountItems(ctx, tt.opts)
		if err != nil {
			t.Fatalf("%s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s: count = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func testOnePendingDeletion(t *testing.T, s store.Store) {
	ctx := context.Background()
	first := NewRequest("emp-1", Epoch.Add(30*24*time.Hour))
	if err := s.CreateDeletionRequest(ctx, first); err != nil {
		t.Fatalf("CreateDeletionRequest: %v", err)
	}
	second := NewRequest("emp-1", Epoch.Add(30*24*time.Hour))
	if err := s.CreateDeletionRequest(ctx, second); !errors.Is(err, timesheet.ErrDeletionPending) {
		t.Fatalf("second CreateDeletionRequest = %v, want ErrDeletionPending", err)
	}
	other := NewRequest("emp-2", Epoch.Add(30*24*time.Hour))
	if err := s.CreateDeletionRequest(ctx, other); err != nil {
		t.Fatalf("other employee: %v", err)
	}

	// Cancelling frees the slot.
	cancelledAt := Epoch
	first.Status = deletion.StatusCancelled
	first.CancelledAt = &cancelledAt
	if err := s.UpdateDeletionRequest(ctx, first); err != nil {
		t.Fatalf("UpdateDeletionRequest: %v", err)
	}
	if _, err := s.GetPendingDeletionRequest(ctx, "emp-1"); !errors.Is(err, timesheet.ErrDeletionNotFound) {
		t.Errorf("GetPendingDeletionRequest after cancel = %v, want ErrDeletionNotFound", err)
	}
	if err := s.CreateDeletionRequest(ctx, second); err != nil {
		t.Errorf("CreateDeletionRequest after cancel: %v", err)
	}
}

func testDeletionLifecycle(t *testing.T, s store.Store) {
	ctx := context.Background()
	r := NewRequest("emp-1", Epoch.Add(30*24*time.Hour))
	if err := s.CreateDeletionRequest(ctx, r); err != nil {
		t.Fatalf("CreateDeletionRequest: %v", err)
	}

	pending, err := s.GetPendingDeletionRequest(ctx, "emp-1")
	if err != nil {
		t.Fatalf("GetPendingDeletionRequest: %v", err)
	}
	if pending.ID.String() != r.ID.String() || pending.Email != "emp-1@example.com" {
		t.Errorf("pending = %+v", pending)
	}

	stale := pending.Clone()
	completedAt := Epoch.Add(30 * 24 * time.Hour)
	pending.Status = deletion.StatusCompleted
	pending.CompletedAt = &completedAt
	pending.ConversationsDeleted = 4
	if err := s.UpdateDeletionRequest(ctx, pending); err != nil {
		t.Fatalf("UpdateDeletionRequest: %v", err)
	}
	if err := s.UpdateDeletionRequest(ctx, stale); !errors.Is(err, timesheet.ErrConcurrentUpdate) {
		t.Errorf("stale update = %v, want ErrConcurrentUpdate", err)
	}

	got, err := s.GetDeletionRequest(ctx, r.ID)
	if err != nil {
		t.Fatalf("GetDeletionRequest: %v", err)
	}
	if got.Status != deletion.StatusCompleted || got.ConversationsDeleted != 4 || got.CompletedAt == nil {
		t.Errorf("stored = %+v", got)
	}

	all, err := s.ListDeletionRequestsByEmployee(ctx, "emp-1")
	if err != nil {
		t.Fatalf("ListDeletionRequestsByEmployee: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("requests = %d, want 1", len(all))
	}

	n, err := s.CountDeletionRequests(ctx, deletion.CountOpts{Status: deletion.StatusCompleted})
	if err != nil {
		t.Fatalf("CountDeletionRequests: %v", err)
	}
	if n != 1 {
		t.Errorf("completed = %d, want 1", n)
	}

	if _, err := s.GetDeletionRequest(ctx, id.NewDeletionID()); !errors.Is(err, timesheet.ErrDeletionNotFound) {
		t.Errorf("GetDeletionRequest(unknown) = %v, want ErrDeletionNotFound", err)
	}
}

func testListDueDeletions(t *testing.T, s store.Store) {
	ctx := context.Background()
	due := NewRequest("emp-1", Epoch.Add(-time.Hour))
	later := NewRequest("emp-2", Epoch.Add(time.Hour))
	for _, r := range []*deletion.Request{due, later} {
		if err := s.CreateDeletionRequest(ctx, r); err != nil {
			t.Fatalf("CreateDeletionRequest: %v", err)
		}
	}

	got, err := s.ListDueDeletionRequests(ctx, Epoch, 0)
	if err != nil {
		t.Fatalf("ListDueDeletionRequests: %v", err)
	}
	if len(got) != 1 || got[0].ID.String() != due.ID.String() {
		t.Errorf("due = %v", got)
	}
}
