package memory

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
	"github.com/adiazcan/timesheet-speck-kit-sub001/store/storetest"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

var t0 = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

// ──────────────────────────────────────────────────
// Lifecycle tests
// ──────────────────────────────────────────────────

func TestLifecycle(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	tests := []struct {
		name string
		fn   func() error
	}{
		{"Migrate", func() error { return s.Migrate(ctx) }},
		{"Ping", func() error { return s.Ping(ctx) }},
		{"Close", func() error { return s.Close() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); err != nil {
				t.Fatalf("%s returned error: %v", tt.name, err)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Submission Store tests
// ──────────────────────────────────────────────────

func newItem(employee string, nextRetry time.Time) *submission.Item {
	return &submission.Item{
		Entity:      timesheet.NewEntityAt(t0),
		ID:          id.NewSubmissionID(),
		EmployeeID:  employee,
		Action:      action.KindClockIn,
		Timestamp:   t0,
		Context:     map[string]string{"project": "alpha"},
		Status:      submission.StatusPending,
		MaxRetries:  3,
		NextRetryAt: nextRetry,
	}
}

func TestCreateAndGetItem(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	it := newItem("emp-1", t0)
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatalf("CreateItem: %v", err)
	}
	if err := s.CreateItem(ctx, it); !errors.Is(err, timesheet.ErrItemAlreadyExists) {
		t.Fatalf("duplicate CreateItem err = %v, want ErrItemAlreadyExists", err)
	}

	got, err := s.GetItem(ctx, it.ID)
	if err != nil {
		t.Fatalf("GetItem: %v", err)
	}
	if got.EmployeeID != "emp-1" || got.Context["project"] != "alpha" {
		t.Errorf("GetItem = %+v", got)
	}

	// Returned copies are independent of the stored item.
	got.Context["project"] = "beta"
	again, _ := s.GetItem(ctx, it.ID)
	if again.Context["project"] != "alpha" {
		t.Error("mutating a returned item changed the store")
	}

	if _, err := s.GetItem(ctx, id.NewSubmissionID()); !errors.Is(err, timesheet.ErrItemNotFound) {
		t.Fatalf("GetItem(missing) err = %v, want ErrItemNotFound", err)
	}
}

func TestClaimItem_ExactlyOneWinner(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	it := newItem("emp-1", t0)
	if err := s.CreateItem(ctx, it); err != nil {
		t.Fatal(err)
	}

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp := it.Clone()
			ok, err := s.ClaimItem(ctx, cp, "worker", t0)
			if err != nil {
				t.Errorf("ClaimItem: %v", err)
				return
			}
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := wins.Load(); got != 1 {
		t.Fatalf("claim winners = %d, want 1", got)
	}
	stored, _ := s.GetItem(ctx, it.ID)
	if stored.Status != submission.StatusProcessing || stored.ClaimedBy != "worker" {
		t.Errorf("stored = %s/%q, want processing/worker", stored.Status, stored.ClaimedBy)
	}
}

func TestClaimItem_StaleVersionLoses(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	it := newItem("emp-1", t0)
	_ = s.CreateItem(ctx, it)

	stale := it.Clone()
	fresh := it.Clone()
	fresh.LastError = "touched"
	if err := s.UpdateItem(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	ok, err := s.ClaimItem(ctx, stale, "worker", t0)
	if err != nil || ok {
		t.Fatalf("ClaimItem(stale) = %v, %v; want false, nil", ok, err)
	}
}

func TestUpdateItem_VersionConflict(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	it := newItem("emp-1", t0)
	_ = s.CreateItem(ctx, it)

	a, b := it.Clone(), it.Clone()
	if err := s.UpdateItem(ctx, a); err != nil {
		t.Fatalf("first update: %v", err)
	}
	if a.Version != it.Version+1 {
		t.Errorf("Version = %d, want %d", a.Version, it.Version+1)
	}
	if err := s.UpdateItem(ctx, b); !errors.Is(err, timesheet.ErrConcurrentUpdate) {
		t.Fatalf("second update err = %v, want ErrConcurrentUpdate", err)
	}
}

func TestListDueItems(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	late := newItem("emp-1", t0.Add(-1*time.Second))
	early := newItem("emp-2", t0.Add(-10*time.Second))
	future := newItem("emp-3", t0.Add(time.Minute))
	done := newItem("emp-4", t0.Add(-time.Hour))
	done.Status = submission.StatusCompleted
	for _, it := range []*submission.Item{late, early, future, done} {
		if err := s.CreateItem(ctx, it); err != nil {
			t.Fatal(err)
		}
	}

	due, err := s.ListDueItems(ctx, t0, 10)
	if err != nil {
		t.Fatalf("ListDueItems: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d items, want 2", len(due))
	}
	if due[0].ID.String() != early.ID.String() {
		t.Error("oldest due item should come first")
	}

	limited, _ := s.ListDueItems(ctx, t0, 1)
	if len(limited) != 1 {
		t.Errorf("limited = %d, want 1", len(limited))
	}
}

func TestListItemsByEmployee(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	older := newItem("emp-1", t0)
	newer := newItem("emp-1", t0)
	newer.CreatedAt = t0.Add(time.Minute)
	other := newItem("emp-2", t0)
	for _, it := range []*submission.Item{older, newer, other} {
		_ = s.CreateItem(ctx, it)
	}

	items, err := s.ListItemsByEmployee(ctx, "emp-1", submission.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(items) != 2 || items[0].ID.String() != newer.ID.String() {
		t.Fatalf("items = %d, first %s; want 2 newest first", len(items), items[0].ID)
	}

	paged, _ := s.ListItemsByEmployee(ctx, "emp-1", submission.ListOpts{Offset: 1, Limit: 5})
	if len(paged) != 1 || paged[0].ID.String() != older.ID.String() {
		t.Errorf("paged = %v", paged)
	}
}

func TestReleaseStaleClaims(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	stale := newItem("emp-1", t0)
	recent := newItem("emp-2", t0)
	_ = s.CreateItem(ctx, stale)
	_ = s.CreateItem(ctx, recent)

	_, _ = s.ClaimItem(ctx, stale.Clone(), "w1", t0)
	_, _ = s.ClaimItem(ctx, recent.Clone(), "w2", t0.Add(10*time.Minute))

	n, err := s.ReleaseStaleClaims(ctx, t0.Add(5*time.Minute))
	if err != nil || n != 1 {
		t.Fatalf("ReleaseStaleClaims = %d, %v; want 1", n, err)
	}

	got, _ := s.GetItem(ctx, stale.ID)
	if got.Status != submission.StatusPending || got.ClaimedAt != nil {
		t.Errorf("released item = %s claimed_at %v", got.Status, got.ClaimedAt)
	}
	still, _ := s.GetItem(ctx, recent.ID)
	if still.Status != submission.StatusProcessing {
		t.Errorf("recent claim status = %s, want processing", still.Status)
	}
}

func TestCountItems(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	due := newItem("emp-1", t0.Add(-time.Second))
	notDue := newItem("emp-1", t0.Add(time.Hour))
	failed := newItem("emp-2", t0)
	failed.Status = submission.StatusFailed
	for _, it := range []*submission.Item{due, notDue, failed} {
		_ = s.CreateItem(ctx, it)
	}

	tests := []struct {
		name string
		opts submission.CountOpts
		want int64
	}{
		{"all", submission.CountOpts{}, 3},
		{"employee", submission.CountOpts{EmployeeID: "emp-1"}, 2},
		{"pending", submission.CountOpts{Status: submission.StatusPending}, 2},
		{"failed", submission.CountOpts{Status: submission.StatusFailed}, 1},
		{"ready", submission.CountOpts{Status: submission.StatusPending, DueAt: &t0}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.CountItems(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("CountItems = %d, want %d", got, tt.want)
			}
		})
	}
}

// ──────────────────────────────────────────────────
// Deletion Store tests
// ──────────────────────────────────────────────────

func newRequest(employee string, scheduled time.Time) *deletion.Request {
	return &deletion.Request{
		Entity:                timesheet.NewEntityAt(t0),
		ID:                    id.NewDeletionID(),
		EmployeeID:            employee,
		Email:                 employee + "@example.com",
		Status:                deletion.StatusPending,
		SubmittedAt:           t0,
		ScheduledDeletionDate: scheduled,
	}
}

func TestCreateDeletionRequest_OnePendingPerEmployee(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	var created atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.CreateDeletionRequest(ctx, newRequest("emp-1", t0))
			switch {
			case err == nil:
				created.Add(1)
			case !errors.Is(err, timesheet.ErrDeletionPending):
				t.Errorf("unexpected err: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := created.Load(); got != 1 {
		t.Fatalf("created = %d, want 1", got)
	}
}

func TestUpdateDeletionRequest_FreesPendingSlot(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	r := newRequest("emp-1", t0)
	_ = s.CreateDeletionRequest(ctx, r)

	cancelled := r.Clone()
	cancelled.Status = deletion.StatusCancelled
	if err := s.UpdateDeletionRequest(ctx, cancelled); err != nil {
		t.Fatalf("UpdateDeletionRequest: %v", err)
	}

	if _, err := s.GetPendingDeletionRequest(ctx, "emp-1"); !errors.Is(err, timesheet.ErrDeletionNotFound) {
		t.Fatalf("GetPendingDeletionRequest err = %v, want ErrDeletionNotFound", err)
	}
	if err := s.CreateDeletionRequest(ctx, newRequest("emp-1", t0)); err != nil {
		t.Fatalf("second request after cancel: %v", err)
	}

	// The stale copy can no longer be written.
	if err := s.UpdateDeletionRequest(ctx, r); !errors.Is(err, timesheet.ErrConcurrentUpdate) {
		t.Fatalf("stale update err = %v, want ErrConcurrentUpdate", err)
	}
}

func TestListDueDeletionRequests(t *testing.T) {
	t.Parallel()
	s := New()
	ctx := context.Background()

	ready := newRequest("emp-1", t0.Add(-time.Hour))
	exact := newRequest("emp-2", t0)
	waiting := newRequest("emp-3", t0.Add(time.Second))
	for _, r := range []*deletion.Request{ready, exact, waiting} {
		_ = s.CreateDeletionRequest(ctx, r)
	}

	due, err := s.ListDueDeletionRequests(ctx, t0, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(due) != 2 || due[0].ID.String() != ready.ID.String() {
		t.Fatalf("due = %d, want ready then exact", len(due))
	}

	counts, _ := s.CountDeletionRequests(ctx, deletion.CountOpts{Status: deletion.StatusPending})
	if counts != 3 {
		t.Errorf("pending count = %d, want 3", counts)
	}
	byEmp, _ := s.ListDeletionRequestsByEmployee(ctx, "emp-3")
	if len(byEmp) != 1 {
		t.Errorf("ListDeletionRequestsByEmployee = %d, want 1", len(byEmp))
	}
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(*testing.T) store.Store { return New() })
}
