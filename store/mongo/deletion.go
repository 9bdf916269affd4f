package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// CreateDeletionRequest persists a new request. The partial unique index
// rejects a second pending request for the same employee.
func (s *Store) CreateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	_, err := s.db.Collection(colRequests).InsertOne(ctx, toRequestModel(r))
	if err != nil {
		if violatesPendingIndex(err) {
			return timesheet.ErrDeletionPending
		}
		return fmt.Errorf("timesheet/mongo: create deletion request: %w", err)
	}
	return nil
}

// GetDeletionRequest retrieves a request by ID.
func (s *Store) GetDeletionRequest(ctx context.Context, requestID id.DeletionID) (*deletion.Request, error) {
	return s.findOneRequest(ctx, bson.M{"_id": requestID.String()})
}

// GetPendingDeletionRequest returns the employee's pending request.
func (s *Store) GetPendingDeletionRequest(ctx context.Context, employeeID string) (*deletion.Request, error) {
	return s.findOneRequest(ctx, bson.M{
		"employee_id": employeeID,
		"status":      string(deletion.StatusPending),
	})
}

// UpdateDeletionRequest persists r if the stored version matches.
func (s *Store) UpdateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	m := toRequestModel(r)
	m.Version = r.Version + 1

	res, err := s.db.Collection(colRequests).ReplaceOne(ctx,
		bson.M{"_id": m.ID, "version": r.Version}, m)
	if err != nil {
		if violatesPendingIndex(err) {
			return timesheet.ErrDeletionPending
		}
		return fmt.Errorf("timesheet/mongo: update deletion request: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetDeletionRequest(ctx, r.ID); getErr != nil {
			return getErr
		}
		return timesheet.ErrConcurrentUpdate
	}
	r.Version++
	return nil
}

// ListDueDeletionRequests returns pending requests scheduled at or before
// now, earliest first.
func (s *Store) ListDueDeletionRequests(ctx context.Context, now time.Time, limit int) ([]*deletion.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "scheduled_deletion_date", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findRequests(ctx, bson.M{
		"status":                  string(deletion.StatusPending),
		"scheduled_deletion_date": bson.M{"$lte": now},
	}, opts)
}

// ListDeletionRequestsByEmployee returns an employee's requests, newest
// first.
func (s *Store) ListDeletionRequestsByEmployee(ctx context.Context, employeeID string) ([]*deletion.Request, error) {
	opts := options.Find().SetSort(bson.D{{Key: "submitted_at", Value: -1}})
	return s.findRequests(ctx, bson.M{"employee_id": employeeID}, opts)
}

// CountDeletionRequests returns the number of requests matching opts.
func (s *Store) CountDeletionRequests(ctx context.Context, opts deletion.CountOpts) (int64, error) {
	filter := bson.M{}
	if opts.EmployeeID != "" {
		filter["employee_id"] = opts.EmployeeID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	count, err := s.db.Collection(colRequests).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("timesheet/mongo: count deletion requests: %w", err)
	}
	return count, nil
}

func (s *Store) findOneRequest(ctx context.Context, filter bson.M) (*deletion.Request, error) {
	var m requestModel
	err := s.db.Collection(colRequests).FindOne(ctx, filter).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, timesheet.ErrDeletionNotFound
		}
		return nil, fmt.Errorf("timesheet/mongo: get deletion request: %w", err)
	}
	return fromRequestModel(&m)
}

func (s *Store) findRequests(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*deletion.Request, error) {
	cursor, err := s.db.Collection(colRequests).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("timesheet/mongo: find deletion requests: %w", err)
	}
	defer cursor.Close(ctx)

	var models []requestModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("timesheet/mongo: decode deletion requests: %w", err)
	}

	out := make([]*deletion.Request, 0, len(models))
	for i := range models {
		r, convErr := fromRequestModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		out = append(out, r)
	}
	return out, nil
}
