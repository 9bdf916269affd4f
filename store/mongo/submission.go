package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// CreateItem persists a new item.
func (s *Store) CreateItem(ctx context.Context, it *submission.Item) error {
	_, err := s.db.Collection(colItems).InsertOne(ctx, toItemModel(it))
	if err != nil {
		if isDuplicateKey(err) {
			return timesheet.ErrItemAlreadyExists
		}
		return fmt.Errorf("timesheet/mongo: create item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, itemID id.SubmissionID) (*submission.Item, error) {
	var m itemModel
	err := s.db.Collection(colItems).FindOne(ctx, bson.M{"_id": itemID.String()}).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, timesheet.ErrItemNotFound
		}
		return nil, fmt.Errorf("timesheet/mongo: get item: %w", err)
	}
	return fromItemModel(&m)
}

// ClaimItem moves a pending item at the caller's version to processing.
// Uses FindOneAndUpdate so the check and the write are one operation.
func (s *Store) ClaimItem(ctx context.Context, it *submission.Item, claimedBy string, now time.Time) (bool, error) {
	filter := bson.M{
		"_id":     it.ID.String(),
		"status":  string(submission.StatusPending),
		"version": it.Version,
	}
	update := bson.M{
		"$set": bson.M{
			"status":     string(submission.StatusProcessing),
			"claimed_by": claimedBy,
			"claimed_at": now,
			"updated_at": now,
		},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var m itemModel
	err := s.db.Collection(colItems).FindOneAndUpdate(ctx, filter, update, opts).Decode(&m)
	if err != nil {
		if !isNoDocuments(err) {
			return false, fmt.Errorf("timesheet/mongo: claim item: %w", err)
		}
		if _, getErr := s.GetItem(ctx, it.ID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}

	claimed, err := fromItemModel(&m)
	if err != nil {
		return false, err
	}
	*it = *claimed
	return true, nil
}

// UpdateItem persists it if the stored version matches.
func (s *Store) UpdateItem(ctx context.Context, it *submission.Item) error {
	m := toItemModel(it)
	m.Version = it.Version + 1

	res, err := s.db.Collection(colItems).ReplaceOne(ctx,
		bson.M{"_id": m.ID, "version": it.Version}, m)
	if err != nil {
		return fmt.Errorf("timesheet/mongo: update item: %w", err)
	}
	if res.MatchedCount == 0 {
		if _, getErr := s.GetItem(ctx, it.ID); getErr != nil {
			return getErr
		}
		return timesheet.ErrConcurrentUpdate
	}
	it.Version++
	return nil
}

// ListDueItems returns pending items with next_retry_at ≤ now, oldest due
// first.
func (s *Store) ListDueItems(ctx context.Context, now time.Time, limit int) ([]*submission.Item, error) {
	filter := bson.M{
		"status":        string(submission.StatusPending),
		"next_retry_at": bson.M{"$lte": now},
	}
	opts := options.Find().SetSort(bson.D{
		{Key: "next_retry_at", Value: 1},
		{Key: "_id", Value: 1},
	})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findItems(ctx, filter, opts)
}

// ListItemsByEmployee returns an employee's items, newest first.
func (s *Store) ListItemsByEmployee(ctx context.Context, employeeID string, opts submission.ListOpts) ([]*submission.Item, error) {
	findOpts := options.Find().SetSort(bson.D{
		{Key: "created_at", Value: -1},
		{Key: "_id", Value: -1},
	})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		findOpts.SetSkip(int64(opts.Offset))
	}
	return s.findItems(ctx, bson.M{"employee_id": employeeID}, findOpts)
}

// ReleaseStaleClaims returns items claimed before cutoff to pending.
func (s *Store) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.Collection(colItems).UpdateMany(ctx,
		bson.M{
			"status":     string(submission.StatusProcessing),
			"claimed_at": bson.M{"$lt": cutoff},
		},
		bson.M{
			"$set": bson.M{
				"status":     string(submission.StatusPending),
				"claimed_by": "",
				"updated_at": cutoff,
			},
			"$unset": bson.M{"claimed_at": ""},
			"$inc":   bson.M{"version": 1},
		},
	)
	if err != nil {
		return 0, fmt.Errorf("timesheet/mongo: release stale claims: %w", err)
	}
	return res.ModifiedCount, nil
}

// CountItems returns the number of items matching opts.
func (s *Store) CountItems(ctx context.Context, opts submission.CountOpts) (int64, error) {
	filter := bson.M{}
	if opts.EmployeeID != "" {
		filter["employee_id"] = opts.EmployeeID
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}
	if opts.DueAt != nil {
		if opts.Status != "" && opts.Status != submission.StatusPending {
			return 0, nil
		}
		filter["status"] = string(submission.StatusPending)
		filter["next_retry_at"] = bson.M{"$lte": *opts.DueAt}
	}

	count, err := s.db.Collection(colItems).CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("timesheet/mongo: count items: %w", err)
	}
	return count, nil
}

func (s *Store) findItems(ctx context.Context, filter bson.M, opts *options.FindOptionsBuilder) ([]*submission.Item, error) {
	cursor, err := s.db.Collection(colItems).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("timesheet/mongo: find items: %w", err)
	}
	defer cursor.Close(ctx)

	var models []itemModel
	if err := cursor.All(ctx, &models); err != nil {
		return nil, fmt.Errorf("timesheet/mongo: decode items: %w", err)
	}

	items := make([]*submission.Item, 0, len(models))
	for i := range models {
		it, convErr := fromItemModel(&models[i])
		if convErr != nil {
			return nil, convErr
		}
		items = append(items, it)
	}
	return items, nil
}

