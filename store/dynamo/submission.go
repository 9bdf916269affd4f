package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// CreateItem persists a new item.
func (s *Store) CreateItem(ctx context.Context, it *submission.Item) error {
	av, err := attributevalue.MarshalMap(toItemRecord(it))
	if err != nil {
		return fmt.Errorf("timesheet/dynamo: marshal item: %w", err)
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.itemsTable),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		if isConditionFailed(err) {
			return timesheet.ErrItemAlreadyExists
		}
		return fmt.Errorf("timesheet/dynamo: create item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, itemID id.SubmissionID) (*submission.Item, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.itemsTable),
		Key:            keyOf(itemID.String()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: get item: %w", err)
	}
	if out.Item == nil {
		return nil, timesheet.ErrItemNotFound
	}
	return decodeItem(out.Item)
}

// ClaimItem moves a pending item at the caller's version to processing
// with a single conditional UpdateItem.
func (s *Store) ClaimItem(ctx context.Context, it *submission.Item, claimedBy string, now time.Time) (bool, error) {
	out, err := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.itemsTable),
		Key:                 keyOf(it.ID.String()),
		ConditionExpression: aws.String("#st = :pending AND #ver = :v"),
		UpdateExpression: aws.String(
			"SET #st = :processing, claimed_by = :by, claimed_at = :now, updated_at = :now, #ver = #ver + :one"),
		ExpressionAttributeNames: map[string]string{
			"#st":  "status",
			"#ver": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending":    stringAV(string(submission.StatusPending)),
			":processing": stringAV(string(submission.StatusProcessing)),
			":by":         stringAV(claimedBy),
			":now":        numberAV(millis(now)),
			":v":          numberAV(it.Version),
			":one":        numberAV(1),
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		if !isConditionFailed(err) {
			return false, fmt.Errorf("timesheet/dynamo: claim item: %w", err)
		}
		// Someone else claimed it, it changed state, or it does not exist.
		if _, getErr := s.GetItem(ctx, it.ID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}

	claimed, err := decodeItem(out.Attributes)
	if err != nil {
		return false, err
	}
	*it = *claimed
	return true, nil
}

// UpdateItem persists it if the stored version matches.
func (s *Store) UpdateItem(ctx context.Context, it *submission.Item) error {
	rec := toItemRecord(it)
	rec.Version = it.Version + 1
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("timesheet/dynamo: marshal item: %w", err)
	}

	_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.itemsTable),
		Item:                av,
		ConditionExpression: aws.String("#ver = :v"),
		ExpressionAttributeNames: map[string]string{
			"#ver": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": numberAV(it.Version),
		},
	})
	if err != nil {
		if !isConditionFailed(err) {
			return fmt.Errorf("timesheet/dynamo: update item: %w", err)
		}
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
	f := newFilter().
		add("#st = :pending").add("next_retry_at <= :now").
		name("#st", "status").
		value(":pending", stringAV(string(submission.StatusPending))).
		value(":now", numberAV(millis(now)))

	items, err := s.scanItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: list due items: %w", err)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].NextRetryAt.Equal(items[j].NextRetryAt) {
			return items[i].NextRetryAt.Before(items[j].NextRetryAt)
		}
		return items[i].ID.String() < items[j].ID.String()
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// ListItemsByEmployee returns an employee's items, newest first.
func (s *Store) ListItemsByEmployee(ctx context.Context, employeeID string, opts submission.ListOpts) ([]*submission.Item, error) {
	f := newFilter().
		add("employee_id = :emp").
		value(":emp", stringAV(employeeID))

	items, err := s.scanItems(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: list items by employee: %w", err)
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].CreatedAt.Equal(items[j].CreatedAt) {
			return items[i].CreatedAt.After(items[j].CreatedAt)
		}
		return items[i].ID.String() > items[j].ID.String()
	})

	if opts.Offset > 0 {
		if opts.Offset >= len(items) {
			return nil, nil
		}
		items = items[opts.Offset:]
	}
	if opts.Limit > 0 && len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items, nil
}

// ReleaseStaleClaims returns items claimed before cutoff to pending. Each
// release is conditional on the version read, so a concurrent completion
// wins.
func (s *Store) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	f := newFilter().
		add("#st = :processing").add("claimed_at < :cutoff").
		name("#st", "status").
		value(":processing", stringAV(string(submission.StatusProcessing))).
		value(":cutoff", numberAV(millis(cutoff)))

	stale, err := s.scanItems(ctx, f)
	if err != nil {
		return 0, fmt.Errorf("timesheet/dynamo: release stale claims: %w", err)
	}

	var released int64
	for _, it := range stale {
		_, uErr := s.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(s.itemsTable),
			Key:                 keyOf(it.ID.String()),
			ConditionExpression: aws.String("#ver = :v"),
			UpdateExpression: aws.String(
				"SET #st = :pending, claimed_by = :empty, updated_at = :now, #ver = #ver + :one REMOVE claimed_at"),
			ExpressionAttributeNames: map[string]string{
				"#st":  "status",
				"#ver": "version",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pending": stringAV(string(submission.StatusPending)),
				":empty":   stringAV(""),
				":now":     numberAV(millis(cutoff)),
				":v":       numberAV(it.Version),
				":one":     numberAV(1),
			},
		})
		if uErr != nil {
			if isConditionFailed(uErr) {
				continue
			}
			return released, fmt.Errorf("timesheet/dynamo: release item %s: %w", it.ID, uErr)
		}
		released++
	}
	return released, nil
}

// CountItems returns the number of items matching opts.
func (s *Store) CountItems(ctx context.Context, opts submission.CountOpts) (int64, error) {
	f := newFilter()
	if opts.EmployeeID != "" {
		f.add("employee_id = :emp").value(":emp", stringAV(opts.EmployeeID))
	}
	if opts.Status != "" {
		f.add("#st = :status").name("#st", "status").value(":status", stringAV(string(opts.Status)))
	}
	if opts.DueAt != nil {
		f.add("#st = :pending").add("next_retry_at <= :due").
			name("#st", "status").
			value(":pending", stringAV(string(submission.StatusPending))).
			value(":due", numberAV(millis(*opts.DueAt)))
	}

	n, err := s.countAll(ctx, f.apply(&dynamodb.ScanInput{TableName: aws.String(s.itemsTable)}))
	if err != nil {
		return 0, fmt.Errorf("timesheet/dynamo: count items: %w", err)
	}
	return n, nil
}

func (s *Store) scanItems(ctx context.Context, f *filter) ([]*submission.Item, error) {
	rows, err := s.scanAll(ctx, f.apply(&dynamodb.ScanInput{
		TableName:      aws.String(s.itemsTable),
		ConsistentRead: aws.Bool(true),
	}))
	if err != nil {
		return nil, err
	}

	items := make([]*submission.Item, 0, len(rows))
	for _, row := range rows {
		it, decErr := decodeItem(row)
		if decErr != nil {
			return nil, decErr
		}
		items = append(items, it)
	}
	return items, nil
}

func decodeItem(av map[string]types.AttributeValue) (*submission.Item, error) {
	var rec itemRecord
	if err := attributevalue.UnmarshalMap(av, &rec); err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: unmarshal item: %w", err)
	}
	return fromItemRecord(&rec)
}
