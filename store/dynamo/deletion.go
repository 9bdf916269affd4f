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
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// markerOwned holds for a missing marker or one pointing at :rid.
const markerOwned = "attribute_not_exists(id) OR request_id = :rid"

// CreateDeletionRequest persists a new request. A pending request is
// written together with the employee's marker row in one transaction.
func (s *Store) CreateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	av, err := attributevalue.MarshalMap(toRequestRecord(r))
	if err != nil {
		return fmt.Errorf("timesheet/dynamo: marshal deletion request: %w", err)
	}

	if r.Status != deletion.StatusPending {
		_, err = s.db.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(s.requestsTable),
			Item:                av,
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		if err != nil {
			return fmt.Errorf("timesheet/dynamo: create deletion request: %w", err)
		}
		return nil
	}

	marker, err := s.markerPut(r, "attribute_not_exists(id)")
	if err != nil {
		return err
	}
	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Put: &types.Put{
				TableName:           aws.String(s.requestsTable),
				Item:                av,
				ConditionExpression: aws.String("attribute_not_exists(id)"),
			}},
			marker,
		},
	})
	if err != nil {
		if cancelledAt(err, 1) {
			return timesheet.ErrDeletionPending
		}
		return fmt.Errorf("timesheet/dynamo: create deletion request: %w", err)
	}
	return nil
}

// GetDeletionRequest retrieves a request by ID.
func (s *Store) GetDeletionRequest(ctx context.Context, requestID id.DeletionID) (*deletion.Request, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.requestsTable),
		Key:            keyOf(requestID.String()),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: get deletion request: %w", err)
	}
	if out.Item == nil {
		return nil, timesheet.ErrDeletionNotFound
	}
	return decodeRequest(out.Item)
}

// GetPendingDeletionRequest follows the employee's marker row.
func (s *Store) GetPendingDeletionRequest(ctx context.Context, employeeID string) (*deletion.Request, error) {
	out, err := s.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.requestsTable),
		Key:            keyOf(markerID(employeeID)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: get pending marker: %w", err)
	}
	if out.Item == nil {
		return nil, timesheet.ErrDeletionNotFound
	}

	var m pendingMarker
	if err := attributevalue.UnmarshalMap(out.Item, &m); err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: unmarshal pending marker: %w", err)
	}
	reqID, err := id.ParseDeletionID(m.RequestID)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: parse marker request id: %w", err)
	}
	return s.GetDeletionRequest(ctx, reqID)
}

// UpdateDeletionRequest persists r if the stored version matches and
// moves the employee's marker with it.
func (s *Store) UpdateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	rec := toRequestRecord(r)
	rec.Version = r.Version + 1
	av, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("timesheet/dynamo: marshal deletion request: %w", err)
	}

	put := types.TransactWriteItem{Put: &types.Put{
		TableName:           aws.String(s.requestsTable),
		Item:                av,
		ConditionExpression: aws.String("#ver = :v"),
		ExpressionAttributeNames: map[string]string{
			"#ver": "version",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":v": numberAV(r.Version),
		},
	}}

	var marker types.TransactWriteItem
	if r.Status == deletion.StatusPending {
		marker, err = s.markerPut(r, markerOwned)
		if err != nil {
			return err
		}
	} else {
		marker = types.TransactWriteItem{Delete: &types.Delete{
			TableName:           aws.String(s.requestsTable),
			Key:                 keyOf(markerID(r.EmployeeID)),
			ConditionExpression: aws.String(markerOwned),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":rid": stringAV(r.ID.String()),
			},
		}}
	}

	_, err = s.db.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{put, marker},
	})
	switch {
	case err == nil:
	case cancelledAt(err, 0):
		if _, getErr := s.GetDeletionRequest(ctx, r.ID); getErr != nil {
			return getErr
		}
		return timesheet.ErrConcurrentUpdate
	case cancelledAt(err, 1) && r.Status == deletion.StatusPending:
		return timesheet.ErrDeletionPending
	case cancelledAt(err, 1):
		// The marker belongs to a newer request; leave it alone.
		if err := s.putRequestOnly(ctx, put.Put); err != nil {
			return err
		}
	default:
		return fmt.Errorf("timesheet/dynamo: update deletion request: %w", err)
	}
	r.Version++
	return nil
}

// ListDueDeletionRequests returns pending requests scheduled at or before
// now, earliest first.
func (s *Store) ListDueDeletionRequests(ctx context.Context, now time.Time, limit int) ([]*deletion.Request, error) {
	f := newFilter().
		add("#st = :pending").add("scheduled_deletion_date <= :now").
		name("#st", "status").
		value(":pending", stringAV(string(deletion.StatusPending))).
		value(":now", numberAV(millis(now)))

	out, err := s.scanRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: list due deletion requests: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ScheduledDeletionDate.Before(out[j].ScheduledDeletionDate)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ListDeletionRequestsByEmployee returns an employee's requests, newest
// first.
func (s *Store) ListDeletionRequestsByEmployee(ctx context.Context, employeeID string) ([]*deletion.Request, error) {
	f := newFilter().
		add("employee_id = :emp").
		value(":emp", stringAV(employeeID))

	out, err := s.scanRequests(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: list deletion requests: %w", err)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].SubmittedAt.After(out[j].SubmittedAt)
	})
	return out, nil
}

// CountDeletionRequests returns the number of requests matching opts.
// Marker rows carry no status and are excluded.
func (s *Store) CountDeletionRequests(ctx context.Context, opts deletion.CountOpts) (int64, error) {
	f := newFilter().add("attribute_exists(#st)").name("#st", "status")
	if opts.EmployeeID != "" {
		f.add("employee_id = :emp").value(":emp", stringAV(opts.EmployeeID))
	}
	if opts.Status != "" {
		f.add("#st = :status").value(":status", stringAV(string(opts.Status)))
	}

	n, err := s.countAll(ctx, f.apply(&dynamodb.ScanInput{TableName: aws.String(s.requestsTable)}))
	if err != nil {
		return 0, fmt.Errorf("timesheet/dynamo: count deletion requests: %w", err)
	}
	return n, nil
}

func (s *Store) markerPut(r *deletion.Request, cond string) (types.TransactWriteItem, error) {
	av, err := attributevalue.MarshalMap(pendingMarker{
		ID:        markerID(r.EmployeeID),
		RequestID: r.ID.String(),
	})
	if err != nil {
		return types.TransactWriteItem{}, fmt.Errorf("timesheet/dynamo: marshal pending marker: %w", err)
	}
	put := &types.Put{
		TableName:           aws.String(s.requestsTable),
		Item:                av,
		ConditionExpression: aws.String(cond),
	}
	if cond == markerOwned {
		put.ExpressionAttributeValues = map[string]types.AttributeValue{
			":rid": stringAV(r.ID.String()),
		}
	}
	return types.TransactWriteItem{Put: put}, nil
}

func (s *Store) putRequestOnly(ctx context.Context, p *types.Put) error {
	_, err := s.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 p.TableName,
		Item:                      p.Item,
		ConditionExpression:       p.ConditionExpression,
		ExpressionAttributeNames:  p.ExpressionAttributeNames,
		ExpressionAttributeValues: p.ExpressionAttributeValues,
	})
	if err != nil {
		if isConditionFailed(err) {
			return timesheet.ErrConcurrentUpdate
		}
		return fmt.Errorf("timesheet/dynamo: update deletion request: %w", err)
	}
	return nil
}

func (s *Store) scanRequests(ctx context.Context, f *filter) ([]*deletion.Request, error) {
	rows, err := s.scanAll(ctx, f.apply(&dynamodb.ScanInput{
		TableName:      aws.String(s.requestsTable),
		ConsistentRead: aws.Bool(true),
	}))
	if err != nil {
		return nil, err
	}

	out := make([]*deletion.Request, 0, len(rows))
	for _, row := range rows {
		r, decErr := decodeRequest(row)
		if decErr != nil {
			return nil, decErr
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeRequest(av map[string]types.AttributeValue) (*deletion.Request, error) {
	var rec requestRecord
	if err := attributevalue.UnmarshalMap(av, &rec); err != nil {
		return nil, fmt.Errorf("timesheet/dynamo: unmarshal deletion request: %w", err)
	}
	return fromRequestRecord(&rec)
}
