package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

// CreateDeletionRequest stores the request and claims the employee's
// pending slot in one script call.
func (s *Store) CreateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	res, err := s.writeRequest(ctx, "", r, r.Version)
	if err != nil {
		return fmt.Errorf("timesheet/redis: create deletion request: %w", err)
	}
	switch res {
	case resultPending:
		return timesheet.ErrDeletionPending
	case resultDuplicate:
		return fmt.Errorf("timesheet/redis: create deletion request: %s already exists", r.ID)
	}
	return nil
}

// GetDeletionRequest retrieves a request by ID.
func (s *Store) GetDeletionRequest(ctx context.Context, requestID id.DeletionID) (*deletion.Request, error) {
	return s.getRequestByKey(ctx, requestKey(requestID.String()))
}

// GetPendingDeletionRequest returns the employee's pending request.
func (s *Store) GetPendingDeletionRequest(ctx context.Context, employeeID string) (*deletion.Request, error) {
	reqID, err := s.client.HGet(ctx, pendingKey, employeeID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, timesheet.ErrDeletionNotFound
		}
		return nil, fmt.Errorf("timesheet/redis: get pending deletion request: %w", err)
	}
	return s.getRequestByKey(ctx, requestKey(reqID))
}

// UpdateDeletionRequest persists r if the stored version matches.
func (s *Store) UpdateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	res, err := s.writeRequest(ctx, strconv.FormatInt(r.Version, 10), r, r.Version+1)
	if err != nil {
		return fmt.Errorf("timesheet/redis: update deletion request: %w", err)
	}
	switch res {
	case resultMissing:
		return timesheet.ErrDeletionNotFound
	case resultConflict:
		return timesheet.ErrConcurrentUpdate
	case resultPending:
		return timesheet.ErrDeletionPending
	}
	r.Version++
	return nil
}

// ListDueDeletionRequests returns pending requests scheduled at or before
// now, earliest first.
func (s *Store) ListDueDeletionRequests(ctx context.Context, now time.Time, limit int) ([]*deletion.Request, error) {
	ids, err := s.client.ZRangeByScore(ctx, deletionDueKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: list due deletion requests: %w", err)
	}
	return s.loadRequests(ctx, ids)
}

// ListDeletionRequestsByEmployee returns an employee's requests, newest
// first.
func (s *Store) ListDeletionRequestsByEmployee(ctx context.Context, employeeID string) ([]*deletion.Request, error) {
	ids, err := s.client.ZRevRange(ctx, employeeRequestsKey(employeeID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: list deletion requests: %w", err)
	}
	return s.loadRequests(ctx, ids)
}

// CountDeletionRequests returns the number of requests matching opts.
func (s *Store) CountDeletionRequests(ctx context.Context, opts deletion.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, requestIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("timesheet/redis: count deletion smembers: %w", err)
	}

	var count int64
	for _, reqID := range ids {
		r, getErr := s.getRequestByKey(ctx, requestKey(reqID))
		if getErr != nil {
			continue
		}
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

// ── helpers ──

func (s *Store) writeRequest(ctx context.Context, expected string, r *deletion.Request, version int64) (int, error) {
	reqID := r.ID.String()
	args := []interface{}{
		expected, reqID, r.EmployeeID, string(r.Status),
		strconv.FormatInt(r.ScheduledDeletionDate.UnixMilli(), 10),
		strconv.FormatInt(r.SubmittedAt.UnixMilli(), 10),
	}
	for k, v := range requestToMap(r, version) {
		args = append(args, k, v)
	}

	keys := []string{requestKey(reqID), pendingKey, deletionDueKey, requestIDsKey, employeeRequestsKey(r.EmployeeID)}
	return writeRequestScript.Run(ctx, s.client, keys, args...).Int()
}

func (s *Store) loadRequests(ctx context.Context, ids []string) ([]*deletion.Request, error) {
	out := make([]*deletion.Request, 0, len(ids))
	for _, reqID := range ids {
		r, err := s.getRequestByKey(ctx, requestKey(reqID))
		if errors.Is(err, timesheet.ErrDeletionNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *Store) getRequestByKey(ctx context.Context, key string) (*deletion.Request, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: get deletion request: %w", err)
	}
	if len(vals) == 0 {
		return nil, timesheet.ErrDeletionNotFound
	}
	return mapToRequest(vals)
}

func requestToMap(r *deletion.Request, version int64) map[string]string {
	return map[string]string{
		"id":                      r.ID.String(),
		"employee_id":             r.EmployeeID,
		"email":                   r.Email,
		"name":                    r.Name,
		"origin_ip":               r.OriginIP,
		"status":                  string(r.Status),
		"submitted_at":            formatTime(r.SubmittedAt),
		"scheduled_deletion_date": formatTime(r.ScheduledDeletionDate),
		"completed_at":            formatTimePtr(r.CompletedAt),
		"cancelled_at":            formatTimePtr(r.CancelledAt),
		"conversations_deleted":   strconv.Itoa(r.ConversationsDeleted),
		"cancellation_reason":     r.CancellationReason,
		"claimed_by":              r.ClaimedBy,
		"claimed_at":              formatTimePtr(r.ClaimedAt),
		"version":                 strconv.FormatInt(version, 10),
		"created_at":              formatTime(r.CreatedAt),
		"updated_at":              formatTime(r.UpdatedAt),
	}
}

func mapToRequest(m map[string]string) (*deletion.Request, error) {
	reqID, err := id.ParseDeletionID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: parse deletion id: %w", err)
	}

	deleted, _ := strconv.Atoi(m["conversations_deleted"]) //nolint:errcheck // best-effort parse from trusted Redis data
	version, _ := strconv.ParseInt(m["version"], 10, 64)   //nolint:errcheck // best-effort parse from trusted Redis data

	return &deletion.Request{
		Entity: timesheet.Entity{
			CreatedAt: parseTime(m["created_at"]),
			UpdatedAt: parseTime(m["updated_at"]),
		},
		ID:                    reqID,
		EmployeeID:            m["employee_id"],
		Email:                 m["email"],
		Name:                  m["name"],
		OriginIP:              m["origin_ip"],
		Status:                deletion.Status(m["status"]),
		SubmittedAt:           parseTime(m["submitted_at"]),
		ScheduledDeletionDate: parseTime(m["scheduled_deletion_date"]),
		CompletedAt:           parseTimePtr(m["completed_at"]),
		CancelledAt:           parseTimePtr(m["cancelled_at"]),
		ConversationsDeleted:  deleted,
		CancellationReason:    m["cancellation_reason"],
		ClaimedBy:             m["claimed_by"],
		ClaimedAt:             parseTimePtr(m["claimed_at"]),
		Version:               version,
	}, nil
}
