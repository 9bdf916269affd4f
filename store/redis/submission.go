package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// CreateItem stores the item as a Hash and indexes it.
func (s *Store) CreateItem(ctx context.Context, it *submission.Item) error {
	res, err := s.writeItem(ctx, "", it, it.Version)
	if err != nil {
		return fmt.Errorf("timesheet/redis: create item: %w", err)
	}
	if res == resultDuplicate {
		return timesheet.ErrItemAlreadyExists
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, itemID id.SubmissionID) (*submission.Item, error) {
	return s.getItemByKey(ctx, itemKey(itemID.String()))
}

// ClaimItem moves a pending item at the caller's version to processing.
func (s *Store) ClaimItem(ctx context.Context, it *submission.Item, claimedBy string, now time.Time) (bool, error) {
	if it.Status != submission.StatusPending {
		if _, err := s.GetItem(ctx, it.ID); err != nil {
			return false, err
		}
		return false, nil
	}

	claimed := it.Clone()
	claimedAt := now
	claimed.Status = submission.StatusProcessing
	claimed.ClaimedBy = claimedBy
	claimed.ClaimedAt = &claimedAt
	claimed.UpdatedAt = now

	res, err := s.writeItem(ctx, strconv.FormatInt(it.Version, 10), claimed, it.Version+1)
	if err != nil {
		return false, fmt.Errorf("timesheet/redis: claim item: %w", err)
	}
	switch res {
	case resultMissing:
		return false, timesheet.ErrItemNotFound
	case resultConflict:
		return false, nil
	}
	claimed.Version = it.Version + 1
	*it = *claimed
	return true, nil
}

// UpdateItem persists it if the stored version matches.
func (s *Store) UpdateItem(ctx context.Context, it *submission.Item) error {
	res, err := s.writeItem(ctx, strconv.FormatInt(it.Version, 10), it, it.Version+1)
	if err != nil {
		return fmt.Errorf("timesheet/redis: update item: %w", err)
	}
	switch res {
	case resultMissing:
		return timesheet.ErrItemNotFound
	case resultConflict:
		return timesheet.ErrConcurrentUpdate
	}
	it.Version++
	return nil
}

// ListDueItems returns pending items with next_retry_at ≤ now, oldest due
// first.
func (s *Store) ListDueItems(ctx context.Context, now time.Time, limit int) ([]*submission.Item, error) {
	ids, err := s.client.ZRangeByScore(ctx, dueKey, &goredis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: list due items: %w", err)
	}
	return s.loadItems(ctx, ids)
}

// ListItemsByEmployee returns an employee's items, newest first.
func (s *Store) ListItemsByEmployee(ctx context.Context, employeeID string, opts submission.ListOpts) ([]*submission.Item, error) {
	start := int64(opts.Offset)
	stop := int64(-1)
	if opts.Limit > 0 {
		stop = start + int64(opts.Limit) - 1
	}
	ids, err := s.client.ZRevRange(ctx, employeeItemsKey(employeeID), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: list items by employee: %w", err)
	}
	return s.loadItems(ctx, ids)
}

// ReleaseStaleClaims returns items claimed before cutoff to pending. Items
// that change concurrently are left to the next call.
func (s *Store) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, processingKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("timesheet/redis: release stale claims: %w", err)
	}

	var released int64
	for _, itemID := range ids {
		it, getErr := s.getItemByKey(ctx, itemKey(itemID))
		if getErr != nil {
			continue
		}
		if it.Status != submission.StatusProcessing || it.ClaimedAt == nil || !it.ClaimedAt.Before(cutoff) {
			continue
		}
		it.Status = submission.StatusPending
		it.ClaimedBy = ""
		it.ClaimedAt = nil
		it.UpdatedAt = cutoff

		res, wErr := s.writeItem(ctx, strconv.FormatInt(it.Version, 10), it, it.Version+1)
		if wErr != nil {
			return released, fmt.Errorf("timesheet/redis: release item %s: %w", itemID, wErr)
		}
		if res == resultOK {
			released++
		}
	}
	return released, nil
}

// CountItems returns the number of items matching opts.
func (s *Store) CountItems(ctx context.Context, opts submission.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, itemIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("timesheet/redis: count smembers: %w", err)
	}

	var count int64
	for _, itemID := range ids {
		it, getErr := s.getItemByKey(ctx, itemKey(itemID))
		if getErr != nil {
			continue
		}
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

// ── helpers ──

// writeItem runs writeItemScript. expected is the stored version the
// write is conditional on, or "" for a create.
func (s *Store) writeItem(ctx context.Context, expected string, it *submission.Item, version int64) (int, error) {
	itemID := it.ID.String()

	dueScore := ""
	if it.Status == submission.StatusPending {
		dueScore = strconv.FormatInt(it.NextRetryAt.UnixMilli(), 10)
	}
	claimScore := ""
	if it.Status == submission.StatusProcessing && it.ClaimedAt != nil {
		claimScore = strconv.FormatInt(it.ClaimedAt.UnixMilli(), 10)
	}

	args := []interface{}{
		expected, itemID, dueScore, claimScore,
		strconv.FormatInt(it.CreatedAt.UnixMilli(), 10),
	}
	for k, v := range itemToMap(it, version) {
		args = append(args, k, v)
	}

	keys := []string{itemKey(itemID), dueKey, processingKey, itemIDsKey, employeeItemsKey(it.EmployeeID)}
	return writeItemScript.Run(ctx, s.client, keys, args...).Int()
}

func (s *Store) loadItems(ctx context.Context, ids []string) ([]*submission.Item, error) {
	items := make([]*submission.Item, 0, len(ids))
	for _, itemID := range ids {
		it, err := s.getItemByKey(ctx, itemKey(itemID))
		if errors.Is(err, timesheet.ErrItemNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, nil
}

func (s *Store) getItemByKey(ctx context.Context, key string) (*submission.Item, error) {
	vals, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: get item: %w", err)
	}
	if len(vals) == 0 {
		return nil, timesheet.ErrItemNotFound
	}
	return mapToItem(vals)
}

func itemToMap(it *submission.Item, version int64) map[string]string {
	return map[string]string{
		"id":               it.ID.String(),
		"employee_id":      it.EmployeeID,
		"action":           string(it.Action),
		"timestamp":        formatTime(it.Timestamp),
		"thread_id":        it.ThreadID,
		"message_id":       it.MessageID,
		"user_message":     it.UserMessage,
		"context":          marshalJSON(it.Context),
		"status":           string(it.Status),
		"retry_count":      strconv.Itoa(it.RetryCount),
		"max_retries":      strconv.Itoa(it.MaxRetries),
		"next_retry_at":    formatTime(it.NextRetryAt),
		"last_error":       it.LastError,
		"last_status_code": strconv.Itoa(it.LastStatusCode),
		"claimed_by":       it.ClaimedBy,
		"claimed_at":       formatTimePtr(it.ClaimedAt),
		"completed_at":     formatTimePtr(it.CompletedAt),
		"version":          strconv.FormatInt(version, 10),
		"created_at":       formatTime(it.CreatedAt),
		"updated_at":       formatTime(it.UpdatedAt),
	}
}

func mapToItem(m map[string]string) (*submission.Item, error) {
	itemID, err := id.ParseSubmissionID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("timesheet/redis: parse item id: %w", err)
	}

	retryCount, _ := strconv.Atoi(m["retry_count"])      //nolint:errcheck // best-effort parse from trusted Redis data
	maxRetries, _ := strconv.Atoi(m["max_retries"])      //nolint:errcheck // best-effort parse from trusted Redis data
	statusCode, _ := strconv.Atoi(m["last_status_code"]) //nolint:errcheck // best-effort parse from trusted Redis data
	version, _ := strconv.ParseInt(m["version"], 10, 64) //nolint:errcheck // best-effort parse from trusted Redis data

	return &submission.Item{
		Entity: timesheet.Entity{
			CreatedAt: parseTime(m["created_at"]),
			UpdatedAt: parseTime(m["updated_at"]),
		},
		ID:             itemID,
		EmployeeID:     m["employee_id"],
		Action:         action.Kind(m["action"]),
		Timestamp:      parseTime(m["timestamp"]),
		ThreadID:       m["thread_id"],
		MessageID:      m["message_id"],
		UserMessage:    m["user_message"],
		Context:        unmarshalMap(m["context"]),
		Status:         submission.Status(m["status"]),
		RetryCount:     retryCount,
		MaxRetries:     maxRetries,
		NextRetryAt:    parseTime(m["next_retry_at"]),
		LastError:      m["last_error"],
		LastStatusCode: statusCode,
		ClaimedBy:      m["claimed_by"],
		ClaimedAt:      parseTimePtr(m["claimed_at"]),
		CompletedAt:    parseTimePtr(m["completed_at"]),
		Version:        version,
	}, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339Nano) }

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

func parseTime(v string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
	return t
}

func parseTimePtr(v string) *time.Time {
	if v == "" {
		return nil
	}
	t := parseTime(v)
	return &t
}

// marshalJSON is a helper to marshal to JSON string.
func marshalJSON(v interface{}) string {
	b, _ := json.Marshal(v) //nolint:errcheck // marshal should not fail for basic types
	return string(b)
}

// unmarshalMap parses a JSON map.
func unmarshalMap(s string) map[string]string {
	if s == "" || s == "null" {
		return nil
	}
	out := make(map[string]string)
	_ = json.Unmarshal([]byte(s), &out) //nolint:errcheck // best-effort parse from trusted Redis data
	return out
}
