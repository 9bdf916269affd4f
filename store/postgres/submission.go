package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/action"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

const itemColumns = `
	id, employee_id, action, action_timestamp, thread_id, message_id,
	user_message, context, status, retry_count, max_retries, next_retry_at,
	last_error, last_status_code, claimed_by, claimed_at, completed_at,
	version, created_at, updated_at`

// CreateItem persists a new item.
func (s *Store) CreateItem(ctx context.Context, it *submission.Item) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO timesheet_submission_items (`+itemColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12,
			$13, $14, $15, $16, $17,
			$18, $19, $20
		)`,
		it.ID.String(), it.EmployeeID, string(it.Action), it.Timestamp, it.ThreadID, it.MessageID,
		it.UserMessage, it.Context, string(it.Status), it.RetryCount, it.MaxRetries, it.NextRetryAt,
		it.LastError, it.LastStatusCode, it.ClaimedBy, it.ClaimedAt, it.CompletedAt,
		it.Version, it.CreatedAt, it.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return timesheet.ErrItemAlreadyExists
		}
		return fmt.Errorf("timesheet/postgres: create item: %w", err)
	}
	return nil
}

// GetItem retrieves an item by ID.
func (s *Store) GetItem(ctx context.Context, itemID id.SubmissionID) (*submission.Item, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+itemColumns+` FROM timesheet_submission_items WHERE id = $1`,
		itemID.String(),
	)
	it, err := scanItem(row)
	if err != nil {
		if isNoRows(err) {
			return nil, timesheet.ErrItemNotFound
		}
		return nil, fmt.Errorf("timesheet/postgres: get item: %w", err)
	}
	return it, nil
}

// ClaimItem moves a pending item at the caller's version to processing
// in a single conditional UPDATE.
func (s *Store) ClaimItem(ctx context.Context, it *submission.Item, claimedBy string, now time.Time) (bool, error) {
	row := s.pool.QueryRow(ctx, `
		UPDATE timesheet_submission_items SET
			status = 'processing', claimed_by = $2, claimed_at = $3,
			updated_at = $3, version = version + 1
		WHERE id = $1 AND status = 'pending' AND version = $4
		RETURNING `+itemColumns,
		it.ID.String(), claimedBy, now, it.Version,
	)
	claimed, err := scanItem(row)
	if err != nil {
		if !isNoRows(err) {
			return false, fmt.Errorf("timesheet/postgres: claim item: %w", err)
		}
		if _, getErr := s.GetItem(ctx, it.ID); getErr != nil {
			return false, getErr
		}
		return false, nil
	}
	*it = *claimed
	return true, nil
}

// UpdateItem persists it if the stored version matches.
func (s *Store) UpdateItem(ctx context.Context, it *submission.Item) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE timesheet_submission_items SET
			employee_id = $2, action = $3, action_timestamp = $4,
			thread_id = $5, message_id = $6, user_message = $7, context = $8,
			status = $9, retry_count = $10, max_retries = $11, next_retry_at = $12,
			last_error = $13, last_status_code = $14, claimed_by = $15,
			claimed_at = $16, completed_at = $17, updated_at = $18,
			version = version + 1
		WHERE id = $1 AND version = $19`,
		it.ID.String(), it.EmployeeID, string(it.Action), it.Timestamp,
		it.ThreadID, it.MessageID, it.UserMessage, it.Context,
		string(it.Status), it.RetryCount, it.MaxRetries, it.NextRetryAt,
		it.LastError, it.LastStatusCode, it.ClaimedBy,
		it.ClaimedAt, it.CompletedAt, it.UpdatedAt,
		it.Version,
	)
	if err != nil {
		return fmt.Errorf("timesheet/postgres: update item: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	query := `
		SELECT ` + itemColumns + `
		FROM timesheet_submission_items
		WHERE status = 'pending' AND next_retry_at <= $1
		ORDER BY next_retry_at ASC, id ASC`
	args := []interface{}{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timesheet/postgres: list due items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ListItemsByEmployee returns an employee's items, newest first.
func (s *Store) ListItemsByEmployee(ctx context.Context, employeeID string, opts submission.ListOpts) ([]*submission.Item, error) {
	query := `
		SELECT ` + itemColumns + `
		FROM timesheet_submission_items
		WHERE employee_id = $1
		ORDER BY created_at DESC, id DESC`
	args := []interface{}{employeeID}
	argIdx := 2

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timesheet/postgres: list items by employee: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

// ReleaseStaleClaims returns items claimed before cutoff to pending.
func (s *Store) ReleaseStaleClaims(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE timesheet_submission_items SET
			status = 'pending', claimed_by = '', claimed_at = NULL,
			updated_at = NOW(), version = version + 1
		WHERE status = 'processing' AND claimed_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("timesheet/postgres: release stale claims: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountItems returns the number of items matching opts.
func (s *Store) CountItems(ctx context.Context, opts submission.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM timesheet_submission_items WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if opts.EmployeeID != "" {
		query += fmt.Sprintf(" AND employee_id = $%d", argIdx)
		args = append(args, opts.EmployeeID)
		argIdx++
	}
	if opts.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, string(opts.Status))
		argIdx++
	}
	if opts.DueAt != nil {
		query += fmt.Sprintf(" AND status = 'pending' AND next_retry_at <= $%d", argIdx)
		args = append(args, *opts.DueAt)
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("timesheet/postgres: count items: %w", err)
	}
	return count, nil
}

// scanItem scans a single item row.
func scanItem(row pgx.Row) (*submission.Item, error) {
	var (
		it        submission.Item
		idStr     string
		actionStr string
		statusStr string
	)
	err := row.Scan(
		&idStr, &it.EmployeeID, &actionStr, &it.Timestamp, &it.ThreadID, &it.MessageID,
		&it.UserMessage, &it.Context, &statusStr, &it.RetryCount, &it.MaxRetries, &it.NextRetryAt,
		&it.LastError, &it.LastStatusCode, &it.ClaimedBy, &it.ClaimedAt, &it.CompletedAt,
		&it.Version, &it.CreatedAt, &it.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseSubmissionID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("timesheet/postgres: parse item id %q: %w", idStr, parseErr)
	}
	it.ID = parsedID
	it.Action = action.Kind(actionStr)
	it.Status = submission.Status(statusStr)
	return &it, nil
}

// collectItems collects all items from query rows.
func collectItems(rows pgx.Rows) ([]*submission.Item, error) {
	var items []*submission.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("timesheet/postgres: scan item row: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timesheet/postgres: iterate item rows: %w", err)
	}
	return items, nil
}
