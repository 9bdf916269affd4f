package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/id"
)

const pendingIndex = "uq_timesheet_deletion_pending"

const requestColumns = `
	id, employee_id, email, name, origin_ip, status, submitted_at,
	scheduled_deletion_date, completed_at, cancelled_at,
	conversations_deleted, cancellation_reason, claimed_by, claimed_at,
	version, created_at, updated_at`

// CreateDeletionRequest persists a new request. The partial unique index
// on pending requests rejects a second one for the same employee.
func (s *Store) CreateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO timesheet_deletion_requests (`+requestColumns+`
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7,
			$8, $9, $10,
			$11, $12, $13, $14,
			$15, $16, $17
		)`,
		r.ID.String(), r.EmployeeID, r.Email, r.Name, r.OriginIP, string(r.Status), r.SubmittedAt,
		r.ScheduledDeletionDate, r.CompletedAt, r.CancelledAt,
		r.ConversationsDeleted, r.CancellationReason, r.ClaimedBy, r.ClaimedAt,
		r.Version, r.CreatedAt, r.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) && constraintName(err) == pendingIndex {
			return timesheet.ErrDeletionPending
		}
		return fmt.Errorf("timesheet/postgres: create deletion request: %w", err)
	}
	return nil
}

// GetDeletionRequest retrieves a request by ID.
func (s *Store) GetDeletionRequest(ctx context.Context, requestID id.DeletionID) (*deletion.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM timesheet_deletion_requests WHERE id = $1`,
		requestID.String(),
	)
	r, err := scanRequest(row)
	if err != nil {
		if isNoRows(err) {
			return nil, timesheet.ErrDeletionNotFound
		}
		return nil, fmt.Errorf("timesheet/postgres: get deletion request: %w", err)
	}
	return r, nil
}

// GetPendingDeletionRequest returns the employee's pending request.
func (s *Store) GetPendingDeletionRequest(ctx context.Context, employeeID string) (*deletion.Request, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+requestColumns+` FROM timesheet_deletion_requests
		WHERE employee_id = $1 AND status = 'pending'`,
		employeeID,
	)
	r, err := scanRequest(row)
	if err != nil {
		if isNoRows(err) {
			return nil, timesheet.ErrDeletionNotFound
		}
		return nil, fmt.Errorf("timesheet/postgres: get pending deletion request: %w", err)
	}
	return r, nil
}

// UpdateDeletionRequest persists r if the stored version matches.
func (s *Store) UpdateDeletionRequest(ctx context.Context, r *deletion.Request) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE timesheet_deletion_requests SET
			email = $2, name = $3, origin_ip = $4, status = $5,
			scheduled_deletion_date = $6, completed_at = $7, cancelled_at = $8,
			conversations_deleted = $9, cancellation_reason = $10,
			claimed_by = $11, claimed_at = $12, updated_at = $13,
			version = version + 1
		WHERE id = $1 AND version = $14`,
		r.ID.String(), r.Email, r.Name, r.OriginIP, string(r.Status),
		r.ScheduledDeletionDate, r.CompletedAt, r.CancelledAt,
		r.ConversationsDeleted, r.CancellationReason,
		r.ClaimedBy, r.ClaimedAt, r.UpdatedAt,
		r.Version,
	)
	if err != nil {
		if isDuplicateKey(err) && constraintName(err) == pendingIndex {
			return timesheet.ErrDeletionPending
		}
		return fmt.Errorf("timesheet/postgres: update deletion request: %w", err)
	}
	if tag.RowsAffected() == 0 {
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
	query := `
		SELECT ` + requestColumns + `
		FROM timesheet_deletion_requests
		WHERE status = 'pending' AND scheduled_deletion_date <= $1
		ORDER BY scheduled_deletion_date ASC`
	args := []interface{}{now}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("timesheet/postgres: list due deletion requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// ListDeletionRequestsByEmployee returns an employee's requests, newest
// first.
func (s *Store) ListDeletionRequestsByEmployee(ctx context.Context, employeeID string) ([]*deletion.Request, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+requestColumns+`
		FROM timesheet_deletion_requests
		WHERE employee_id = $1
		ORDER BY submitted_at DESC`,
		employeeID,
	)
	if err != nil {
		return nil, fmt.Errorf("timesheet/postgres: list deletion requests: %w", err)
	}
	defer rows.Close()
	return collectRequests(rows)
}

// CountDeletionRequests returns the number of requests matching opts.
func (s *Store) CountDeletionRequests(ctx context.Context, opts deletion.CountOpts) (int64, error) {
	query := `SELECT COUNT(*) FROM timesheet_deletion_requests WHERE 1=1`
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
	}

	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("timesheet/postgres: count deletion requests: %w", err)
	}
	return count, nil
}

func scanRequest(row pgx.Row) (*deletion.Request, error) {
	var (
		r         deletion.Request
		idStr     string
		statusStr string
	)
	err := row.Scan(
		&idStr, &r.EmployeeID, &r.Email, &r.Name, &r.OriginIP, &statusStr, &r.SubmittedAt,
		&r.ScheduledDeletionDate, &r.CompletedAt, &r.CancelledAt,
		&r.ConversationsDeleted, &r.CancellationReason, &r.ClaimedBy, &r.ClaimedAt,
		&r.Version, &r.CreatedAt, &r.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsedID, parseErr := id.ParseDeletionID(idStr)
	if parseErr != nil {
		return nil, fmt.Errorf("timesheet/postgres: parse deletion id %q: %w", idStr, parseErr)
	}
	r.ID = parsedID
	r.Status = deletion.Status(statusStr)
	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]*deletion.Request, error) {
	var out []*deletion.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("timesheet/postgres: scan deletion row: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("timesheet/postgres: iterate deletion rows: %w", err)
	}
	return out, nil
}
