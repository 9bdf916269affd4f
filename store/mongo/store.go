package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongod "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Collection name constants.
const (
	colItems    = "timesheet_submission_items"
	colRequests = "timesheet_deletion_requests"
)

// pendingIndex is the partial unique index on pending deletion requests.
const pendingIndex = "uq_timesheet_deletion_pending"

// Ensure Store implements all subsystem interfaces at compile time.
var (
	_ submission.Store = (*Store)(nil)
	_ deletion.Store   = (*Store)(nil)
)

// Store is a MongoDB implementation of store.Store.
// The caller owns the *mongo.Database lifecycle; Store never closes it.
type Store struct {
	db     *mongod.Database
	logger *slog.Logger
}

// Option configures the Store.
type Option func(*Store)

// WithLogger sets the logger for the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a new MongoDB store on db.
func New(db *mongod.Database, opts ...Option) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DB returns the underlying database for advanced usage.
func (s *Store) DB() *mongod.Database {
	return s.db
}

// Migrate creates indexes for all timesheet collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}

		_, err := s.db.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("timesheet/mongo: migrate %s indexes: %w", col, err)
		}
		s.logger.Debug("ensured indexes", slog.String("collection", col), slog.Int("count", len(models)))
	}

	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Client().Ping(ctx, nil)
}

// Close is a no-op because the caller owns the client lifecycle.
func (s *Store) Close() error {
	return nil
}

// ── helpers ──────────────────────────────────────────────────────

// isNoDocuments returns true when err indicates no MongoDB documents found.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongod.ErrNoDocuments)
}

// isDuplicateKey checks if a MongoDB error is a duplicate key violation.
func isDuplicateKey(err error) bool {
	return mongod.IsDuplicateKeyError(err)
}

// violatesPendingIndex reports whether err is a duplicate on the pending
// deletion index rather than on _id.
func violatesPendingIndex(err error) bool {
	return isDuplicateKey(err) && strings.Contains(err.Error(), pendingIndex)
}

// migrationIndexes returns the index definitions for all timesheet
// collections.
func migrationIndexes() map[string][]mongod.IndexModel {
	return map[string][]mongod.IndexModel{
		colItems: {
			// Due index for the retry processor.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "next_retry_at", Value: 1},
			}},
			// Claim index for releasing stale claims.
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "claimed_at", Value: 1},
			}},
			{Keys: bson.D{
				{Key: "employee_id", Value: 1},
				{Key: "created_at", Value: -1},
			}},
		},
		colRequests: {
			{
				Keys: bson.D{{Key: "employee_id", Value: 1}},
				Options: options.Index().
					SetName(pendingIndex).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"status": string(deletion.StatusPending)}),
			},
			{Keys: bson.D{
				{Key: "status", Value: 1},
				{Key: "scheduled_deletion_date", Value: 1},
			}},
			{Keys: bson.D{
				{Key: "employee_id", Value: 1},
				{Key: "submitted_at", Value: -1},
			}},
		},
	}
}
