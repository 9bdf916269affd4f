// Package store defines the aggregate persistence interface. Each
// subsystem (submission, deletion) defines its own store interface and
// the composite Store composes them. Backends: Memory, Postgres, Redis,
// MongoDB and DynamoDB.
package store

import (
	"context"

	"github.com/adiazcan/timesheet-speck-kit-sub001/deletion"
	"github.com/adiazcan/timesheet-speck-kit-sub001/submission"
)

// Store is the aggregate persistence interface. A single backend
// implements every subsystem store.
type Store interface {
	submission.Store
	deletion.Store

	// Migrate creates or updates the schema, tables or indexes.
	Migrate(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the connection.
	Close() error
}
