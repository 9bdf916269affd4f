package timesheet

import (
	"fmt"
	"time"
)

// Config holds the tunables of the submission and deletion pipelines.
type Config struct {
	// MaxRetries is the number of attempts the retry processor makes
	// before an item is marked failed.
	MaxRetries int

	// RetryBackoffBase is the delay before the first retry. Later retries
	// double it: base, 2·base, 4·base, ...
	RetryBackoffBase time.Duration

	// RetryBackoffJitter adds up to this fraction of random extra delay to
	// each retry. Zero disables jitter; it must stay below 1.
	RetryBackoffJitter float64

	// RetryPollInterval is how often the retry processor looks for due
	// items.
	RetryPollInterval time.Duration

	// RetryBatchSize bounds the number of items fetched per cycle.
	RetryBatchSize int

	// RetryRateLimit caps executor calls per second. Zero disables it.
	RetryRateLimit float64

	// ClaimTimeout is how long a claim is honoured before the item is
	// handed back to the queue.
	ClaimTimeout time.Duration

	// DeletionWindow is the waiting period between a deletion request and
	// the actual erasure.
	DeletionWindow time.Duration

	// DeletionPollInterval is how often the sweep looks for requests
	// whose window has elapsed.
	DeletionPollInterval time.Duration

	// DeletionStartupDelay is the wait before the first sweep after
	// start.
	DeletionStartupDelay time.Duration

	// DeletionSchedule optionally replaces DeletionPollInterval with a
	// cron expression (e.g. "@daily" or "0 3 * * *").
	DeletionSchedule string
}

// DefaultConfig returns a Config with the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetries:           3,
		RetryBackoffBase:     1 * time.Second,
		RetryPollInterval:    10 * time.Second,
		RetryBatchSize:       50,
		ClaimTimeout:         5 * time.Minute,
		DeletionWindow:       30 * 24 * time.Hour,
		DeletionPollInterval: 24 * time.Hour,
		DeletionStartupDelay: 5 * time.Minute,
	}
}

// Validate reports the first out-of-range value.
func (c Config) Validate() error {
	switch {
	case c.MaxRetries < 1:
		return fmt.Errorf("%w: maxRetries must be at least 1", ErrInvalidConfig)
	case c.RetryBackoffBase <= 0:
		return fmt.Errorf("%w: retry backoff base must be positive", ErrInvalidConfig)
	case c.RetryBackoffJitter < 0 || c.RetryBackoffJitter >= 1:
		return fmt.Errorf("%w: retry backoff jitter must be in [0, 1)", ErrInvalidConfig)
	case c.RetryPollInterval <= 0:
		return fmt.Errorf("%w: retry poll interval must be positive", ErrInvalidConfig)
	case c.RetryBatchSize < 1:
		return fmt.Errorf("%w: retry batch size must be at least 1", ErrInvalidConfig)
	case c.RetryRateLimit < 0:
		return fmt.Errorf("%w: retry rate limit must not be negative", ErrInvalidConfig)
	case c.ClaimTimeout <= 0:
		return fmt.Errorf("%w: claim timeout must be positive", ErrInvalidConfig)
	case c.DeletionWindow <= 0:
		return fmt.Errorf("%w: deletion window must be positive", ErrInvalidConfig)
	case c.DeletionPollInterval <= 0 && c.DeletionSchedule == "":
		return fmt.Errorf("%w: deletion poll interval must be positive", ErrInvalidConfig)
	case c.DeletionStartupDelay < 0:
		return fmt.Errorf("%w: deletion startup delay must not be negative", ErrInvalidConfig)
	}
	return nil
}
