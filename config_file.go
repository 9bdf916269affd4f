package timesheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the on-disk form of Config. Durations are expressed in
// the units operators think in; absent keys keep their defaults.
type FileConfig struct {
	MaxRetries                  *int     `yaml:"maxRetries"`
	RetryBackoffBaseSeconds     *float64 `yaml:"retryBackoffBaseSeconds"`
	RetryBackoffJitter          *float64 `yaml:"retryBackoffJitter"`
	RetryPollIntervalSeconds    *float64 `yaml:"retryPollIntervalSeconds"`
	RetryBatchSize              *int     `yaml:"retryBatchSize"`
	RetryRateLimit              *float64 `yaml:"retryRateLimit"`
	ClaimTimeoutSeconds         *float64 `yaml:"claimTimeoutSeconds"`
	DeletionWindowDays          *int     `yaml:"deletionWindowDays"`
	DeletionPollIntervalHours   *float64 `yaml:"deletionPollIntervalHours"`
	DeletionStartupDelayMinutes *float64 `yaml:"deletionStartupDelayMinutes"`
	DeletionSchedule            *string  `yaml:"deletionSchedule"`
}

// LoadConfig reads a YAML file and overlays it on DefaultConfig. The
// result is validated.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("timesheet: read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes YAML bytes and overlays them on DefaultConfig.
// Unknown keys are rejected.
func ParseConfig(data []byte) (Config, error) {
	var fc FileConfig
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	cfg := fc.Apply(DefaultConfig())
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Apply overlays the set fields of fc on base.
func (fc FileConfig) Apply(base Config) Config {
	if fc.MaxRetries != nil {
		base.MaxRetries = *fc.MaxRetries
	}
	if fc.RetryBackoffBaseSeconds != nil {
		base.RetryBackoffBase = seconds(*fc.RetryBackoffBaseSeconds)
	}
	if fc.RetryBackoffJitter != nil {
		base.RetryBackoffJitter = *fc.RetryBackoffJitter
	}
	if fc.RetryPollIntervalSeconds != nil {
		base.RetryPollInterval = seconds(*fc.RetryPollIntervalSeconds)
	}
	if fc.RetryBatchSize != nil {
		base.RetryBatchSize = *fc.RetryBatchSize
	}
	if fc.RetryRateLimit != nil {
		base.RetryRateLimit = *fc.RetryRateLimit
	}
	if fc.ClaimTimeoutSeconds != nil {
		base.ClaimTimeout = seconds(*fc.ClaimTimeoutSeconds)
	}
	if fc.DeletionWindowDays != nil {
		base.DeletionWindow = time.Duration(*fc.DeletionWindowDays) * 24 * time.Hour
	}
	if fc.DeletionPollIntervalHours != nil {
		base.DeletionPollInterval = time.Duration(*fc.DeletionPollIntervalHours * float64(time.Hour))
	}
	if fc.DeletionStartupDelayMinutes != nil {
		base.DeletionStartupDelay = time.Duration(*fc.DeletionStartupDelayMinutes * float64(time.Minute))
	}
	if fc.DeletionSchedule != nil {
		base.DeletionSchedule = *fc.DeletionSchedule
	}
	return base
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}
