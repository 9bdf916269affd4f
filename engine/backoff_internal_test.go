package engine

import (
	"testing"
	"time"

	timesheet "github.com/adiazcan/timesheet-speck-kit-sub001"
	"github.com/adiazcan/timesheet-speck-kit-sub001/backoff"
)

func TestRetryBackoff_FromConfig(t *testing.T) {
	cfg := timesheet.DefaultConfig()
	cfg.RetryBackoffBase = 2 * time.Second

	if _, ok := retryBackoff(cfg).(*backoff.Exponential); !ok {
		t.Errorf("no jitter: got %T, want *backoff.Exponential", retryBackoff(cfg))
	}

	cfg.RetryBackoffJitter = 0.5
	j, ok := retryBackoff(cfg).(*backoff.ExponentialWithJitter)
	if !ok {
		t.Fatalf("jitter: got %T, want *backoff.ExponentialWithJitter", retryBackoff(cfg))
	}
	if j.Base != 2*time.Second || j.Fraction != 0.5 {
		t.Errorf("jitter strategy = %+v", j)
	}
	for n := 0; n < 4; n++ {
		d := j.Delay(n)
		lo := cfg.RetryBackoffBase << n
		if d < lo || d > lo+lo/2 {
			t.Errorf("Delay(%d) = %v, want in [%v, %v]", n, d, lo, lo+lo/2)
		}
	}
}
