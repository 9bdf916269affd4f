package backoff_test

import (
	"testing"
	"time"

	"github.com/adiazcan/timesheet-speck-kit-sub001/backoff"
)

func TestConstant_ReturnsFixedDelay(t *testing.T) {
	c := backoff.NewConstant(5 * time.Second)
	for n := 0; n < 10; n++ {
		if got := c.Delay(n); got != 5*time.Second {
			t.Errorf("Delay(%d) = %v, want %v", n, got, 5*time.Second)
		}
	}
}

func TestExponential_DoublesEachRetry(t *testing.T) {
	e := backoff.NewExponential(time.Second, 0)

	tests := []struct {
		retryCount int
		want       time.Duration
	}{
		{0, 1 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{6, 64 * time.Second},
	}
	for _, tt := range tests {
		if got := e.Delay(tt.retryCount); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retryCount, got, tt.want)
		}
	}
}

func TestExponential_CapsAtMax(t *testing.T) {
	e := backoff.NewExponential(time.Second, 10*time.Second)

	if got := e.Delay(10); got != 10*time.Second {
		t.Errorf("Delay(10) = %v, want %v (capped at Max)", got, 10*time.Second)
	}
}

func TestExponential_NegativeRetryCount(t *testing.T) {
	e := backoff.NewExponential(time.Second, 0)
	if got := e.Delay(-3); got != time.Second {
		t.Errorf("Delay(-3) = %v, want 1s", got)
	}
}

func TestExponentialWithJitter_StaysMonotonic(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 0, 0.5)

	for i := 0; i < 100; i++ {
		prev := time.Duration(0)
		for n := 0; n < 8; n++ {
			d := e.Delay(n)
			floor := time.Second << n
			if d < floor || d > floor+floor/2 {
				t.Fatalf("Delay(%d) = %v, want within [%v, %v]", n, d, floor, floor+floor/2)
			}
			if d <= prev {
				t.Fatalf("Delay(%d) = %v is not greater than Delay(%d) = %v", n, d, n-1, prev)
			}
			prev = d
		}
	}
}

func TestExponentialWithJitter_ClampsFraction(t *testing.T) {
	e := backoff.NewExponentialWithJitter(time.Second, 0, 5)
	if e.Fraction >= 1 {
		t.Fatalf("Fraction = %v, want < 1", e.Fraction)
	}
}

func TestDefaultStrategy(t *testing.T) {
	s := backoff.DefaultStrategy()
	want := []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}
	for n, w := range want {
		if got := s.Delay(n); got != w {
			t.Errorf("Delay(%d) = %v, want %v", n, got, w)
		}
	}
}
