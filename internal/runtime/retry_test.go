package runtime

import (
	"testing"
	"time"
)

func TestDelayGrowsExponentiallyUpToCap(t *testing.T) {
	policy := RetryPolicy{
		MaxAttempts:     5,
		InitialInterval: 100 * time.Millisecond,
		MaxInterval:     400 * time.Millisecond,
	}

	prev := time.Duration(0)
	for attempt := 1; attempt <= 4; attempt++ {
		delay := policy.Delay(attempt)
		if delay < prev {
			t.Fatalf("delay shrank at attempt %d: %s < %s", attempt, delay, prev)
		}
		if delay > policy.MaxInterval {
			t.Fatalf("delay %s exceeds cap %s at attempt %d", delay, policy.MaxInterval, attempt)
		}
		prev = delay
	}

	if first := policy.Delay(1); first != policy.InitialInterval {
		t.Fatalf("first delay should equal the initial interval, got %s", first)
	}
}

func TestDelayIsDeterministic(t *testing.T) {
	policy := DefaultRetryPolicy()

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		if a, b := policy.Delay(attempt), policy.Delay(attempt); a != b {
			t.Fatalf("delay for attempt %d varies: %s vs %s", attempt, a, b)
		}
	}
}
