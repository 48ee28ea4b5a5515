package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCalculateDelay(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		attempt int
		want    time.Duration
	}{
		{
			name:    "zero attempt",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffFixed},
			attempt: 0,
			want:    0,
		},
		{
			name:    "fixed",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffFixed},
			attempt: 3,
			want:    time.Second,
		},
		{
			name:    "linear",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffLinear},
			attempt: 3,
			want:    3 * time.Second,
		},
		{
			name:    "exponential",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: time.Minute, BackoffStrategy: BackoffExponential},
			attempt: 3,
			want:    4 * time.Second,
		},
		{
			name:    "capped at max delay",
			policy:  Policy{InitialDelay: time.Second, MaxDelay: 2 * time.Second, BackoffStrategy: BackoffExponential},
			attempt: 10,
			want:    2 * time.Second,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.CalculateDelay(tt.attempt); got != tt.want {
				t.Errorf("CalculateDelay(%d) = %v, want %v", tt.attempt, got, tt.want)
			}
		})
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	policy := Policy{MaxRetries: 3, BackoffStrategy: BackoffFixed}

	calls := 0
	result, err := Do(context.Background(), policy, nil, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if calls < 3 {
			return "", errors.New("transient")
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result != "ok" || calls != 3 {
		t.Errorf("got result %q after %d calls", result, calls)
	}
}

func TestDoStopsOnNonRetryableError(t *testing.T) {
	policy := Policy{MaxRetries: 5, BackoffStrategy: BackoffFixed}
	permanent := errors.New("permanent")

	calls := 0
	_, err := Do(context.Background(), policy, func(err error) bool { return !errors.Is(err, permanent) },
		func(ctx context.Context, attempt int) (int, error) {
			calls++
			return 0, permanent
		})
	if !errors.Is(err, permanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	policy := Policy{MaxRetries: 2, BackoffStrategy: BackoffFixed}

	calls := 0
	_, err := Do(context.Background(), policy, nil, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errors.New("still failing")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("expected 3 calls, got %d", calls)
	}
}

func TestDoHonorsContextCancellation(t *testing.T) {
	policy := Policy{MaxRetries: 10, InitialDelay: time.Hour, MaxDelay: time.Hour, BackoffStrategy: BackoffFixed}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := Do(ctx, policy, nil, func(ctx context.Context, attempt int) (int, error) {
		return 0, errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
