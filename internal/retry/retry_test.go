package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

type transientErr struct{ retry bool }

func (e transientErr) Error() string   { return "transient" }
func (e transientErr) Retryable() bool { return e.retry }

type statusErr struct{ code int }

func (e statusErr) Error() string      { return "status" }
func (e statusErr) GetStatusCode() int { return e.code }

func fastConfig(attempts int) Config {
	cfg := DefaultConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	attempts, err := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return transientErr{retry: true}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 || calls != 3 {
		t.Errorf("expected 3 attempts, got attempts=%d calls=%d", attempts, calls)
	}
}

func TestDoExhausted(t *testing.T) {
	attempts, err := Do(context.Background(), fastConfig(2), func(ctx context.Context, attempt int) error {
		return transientErr{retry: true}
	})
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}
	var te transientErr
	if !errors.As(err, &te) {
		t.Error("expected last error to stay reachable")
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts, err := Do(context.Background(), fastConfig(5), func(ctx context.Context, attempt int) error {
		return statusErr{code: 404}
	})
	if attempts != 1 {
		t.Errorf("expected a single attempt for 404, got %d", attempts)
	}
	if errors.Is(err, ErrExhausted) {
		t.Error("permanent errors should be returned as-is")
	}
}

func TestDoRetriesRetryableStatus(t *testing.T) {
	attempts, _ := Do(context.Background(), fastConfig(3), func(ctx context.Context, attempt int) error {
		return statusErr{code: 503}
	})
	if attempts != 3 {
		t.Errorf("expected 503 to be retried 3 times, got %d", attempts)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialBackoff = time.Second

	attempts, err := Do(ctx, cfg, func(ctx context.Context, attempt int) error {
		cancel()
		return transientErr{retry: true}
	})
	if attempts != 1 {
		t.Errorf("expected 1 attempt before cancellation, got %d", attempts)
	}
	if err == nil {
		t.Error("expected an error after cancellation")
	}
}

func TestBackoffGrowth(t *testing.T) {
	cfg := Config{InitialBackoff: 100 * time.Millisecond, MaxBackoff: time.Second, Multiplier: 2}
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 400 * time.Millisecond, 800 * time.Millisecond, time.Second}
	for i, w := range want {
		if got := Backoff(i, cfg); got != w {
			t.Errorf("Backoff(%d) = %v, want %v", i, got, w)
		}
	}
}
