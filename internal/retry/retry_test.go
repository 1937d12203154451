package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestDo_RetriesTransientUntilExhausted(t *testing.T) {
	calls := 0
	boom := errors.New("connection reset")
	err := Do(context.Background(), FixedDelay(3, time.Millisecond), func() error {
		calls++
		return boom
	})
	if calls != 3 {
		t.Errorf("expected 3 attempts, got %d", calls)
	}
	if !errors.Is(err, boom) {
		t.Errorf("expected last failure surfaced, got %v", err)
	}
}

func TestDo_SucceedsAfterRetry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), FixedDelay(3, time.Millisecond), func() error {
		calls++
		if calls < 2 {
			return errors.New("timeout")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 attempts, got %d", calls)
	}
}

func TestDo_FatalShortCircuits(t *testing.T) {
	calls := 0
	auth := errors.New("401 unauthorized")
	err := Do(context.Background(), FixedDelay(5, time.Millisecond), func() error {
		calls++
		return Fatal(auth)
	})
	if calls != 1 {
		t.Errorf("expected a single attempt for a fatal error, got %d", calls)
	}
	if !errors.Is(err, auth) {
		t.Errorf("expected the fatal cause surfaced, got %v", err)
	}
}

func TestDo_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := Do(ctx, FixedDelay(1000, 50*time.Millisecond), func() error {
		calls++
		return errors.New("timeout")
	})
	if err == nil {
		t.Fatal("expected an error after cancellation")
	}
	if calls > 3 {
		t.Errorf("cancellation should stop the attempt loop, got %d attempts", calls)
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(errors.New("plain")) {
		t.Error("plain error must not be fatal")
	}
	if !IsFatal(Fatal(errors.New("auth"))) {
		t.Error("Fatal-wrapped error must be fatal")
	}
	wrapped := fmt.Errorf("fetch server: %w", Fatal(errors.New("auth")))
	if !IsFatal(wrapped) {
		t.Error("fatal classification must survive wrapping")
	}
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) must be nil")
	}
}

func TestExponentialPolicy(t *testing.T) {
	pol := Exponential(4, 10*time.Millisecond, 2.0, 50*time.Millisecond)
	calls := 0
	start := time.Now()
	_ = Do(context.Background(), pol, func() error {
		calls++
		return errors.New("timeout")
	})
	if calls != 4 {
		t.Errorf("expected 4 attempts, got %d", calls)
	}
	// Three waits of roughly 10, 20, 40ms (with jitter).
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("backoff did not wait: %s", elapsed)
	}
}
