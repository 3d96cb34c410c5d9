package resilience

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func fastPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:   3,
		InitialDelay: 1 * time.Millisecond,
		MaxDelay:     10 * time.Millisecond,
		Factor:       2.0,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	p := fastPolicy()
	calls := 0
	v, err := RetryValue(context.Background(), p, func(ctx context.Context) (string, error) {
		calls++
		if calls <= p.MaxRetries {
			return "", fmt.Errorf("transient failure %d", calls)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if v != "ok" {
		t.Errorf("expected ok, got %q", v)
	}
	if calls != p.MaxRetries+1 {
		t.Errorf("expected %d invocations, got %d", p.MaxRetries+1, calls)
	}
}

func TestRetryExhausted(t *testing.T) {
	p := fastPolicy()
	calls := 0
	boom := errors.New("boom")
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		return boom
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var exhausted *RetryExhaustedError
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected *RetryExhaustedError, got %T", err)
	}
	if !errors.Is(err, boom) {
		t.Error("exhausted error should wrap the last underlying error")
	}
	if calls != p.MaxRetries+1 {
		t.Errorf("expected %d invocations, got %d", p.MaxRetries+1, calls)
	}
	if exhausted.Attempts != p.MaxRetries+1 {
		t.Errorf("expected %d attempts recorded, got %d", p.MaxRetries+1, exhausted.Attempts)
	}
}

func TestRetryNonRetryable(t *testing.T) {
	p := fastPolicy()
	p.RetryableMatch = []string{"timeout"}
	calls := 0
	original := errors.New("permission denied")
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		return original
	})
	if calls != 1 {
		t.Errorf("non-retryable errors must not be retried, got %d calls", calls)
	}
	var nr *NonRetryableError
	if !errors.As(err, &nr) {
		t.Fatalf("expected *NonRetryableError, got %T", err)
	}
	if !errors.Is(err, original) {
		t.Error("original error should be preserved unchanged")
	}
}

func TestRetryMatcherAdmitsMatchingErrors(t *testing.T) {
	p := fastPolicy()
	p.RetryableMatch = []string{"timeout", "429"}
	calls := 0
	err := Retry(context.Background(), p, func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return errors.New("request timeout talking upstream")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after one retry, got %v", err)
	}
	if calls != 2 {
		t.Errorf("expected 2 invocations, got %d", calls)
	}
}

func TestRetryDelaySchedule(t *testing.T) {
	p := RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     350 * time.Millisecond,
		Factor:       2.0,
	}
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{0, 100 * time.Millisecond},
		{1, 200 * time.Millisecond},
		{2, 350 * time.Millisecond}, // capped
		{3, 350 * time.Millisecond},
	}
	for _, c := range cases {
		if got := p.delay(c.attempt); got != c.want {
			t.Errorf("delay(%d) = %v, want %v", c.attempt, got, c.want)
		}
	}
}

func TestRetryDelayJitterBounds(t *testing.T) {
	p := RetryPolicy{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Factor:       2.0,
		Jitter:       true,
	}
	base := 100 * time.Millisecond
	for i := 0; i < 50; i++ {
		d := p.delay(0)
		if d < base || d > base+base/5 {
			t.Fatalf("jittered delay %v outside [%v, %v]", d, base, base+base/5)
		}
	}
}

func TestRetryHonorsContextCancellation(t *testing.T) {
	p := fastPolicy()
	p.InitialDelay = time.Hour
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Retry(ctx, p, func(ctx context.Context) error {
			return errors.New("always fails")
		})
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}
