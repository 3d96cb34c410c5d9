package resilience

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// RetryPolicy defines retry behavior for calls against unreliable services.
// RetryableMatch holds substrings matched against the error text; when empty,
// every error is considered retryable.
type RetryPolicy struct {
	MaxRetries     int
	InitialDelay   time.Duration
	MaxDelay       time.Duration
	Factor         float64
	Jitter         bool
	RetryableMatch []string
}

// DefaultRetryPolicy returns sensible retry defaults.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialDelay:   1 * time.Second,
		MaxDelay:       30 * time.Second,
		Factor:         2.0,
		Jitter:         true,
		RetryableMatch: []string{"timeout", "rate limit", "429", "500", "502", "503", "504"},
	}
}

// NonRetryableError wraps an error that matched none of the policy's
// retryable patterns. The underlying error is preserved unchanged.
type NonRetryableError struct {
	Err error
}

func (e *NonRetryableError) Error() string { return fmt.Sprintf("non-retryable: %v", e.Err) }
func (e *NonRetryableError) Unwrap() error { return e.Err }

// RetryExhaustedError wraps the last error after every attempt failed.
type RetryExhaustedError struct {
	Attempts int
	Err      error
}

func (e *RetryExhaustedError) Error() string {
	return fmt.Sprintf("retry exhausted after %d attempts: %v", e.Attempts, e.Err)
}
func (e *RetryExhaustedError) Unwrap() error { return e.Err }

// Retry runs op with exponential backoff until it succeeds, the policy is
// exhausted, or the error is non-retryable. Op is invoked at most
// MaxRetries+1 times.
func Retry(ctx context.Context, p RetryPolicy, op func(ctx context.Context) error) error {
	_, err := RetryValue(ctx, p, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})
	return err
}

// RetryValue is Retry for operations that produce a value.
func RetryValue[T any](ctx context.Context, p RetryPolicy, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		if !p.retryable(err) {
			return zero, &NonRetryableError{Err: err}
		}
		if attempt == p.MaxRetries {
			return zero, &RetryExhaustedError{Attempts: attempt + 1, Err: err}
		}

		delay := p.delay(attempt)
		log.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Int("max_retries", p.MaxRetries).
			Dur("delay", delay).
			Msg("operation failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryable reports whether err matches the policy's retryable patterns.
func (p RetryPolicy) retryable(err error) bool {
	if len(p.RetryableMatch) == 0 {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range p.RetryableMatch {
		if strings.Contains(msg, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// delay computes the backoff before the next attempt: initial * factor^attempt
// capped at MaxDelay, with up to +20% jitter when enabled.
func (p RetryPolicy) delay(attempt int) time.Duration {
	d := float64(p.InitialDelay) * math.Pow(p.Factor, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	if p.Jitter {
		d += d * 0.2 * rand.Float64()
	}
	return time.Duration(d)
}
