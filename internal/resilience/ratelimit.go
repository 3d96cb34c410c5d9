package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var (
	// ErrQueueFull is returned when an acquire finds no token and the wait
	// queue is already at capacity. The caller is never enqueued.
	ErrQueueFull = errors.New("rate limiter queue full")
	// ErrAcquireTimeout is returned when a queued acquire waits longer than
	// the configured request timeout. Only that caller fails; the rest of the
	// queue is untouched.
	ErrAcquireTimeout = errors.New("rate limiter acquire timeout")
)

// RateLimiterConfig sizes a token-bucket limiter. MaxRequestsPerMinute sets
// both the bucket capacity and the refill rate.
type RateLimiterConfig struct {
	MaxRequestsPerMinute int
	MaxQueueSize         int
	RequestTimeout       time.Duration
}

// waiter is one queued acquirer. done is buffered so the drain loop never
// blocks delivering an outcome.
type waiter struct {
	done     chan error
	deadline time.Time
}

// RateLimiter is a token-bucket admission controller with a FIFO wait queue.
// The bucket starts full, refills continuously at rate/60 tokens per second,
// and never exceeds its capacity. All state is guarded by a single mutex so a
// refill+consume+queue mutation is one atomic step. The drain loop is the
// only sender on waiter channels, which keeps grant and timeout delivery
// race-free.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	queue      []*waiter

	maxQueue       int
	requestTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
}

// NewRateLimiter creates a limiter and starts its queue drain loop. Close the
// limiter when done to stop the loop.
func NewRateLimiter(cfg RateLimiterConfig) *RateLimiter {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &RateLimiter{
		tokens:         float64(cfg.MaxRequestsPerMinute),
		maxTokens:      float64(cfg.MaxRequestsPerMinute),
		refillRate:     float64(cfg.MaxRequestsPerMinute) / 60.0,
		lastRefill:     time.Now(),
		maxQueue:       cfg.MaxQueueSize,
		requestTimeout: cfg.RequestTimeout,
		ctx:            ctx,
		cancel:         cancel,
	}
	go rl.drainLoop()
	return rl
}

// Close stops the drain loop.
func (rl *RateLimiter) Close() { rl.cancel() }

// Acquire admits the caller when a token is available. With an empty bucket
// the caller queues FIFO behind earlier acquirers; it fails with ErrQueueFull
// when the queue is at capacity, with ErrAcquireTimeout when its own wait
// exceeds the request timeout, or with ctx.Err() on cancellation.
func (rl *RateLimiter) Acquire(ctx context.Context) error {
	rl.mu.Lock()
	rl.refill()
	if rl.tokens >= 1 {
		rl.tokens--
		rl.mu.Unlock()
		return nil
	}
	if len(rl.queue) >= rl.maxQueue {
		rl.mu.Unlock()
		return ErrQueueFull
	}
	w := &waiter{
		done:     make(chan error, 1),
		deadline: time.Now().Add(rl.requestTimeout),
	}
	rl.queue = append(rl.queue, w)
	rl.mu.Unlock()

	select {
	case err := <-w.done:
		return err
	case <-ctx.Done():
		if rl.abandon(w) {
			return ctx.Err()
		}
		// The drain loop settled this waiter before we left the queue.
		return <-w.done
	}
}

// abandon removes w from the queue. It reports false when the drain loop
// already delivered an outcome for w.
func (rl *RateLimiter) abandon(w *waiter) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for i, q := range rl.queue {
		if q == w {
			rl.queue = append(rl.queue[:i], rl.queue[i+1:]...)
			return true
		}
	}
	return false
}

// drainLoop periodically refills the bucket, expires overdue waiters, and
// serves the queue head in FIFO order.
func (rl *RateLimiter) drainLoop() {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-rl.ctx.Done():
			return
		case <-ticker.C:
			rl.drain()
		}
	}
}

func (rl *RateLimiter) drain() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	rl.refill()

	// Expire overdue waiters anywhere in the queue; only they fail.
	now := time.Now()
	kept := rl.queue[:0]
	for _, w := range rl.queue {
		if now.After(w.deadline) {
			w.done <- ErrAcquireTimeout
			log.Debug().Msg("rate limiter acquire timed out in queue")
			continue
		}
		kept = append(kept, w)
	}
	rl.queue = kept

	for len(rl.queue) > 0 && rl.tokens >= 1 {
		head := rl.queue[0]
		rl.queue = rl.queue[1:]
		rl.tokens--
		head.done <- nil
	}
}

// refill adds elapsed-time tokens capped at the bucket size. Callers must
// hold rl.mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	elapsed := now.Sub(rl.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	rl.tokens += elapsed * rl.refillRate
	if rl.tokens > rl.maxTokens {
		rl.tokens = rl.maxTokens
	}
	rl.lastRefill = now
}
