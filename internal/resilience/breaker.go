package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker skips a flaky upstream after repeated failures. Threshold
// failures inside window open it for cooldown. Once the cooldown passes,
// Call lets a single trial call through and rejects the rest until it
// finishes: success closes the breaker, failure reopens it.
type Breaker struct {
	name      string
	threshold int
	window    time.Duration
	cooldown  time.Duration

	mu          sync.Mutex
	failures    int
	lastFailure time.Time
	openUntil   time.Time
	tripped     bool
	probing     bool

	now func() time.Time
}

// NewBreaker creates a Breaker for the named upstream.
func NewBreaker(name string, threshold int, window, cooldown time.Duration) *Breaker {
	if threshold <= 0 {
		threshold = 3
	}
	return &Breaker{
		name:      name,
		threshold: threshold,
		window:    window,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// Open reports whether calls are currently being rejected.
func (b *Breaker) Open() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.probing || b.now().Before(b.openUntil)
}

// acquire reports whether a call may proceed, claiming the trial slot
// when the breaker is half-open.
func (b *Breaker) acquire() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.probing || b.now().Before(b.openUntil) {
		return false
	}
	if b.tripped {
		b.probing = true
	}
	return true
}

// release frees the trial slot without judging upstream health.
func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

// Success clears the failure count.
func (b *Breaker) Success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.openUntil = time.Time{}
	b.tripped = false
	b.probing = false
}

// Failure counts a failed call and opens the breaker at the threshold.
func (b *Breaker) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	if b.probing {
		b.probing = false
		b.openUntil = now.Add(b.cooldown)
		zap.L().Warn("resilience: circuit breaker reopened",
			zap.String("upstream", b.name),
			zap.Duration("cooldown", b.cooldown),
		)
		return
	}
	if b.window > 0 && now.Sub(b.lastFailure) > b.window {
		b.failures = 0
	}
	b.failures++
	b.lastFailure = now
	if b.failures >= b.threshold {
		b.openUntil = now.Add(b.cooldown)
		b.failures = 0
		b.tripped = true
		zap.L().Warn("resilience: circuit breaker opened",
			zap.String("upstream", b.name),
			zap.Duration("cooldown", b.cooldown),
		)
	}
}

// Call runs fn unless the breaker is open and records the outcome.
func Call[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.acquire() {
		return zero, eris.Wrap(ErrCircuitOpen, b.name)
	}
	val, err := fn(ctx)
	if err != nil {
		// Caller cancellation says nothing about upstream health.
		if ctx.Err() != nil {
			b.release()
			return zero, err
		}
		b.Failure()
		return zero, err
	}
	b.Success()
	return val, nil
}
