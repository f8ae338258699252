// Package backoff implements truncated exponential backoff with jitter for
// the agent's reconnect loops.
package backoff

import (
	"context"
	"math/rand"
	"time"
)

// Defaults used by New when zero values are passed.
const (
	DefaultInitial    = 1 * time.Second
	DefaultMax        = 60 * time.Second
	DefaultMultiplier = 2.0
)

// Backoff tracks the current delay. It is not safe for concurrent use.
type Backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

// New returns a Backoff starting at initial and capped at ceiling.
func New(initial, ceiling time.Duration) *Backoff {
	if initial <= 0 {
		initial = DefaultInitial
	}
	if ceiling <= 0 {
		ceiling = DefaultMax
	}
	if initial > ceiling {
		initial = ceiling
	}
	return &Backoff{initial: initial, max: ceiling, current: initial}
}

// Next returns the current backoff duration and advances the internal state.
func (b *Backoff) Next() time.Duration {
	d := b.current
	// Apply ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * DefaultMultiplier)
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// Reset returns the delay to its initial value after a successful attempt.
func (b *Backoff) Reset() {
	b.current = b.initial
}

// Sleep waits for the next delay. It returns false if ctx ended first.
func (b *Backoff) Sleep(ctx context.Context) bool {
	t := time.NewTimer(b.Next())
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
