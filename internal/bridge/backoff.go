package bridge

import (
	"math/rand"
	"sync"
	"time"
)

// Reconnect timing for the relay transport.
const (
	backoffBase     = 5 * time.Second
	backoffMax      = 300 * time.Second
	stabilityWindow = 30 * time.Second
)

// Backoff tracks consecutive relay failures and computes the delay before
// the next reconnect attempt. The delay grows faster the longer the outage:
// small multipliers for a few failures, doubling once the relay has been
// unreachable for ten attempts in a row.
type Backoff struct {
	mu       sync.Mutex
	failures int
	delay    time.Duration
	rng      *rand.Rand
}

// NewBackoff creates a backoff starting at the base delay.
func NewBackoff() *Backoff {
	return &Backoff{
		delay: backoffBase,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Failure records a failed connection attempt.
func (b *Backoff) Failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	b.grow()
}

// ConnectionClosed records a connection that ended after uptime. A session
// that stayed up past the stability window counts as a healthy link that
// dropped, not an outage, so the failure count is clamped to keep the next
// delays short.
func (b *Backoff) ConnectionClosed(uptime time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures++
	if uptime >= stabilityWindow && b.failures > 2 {
		b.failures = 2
		b.delay = backoffBase
	}
	b.grow()
}

// grow advances the delay for the current failure count. Caller holds mu.
func (b *Backoff) grow() {
	switch {
	case b.failures >= 10:
		b.delay = time.Duration(float64(b.delay) * 2.0)
	case b.failures >= 5:
		b.delay = time.Duration(float64(b.delay) * 1.5)
	case b.failures >= 3:
		b.delay = time.Duration(float64(b.delay) * 1.2)
	default:
		b.delay = backoffBase
	}
	if b.delay > backoffMax {
		b.delay = backoffMax
	}
}

// Next returns the delay to wait before the next attempt, with up to 10%
// jitter added so a fleet of bridges does not reconnect in lockstep. The
// returned value never exceeds the cap.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	d := b.delay + time.Duration(b.rng.Float64()*0.1*float64(b.delay))
	if d > backoffMax {
		d = backoffMax
	}
	return d
}

// Reset clears the failure history after a stable connection.
func (b *Backoff) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.delay = backoffBase
}

// Failures returns the current consecutive failure count.
func (b *Backoff) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
