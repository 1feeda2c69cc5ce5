package throttle

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

const (
	// DefaultInterval reflects the upstream's published ceiling of about ten requests per second.
	DefaultInterval = 100 * time.Millisecond
	// DefaultIncrement is added to the interval on every escalation.
	DefaultIncrement = 100 * time.Millisecond
)

// Throttle keeps at least Interval between consecutive upstream requests.
// The interval only ever grows.
type Throttle struct {
	mu        sync.Mutex
	clock     clockwork.Clock
	interval  time.Duration
	increment time.Duration
	last      time.Time
}

// New creates a throttle. Non-positive interval or increment fall back to the defaults
// and a nil clock means the real clock.
func New(interval, increment time.Duration, clock clockwork.Clock) *Throttle {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if increment <= 0 {
		increment = DefaultIncrement
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	return &Throttle{clock: clock, interval: interval, increment: increment}
}

// Wait blocks until Interval has passed since the previous request, then stamps the
// current time as the new last request. The stamp is taken after the wait.
// It returns the context error if ctx ends while waiting, leaving the stamp untouched.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.last.IsZero() {
		if remaining := t.interval - t.clock.Since(t.last); remaining > 0 {
			timer := t.clock.NewTimer(remaining)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.Chan():
			}
		}
	}

	t.last = t.clock.Now()

	return nil
}

// Escalate grows the interval by one increment and returns the new interval.
func (t *Throttle) Escalate() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.interval += t.increment

	return t.interval
}

// Interval returns the minimum gap currently enforced between requests.
func (t *Throttle) Interval() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.interval
}

// LastRequestAt returns when the previous request was stamped, zero if none yet.
func (t *Throttle) LastRequestAt() time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.last
}
