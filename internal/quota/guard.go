package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/geotweet/internal/geocoding"
	"github.com/UnknownOlympus/geotweet/internal/throttle"
	"github.com/jonboulle/clockwork"
)

// DefaultProbeDelay is how long the guard backs off before re-sending a rate-limited request.
const DefaultProbeDelay = 2 * time.Second

// maxAttempts bounds one logical request: the original call and a single probe.
const maxAttempts = 2

// ErrQuotaExceeded is returned once the upstream daily quota is known to be used up.
// It is terminal for the lifetime of the Guard.
var ErrQuotaExceeded = errors.New("geocoding quota exceeded")

// Phase is the retry state of the guard.
type Phase int

const (
	// PhaseIdle means no rate-limit error is being investigated.
	PhaseIdle Phase = iota
	// PhaseProbing means a request was rate limited and is being retried after escalation.
	PhaseProbing
	// PhaseConfirmed means the escalated interval was enough; it falls back to idle.
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseProbing:
		return "probing"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Options configures a Guard.
type Options struct {
	ProbeDelay    time.Duration    // ProbeDelay before the probe request, DefaultProbeDelay when zero
	Clock         clockwork.Clock  // Clock used for sleeping and timestamps, real clock when nil
	IsRateLimited func(error) bool // IsRateLimited classifies errors, geocoding.ErrRateLimited when nil
	Logger        *slog.Logger     // Logger for state transitions
}

// Snapshot is a copy of the guard's state and diagnostic counters.
type Snapshot struct {
	Phase             Phase
	Exceeded          bool
	ExceededAt        time.Time
	RequestsSent      int
	RequestsSucceeded int
	Probes            int
	Confirmations     int
	Interval          time.Duration
}

// Guard tells transient rate limiting apart from an exhausted daily quota. The upstream
// answers both with the same status, so a rate-limited request is retried once after
// slowing down: if the probe is rejected again the quota is declared exceeded.
type Guard struct {
	mu            sync.Mutex
	throttle      *throttle.Throttle
	clock         clockwork.Clock
	probeDelay    time.Duration
	isRateLimited func(error) bool
	log           *slog.Logger

	phase         Phase
	exceeded      bool
	exceededAt    time.Time
	sent          int
	succeeded     int
	probes        int
	confirmations int
}

// NewGuard creates a guard dispatching through thr.
func NewGuard(thr *throttle.Throttle, opts Options) *Guard {
	if opts.ProbeDelay <= 0 {
		opts.ProbeDelay = DefaultProbeDelay
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.IsRateLimited == nil {
		opts.IsRateLimited = func(err error) bool { return errors.Is(err, geocoding.ErrRateLimited) }
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	return &Guard{
		throttle:      thr,
		clock:         opts.Clock,
		probeDelay:    opts.ProbeDelay,
		isRateLimited: opts.IsRateLimited,
		log:           opts.Logger,
	}
}

// Do runs call as one logical upstream request: throttled, at most two attempts.
// Errors that are not rate limits are returned unchanged without touching any state.
// After the quota is exceeded Do fails immediately without calling call.
func (g *Guard) Do(ctx context.Context, call func(context.Context) error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.exceeded {
		return fmt.Errorf("%w since %s", ErrQuotaExceeded, g.exceededAt.Format(time.RFC3339))
	}

	defer func() { g.phase = PhaseIdle }()

	for range maxAttempts {
		if err := g.throttle.Wait(ctx); err != nil {
			return err
		}

		g.sent++
		err := call(ctx)
		if err == nil {
			g.succeeded++
			if g.phase == PhaseProbing {
				g.phase = PhaseConfirmed
				g.confirmations++
				g.log.InfoContext(ctx, "Escalated throttle is sufficient", "interval", g.throttle.Interval())
			}
			return nil
		}

		if !g.isRateLimited(err) {
			return err
		}

		if g.phase == PhaseProbing {
			g.exceeded = true
			g.exceededAt = g.clock.Now()
			g.log.ErrorContext(ctx, "Geocoding quota exceeded, no further requests will be sent",
				"exceeded_at", g.exceededAt, "requests_sent", g.sent)
			return fmt.Errorf("%w: %w", ErrQuotaExceeded, err)
		}

		g.phase = PhaseProbing
		g.probes++
		g.log.WarnContext(ctx, "Upstream rate limit hit, probing with a slower throttle",
			"delay", g.probeDelay, "error", err)

		if err = g.sleep(ctx, g.probeDelay); err != nil {
			return err
		}
		g.throttle.Escalate()
	}

	// Unreachable: the second attempt always returns.
	return nil
}

func (g *Guard) sleep(ctx context.Context, d time.Duration) error {
	timer := g.clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.Chan():
		return nil
	}
}

// Exceeded reports whether the daily quota has been exhausted.
func (g *Guard) Exceeded() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	return g.exceeded
}

// Snapshot returns the current state and counters.
func (g *Guard) Snapshot() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	return Snapshot{
		Phase:             g.phase,
		Exceeded:          g.exceeded,
		ExceededAt:        g.exceededAt,
		RequestsSent:      g.sent,
		RequestsSucceeded: g.succeeded,
		Probes:            g.probes,
		Confirmations:     g.confirmations,
		Interval:          g.throttle.Interval(),
	}
}
