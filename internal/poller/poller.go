package poller

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Seabmoby/transit511/siri"
)

const (
	// DefaultBaseBackoff is the first backoff step after a failure.
	DefaultBaseBackoff = 60 * time.Second

	// DefaultBackoffCeiling caps the exponential backoff.
	DefaultBackoffCeiling = 300 * time.Second

	// DefaultInitialDelay is the hold after the immediate first fetch
	// before the steady cadence starts. Gives instant data on startup
	// without doubling up against the regular schedule.
	DefaultInitialDelay = 60 * time.Second

	// DefaultUnavailableAfter is how many consecutive failures mark the
	// poller unavailable. Auth failures flip availability immediately.
	DefaultUnavailableAfter = 5
)

// FetchFunc performs one network round trip for the poller's resource.
// It must complete or fail within a bounded timeout and must not retry
// internally.
type FetchFunc func(ctx context.Context) (*siri.Delivery, error)

// Config assembles a Poller. Key, Fetch and OnResult are required.
type Config struct {
	// Key is the resource identity, used only for logging.
	Key string

	// Fetch performs the network round trip.
	Fetch FetchFunc

	// Interval returns the current effective polling interval. It is
	// consulted on every scheduling decision, never cached, so a faster
	// subscriber joining between ticks takes effect on the next wait.
	Interval func() time.Duration

	// Budget reports whether a fetch may spend request budget right now.
	// When it returns false the cycle is skipped entirely and the loop
	// re-evaluates after the effective interval. nil means always allowed.
	Budget func() bool

	// OnResult receives the outcome of every completed cycle. Called from
	// the poller goroutine; it must not block for long.
	OnResult func(Result)

	Logger *slog.Logger

	// BaseBackoff, BackoffCeiling, InitialDelay and UnavailableAfter
	// default to the package constants when zero.
	BaseBackoff      time.Duration
	BackoffCeiling   time.Duration
	InitialDelay     time.Duration
	UnavailableAfter int
}

// Result is the outcome of one poll cycle, carrying the snapshot the
// subscriber layer should serve.
type Result struct {
	// Delivery is the last successfully fetched payload. nil when no
	// fetch has ever succeeded, which is distinct from an empty payload.
	Delivery *siri.Delivery

	// FetchedAt is when Delivery was obtained. With Stale set, the
	// difference from now is the age of the data being re-served.
	FetchedAt time.Time

	// Stale is false when this cycle's fetch succeeded and Delivery is
	// fresh, true when the fetch failed and Delivery is retained
	// last-known-good data.
	Stale bool

	// Failure is the failure kind of this cycle, empty on success.
	Failure siri.Kind

	// ConsecutiveFailures counts failed cycles since the last success.
	ConsecutiveFailures int

	// Available is the upward availability signal: false once failures
	// persist past the configured threshold, or immediately on an auth
	// failure. True again after the next success.
	Available bool
}

// Poller owns the fetch loop for one resource key.
type Poller struct {
	cfg Config

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}

	// loop-owned; no locking needed
	snapshot  *siri.Delivery
	fetchedAt time.Time
	failures  int
	backoff   time.Duration
}

// New creates a Poller. Call [Poller.Start] to begin fetching.
func New(cfg Config) *Poller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = DefaultBaseBackoff
	}
	if cfg.BackoffCeiling <= 0 {
		cfg.BackoffCeiling = DefaultBackoffCeiling
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = DefaultInitialDelay
	}
	if cfg.UnavailableAfter <= 0 {
		cfg.UnavailableAfter = DefaultUnavailableAfter
	}
	return &Poller{
		cfg:  cfg,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

// Start launches the loop in a background goroutine. The first fetch is
// issued immediately so the first subscriber is not left waiting a full
// interval. ctx bounds the lifetime of fetches; cancelling it stops the
// loop the same way [Poller.Stop] does.
func (p *Poller) Start(ctx context.Context) {
	go p.run(ctx)
}

// Stop marks the poller for teardown. The pending scheduled wake-up is
// cancelled; an in-flight fetch is allowed to complete and its result is
// discarded rather than delivered. Stop returns without waiting — use
// [Poller.Done] to observe loop exit.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Done is closed when the loop has fully exited.
func (p *Poller) Done() <-chan struct{} {
	return p.done
}

func (p *Poller) run(ctx context.Context) {
	defer close(p.done)

	// immediate first cycle
	if p.stopped(ctx) {
		return
	}
	p.cycle(ctx)

	wait := p.cfg.InitialDelay
	timer := time.NewTimer(wait)
	defer timer.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-ctx.Done():
			return
		case <-timer.C:
		}

		if p.stopped(ctx) {
			return
		}
		p.cycle(ctx)

		// The wait is recomputed from current state every cycle:
		// effectiveInterval can shrink when a faster subscriber joins,
		// and backoff changes with the failure streak.
		timer.Reset(p.nextWait())
	}
}

func (p *Poller) stopped(ctx context.Context) bool {
	select {
	case <-p.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// cycle runs one Scheduled -> Fetching -> {Succeeded, Failed} transition.
func (p *Poller) cycle(ctx context.Context) {
	if p.cfg.Budget != nil && !p.cfg.Budget() {
		p.cfg.Logger.Debug("fetch deferred by rate budget", "key", p.cfg.Key)
		return
	}

	delivery, err := p.cfg.Fetch(ctx)

	var res Result
	if err != nil {
		kind := siri.KindOf(err)
		if kind == "" {
			kind = siri.KindNetwork
		}
		p.failures++
		p.widenBackoff(kind)
		p.cfg.Logger.Warn("fetch failed",
			"key", p.cfg.Key,
			"kind", string(kind),
			"consecutive_failures", p.failures,
			"backoff", p.backoff.String(),
			"error", err,
		)
		res = Result{
			Delivery:            p.snapshot,
			FetchedAt:           p.fetchedAt,
			Stale:               true,
			Failure:             kind,
			ConsecutiveFailures: p.failures,
			Available:           kind != siri.KindAuth && p.failures < p.cfg.UnavailableAfter,
		}
	} else {
		p.snapshot = delivery
		p.fetchedAt = time.Now()
		p.failures = 0
		p.backoff = 0
		res = Result{
			Delivery:  p.snapshot,
			FetchedAt: p.fetchedAt,
			Available: true,
		}
	}

	// A teardown that raced the fetch wins: the result is discarded, not
	// delivered to a subscriber set that no longer exists.
	if p.stopped(ctx) {
		return
	}
	p.cfg.OnResult(res)
}

// widenBackoff applies the exponential policy: base on the first failure,
// then doubling up to the ceiling. Server-reported throttling widens twice
// as fast since continuing at the same pace is what caused it.
func (p *Poller) widenBackoff(kind siri.Kind) {
	step := time.Duration(2)
	if kind == siri.KindRateLimit {
		step = 4
	}
	if p.backoff == 0 {
		p.backoff = p.cfg.BaseBackoff
	} else {
		p.backoff *= step
	}
	if p.backoff > p.cfg.BackoffCeiling {
		p.backoff = p.cfg.BackoffCeiling
	}
}

// nextWait schedules the next cycle: the effective interval, stretched by
// the current backoff when failing.
func (p *Poller) nextWait() time.Duration {
	interval := time.Duration(0)
	if p.cfg.Interval != nil {
		interval = p.cfg.Interval()
	}
	if interval <= 0 {
		interval = DefaultBaseBackoff
	}
	if p.backoff > interval {
		return p.backoff
	}
	return interval
}
