// Package ratebudget tracks request spend per credential against a rolling
// one-hour window.
//
// The guard is purely local accounting: it keeps this process from
// exceeding the shared budget across its own pollers. It cannot observe
// requests made by other processes, so a server-side rate-limit response
// must still be handled as an ordinary fetch failure by the caller.
package ratebudget

import (
	"sync"
	"time"
)

// DefaultCeiling is the 511.org request budget: 60 requests per rolling
// hour per credential.
const DefaultCeiling = 60

// Decision is the outcome of a budget consultation.
type Decision int

const (
	// Allowed means the request was charged to the window and may proceed.
	Allowed Decision = iota

	// Deferred means the window is exhausted; the caller must hold until
	// the window rolls over.
	Deferred
)

func (d Decision) String() string {
	if d == Allowed {
		return "allowed"
	}
	return "deferred"
}

type window struct {
	start time.Time
	count int
}

// Guard accounts requests per credential. Safe for concurrent use by all
// pollers sharing a process.
type Guard struct {
	mu      sync.Mutex
	ceiling int
	windows map[string]*window
	now     func() time.Time
	span    time.Duration
}

// NewGuard creates a Guard with the given per-window ceiling. A ceiling
// of zero or less falls back to [DefaultCeiling].
func NewGuard(ceiling int) *Guard {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Guard{
		ceiling: ceiling,
		windows: make(map[string]*window),
		now:     time.Now,
		span:    time.Hour,
	}
}

// TryConsume charges one request for the credential if the current window
// has room. The counter is incremented exactly once per fetch attempt,
// never per subscriber.
func (g *Guard) TryConsume(credentialID string) Decision {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.roll(credentialID)
	if w.count >= g.ceiling {
		return Deferred
	}
	w.count++
	return Allowed
}

// Remaining reports how many requests are left in the credential's current
// window. Consulting it does not charge the window.
func (g *Guard) Remaining(credentialID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	w := g.roll(credentialID)
	if w.count >= g.ceiling {
		return 0
	}
	return g.ceiling - w.count
}

// MinSafeInterval advises the fastest sustainable polling interval when
// pollers distinct resources share one credential: the hourly ceiling
// spread evenly across them.
func (g *Guard) MinSafeInterval(pollers int) time.Duration {
	if pollers <= 0 {
		pollers = 1
	}
	return g.span * time.Duration(pollers) / time.Duration(g.ceiling)
}

// roll returns the credential's window, resetting it if the span elapsed.
// Caller must hold g.mu.
func (g *Guard) roll(credentialID string) *window {
	now := g.now()
	w, ok := g.windows[credentialID]
	if !ok || now.Sub(w.start) >= g.span {
		w = &window{start: now}
		g.windows[credentialID] = w
	}
	return w
}
