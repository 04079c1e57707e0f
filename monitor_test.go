package transit511

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Seabmoby/transit511/siri"
)

// fetcherFunc adapts a function to the [Fetcher] interface for tests.
type fetcherFunc func(ctx context.Context, key ResourceKey) (*siri.Delivery, error)

func (f fetcherFunc) Fetch(ctx context.Context, key ResourceKey) (*siri.Delivery, error) {
	return f(ctx, key)
}

// countingFetcher serves a fixed delivery and counts fetches per key.
type countingFetcher struct {
	fetches  atomic.Int64
	delivery *siri.Delivery
}

func (f *countingFetcher) Fetch(ctx context.Context, key ResourceKey) (*siri.Delivery, error) {
	f.fetches.Add(1)
	return f.delivery, nil
}

// newTestMonitor builds a monitor that only runs each poller's immediate
// first fetch; the steady cadence is pushed out of the test's horizon.
func newTestMonitor(t *testing.T, f Fetcher) *Monitor {
	t.Helper()
	m, err := New(
		WithFetcher(f),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithInitialDelay(time.Hour),
	)
	if err != nil {
		t.Fatalf("failed to create monitor: %v", err)
	}
	t.Cleanup(m.Close)
	return m
}

// waitSeeded polls until the subscription has its first derived state.
// The immediate fetch may complete before the test attaches a listener, so
// waiting on OnChange would race; Current never does.
func waitSeeded(t *testing.T, sub *Subscription) Update {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if u, ok := sub.Current(); ok {
			return u
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("timed out waiting for the subscription's first result")
	return Update{}
}

func TestRegisterSharesOnePollerPerKey(t *testing.T) {
	f := &countingFetcher{delivery: &siri.Delivery{Visits: []siri.Visit{
		visit("N", "IB"),
		visit("J", "IB"),
	}}}
	m := newTestMonitor(t, f)

	first, err := m.Register(StopKey("SF", "18031"), Filter{Line: "N"}, time.Minute)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	waitSeeded(t, first)

	// Different filters, different intervals, same physical stop: the two
	// later registrations attach and are seeded without any new fetch.
	second, err := m.Register(StopKey("sf", " 18031 "), Filter{Line: "J"}, 180*time.Second)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	third, err := m.Register(StopKey("SF", "18031"), Filter{}, 0)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if n := f.fetches.Load(); n != 1 {
		t.Errorf("expected 1 shared fetch for 3 subscribers, got %d", n)
	}

	u, ok := second.Current()
	if !ok {
		t.Fatal("expected the late subscriber to be seeded")
	}
	if len(u.Visits) != 1 || u.Visits[0].Journey.LineRef != "J" {
		t.Errorf("expected seeded view filtered to line J, got %+v", u.Visits)
	}
	if u, ok := third.Current(); !ok || len(u.Visits) != 2 {
		t.Errorf("expected unfiltered seeded view with 2 visits, got ok=%v %+v", ok, u)
	}

	if first.ID() == second.ID() || second.ID() == third.ID() {
		t.Error("expected distinct subscription handles")
	}
}

func TestEffectiveIntervalIsMinimumOfSubscribers(t *testing.T) {
	m := newTestMonitor(t, &countingFetcher{delivery: &siri.Delivery{}})
	key := StopKey("SF", "18031")

	slow, _ := m.Register(key, Filter{}, 180*time.Second)
	if got := m.effectiveInterval(key); got != 180*time.Second {
		t.Errorf("expected 180s with one subscriber, got %v", got)
	}

	fast, _ := m.Register(key, Filter{}, 60*time.Second)
	if got := m.effectiveInterval(key); got != 60*time.Second {
		t.Errorf("expected the faster subscriber to win, got %v", got)
	}

	m.Unregister(fast)
	if got := m.effectiveInterval(key); got != 180*time.Second {
		t.Errorf("expected interval to relax after the fast subscriber left, got %v", got)
	}
	m.Unregister(slow)
}

func TestRegisterClampsInterval(t *testing.T) {
	m := newTestMonitor(t, &countingFetcher{delivery: &siri.Delivery{}})

	sub, err := m.Register(StopKey("SF", "18031"), Filter{}, time.Second)
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if got := sub.RequestedInterval(); got != MinInterval {
		t.Errorf("expected 1s request clamped to %v, got %v", MinInterval, got)
	}
}

func TestRegisterRejectsInvalidKey(t *testing.T) {
	m := newTestMonitor(t, &countingFetcher{delivery: &siri.Delivery{}})

	if _, err := m.Register(StopKey("", "18031"), Filter{}, time.Minute); err == nil {
		t.Error("expected error for missing operator")
	}
	if _, err := m.Register(ResourceKey{}, Filter{}, time.Minute); err == nil {
		t.Error("expected error for zero key")
	}
}

func TestUnregisterTearsDownLastSubscriber(t *testing.T) {
	f := &countingFetcher{delivery: &siri.Delivery{}}
	m := newTestMonitor(t, f)
	key := StopKey("SF", "18031")

	a, _ := m.Register(key, Filter{}, time.Minute)
	waitSeeded(t, a)
	b, _ := m.Register(key, Filter{}, time.Minute)

	m.Unregister(a)
	m.mu.Lock()
	_, alive := m.pollers[key]
	m.mu.Unlock()
	if !alive {
		t.Fatal("expected poller to survive while a subscriber remains")
	}

	m.Unregister(b)
	m.mu.Lock()
	_, alive = m.pollers[key]
	m.mu.Unlock()
	if alive {
		t.Fatal("expected poller teardown after the last subscriber left")
	}

	// A fresh registration for the same key starts over with its own
	// immediate fetch.
	c, _ := m.Register(key, Filter{}, time.Minute)
	u := waitSeeded(t, c)
	if n := f.fetches.Load(); n != 2 {
		t.Errorf("expected a second fetch from the recreated poller, got %d", n)
	}
	if u.Origin != OriginLive {
		t.Errorf("expected fresh live state, got %+v", u)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	m := newTestMonitor(t, &countingFetcher{delivery: &siri.Delivery{}})

	sub, _ := m.Register(StopKey("SF", "18031"), Filter{}, time.Minute)
	m.Unregister(sub)
	m.Unregister(sub) // second detach is a no-op
	m.Unregister(nil)
}

func TestRegisterAfterClose(t *testing.T) {
	m, err := New(WithFetcher(&countingFetcher{delivery: &siri.Delivery{}}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("failed to create monitor: %v", err)
	}
	m.Close()

	if _, err := m.Register(StopKey("SF", "18031"), Filter{}, time.Minute); err != ErrClosed {
		t.Errorf("expected ErrClosed, got %v", err)
	}
	m.Close() // double close is a no-op
}

func TestBudgetChargedOncePerFetch(t *testing.T) {
	m, err := New(
		WithFetcher(&countingFetcher{delivery: &siri.Delivery{}}),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithHourlyBudget(2),
		WithCredentialID("cred-a"),
	)
	if err != nil {
		t.Fatalf("failed to create monitor: %v", err)
	}
	defer m.Close()

	key := StopKey("SF", "18031")
	if !m.consumeBudget(key) || !m.consumeBudget(key) {
		t.Fatal("expected the first two charges to pass")
	}
	if m.consumeBudget(key) {
		t.Error("expected deferral once the hourly budget is spent")
	}
}

func TestMinSafeIntervalGrowsWithPollers(t *testing.T) {
	m := newTestMonitor(t, &countingFetcher{delivery: &siri.Delivery{}})

	if got := m.MinSafeInterval(); got != time.Minute {
		t.Errorf("expected 60/hr floor of 1m with no pollers, got %v", got)
	}

	m.Register(StopKey("SF", "18031"), Filter{}, time.Minute)
	m.Register(StopKey("SF", "18032"), Filter{}, time.Minute)
	m.Register(VehicleKey("SF", "2012"), Filter{}, time.Minute)

	if got := m.MinSafeInterval(); got != 3*time.Minute {
		t.Errorf("expected 3m for 3 pollers on one credential, got %v", got)
	}
}

func TestVehicleAndStopKeysGetSeparatePollers(t *testing.T) {
	f := &countingFetcher{delivery: &siri.Delivery{}}
	m := newTestMonitor(t, f)

	s, _ := m.Register(StopKey("SF", "2012"), Filter{}, time.Minute)
	v, _ := m.Register(VehicleKey("SF", "2012"), Filter{}, time.Minute)

	waitSeeded(t, s)
	waitSeeded(t, v)

	if n := f.fetches.Load(); n != 2 {
		t.Errorf("expected 2 fetches for 2 distinct resources, got %d", n)
	}
}
