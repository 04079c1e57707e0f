package transit511

import (
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Seabmoby/transit511/internal/poller"
	"github.com/Seabmoby/transit511/siri"
)

// Listener receives filtered updates from a [Subscription].
//
// Listeners are invoked sequentially from the shared poller's goroutine;
// they must not block for long and must not call back into
// [Monitor.Register] or [Monitor.Unregister] for the same subscription.
type Listener func(Update)

// Subscription is one logical monitoring configuration: a filtered,
// per-consumer projection of a shared poller's data.
//
// A Subscription never issues its own network fetch. It derives its state
// from the snapshots its poller produces, notifies listeners only when the
// derived state actually changes (by value equality, not reference), and
// stays valid until passed to [Monitor.Unregister].
type Subscription struct {
	id       string
	key      ResourceKey
	filter   Filter
	interval time.Duration

	mu        sync.Mutex
	listeners []Listener
	current   Update
	seeded    bool
}

func newSubscription(key ResourceKey, filter Filter, interval time.Duration) *Subscription {
	return &Subscription{
		id:       uuid.NewString(),
		key:      key,
		filter:   filter,
		interval: interval,
	}
}

// ID returns the subscription's unique handle identifier.
func (s *Subscription) ID() string { return s.id }

// Key returns the resource key the subscription is attached to.
func (s *Subscription) Key() ResourceKey { return s.key }

// Filter returns the subscription's filter. Immutable after registration.
func (s *Subscription) Filter() Filter { return s.filter }

// RequestedInterval returns the clamped interval this subscription asked
// for. The shared poller runs at the minimum over all its subscriptions.
func (s *Subscription) RequestedInterval() time.Duration { return s.interval }

// OnChange registers a listener invoked whenever the derived state
// changes. The current state is not replayed to a new listener; read it
// with [Subscription.Current].
func (s *Subscription) OnChange(fn Listener) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Current returns the latest derived state. ok is false until the poller
// has produced at least one result for this subscription.
func (s *Subscription) Current() (_ Update, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.seeded
}

// derive applies the filter to a poll result.
func (s *Subscription) derive(res poller.Result) Update {
	u := Update{
		FetchedAt:           res.FetchedAt,
		Origin:              OriginLive,
		Failure:             res.Failure,
		ConsecutiveFailures: res.ConsecutiveFailures,
		Available:           res.Available,
		HasData:             res.Delivery != nil,
	}
	if res.Stale {
		u.Origin = OriginStale
	}
	if res.Delivery != nil {
		u.Visits = s.filter.Apply(res.Delivery.Visits)
	}
	return u
}

// seed installs the poller's current snapshot at registration time so a
// late subscriber is not left empty until the next tick. No notification:
// listeners only hear about changes after they subscribed.
func (s *Subscription) seed(res poller.Result) {
	u := s.derive(res)
	s.mu.Lock()
	if !s.seeded {
		u.Version = 1
		s.current = u
		s.seeded = true
	}
	s.mu.Unlock()
}

// apply ingests a new poll result: recompute the derived state and notify
// listeners if it differs from the previously notified value.
func (s *Subscription) apply(res poller.Result) {
	u := s.derive(res)

	s.mu.Lock()
	if s.seeded && !s.changed(u) {
		// Same derived value from a newer fetch. Track freshness so
		// Current() and Age() stay honest, but stay silent.
		s.current.FetchedAt = u.FetchedAt
		s.current.ConsecutiveFailures = u.ConsecutiveFailures
		s.mu.Unlock()
		return
	}
	u.Version = s.current.Version + 1
	s.current = u
	s.seeded = true
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}

// changed compares the new derived state against the last notified one.
// Timestamps and failure streak length are excluded: re-fetching identical
// data is not a change, but a Live/Stale flip, a different failure kind or
// an availability flip is one even when the visits are byte-identical.
// Caller must hold s.mu.
func (s *Subscription) changed(u Update) bool {
	if u.Origin != s.current.Origin ||
		u.Failure != s.current.Failure ||
		u.Available != s.current.Available ||
		u.HasData != s.current.HasData {
		return true
	}
	return !visitsEqual(u.Visits, s.current.Visits)
}

func visitsEqual(a, b []siri.Visit) bool {
	return slices.Equal(a, b)
}
