package transit511

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/Seabmoby/transit511/internal/metrics"
	"github.com/Seabmoby/transit511/internal/poller"
	"github.com/Seabmoby/transit511/internal/ratebudget"
	"github.com/Seabmoby/transit511/siri"
)

// ErrClosed is returned by [Monitor.Register] after [Monitor.Close].
var ErrClosed = errors.New("monitor is closed")

// Monitor is the process-wide polling coordinator.
//
// It deduplicates fetching across subscriptions keyed by resource
// identity: the first registration for a key creates a shared poller, and
// every further registration for an equal key attaches to it, regardless
// of filter or requested interval. Each poller runs at the minimum of its
// subscribers' intervals and charges exactly one request per fetch to the
// credential's rolling-hour budget.
//
// The typical lifecycle is:
//
//	m, err := transit511.New(transit511.WithAPIKey(key))
//	if err != nil {
//	    slog.Error("failed to create monitor", "error", err)
//	    os.Exit(1)
//	}
//	defer m.Close()
//
//	sub, err := m.Register(transit511.StopKey("SF", "18031"),
//	    transit511.Filter{Line: "N"}, 60*time.Second)
//	sub.OnChange(func(u transit511.Update) { ... })
//
// All methods are safe for concurrent use.
type Monitor struct {
	logger       *slog.Logger
	fetcher      Fetcher
	guard        *ratebudget.Guard
	credentialID string

	baseBackoff      time.Duration
	backoffCeiling   time.Duration
	initialDelay     time.Duration
	unavailableAfter int

	ctx    context.Context
	cancel context.CancelFunc

	// mu guards the registry map and every entry's subscriber set. It is
	// the single exclusion mechanism shared-state mutation goes through;
	// poller-internal state needs no cross-goroutine locking.
	mu      sync.Mutex
	pollers map[ResourceKey]*pollerEntry
	closed  bool
}

// pollerEntry pairs a running poller with its attached subscriptions and
// the last result it produced, used to seed late subscribers.
type pollerEntry struct {
	poller     *poller.Poller
	subs       map[string]*Subscription
	lastResult *poller.Result
}

// New creates a [Monitor] from the given options.
//
// Either [WithAPIKey] or [WithFetcher] must be provided. No polling
// starts until the first [Monitor.Register] call.
func New(opts ...Option) (*Monitor, error) {
	cfg := &monitorConfig{}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.fetcher == nil && cfg.apiKey == "" {
		return nil, errors.New("an api key or a custom fetcher is required")
	}
	fetcher := cfg.fetcher
	if fetcher == nil {
		fetcher = clientFetcher{client: siri.NewClient(cfg.apiKey)}
	}

	credentialID := cfg.credentialID
	if credentialID == "" {
		credentialID = cfg.apiKey
	}
	if credentialID == "" {
		credentialID = "default"
	}

	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Monitor{
		logger:           logger,
		fetcher:          fetcher,
		guard:            ratebudget.NewGuard(cfg.hourlyBudget),
		credentialID:     credentialID,
		baseBackoff:      cfg.baseBackoff,
		backoffCeiling:   cfg.backoffCeiling,
		initialDelay:     cfg.initialDelay,
		unavailableAfter: cfg.unavailableAfter,
		ctx:              ctx,
		cancel:           cancel,
		pollers:          make(map[ResourceKey]*pollerEntry),
	}, nil
}

// Register attaches a new subscription for the given key.
//
// The key is normalized first; if no shared poller exists for it one is
// created and its loop started, otherwise the subscription attaches to
// the existing poller and the poller's effective interval is recomputed.
// The returned subscription already carries the poller's last known
// snapshot (see [Subscription.Current]) so a late subscriber is not left
// empty until the next tick.
//
// interval is the subscription's requested refresh interval, clamped to
// [MinInterval, MaxInterval]; zero means [DefaultInterval].
func (m *Monitor) Register(key ResourceKey, filter Filter, interval time.Duration) (*Subscription, error) {
	key = key.normalize()
	if err := key.validate(); err != nil {
		return nil, err
	}
	sub := newSubscription(key, filter, clampInterval(interval))

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, ErrClosed
	}

	entry, ok := m.pollers[key]
	if ok {
		entry.subs[sub.id] = sub
		if entry.lastResult != nil {
			sub.seed(*entry.lastResult)
		}
		metrics.SubscribersAttached.WithLabelValues(string(key.Kind)).Inc()
		m.logger.Info("subscriber attached to existing poller",
			"key", key.String(),
			"filter", filter.String(),
			"interval", sub.interval.String(),
			"subscribers", len(entry.subs),
		)
		return sub, nil
	}

	entry = &pollerEntry{subs: map[string]*Subscription{sub.id: sub}}
	entry.poller = poller.New(poller.Config{
		Key:              key.String(),
		Fetch:            func(ctx context.Context) (*siri.Delivery, error) { return m.fetcher.Fetch(ctx, key) },
		Interval:         func() time.Duration { return m.effectiveInterval(key) },
		Budget:           func() bool { return m.consumeBudget(key) },
		OnResult:         func(res poller.Result) { m.dispatch(key, res) },
		Logger:           m.logger,
		BaseBackoff:      m.baseBackoff,
		BackoffCeiling:   m.backoffCeiling,
		InitialDelay:     m.initialDelay,
		UnavailableAfter: m.unavailableAfter,
	})
	m.pollers[key] = entry

	metrics.PollersCreated.WithLabelValues(string(key.Kind)).Inc()
	metrics.ActivePollers.Set(float64(len(m.pollers)))
	m.logger.Info("created new shared poller",
		"key", key.String(),
		"filter", filter.String(),
		"interval", sub.interval.String(),
	)

	entry.poller.Start(m.ctx)
	return sub, nil
}

// Unregister detaches a subscription from its shared poller.
//
// When the last subscription for a key detaches, the poller is marked for
// teardown: its pending wake-up is cancelled and no further fetch starts.
// Unregister is safe to call concurrently with an in-flight fetch for the
// same key — the fetch completes and its result is discarded. Calling
// Unregister twice, or with nil, is a no-op.
func (m *Monitor) Unregister(sub *Subscription) {
	if sub == nil {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pollers[sub.key]
	if !ok {
		return
	}
	if _, attached := entry.subs[sub.id]; !attached {
		return
	}
	delete(entry.subs, sub.id)

	if len(entry.subs) > 0 {
		m.logger.Info("subscriber detached",
			"key", sub.key.String(),
			"subscribers", len(entry.subs),
		)
		return
	}

	entry.poller.Stop()
	delete(m.pollers, sub.key)
	metrics.ActivePollers.Set(float64(len(m.pollers)))
	m.logger.Info("tearing down poller, last subscriber detached",
		"key", sub.key.String(),
	)
}

// Close tears down every poller and waits for their loops to exit.
// Further Register calls return [ErrClosed].
func (m *Monitor) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	entries := make([]*pollerEntry, 0, len(m.pollers))
	for _, e := range m.pollers {
		entries = append(entries, e)
	}
	m.pollers = make(map[ResourceKey]*pollerEntry)
	m.mu.Unlock()

	m.cancel()
	for _, e := range entries {
		e.poller.Stop()
		<-e.poller.Done()
	}
	metrics.ActivePollers.Set(0)
	m.logger.Info("monitor closed", "pollers_drained", len(entries))
}

// MinSafeInterval advises the fastest per-poller interval that keeps the
// current number of active pollers inside the credential's hourly budget.
func (m *Monitor) MinSafeInterval() time.Duration {
	m.mu.Lock()
	n := len(m.pollers)
	m.mu.Unlock()
	return m.guard.MinSafeInterval(n)
}

// effectiveInterval computes a poller's scheduling interval: the minimum
// requested interval across its current subscriptions, reclamped. Consulted
// by the poller on every scheduling decision so subscribe/unsubscribe takes
// effect on the next tick without interrupting an in-flight fetch.
func (m *Monitor) effectiveInterval(key ResourceKey) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.pollers[key]
	if !ok || len(entry.subs) == 0 {
		// poller being torn down; the value no longer matters
		return MaxInterval
	}
	min := MaxInterval
	for _, sub := range entry.subs {
		if sub.interval < min {
			min = sub.interval
		}
	}
	return clampInterval(min)
}

// consumeBudget charges one fetch to the credential's rolling-hour window.
// Exactly one charge per fetch attempt, never per subscriber.
func (m *Monitor) consumeBudget(key ResourceKey) bool {
	decision := m.guard.TryConsume(m.credentialID)
	metrics.BudgetRemaining.WithLabelValues(m.credentialID).Set(float64(m.guard.Remaining(m.credentialID)))
	if decision == ratebudget.Deferred {
		metrics.BudgetDeferred.Inc()
		m.logger.Warn("hourly request budget exhausted, deferring fetch",
			"key", key.String(),
			"credential", m.credentialID,
		)
		return false
	}
	return true
}

// dispatch fans a poll result out to the key's current subscriptions.
func (m *Monitor) dispatch(key ResourceKey, res poller.Result) {
	if res.Failure == "" {
		metrics.Fetches.WithLabelValues("success").Inc()
	} else {
		metrics.Fetches.WithLabelValues(string(res.Failure)).Inc()
	}

	m.mu.Lock()
	entry, ok := m.pollers[key]
	if !ok {
		// torn down while the fetch was in flight; discard
		m.mu.Unlock()
		return
	}
	entry.lastResult = &res
	subs := make([]*Subscription, 0, len(entry.subs))
	for _, sub := range entry.subs {
		subs = append(subs, sub)
	}
	m.mu.Unlock()

	for _, sub := range subs {
		sub.apply(res)
	}
}
