package transit511

import (
	"errors"
	"log/slog"
	"time"
)

// Interval bounds and defaults. Requested intervals are clamped into
// [MinInterval, MaxInterval]; a zero request means DefaultInterval.
const (
	MinInterval     = 30 * time.Second
	MaxInterval     = 300 * time.Second
	DefaultInterval = 60 * time.Second
)

// monitorConfig holds mutable state during [Monitor] construction.
type monitorConfig struct {
	apiKey           string
	fetcher          Fetcher
	credentialID     string
	logger           *slog.Logger
	hourlyBudget     int
	baseBackoff      time.Duration
	backoffCeiling   time.Duration
	initialDelay     time.Duration
	unavailableAfter int
}

// Option configures a [Monitor] during construction via [New].
//
// Options return an error when validation fails. Built-in options:
// [WithAPIKey], [WithFetcher], [WithCredentialID], [WithLogger],
// [WithHourlyBudget], [WithBackoff], [WithInitialDelay],
// [WithUnavailableAfter].
type Option func(*monitorConfig) error

// WithAPIKey sets the 511.org API key. The monitor builds a shared
// [siri.Client] fetcher from it, and the key doubles as the opaque
// credential identifier grouping requests into one rate budget.
//
// Either WithAPIKey or [WithFetcher] is required.
func WithAPIKey(key string) Option {
	return func(cfg *monitorConfig) error {
		if key == "" {
			return errors.New("api key cannot be empty")
		}
		cfg.apiKey = key
		return nil
	}
}

// WithFetcher substitutes the fetch client. Intended for tests and for
// embedding against a different SIRI-speaking backend; production use
// normally goes through [WithAPIKey].
func WithFetcher(f Fetcher) Option {
	return func(cfg *monitorConfig) error {
		if f == nil {
			return errors.New("fetcher cannot be nil")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithCredentialID overrides the identifier used to group fetches into a
// shared hourly budget. Defaults to the API key.
func WithCredentialID(id string) Option {
	return func(cfg *monitorConfig) error {
		if id == "" {
			return errors.New("credential id cannot be empty")
		}
		cfg.credentialID = id
		return nil
	}
}

// WithLogger sets a custom [slog.Logger]. Defaults to [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *monitorConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithHourlyBudget overrides the per-credential request ceiling for the
// rolling hour window. Defaults to the 511.org budget of 60.
func WithHourlyBudget(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("hourly budget must be positive")
		}
		cfg.hourlyBudget = n
		return nil
	}
}

// WithBackoff overrides the failure backoff policy: the first step and
// the cap. Defaults to 60s base with a 300s ceiling.
func WithBackoff(base, ceiling time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if base <= 0 || ceiling < base {
			return errors.New("backoff requires 0 < base <= ceiling")
		}
		cfg.baseBackoff = base
		cfg.backoffCeiling = ceiling
		return nil
	}
}

// WithInitialDelay overrides the hold between a poller's immediate first
// fetch and its steady cadence. Defaults to 60s.
func WithInitialDelay(d time.Duration) Option {
	return func(cfg *monitorConfig) error {
		if d <= 0 {
			return errors.New("initial delay must be positive")
		}
		cfg.initialDelay = d
		return nil
	}
}

// WithUnavailableAfter sets how many consecutive failures mark a poller's
// updates unavailable. Auth failures flip availability immediately
// regardless. Defaults to 5.
func WithUnavailableAfter(n int) Option {
	return func(cfg *monitorConfig) error {
		if n <= 0 {
			return errors.New("unavailable-after threshold must be positive")
		}
		cfg.unavailableAfter = n
		return nil
	}
}

// clampInterval maps a requested interval into the allowed bounds.
func clampInterval(d time.Duration) time.Duration {
	switch {
	case d <= 0:
		return DefaultInterval
	case d < MinInterval:
		return MinInterval
	case d > MaxInterval:
		return MaxInterval
	default:
		return d
	}
}
