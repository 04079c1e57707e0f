package transit511

import (
	"time"

	"github.com/Seabmoby/transit511/siri"
)

// Origin tags how fresh the data in an [Update] is.
type Origin string

const (
	// OriginLive means the update carries data from a fetch that just
	// succeeded.
	OriginLive Origin = "live"

	// OriginStale means the latest fetch failed and the update re-serves
	// the last known good data, annotated with the failure kind.
	OriginStale Origin = "stale"
)

// Update is the filtered view delivered to a subscription's listeners and
// returned by [Subscription.Current].
//
// Failures never surface directly: a subscriber sees either fresh live
// data or retained stale data. HasData distinguishes "no data ever
// received" from "serving last-known-good data because the latest fetch
// failed" — and from a genuinely empty live result, which is valid data,
// not an error.
type Update struct {
	// Visits is the subscription's derived state: the poller's snapshot
	// with the subscription filter applied. Empty when nothing matches.
	Visits []siri.Visit

	// FetchedAt is when the underlying snapshot was fetched. Zero when
	// HasData is false.
	FetchedAt time.Time

	// Origin is [OriginLive] or [OriginStale].
	Origin Origin

	// Failure is the failure kind behind a stale update, empty otherwise.
	Failure siri.Kind

	// ConsecutiveFailures counts failed fetches since the last success.
	ConsecutiveFailures int

	// Available is false once failures persist past the configured
	// threshold, or immediately on an authentication failure. Consumers
	// should mark themselves unavailable rather than keep presenting
	// ever-staler data.
	Available bool

	// HasData is false only while no fetch for the resource has ever
	// succeeded.
	HasData bool

	// Version increments each time the subscription's derived state
	// changes. Listeners see each version at most once.
	Version uint64
}

// Age reports how old the update's underlying snapshot is at now.
// Zero when the update carries no data.
func (u Update) Age(now time.Time) time.Duration {
	if !u.HasData || u.FetchedAt.IsZero() {
		return 0
	}
	return now.Sub(u.FetchedAt)
}
