package transit511

import (
	"math"
	"time"

	"github.com/Seabmoby/transit511/siri"
)

// Helpers for deriving arrival summaries from a filtered view. They are
// pure functions over the visit slice an [Update] carries; what to do
// with the numbers (labels, units, icons) is the consumer's business.

// NextArrival returns the first visit with a known arrival estimate.
// Visits keep the server's order, which is soonest-first.
func NextArrival(visits []siri.Visit) (siri.Visit, bool) {
	for _, v := range visits {
		if !v.Journey.Call.ArrivalTime().IsZero() {
			return v, true
		}
	}
	return siri.Visit{}, false
}

// MinutesUntil lists the minutes from now until each of the next n
// arrivals with a known estimate. Arrivals already in the past report 0.
func MinutesUntil(visits []siri.Visit, now time.Time, n int) []int {
	out := make([]int, 0, n)
	for _, v := range visits {
		if len(out) == n {
			break
		}
		at := v.Journey.Call.ArrivalTime()
		if at.IsZero() {
			continue
		}
		mins := int(math.Round(at.Sub(now).Minutes()))
		if mins < 0 {
			mins = 0
		}
		out = append(out, mins)
	}
	return out
}

// ByDirection partitions visits by DirectionRef, e.g. [DirectionInbound].
func ByDirection(visits []siri.Visit, direction string) []siri.Visit {
	return Filter{Direction: direction}.Apply(visits)
}
