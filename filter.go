package transit511

import (
	"strings"

	"github.com/Seabmoby/transit511/siri"
)

// Direction references used by 511 feeds.
const (
	DirectionInbound  = "IB"
	DirectionOutbound = "OB"
)

// Filter selects the subset of a poller's snapshot a subscription cares
// about. The zero value matches everything.
//
// Filters are read-only after registration: changing a subscription's
// filter means unregistering and registering again, which keeps the shared
// poller's interval bookkeeping auditable.
type Filter struct {
	// Line keeps only visits whose LineRef matches, case-insensitively.
	// Empty matches all lines.
	Line string

	// Direction keeps only visits whose DirectionRef matches, e.g.
	// [DirectionInbound]. Empty matches all directions.
	Direction string
}

// Match reports whether a single visit passes the filter.
func (f Filter) Match(v siri.Visit) bool {
	if f.Line != "" && !strings.EqualFold(v.Journey.LineRef, f.Line) {
		return false
	}
	if f.Direction != "" && !strings.EqualFold(v.Journey.DirectionRef, f.Direction) {
		return false
	}
	return true
}

// Apply returns the visits passing the filter, preserving order. The
// result is always a fresh slice; an empty result is valid empty data,
// not a failure.
func (f Filter) Apply(visits []siri.Visit) []siri.Visit {
	out := make([]siri.Visit, 0, len(visits))
	for _, v := range visits {
		if f.Match(v) {
			out = append(out, v)
		}
	}
	return out
}

// String renders the filter for log lines.
func (f Filter) String() string {
	if f.Line == "" && f.Direction == "" {
		return "all"
	}
	var parts []string
	if f.Line != "" {
		parts = append(parts, "line="+f.Line)
	}
	if f.Direction != "" {
		parts = append(parts, "direction="+f.Direction)
	}
	return strings.Join(parts, " ")
}
