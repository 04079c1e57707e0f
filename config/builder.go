package config

import (
	"time"

	"github.com/Seabmoby/transit511"
)

// Registration is one subscription the CLI should register: a resource
// key, the subscriber's filter and its requested interval.
type Registration struct {
	Key      transit511.ResourceKey
	Filter   transit511.Filter
	Interval time.Duration
}

// BuildRegistrations converts parsed configuration into the registrations
// to hand to [transit511.Monitor.Register]. Watches without their own
// interval inherit the global poll_interval.
func BuildRegistrations(cfg *Config) []Registration {
	regs := make([]Registration, 0, len(cfg.Stops)+len(cfg.Vehicles))

	for _, sw := range cfg.Stops {
		interval := sw.Interval.Duration()
		if interval == 0 {
			interval = cfg.PollInterval.Duration()
		}
		regs = append(regs, Registration{
			Key:      transit511.StopKey(sw.Operator, sw.StopCode),
			Filter:   transit511.Filter{Line: sw.Line, Direction: sw.Direction},
			Interval: interval,
		})
	}

	for _, vw := range cfg.Vehicles {
		interval := vw.Interval.Duration()
		if interval == 0 {
			interval = cfg.PollInterval.Duration()
		}
		regs = append(regs, Registration{
			Key:      transit511.VehicleKey(vw.Operator, vw.VehicleID),
			Interval: interval,
		})
	}

	return regs
}
