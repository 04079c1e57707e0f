package transit511

import (
	"errors"
	"strings"
)

// Kind discriminates the two monitorable resource kinds. It selects which
// API endpoint a poller hits and which shape the payload takes.
type Kind string

const (
	// KindStop monitors arrivals at a transit stop.
	KindStop Kind = "stop"

	// KindVehicle monitors the position of a single vehicle.
	KindVehicle Kind = "vehicle"
)

// ResourceKey is the canonical identity of a monitored physical resource.
//
// ResourceKey is an immutable value type; equality defines polling
// deduplication. Two registrations with equal keys share one poller no
// matter how their filters or requested intervals differ.
type ResourceKey struct {
	// Kind is the resource kind discriminator.
	Kind Kind

	// Operator is the 511 agency code, e.g. "SF".
	Operator string

	// Code identifies the resource within the operator: a stop code for
	// [KindStop], a vehicle ID for [KindVehicle].
	Code string
}

// StopKey builds a normalized [ResourceKey] for a stop.
func StopKey(operator, stopCode string) ResourceKey {
	return ResourceKey{Kind: KindStop, Operator: operator, Code: stopCode}.normalize()
}

// VehicleKey builds a normalized [ResourceKey] for a vehicle.
func VehicleKey(operator, vehicleID string) ResourceKey {
	return ResourceKey{Kind: KindVehicle, Operator: operator, Code: vehicleID}.normalize()
}

// String renders the key in "kind/OPERATOR/code" form for logs and
// metrics labels.
func (k ResourceKey) String() string {
	return string(k.Kind) + "/" + k.Operator + "/" + k.Code
}

// normalize trims whitespace and upper-cases the operator so that keys
// differing only in spelling collapse onto one poller.
func (k ResourceKey) normalize() ResourceKey {
	k.Operator = strings.ToUpper(strings.TrimSpace(k.Operator))
	k.Code = strings.TrimSpace(k.Code)
	return k
}

func (k ResourceKey) validate() error {
	switch k.Kind {
	case KindStop, KindVehicle:
	default:
		return errors.New("resource key: unknown kind")
	}
	if k.Operator == "" {
		return errors.New("resource key: operator is required")
	}
	if k.Code == "" {
		return errors.New("resource key: code is required")
	}
	return nil
}
