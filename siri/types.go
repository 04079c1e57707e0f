package siri

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// Delivery is one decoded fetch result: the monitored visits (or vehicle
// activities) the API reported for a single stop or vehicle, in the order
// the server returned them.
//
// A Delivery with zero Visits is a valid result, not a failure — it means
// nothing is currently approaching the monitored resource.
type Delivery struct {
	// ResponseTimestamp is the server-side timestamp of the delivery.
	// Zero if the server omitted it.
	ResponseTimestamp time.Time

	// Visits holds the monitored journeys. For stop monitoring each
	// element is one expected arrival at the stop; for vehicle
	// monitoring each element is one position report.
	Visits []Visit
}

// Visit is a single monitored journey entry.
type Visit struct {
	// RecordedAt is when the underlying observation was recorded.
	RecordedAt time.Time

	// Journey describes the vehicle journey: line, direction,
	// destination, position and the monitored call at the stop.
	Journey Journey
}

// Journey is the SIRI MonitoredVehicleJourney block, flattened to the
// fields this module consumes.
type Journey struct {
	LineRef           string
	PublishedLineName string
	DirectionRef      string
	DestinationName   string
	VehicleRef        string
	Occupancy         string
	VehicleMode       string

	// Latitude/Longitude are zero when the feed carries no position.
	Latitude  float64
	Longitude float64
	Bearing   float64

	Call Call
}

// Call is the SIRI MonitoredCall block: the journey's relationship to the
// monitored stop.
type Call struct {
	StopPointRef      string
	StopPointName     string
	AimedArrival      time.Time
	ExpectedArrival   time.Time
	ExpectedDeparture time.Time
}

// ArrivalTime returns the best available arrival estimate for the call:
// the expected time when present, otherwise the aimed (scheduled) time.
// Returns the zero time when neither is known.
func (c Call) ArrivalTime() time.Time {
	if !c.ExpectedArrival.IsZero() {
		return c.ExpectedArrival
	}
	return c.AimedArrival
}

// wire types
//
// The 511 API serializes single-element collections as bare objects rather
// than one-element arrays, and encodes coordinates as strings. The wire
// types absorb both quirks before conversion to the exported types.

type wireEnvelope struct {
	ServiceDelivery wireServiceDelivery `json:"ServiceDelivery"`
}

type wireServiceDelivery struct {
	ResponseTimestamp         string               `json:"ResponseTimestamp"`
	StopMonitoringDelivery    *wireStopDelivery    `json:"StopMonitoringDelivery"`
	VehicleMonitoringDelivery *wireVehicleDelivery `json:"VehicleMonitoringDelivery"`
}

type wireStopDelivery struct {
	ResponseTimestamp  string          `json:"ResponseTimestamp"`
	MonitoredStopVisit oneOrMany       `json:"MonitoredStopVisit"`
	ErrorCondition     json.RawMessage `json:"ErrorCondition"`
}

type wireVehicleDelivery struct {
	ResponseTimestamp string    `json:"ResponseTimestamp"`
	VehicleActivity   oneOrMany `json:"VehicleActivity"`
}

type wireVisit struct {
	RecordedAtTime          string      `json:"RecordedAtTime"`
	MonitoredVehicleJourney wireJourney `json:"MonitoredVehicleJourney"`
}

type wireJourney struct {
	LineRef           string       `json:"LineRef"`
	PublishedLineName flexString   `json:"PublishedLineName"`
	DirectionRef      string       `json:"DirectionRef"`
	DestinationName   flexString   `json:"DestinationName"`
	VehicleRef        string       `json:"VehicleRef"`
	Occupancy         string       `json:"Occupancy"`
	VehicleMode       string       `json:"VehicleMode"`
	Bearing           flexFloat    `json:"Bearing"`
	VehicleLocation   wireLocation `json:"VehicleLocation"`
	MonitoredCall     wireCall     `json:"MonitoredCall"`
}

type wireLocation struct {
	Latitude  flexFloat `json:"Latitude"`
	Longitude flexFloat `json:"Longitude"`
}

type wireCall struct {
	StopPointRef          string     `json:"StopPointRef"`
	StopPointName         flexString `json:"StopPointName"`
	AimedArrivalTime      string     `json:"AimedArrivalTime"`
	ExpectedArrivalTime   string     `json:"ExpectedArrivalTime"`
	ExpectedDepartureTime string     `json:"ExpectedDepartureTime"`
}

// oneOrMany decodes a JSON value that may be either a single visit object
// or an array of visit objects.
type oneOrMany []wireVisit

func (o *oneOrMany) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*o = nil
		return nil
	}
	if b[0] == '[' {
		var many []wireVisit
		if err := json.Unmarshal(b, &many); err != nil {
			return err
		}
		*o = many
		return nil
	}
	var one wireVisit
	if err := json.Unmarshal(b, &one); err != nil {
		return err
	}
	*o = oneOrMany{one}
	return nil
}

// flexFloat decodes a number that may arrive as a JSON number or a string.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		if s == "" {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		*f = flexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*f = flexFloat(v)
	return nil
}

// flexString decodes a value that may arrive as a string, a number, or a
// list of strings (511 occasionally returns multi-valued names).
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	switch b[0] {
	case '"':
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
	case '[':
		var v []string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		if len(v) > 0 {
			*s = flexString(v[0])
		} else {
			*s = ""
		}
	default:
		*s = flexString(bytes.Trim(b, `"`))
	}
	return nil
}

// parseTime parses the RFC3339 timestamps 511 emits. Returns the zero time
// for empty or malformed values rather than failing the whole delivery.
func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (v wireVisit) toVisit() Visit {
	j := v.MonitoredVehicleJourney
	return Visit{
		RecordedAt: parseTime(v.RecordedAtTime),
		Journey: Journey{
			LineRef:           j.LineRef,
			PublishedLineName: string(j.PublishedLineName),
			DirectionRef:      j.DirectionRef,
			DestinationName:   string(j.DestinationName),
			VehicleRef:        j.VehicleRef,
			Occupancy:         j.Occupancy,
			VehicleMode:       j.VehicleMode,
			Latitude:          float64(j.VehicleLocation.Latitude),
			Longitude:         float64(j.VehicleLocation.Longitude),
			Bearing:           float64(j.Bearing),
			Call: Call{
				StopPointRef:      j.MonitoredCall.StopPointRef,
				StopPointName:     string(j.MonitoredCall.StopPointName),
				AimedArrival:      parseTime(j.MonitoredCall.AimedArrivalTime),
				ExpectedArrival:   parseTime(j.MonitoredCall.ExpectedArrivalTime),
				ExpectedDeparture: parseTime(j.MonitoredCall.ExpectedDepartureTime),
			},
		},
	}
}

// decodeStopDelivery converts a raw StopMonitoring body into a Delivery.
func decodeStopDelivery(body []byte) (*Delivery, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	d := &Delivery{ResponseTimestamp: parseTime(env.ServiceDelivery.ResponseTimestamp)}
	sm := env.ServiceDelivery.StopMonitoringDelivery
	if sm == nil {
		return d, nil
	}
	if ts := parseTime(sm.ResponseTimestamp); !ts.IsZero() {
		d.ResponseTimestamp = ts
	}
	d.Visits = make([]Visit, 0, len(sm.MonitoredStopVisit))
	for _, v := range sm.MonitoredStopVisit {
		d.Visits = append(d.Visits, v.toVisit())
	}
	return d, nil
}

// decodeVehicleDelivery converts a raw VehicleMonitoring body into a Delivery.
func decodeVehicleDelivery(body []byte) (*Delivery, error) {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}
	d := &Delivery{ResponseTimestamp: parseTime(env.ServiceDelivery.ResponseTimestamp)}
	vm := env.ServiceDelivery.VehicleMonitoringDelivery
	if vm == nil {
		return d, nil
	}
	if ts := parseTime(vm.ResponseTimestamp); !ts.IsZero() {
		d.ResponseTimestamp = ts
	}
	d.Visits = make([]Visit, 0, len(vm.VehicleActivity))
	for _, v := range vm.VehicleActivity {
		d.Visits = append(d.Visits, v.toVisit())
	}
	return d, nil
}
