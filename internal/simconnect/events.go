package simconnect

import "github.com/eytandecker/flightsim-presence/pkg/types"

// EventKind identifies what a connector Event carries.
type EventKind int

const (
	EventConnected EventKind = iota + 1
	EventClosed
	EventError
	EventAircraftStatus
	EventAircraftData
	EventAircraftPosition
	EventPositionChanged
	EventFlightPlan
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventClosed:
		return "closed"
	case EventError:
		return "error"
	case EventAircraftStatus:
		return "aircraft_status"
	case EventAircraftData:
		return "aircraft_data"
	case EventAircraftPosition:
		return "aircraft_position"
	case EventPositionChanged:
		return "position_changed"
	case EventFlightPlan:
		return "flight_plan"
	default:
		return "unknown"
	}
}

// Event is emitted by the Connector to its subscribers. Only the field
// matching Kind is populated.
type Event struct {
	Kind       EventKind
	Status     types.AircraftStatus
	Aircraft   types.AircraftData
	Position   types.AircraftPosition
	FlightPlan *types.FlightPlanData
	Err        error
}

// lossy reports whether the event may be dropped for a lagging subscriber.
// Push telemetry is superseded by the next tick; everything else is not.
func (e Event) lossy() bool {
	switch e.Kind {
	case EventAircraftStatus, EventAircraftPosition, EventPositionChanged:
		return true
	default:
		return false
	}
}
