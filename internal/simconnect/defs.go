package simconnect

// Data definition IDs, one per registered record schema.
const (
	DefIDAircraftData     uint32 = 1
	DefIDFlightStatus     uint32 = 2
	DefIDAircraftPosition uint32 = 3
)

// Request IDs used to correlate inbound data with the request that produced it.
const (
	ReqIDAircraftData     uint32 = 2
	ReqIDFlightStatus     uint32 = 3
	ReqIDAircraftPosition uint32 = 4
	ReqIDFlightPlan       uint32 = 5
)

// Client-side system event IDs.
const (
	EventIDPositionChanged uint32 = 2
)

const (
	ObjectIDUser      uint32 = 0 // SIMCONNECT_OBJECT_ID_USER
	SimObjectTypeUser uint32 = 0 // SIMCONNECT_SIMOBJECT_TYPE_USER

	SystemStateFlightPlan      = "FlightPlan"
	SystemEventPositionChanged = "PositionChanged"
)

// Period controls how often subscribed data is sent.
type Period uint32

const (
	PeriodNever Period = iota
	PeriodOnce
	PeriodVisualFrame
	PeriodSimFrame
	PeriodSecond
)

// flightPlanPending is the placeholder path the simulator reports before a
// flight plan file has been written.
const flightPlanPending = ".PLN"
