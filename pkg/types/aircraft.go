package types

import "github.com/paulmach/orb"

// AircraftStatus is the continuously pushed flight status of the user aircraft.
type AircraftStatus struct {
	Latitude            float64
	Longitude           float64
	Altitude            float64 // feet MSL
	AltitudeAboveGround float64 // feet AGL
	Bank                float64
	TrueHeading         float64
	Heading             float64 // magnetic
	GroundAltitude      float64 // meters
	GroundSpeed         float64 // knots
	IndicatedAirSpeed   float64 // knots
	VerticalSpeed       float64 // feet per minute
	FuelTotalQuantity   float64 // gallons
	WindVelocity        float64 // feet per second
	WindDirection       float64
	IsOnGround          bool
	IsAutopilotOn       bool
	Transponder         string // squawk, zero-padded to 4 digits
	FrequencyCom1       int32  // kHz
	FrequencyCom2       int32  // kHz
}

// AircraftData is the static description of the loaded aircraft.
type AircraftData struct {
	Type                 string
	Model                string
	Title                string
	EstimatedCruiseSpeed float64 // knots
}

// AircraftPosition is the reduced position record sent after a position change.
type AircraftPosition struct {
	Latitude  float64
	Longitude float64
	Altitude  float64
}

// Waypoint is one entry of a flight plan route, in route order.
type Waypoint struct {
	ID       string
	Type     string
	Position orb.Point // [lon, lat]
	Altitude float64   // feet
}

// FlightPlanData is the active flight plan loaded in the simulator.
type FlightPlanData struct {
	Title            string
	DepartureID      string
	DestinationID    string
	CruisingAltitude float64
	Waypoints        []Waypoint
	RouteDistanceNM  float64
}
