package simconnect

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/eytandecker/flightsim-presence/pkg/types"
)

// RecordSchema is a versioned, fixed-layout data definition. The order of Vars
// determines the packed byte layout of records received for it.
type RecordSchema struct {
	Name    string
	Version int
	DefID   uint32
	Vars    []SimVarDef
}

// Size returns the packed record size in bytes.
func (s RecordSchema) Size() int {
	n := 0
	for _, v := range s.Vars {
		n += v.Size()
	}
	return n
}

var AircraftDataSchema = RecordSchema{
	Name:    "aircraft_data",
	Version: 1,
	DefID:   DefIDAircraftData,
	Vars:    []SimVarDef{ATCType, ATCModel, Title, EstimatedCruiseSpeed},
}

var FlightStatusSchema = RecordSchema{
	Name:    "flight_status",
	Version: 1,
	DefID:   DefIDFlightStatus,
	Vars: []SimVarDef{
		PlaneLatitude, PlaneLongitude, PlaneAltitude, PlaneAltAboveGround,
		PlaneBank, PlaneHeadingTrue, PlaneHeadingMag, GroundAltitude,
		GroundVelocity, AirspeedIndicated, VerticalSpeed, FuelTotalQuantity,
		AmbientWindVelocity, AmbientWindDir,
		SimOnGround, AutopilotMaster, TransponderCode, ComActiveFreq1, ComActiveFreq2,
	},
}

var AircraftPositionSchema = RecordSchema{
	Name:    "aircraft_position",
	Version: 1,
	DefID:   DefIDAircraftPosition,
	Vars:    []SimVarDef{PlaneLatitude, PlaneLongitude, PlaneAltitude},
}

// Schemas lists every data group registered on connect, in registration order.
var Schemas = []RecordSchema{AircraftDataSchema, FlightStatusSchema, AircraftPositionSchema}

// decodeRecord splits data into one typed value per schema var.
func decodeRecord(s RecordSchema, data []byte) ([]any, error) {
	if size := s.Size(); len(data) < size {
		return nil, fmt.Errorf("%w: %s v%d: got %d bytes, need %d", ErrMalformedRecord, s.Name, s.Version, len(data), size)
	}
	vals := make([]any, len(s.Vars))
	offset := 0
	for i, v := range s.Vars {
		val, err := ParseSimVarValue(data[offset:], v.DataType)
		if err != nil {
			return nil, fmt.Errorf("%w: %s field %q: %v", ErrMalformedRecord, s.Name, v.Name, err)
		}
		vals[i] = val
		offset += v.Size()
	}
	return vals, nil
}

// DecodeAircraftData decodes an AircraftDataSchema record.
func DecodeAircraftData(data []byte) (types.AircraftData, error) {
	v, err := decodeRecord(AircraftDataSchema, data)
	if err != nil {
		return types.AircraftData{}, err
	}
	return types.AircraftData{
		Type:                 v[0].(string),
		Model:                v[1].(string),
		Title:                v[2].(string),
		EstimatedCruiseSpeed: v[3].(float64),
	}, nil
}

// DecodeFlightStatus decodes a FlightStatusSchema record.
func DecodeFlightStatus(data []byte) (types.AircraftStatus, error) {
	v, err := decodeRecord(FlightStatusSchema, data)
	if err != nil {
		return types.AircraftStatus{}, err
	}
	f := func(i int) float64 { return v[i].(float64) }
	n := func(i int) int32 { return v[i].(int32) }
	return types.AircraftStatus{
		Latitude:            f(0),
		Longitude:           f(1),
		Altitude:            f(2),
		AltitudeAboveGround: f(3),
		Bank:                f(4),
		TrueHeading:         f(5),
		Heading:             f(6),
		GroundAltitude:      f(7),
		GroundSpeed:         f(8),
		IndicatedAirSpeed:   f(9),
		VerticalSpeed:       f(10),
		FuelTotalQuantity:   f(11),
		WindVelocity:        f(12),
		WindDirection:       f(13),
		IsOnGround:          n(14) == 1,
		IsAutopilotOn:       n(15) == 1,
		Transponder:         padSquawk(n(16)),
		FrequencyCom1:       n(17),
		FrequencyCom2:       n(18),
	}, nil
}

// DecodeAircraftPosition decodes an AircraftPositionSchema record.
func DecodeAircraftPosition(data []byte) (types.AircraftPosition, error) {
	v, err := decodeRecord(AircraftPositionSchema, data)
	if err != nil {
		return types.AircraftPosition{}, err
	}
	return types.AircraftPosition{
		Latitude:  v[0].(float64),
		Longitude: v[1].(float64),
		Altitude:  v[2].(float64),
	}, nil
}

func padSquawk(code int32) string {
	s := strconv.Itoa(int(code))
	if len(s) >= 4 {
		return s
	}
	return strings.Repeat("0", 4-len(s)) + s
}
