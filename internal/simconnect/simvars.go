package simconnect

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
)

// DataType represents the SimConnect data type for a SimVar value.
type DataType int

const (
	DataTypeFloat64 DataType = iota
	DataTypeInt32
	DataTypeString32
	DataTypeString256
)

// Size returns the packed width of the data type in bytes.
func (dt DataType) Size() int {
	switch dt {
	case DataTypeFloat64:
		return 8
	case DataTypeInt32:
		return 4
	case DataTypeString32:
		return 32
	case DataTypeString256:
		return 256
	default:
		return 0
	}
}

// SimVarDef defines a SimConnect simulation variable.
type SimVarDef struct {
	Name     string
	Unit     string
	DataType DataType
}

// Size returns the packed width of the variable in bytes.
func (d SimVarDef) Size() int {
	return d.DataType.Size()
}

// Predefined SimVar definitions.
var (
	ATCType              = SimVarDef{Name: "ATC TYPE", DataType: DataTypeString32}
	ATCModel             = SimVarDef{Name: "ATC MODEL", DataType: DataTypeString32}
	Title                = SimVarDef{Name: "TITLE", DataType: DataTypeString256}
	EstimatedCruiseSpeed = SimVarDef{Name: "ESTIMATED CRUISE SPEED", Unit: "knots", DataType: DataTypeFloat64}

	PlaneLatitude       = SimVarDef{Name: "PLANE LATITUDE", Unit: "degrees", DataType: DataTypeFloat64}
	PlaneLongitude      = SimVarDef{Name: "PLANE LONGITUDE", Unit: "degrees", DataType: DataTypeFloat64}
	PlaneAltitude       = SimVarDef{Name: "PLANE ALTITUDE", Unit: "feet", DataType: DataTypeFloat64}
	PlaneAltAboveGround = SimVarDef{Name: "PLANE ALT ABOVE GROUND", Unit: "feet", DataType: DataTypeFloat64}
	PlaneBank           = SimVarDef{Name: "PLANE BANK DEGREES", Unit: "degrees", DataType: DataTypeFloat64}
	PlaneHeadingTrue    = SimVarDef{Name: "PLANE HEADING DEGREES TRUE", Unit: "degrees", DataType: DataTypeFloat64}
	PlaneHeadingMag     = SimVarDef{Name: "PLANE HEADING DEGREES MAGNETIC", Unit: "degrees", DataType: DataTypeFloat64}
	GroundAltitude      = SimVarDef{Name: "GROUND ALTITUDE", Unit: "meters", DataType: DataTypeFloat64}
	GroundVelocity      = SimVarDef{Name: "GROUND VELOCITY", Unit: "knots", DataType: DataTypeFloat64}
	AirspeedIndicated   = SimVarDef{Name: "AIRSPEED INDICATED", Unit: "knots", DataType: DataTypeFloat64}
	VerticalSpeed       = SimVarDef{Name: "VERTICAL SPEED", Unit: "feet per minute", DataType: DataTypeFloat64}
	FuelTotalQuantity   = SimVarDef{Name: "FUEL TOTAL QUANTITY", Unit: "gallons", DataType: DataTypeFloat64}
	AmbientWindVelocity = SimVarDef{Name: "AMBIENT WIND VELOCITY", Unit: "feet per second", DataType: DataTypeFloat64}
	AmbientWindDir      = SimVarDef{Name: "AMBIENT WIND DIRECTION", Unit: "degrees", DataType: DataTypeFloat64}
	SimOnGround         = SimVarDef{Name: "SIM ON GROUND", Unit: "number", DataType: DataTypeInt32}
	AutopilotMaster     = SimVarDef{Name: "AUTOPILOT MASTER", Unit: "number", DataType: DataTypeInt32}
	TransponderCode     = SimVarDef{Name: "TRANSPONDER CODE:1", Unit: "hz", DataType: DataTypeInt32}
	ComActiveFreq1      = SimVarDef{Name: "COM ACTIVE FREQUENCY:1", Unit: "khz", DataType: DataTypeInt32}
	ComActiveFreq2      = SimVarDef{Name: "COM ACTIVE FREQUENCY:2", Unit: "khz", DataType: DataTypeInt32}
)

// ParseSimVarValue decodes raw bytes into a typed value based on the DataType.
// Strings are returned with their NUL padding stripped.
func ParseSimVarValue(data []byte, dt DataType) (any, error) {
	size := dt.Size()
	if size == 0 {
		return nil, fmt.Errorf("unsupported data type: %d", dt)
	}
	if len(data) < size {
		return nil, fmt.Errorf("data type %d requires %d bytes, got %d", dt, size, len(data))
	}
	switch dt {
	case DataTypeFloat64:
		return math.Float64frombits(binary.LittleEndian.Uint64(data[:8])), nil
	case DataTypeInt32:
		return int32(binary.LittleEndian.Uint32(data[:4])), nil //nolint:gosec // intentional reinterpretation of binary-encoded signed int32
	default:
		return cString(data[:size]), nil
	}
}

func cString(b []byte) string {
	if idx := bytes.IndexByte(b, 0); idx >= 0 {
		return string(b[:idx])
	}
	return string(b)
}

func float32FromBits(bits uint32) float32 {
	return math.Float32frombits(bits)
}
