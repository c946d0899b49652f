package simconnect

import (
	"errors"
	"fmt"
)

var (
	ErrNotConnected      = errors.New("simconnect: not connected")
	ErrAlreadyConnected  = errors.New("simconnect: already connected")
	ErrConnectionClosed  = errors.New("simconnect: connection closed")
	ErrTimeout           = errors.New("simconnect: connection timeout")
	ErrMalformedRecord   = errors.New("simconnect: malformed record")
	ErrConnectionRefused = errors.New("simconnect: connection refused")
)

var exceptionNames = [...]string{
	"NONE",
	"ERROR",
	"SIZE_MISMATCH",
	"UNRECOGNIZED_ID",
	"UNOPENED",
	"VERSION_MISMATCH",
	"TOO_MANY_GROUPS",
	"NAME_UNRECOGNIZED",
	"TOO_MANY_EVENT_NAMES",
	"EVENT_ID_DUPLICATE",
	"TOO_MANY_MAPS",
	"TOO_MANY_OBJECTS",
	"TOO_MANY_REQUESTS",
	"WEATHER_INVALID_PORT",
	"WEATHER_INVALID_METAR",
	"WEATHER_UNABLE_TO_GET_OBSERVATION",
	"WEATHER_UNABLE_TO_CREATE_STATION",
	"WEATHER_UNABLE_TO_REMOVE_STATION",
	"INVALID_DATA_TYPE",
	"INVALID_DATA_SIZE",
	"DATA_ERROR",
	"INVALID_ARRAY",
	"CREATE_OBJECT_FAILED",
	"LOAD_FLIGHTPLAN_FAILED",
	"OPERATION_INVALID_FOR_OBJECT_TYPE",
	"ILLEGAL_OPERATION",
	"ALREADY_SUBSCRIBED",
	"INVALID_ENUM",
	"DEFINITION_ERROR",
	"DUPLICATE_ID",
	"DATUM_ID",
	"OUT_OF_BOUNDS",
	"ALREADY_CREATED",
	"OBJECT_OUTSIDE_REALITY_BUBBLE",
	"OBJECT_CONTAINER",
	"OBJECT_AI",
	"OBJECT_ATC",
	"OBJECT_SCHEDULE",
}

// ExceptionName maps a SimConnect exception code to its symbolic name.
func ExceptionName(code uint32) string {
	if int(code) < len(exceptionNames) {
		return exceptionNames[code]
	}
	return fmt.Sprintf("UNKNOWN_EXCEPTION_%d", code)
}
