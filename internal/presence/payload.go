package presence

import (
	"fmt"
	"math"
	"time"

	"github.com/eytandecker/flightsim-presence/pkg/types"
)

const (
	// DefaultLargeImageKey is the presence asset shown next to the activity.
	DefaultLargeImageKey = "icon_large"
	// DefaultPreparingText is the image tooltip while waiting for a position fix.
	DefaultPreparingText = "Waiting for position"

	preparingState = "Preflight..."
	onGroundState  = "Currently on the Ground"
)

// Payload is one presence update.
type Payload struct {
	Details        string
	State          string
	LargeImageKey  string
	LargeImageText string
	// Start anchors the elapsed-time display. Nil hides it.
	Start *time.Time
}

// Place is what is known about the aircraft's surroundings. Any field may be
// empty.
type Place struct {
	ICAO    string
	Airport string
	Country string
}

// Compose builds the in-flight payload for status.
func Compose(callsign string, status types.AircraftStatus, place Place, start *time.Time, imageKey string) Payload {
	tooltip := callsign
	details := ""
	if place.Airport != "" {
		tooltip += " Near " + place.Airport
	}
	if place.ICAO != "" {
		details += " Near " + place.ICAO
		tooltip += " (" + place.ICAO + ")"
	}
	if place.Country != "" {
		details += ", " + place.Country
		tooltip += " in " + place.Country
	}

	return Payload{
		Details:        details,
		State:          flightState(status),
		LargeImageKey:  imageKey,
		LargeImageText: tooltip,
		Start:          start,
	}
}

// Preparing is the payload shown before the simulator has a position fix.
func Preparing(imageKey, text string) Payload {
	return Payload{
		State:          preparingState,
		LargeImageKey:  imageKey,
		LargeImageText: text,
	}
}

func flightState(s types.AircraftStatus) string {
	if s.IsOnGround {
		return onGroundState
	}
	return fmt.Sprintf("Alt %dft, %dkt", int64(math.RoundToEven(s.Altitude)), int64(math.RoundToEven(s.IndicatedAirSpeed)))
}

// noFix reports whether lat/lon lie in the box the simulator reports before
// it has placed the aircraft.
func noFix(lat, lon float64) bool {
	return math.Abs(lat) < 0.02 && math.Abs(lon) < 0.02
}
