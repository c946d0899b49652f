// Package flightplan reads simulator flight plan (.PLN) documents.
package flightplan

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
	"golang.org/x/net/html/charset"

	"github.com/eytandecker/flightsim-presence/pkg/types"
)

const metersPerNM = 1852.0

// ErrInvalidPosition is returned for a WorldPosition that cannot be parsed.
var ErrInvalidPosition = errors.New("flightplan: invalid world position")

type document struct {
	XMLName    xml.Name   `xml:"SimBase.Document"`
	FlightPlan flightPlan `xml:"FlightPlan.FlightPlan"`
}

type flightPlan struct {
	Title         string        `xml:"Title"`
	CruisingAlt   float64       `xml:"CruisingAlt"`
	DepartureID   string        `xml:"DepartureID"`
	DestinationID string        `xml:"DestinationID"`
	Waypoints     []atcWaypoint `xml:"ATCWaypoint"`
}

type atcWaypoint struct {
	ID            string `xml:"id,attr"`
	Type          string `xml:"ATCWaypointType"`
	WorldPosition string `xml:"WorldPosition"`
}

// ParseFile reads and parses the document at path. A missing file yields an
// error matching fs.ErrNotExist.
func ParseFile(path string) (*types.FlightPlanData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

// Parse decodes a flight plan document. Waypoints keep document order.
func Parse(r io.Reader) (*types.FlightPlanData, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charset.NewReaderLabel

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("flightplan: decode: %w", err)
	}

	fp := doc.FlightPlan
	data := &types.FlightPlanData{
		Title:            strings.TrimSpace(fp.Title),
		DepartureID:      strings.TrimSpace(fp.DepartureID),
		DestinationID:    strings.TrimSpace(fp.DestinationID),
		CruisingAltitude: fp.CruisingAlt,
		Waypoints:        make([]types.Waypoint, 0, len(fp.Waypoints)),
	}
	for _, w := range fp.Waypoints {
		pos, alt, err := ParseWorldPosition(w.WorldPosition)
		if err != nil {
			return nil, fmt.Errorf("flightplan: waypoint %q: %w", w.ID, err)
		}
		data.Waypoints = append(data.Waypoints, types.Waypoint{
			ID:       w.ID,
			Type:     strings.TrimSpace(w.Type),
			Position: pos,
			Altitude: alt,
		})
	}
	data.RouteDistanceNM = RouteDistanceNM(data.Waypoints)
	return data, nil
}

// RouteDistanceNM is the great-circle length of the route in nautical miles.
func RouteDistanceNM(wps []types.Waypoint) float64 {
	total := 0.0
	for i := 1; i < len(wps); i++ {
		total += geo.DistanceHaversine(wps[i-1].Position, wps[i].Position)
	}
	return total / metersPerNM
}

var worldPositionRe = regexp.MustCompile(
	`^([NS])(\d+(?:\.\d+)?)[*°]\s*(\d+(?:\.\d+)?)'\s*(\d+(?:\.\d+)?)",\s*` +
		`([WE])(\d+(?:\.\d+)?)[*°]\s*(\d+(?:\.\d+)?)'\s*(\d+(?:\.\d+)?)"` +
		`(?:,\s*([+-]\d+(?:\.\d+)?))?$`)

// ParseWorldPosition parses the simulator's degrees/minutes/seconds form,
// e.g. `N47° 26' 56.00",W122° 18' 31.00",+000433.00`. The altitude part is
// optional and returned in feet.
func ParseWorldPosition(s string) (orb.Point, float64, error) {
	m := worldPositionRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return orb.Point{}, 0, fmt.Errorf("%w: %q", ErrInvalidPosition, s)
	}

	lat := dms(m[2], m[3], m[4])
	if m[1] == "S" {
		lat = -lat
	}
	lon := dms(m[6], m[7], m[8])
	if m[5] == "W" {
		lon = -lon
	}

	var alt float64
	if m[9] != "" {
		alt, _ = strconv.ParseFloat(m[9], 64)
	}
	return orb.Point{lon, lat}, alt, nil
}

func dms(deg, minutes, seconds string) float64 {
	d, _ := strconv.ParseFloat(deg, 64)
	m, _ := strconv.ParseFloat(minutes, 64)
	s, _ := strconv.ParseFloat(seconds, 64)
	return d + m/60.0 + s/3600.0
}
