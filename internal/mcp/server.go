package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/eytandecker/flightsim-presence/internal/simconnect"
	"github.com/eytandecker/flightsim-presence/internal/state"
	"github.com/eytandecker/flightsim-presence/pkg/types"
)

// DefaultRequestTimeout bounds how long a tool waits for the simulator.
const DefaultRequestTimeout = 10 * time.Second

// StatusSource is the subset of state.Manager used by the MCP server.
type StatusSource interface {
	Status() (types.AircraftStatus, error)
	Connected() bool
	LastUpdated() time.Time
	Position() (types.AircraftPosition, bool)
	Aircraft() (types.AircraftData, bool)
	FlightPlan() (plan *types.FlightPlanData, known bool)
}

// Requester issues one-shot simulator requests. *simconnect.Connector implements it.
type Requester interface {
	RequestAircraftData(ctx context.Context) (*simconnect.Pending[types.AircraftData], error)
	RequestFlightPlan(ctx context.Context) (*simconnect.Pending[*types.FlightPlanData], error)
}

// Server wraps the MCP SDK server and exposes simulator data as tools.
type Server struct {
	sdk            *mcpsdk.Server
	state          StatusSource
	requester      Requester
	requestTimeout time.Duration
}

// NewServer creates a Server and registers its tools. A non-positive timeout
// uses DefaultRequestTimeout.
func NewServer(src StatusSource, req Requester, requestTimeout time.Duration) *Server {
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	s := &Server{
		sdk: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    "flightsim-presence",
			Version: "1.0.0",
		}, nil),
		state:          src,
		requester:      req,
		requestTimeout: requestTimeout,
	}

	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_aircraft_status",
		Description: "Returns the live flight status of the user aircraft: position, altitude, speeds and heading.",
	}, s.handleGetAircraftStatus)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_aircraft_data",
		Description: "Returns the static description of the user aircraft: ATC type, model, title and cruise speed.",
	}, s.handleGetAircraftData)
	mcpsdk.AddTool(s.sdk, &mcpsdk.Tool{
		Name:        "get_flight_plan",
		Description: "Returns the flight plan loaded in the simulator, with its waypoints and route length.",
	}, s.handleGetFlightPlan)
	return s
}

// Run starts the MCP server over stdio and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	return s.sdk.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect connects the server to an existing transport (used in tests).
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.sdk.Connect(ctx, t, nil)
}

type getStatusInput struct {
	IncludeAttitude bool `json:"include_attitude,omitempty"`
	IncludeRadios   bool `json:"include_radios,omitempty"`
}

// AircraftStatusResponse is the JSON payload of get_aircraft_status.
type AircraftStatusResponse struct {
	Latitude         float64           `json:"latitude"`
	Longitude        float64           `json:"longitude"`
	AltitudeMSL      float64           `json:"altitude_msl_ft"`
	AltitudeAGL      float64           `json:"altitude_agl_ft"`
	HeadingTrue      float64           `json:"heading_true_deg"`
	HeadingMag       float64           `json:"heading_mag_deg"`
	IndicatedSpeed   float64           `json:"indicated_speed_kts"`
	GroundSpeed      float64           `json:"ground_speed_kts"`
	VerticalSpeed    float64           `json:"vertical_speed_fpm"`
	OnGround         bool              `json:"on_ground"`
	AutopilotEngaged bool              `json:"autopilot_engaged"`
	FuelTotalGallons float64           `json:"fuel_total_gal"`
	WindSpeed        float64           `json:"wind_speed"`
	WindDirection    float64           `json:"wind_direction_deg"`
	Bank             *float64          `json:"bank_deg,omitempty"`
	Transponder      string            `json:"transponder,omitempty"`
	Com1FrequencyKHz *int32            `json:"com1_khz,omitempty"`
	Com2FrequencyKHz *int32            `json:"com2_khz,omitempty"`
	LastPosition     *PositionResponse `json:"last_position,omitempty"`
	UpdatedAt        string            `json:"updated_at,omitempty"`
	Timestamp        string            `json:"timestamp"`
}

// PositionResponse is the fix reported after the simulator's last
// PositionChanged notification.
type PositionResponse struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude_ft"`
}

// AircraftDataResponse is the JSON payload of get_aircraft_data.
type AircraftDataResponse struct {
	ATCType          string  `json:"atc_type"`
	ATCModel         string  `json:"atc_model"`
	Title            string  `json:"title"`
	CruiseSpeedKnots float64 `json:"estimated_cruise_speed_kts"`
	Cached           bool    `json:"cached,omitempty"`
	Timestamp        string  `json:"timestamp"`
}

// WaypointResponse is one waypoint of a FlightPlanResponse.
type WaypointResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Altitude  float64 `json:"altitude_ft"`
}

// FlightPlanResponse is the JSON payload of get_flight_plan.
type FlightPlanResponse struct {
	Available        bool               `json:"available"`
	Title            string             `json:"title,omitempty"`
	Departure        string             `json:"departure,omitempty"`
	Destination      string             `json:"destination,omitempty"`
	CruisingAltitude float64            `json:"cruising_altitude_ft,omitempty"`
	RouteDistanceNM  float64            `json:"route_distance_nm,omitempty"`
	Waypoints        []WaypointResponse `json:"waypoints,omitempty"`
	Cached           bool               `json:"cached,omitempty"`
	Timestamp        string             `json:"timestamp"`
}

// SimulatorUnavailableResponse is returned when data cannot be provided.
type SimulatorUnavailableResponse struct {
	Available   bool   `json:"available"`
	Error       string `json:"error"`
	Code        string `json:"code"`
	Recoverable bool   `json:"recoverable"`
	Suggestion  string `json:"suggestion"`
	Timestamp   string `json:"timestamp"`
}

func (s *Server) handleGetAircraftStatus(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	input getStatusInput,
) (*mcpsdk.CallToolResult, any, error) {
	status, err := s.state.Status()
	if err != nil {
		if !s.state.Connected() {
			err = simconnect.ErrNotConnected
		}
		return s.errorResult(err), nil, nil
	}

	resp := AircraftStatusResponse{
		Latitude:         status.Latitude,
		Longitude:        status.Longitude,
		AltitudeMSL:      status.Altitude,
		AltitudeAGL:      status.AltitudeAboveGround,
		HeadingTrue:      status.TrueHeading,
		HeadingMag:       status.Heading,
		IndicatedSpeed:   status.IndicatedAirSpeed,
		GroundSpeed:      status.GroundSpeed,
		VerticalSpeed:    status.VerticalSpeed,
		OnGround:         status.IsOnGround,
		AutopilotEngaged: status.IsAutopilotOn,
		FuelTotalGallons: status.FuelTotalQuantity,
		WindSpeed:        status.WindVelocity,
		WindDirection:    status.WindDirection,
		Timestamp:        timestamp(),
	}
	if updated := s.state.LastUpdated(); !updated.IsZero() {
		resp.UpdatedAt = updated.UTC().Format(time.RFC3339)
	}
	if pos, ok := s.state.Position(); ok {
		resp.LastPosition = &PositionResponse{
			Latitude:  pos.Latitude,
			Longitude: pos.Longitude,
			Altitude:  pos.Altitude,
		}
	}
	if input.IncludeAttitude {
		b := status.Bank
		resp.Bank = &b
	}
	if input.IncludeRadios {
		c1, c2 := status.FrequencyCom1, status.FrequencyCom2
		resp.Transponder = status.Transponder
		resp.Com1FrequencyKHz = &c1
		resp.Com2FrequencyKHz = &c2
	}
	return jsonResult(resp)
}

func (s *Server) handleGetAircraftData(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ struct{},
) (*mcpsdk.CallToolResult, any, error) {
	data, err := s.fetchAircraftData(ctx)
	cached := false
	if err != nil {
		last, ok := s.state.Aircraft()
		if !ok || !disconnected(err) {
			return s.errorResult(err), nil, nil
		}
		data, cached = last, true
	}

	return jsonResult(AircraftDataResponse{
		ATCType:          data.Type,
		ATCModel:         data.Model,
		Title:            data.Title,
		CruiseSpeedKnots: data.EstimatedCruiseSpeed,
		Cached:           cached,
		Timestamp:        timestamp(),
	})
}

func (s *Server) fetchAircraftData(ctx context.Context) (types.AircraftData, error) {
	if s.requester == nil {
		return types.AircraftData{}, simconnect.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	p, err := s.requester.RequestAircraftData(ctx)
	if err != nil {
		return types.AircraftData{}, err
	}
	return p.Wait(ctx)
}

func (s *Server) handleGetFlightPlan(
	ctx context.Context,
	req *mcpsdk.CallToolRequest,
	_ struct{},
) (*mcpsdk.CallToolResult, any, error) {
	plan, err := s.fetchFlightPlan(ctx)
	cached := false
	if err != nil {
		last, known := s.state.FlightPlan()
		if !known || !disconnected(err) {
			return s.errorResult(err), nil, nil
		}
		plan, cached = last, true
	}

	resp := FlightPlanResponse{Cached: cached, Timestamp: timestamp()}
	if plan != nil {
		resp.Available = true
		resp.Title = plan.Title
		resp.Departure = plan.DepartureID
		resp.Destination = plan.DestinationID
		resp.CruisingAltitude = plan.CruisingAltitude
		resp.RouteDistanceNM = plan.RouteDistanceNM
		resp.Waypoints = make([]WaypointResponse, 0, len(plan.Waypoints))
		for _, w := range plan.Waypoints {
			resp.Waypoints = append(resp.Waypoints, WaypointResponse{
				ID:        w.ID,
				Type:      w.Type,
				Latitude:  w.Position.Lat(),
				Longitude: w.Position.Lon(),
				Altitude:  w.Altitude,
			})
		}
	}
	return jsonResult(resp)
}

func (s *Server) fetchFlightPlan(ctx context.Context) (*types.FlightPlanData, error) {
	if s.requester == nil {
		return nil, simconnect.ErrNotConnected
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	p, err := s.requester.RequestFlightPlan(ctx)
	if err != nil {
		return nil, err
	}
	return p.Wait(ctx)
}

// disconnected reports whether err means no simulator session is available,
// in which case the last known data is served instead.
func disconnected(err error) bool {
	return errors.Is(err, simconnect.ErrNotConnected) || errors.Is(err, simconnect.ErrConnectionClosed)
}

func jsonResult(v any) (*mcpsdk.CallToolResult, any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, nil, err
	}
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
	}, nil, nil
}

func timestamp() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func (s *Server) errorResult(err error) *mcpsdk.CallToolResult {
	resp := SimulatorUnavailableResponse{
		Available: false,
		Error:     err.Error(),
		Timestamp: timestamp(),
	}

	var simErr *types.SimulatorError
	switch {
	case errors.Is(err, state.ErrStale):
		resp.Code = "DATA_STALE"
		resp.Recoverable = true
		resp.Suggestion = "Wait for the simulator to send fresh data."
	case errors.Is(err, simconnect.ErrNotConnected), errors.Is(err, simconnect.ErrConnectionClosed):
		resp.Code = "SIMULATOR_NOT_CONNECTED"
		resp.Recoverable = true
		resp.Suggestion = "Ensure Microsoft Flight Simulator is running."
	case errors.Is(err, context.DeadlineExceeded):
		resp.Code = "REQUEST_TIMEOUT"
		resp.Recoverable = true
		resp.Suggestion = "The simulator did not answer in time; try again."
	case errors.As(err, &simErr):
		resp.Code = "SIMULATOR_ERROR"
		resp.Recoverable = simErr.Recoverable
		resp.Suggestion = "Check application logs for details."
	default:
		resp.Code = "UNKNOWN_ERROR"
		resp.Recoverable = false
		resp.Suggestion = "Check application logs for details."
	}

	data, _ := json.Marshal(resp)
	return &mcpsdk.CallToolResult{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: string(data)}},
		IsError: true,
	}
}
