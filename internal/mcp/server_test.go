package mcp_test

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"math"
	"sync"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	internalmcp "github.com/eytandecker/flightsim-presence/internal/mcp"
	"github.com/eytandecker/flightsim-presence/internal/simconnect"
	"github.com/eytandecker/flightsim-presence/internal/state"
	"github.com/eytandecker/flightsim-presence/pkg/types"
)

// mockStatus controls what the state source returns in tests.
type mockStatus struct {
	status    types.AircraftStatus
	err       error
	connected bool
	updated   time.Time
	position  *types.AircraftPosition
}

func (m *mockStatus) Status() (types.AircraftStatus, error) { return m.status, m.err }
func (m *mockStatus) Connected() bool { return m.connected }
func (m *mockStatus) LastUpdated() time.Time { return m.updated }

func (m *mockStatus) Position() (types.AircraftPosition, bool) {
	if m.position == nil {
		return types.AircraftPosition{}, false
	}
	return *m.position, true
}

func (m *mockStatus) Aircraft() (types.AircraftData, bool) { return types.AircraftData{}, false }

func (m *mockStatus) FlightPlan() (*types.FlightPlanData, bool) { return nil, false }

var sampleStatus = types.AircraftStatus{
	Latitude:            47.6062,
	Longitude:           -122.3321,
	Altitude:            35000.0,
	AltitudeAboveGround: 34950.0,
	TrueHeading:         270.0,
	Heading:             268.5,
	IndicatedAirSpeed:   450.0,
	GroundSpeed:         448.0,
	VerticalSpeed:       500.0,
	Bank:                -1.0,
	IsAutopilotOn:       true,
	Transponder:         "0452",
	FrequencyCom1:       118300,
	FrequencyCom2:       121500,
}

// fakeSimulator answers one-shot requests the way the simulator does.
type fakeSimulator struct {
	aircraft *types.AircraftData
	planPath string

	messages chan []byte
	closed   chan struct{}
	once     sync.Once
}

func newFakeSimulator() *fakeSimulator {
	return &fakeSimulator{messages: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeSimulator) push(msgType uint32, payload []byte) {
	f.messages <- append(simconnect.EncodeHeader(msgType, 0, len(payload)), payload...)
}

func (f *fakeSimulator) AddToDataDefinition(uint32, simconnect.SimVarDef) error { return nil }
func (f *fakeSimulator) RequestDataOnSimObject(_, _, _ uint32, _ simconnect.Period) error { return nil }
func (f *fakeSimulator) SubscribeToSystemEvent(uint32, string) error { return nil }

func (f *fakeSimulator) RequestDataOnSimObjectType(requestID, defID, _, _ uint32) error {
	if f.aircraft == nil {
		return nil
	}
	rec := u32s(requestID, simconnect.ObjectIDUser, defID, 0, 1, 1, 4)
	rec = appendString(rec, f.aircraft.Type, 32)
	rec = appendString(rec, f.aircraft.Model, 32)
	rec = appendString(rec, f.aircraft.Title, 256)
	rec = binary.LittleEndian.AppendUint64(rec, math.Float64bits(f.aircraft.EstimatedCruiseSpeed))
	f.push(simconnect.MsgSimObjectDataByType, rec)
	return nil
}

func (f *fakeSimulator) RequestSystemState(requestID uint32, _ string) error {
	payload := appendString(u32s(requestID, 0, 0), f.planPath, 260)
	f.push(simconnect.MsgSystemState, payload)
	return nil
}

func (f *fakeSimulator) ReadNext() (simconnect.Header, []byte, error) {
	select {
	case frame := <-f.messages:
		h, err := simconnect.DecodeHeader(frame)
		return h, frame[simconnect.HeaderSize:], err
	case <-f.closed:
		return simconnect.Header{}, nil, io.EOF
	}
}

func (f *fakeSimulator) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func u32s(vals ...uint32) []byte {
	var b []byte
	for _, v := range vals {
		b = binary.LittleEndian.AppendUint32(b, v)
	}
	return b
}

func appendString(b []byte, s string, width int) []byte {
	field := make([]byte, width)
	copy(field, s)
	return append(b, field...)
}

func connectedConnector(t *testing.T, sim *fakeSimulator, plans map[string]*types.FlightPlanData) *simconnect.Connector {
	t.Helper()
	load := func(path string) (*types.FlightPlanData, error) {
		if p, ok := plans[path]; ok {
			return p, nil
		}
		return nil, fs.ErrNotExist
	}
	c := simconnect.NewConnector(
		func(context.Context) (simconnect.Transport, error) { return sim, nil },
		simconnect.ConnectorConfig{},
		simconnect.WithFlightPlanLoader(load),
	)
	require.NoError(t, c.Connect(context.Background()))
	t.Cleanup(c.Disconnect)
	return c
}

// callTool connects the MCP server via in-memory transports and calls a tool.
func callTool(t *testing.T, srv *internalmcp.Server, name string, args map[string]any) map[string]any {
	t.Helper()
	res, isError := callToolRaw(t, srv, name, args)
	require.False(t, isError, "unexpected tool error: %v", res)
	return res
}

func callToolRaw(t *testing.T, srv *internalmcp.Server, name string, args map[string]any) (map[string]any, bool) {
	t.Helper()
	ctx := context.Background()

	st, ct := mcpsdk.NewInMemoryTransports()
	_, err := srv.Connect(ctx, st)
	require.NoError(t, err)

	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test", Version: "1.0"}, nil)
	cs, err := client.Connect(ctx, ct, nil)
	require.NoError(t, err)
	t.Cleanup(func() { cs.Close() })

	res, err := cs.CallTool(ctx, &mcpsdk.CallToolParams{Name: name, Arguments: args})
	require.NoError(t, err)
	require.Len(t, res.Content, 1)

	text := res.Content[0].(*mcpsdk.TextContent).Text
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &m))
	return m, res.IsError
}

func TestGetAircraftStatusSuccess(t *testing.T) {
	srv := internalmcp.NewServer(&mockStatus{status: sampleStatus, connected: true}, nil, 0)
	m := callTool(t, srv, "get_aircraft_status", nil)

	assert.InDelta(t, 47.6062, m["latitude"].(float64), 1e-9)
	assert.InDelta(t, -122.3321, m["longitude"].(float64), 1e-9)
	assert.InDelta(t, 35000.0, m["altitude_msl_ft"].(float64), 1e-9)
	assert.InDelta(t, 34950.0, m["altitude_agl_ft"].(float64), 1e-9)
	assert.InDelta(t, 270.0, m["heading_true_deg"].(float64), 1e-9)
	assert.InDelta(t, 268.5, m["heading_mag_deg"].(float64), 1e-9)
	assert.InDelta(t, 450.0, m["indicated_speed_kts"].(float64), 1e-9)
	assert.InDelta(t, 448.0, m["ground_speed_kts"].(float64), 1e-9)
	assert.InDelta(t, 500.0, m["vertical_speed_fpm"].(float64), 1e-9)
	assert.Equal(t, false, m["on_ground"])
	assert.Equal(t, true, m["autopilot_engaged"])

	_, hasPosition := m["last_position"]
	assert.False(t, hasPosition, "last_position should be omitted before a position change")

	_, hasBank := m["bank_deg"]
	_, hasSquawk := m["transponder"]
	assert.False(t, hasBank, "bank_deg should be omitted by default")
	assert.False(t, hasSquawk, "transponder should be omitted by default")

	ts, ok := m["timestamp"].(string)
	require.True(t, ok)
	parsed, err := time.Parse(time.RFC3339, ts)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), parsed, 5*time.Second)
}

func TestGetAircraftStatusWithOptionalGroups(t *testing.T) {
	srv := internalmcp.NewServer(&mockStatus{status: sampleStatus, connected: true}, nil, 0)
	m := callTool(t, srv, "get_aircraft_status", map[string]any{"include_attitude": true, "include_radios": true})

	assert.InDelta(t, -1.0, m["bank_deg"].(float64), 1e-9)
	assert.Equal(t, "0452", m["transponder"])
	assert.InDelta(t, 118300, m["com1_khz"].(float64), 1e-9)
	assert.InDelta(t, 121500, m["com2_khz"].(float64), 1e-9)
}

func TestGetAircraftStatusErrors(t *testing.T) {
	tests := []struct {
		name            string
		src             *mockStatus
		wantCode        string
		wantRecoverable bool
	}{
		{"stale", &mockStatus{err: state.ErrStale, connected: true}, "DATA_STALE", true},
		{"not connected", &mockStatus{err: state.ErrStale}, "SIMULATOR_NOT_CONNECTED", true},
		{"unknown", &mockStatus{err: errors.New("some unexpected error"), connected: true}, "UNKNOWN_ERROR", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := internalmcp.NewServer(tt.src, nil, 0)
			m, isError := callToolRaw(t, srv, "get_aircraft_status", nil)

			require.True(t, isError)
			assert.Equal(t, tt.wantCode, m["code"])
			assert.Equal(t, tt.wantRecoverable, m["recoverable"])
			assert.Equal(t, false, m["available"])
		})
	}
}

func TestGetAircraftData(t *testing.T) {
	sim := newFakeSimulator()
	sim.aircraft = &types.AircraftData{Type: "Cessna", Model: "C172", Title: "Cessna Skyhawk G1000", EstimatedCruiseSpeed: 124}
	c := connectedConnector(t, sim, nil)

	srv := internalmcp.NewServer(&mockStatus{connected: true}, c, time.Second)
	m := callTool(t, srv, "get_aircraft_data", nil)

	assert.Equal(t, "Cessna", m["atc_type"])
	assert.Equal(t, "C172", m["atc_model"])
	assert.Equal(t, "Cessna Skyhawk G1000", m["title"])
	assert.InDelta(t, 124.0, m["estimated_cruise_speed_kts"].(float64), 1e-9)
}

func TestGetAircraftDataTimeout(t *testing.T) {
	sim := newFakeSimulator()
	c := connectedConnector(t, sim, nil)

	srv := internalmcp.NewServer(&mockStatus{connected: true}, c, 20*time.Millisecond)
	m, isError := callToolRaw(t, srv, "get_aircraft_data", nil)

	require.True(t, isError)
	assert.Equal(t, "REQUEST_TIMEOUT", m["code"])
}

func TestGetAircraftDataNotConnected(t *testing.T) {
	c := simconnect.NewConnector(nil, simconnect.ConnectorConfig{})
	srv := internalmcp.NewServer(&mockStatus{}, c, time.Second)

	m, isError := callToolRaw(t, srv, "get_aircraft_data", nil)
	require.True(t, isError)
	assert.Equal(t, "SIMULATOR_NOT_CONNECTED", m["code"])
}

func TestGetFlightPlan(t *testing.T) {
	sim := newFakeSimulator()
	sim.planPath = `C:\plans\KSEAKPDX.PLN`
	plan := &types.FlightPlanData{
		Title:            "KSEA to KPDX",
		DepartureID:      "KSEA",
		DestinationID:    "KPDX",
		CruisingAltitude: 9000,
		RouteDistanceNM:  112.4,
		Waypoints: []types.Waypoint{
			{ID: "KSEA", Type: "Airport", Position: orb.Point{-122.3088, 47.4499}, Altitude: 433},
			{ID: "KPDX", Type: "Airport", Position: orb.Point{-122.5975, 45.5887}, Altitude: 31},
		},
	}
	c := connectedConnector(t, sim, map[string]*types.FlightPlanData{sim.planPath: plan})

	srv := internalmcp.NewServer(&mockStatus{connected: true}, c, time.Second)
	m := callTool(t, srv, "get_flight_plan", nil)

	assert.Equal(t, true, m["available"])
	assert.Equal(t, "KSEA", m["departure"])
	assert.Equal(t, "KPDX", m["destination"])
	assert.InDelta(t, 9000.0, m["cruising_altitude_ft"].(float64), 1e-9)
	assert.InDelta(t, 112.4, m["route_distance_nm"].(float64), 1e-9)

	wps, ok := m["waypoints"].([]any)
	require.True(t, ok)
	require.Len(t, wps, 2)
	first := wps[0].(map[string]any)
	assert.Equal(t, "KSEA", first["id"])
	assert.InDelta(t, 47.4499, first["latitude"].(float64), 1e-9)
	assert.InDelta(t, -122.3088, first["longitude"].(float64), 1e-9)
}

func TestGetFlightPlanUnavailable(t *testing.T) {
	sim := newFakeSimulator()
	sim.planPath = `C:\plans\missing.PLN`
	c := connectedConnector(t, sim, nil)

	srv := internalmcp.NewServer(&mockStatus{connected: true}, c, time.Second)
	m := callTool(t, srv, "get_flight_plan", nil)

	assert.Equal(t, false, m["available"])
	_, hasWaypoints := m["waypoints"]
	assert.False(t, hasWaypoints)
}

func TestGetAircraftStatusReportsLastPosition(t *testing.T) {
	updated := time.Date(2026, 10, 19, 14, 30, 0, 0, time.UTC)
	src := &mockStatus{
		status:    sampleStatus,
		connected: true,
		updated:   updated,
		position:  &types.AircraftPosition{Latitude: 47.45, Longitude: -122.31, Altitude: 433},
	}
	srv := internalmcp.NewServer(src, nil, 0)
	m := callTool(t, srv, "get_aircraft_status", nil)

	assert.Equal(t, "2026-10-19T14:30:00Z", m["updated_at"])
	pos, ok := m["last_position"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 47.45, pos["latitude"].(float64), 1e-9)
	assert.InDelta(t, -122.31, pos["longitude"].(float64), 1e-9)
	assert.InDelta(t, 433.0, pos["altitude_ft"].(float64), 1e-9)
}

func TestStateManagerFeedsTools(t *testing.T) {
	mgr := state.NewManager(0, nil)
	mgr.Apply(simconnect.Event{Kind: simconnect.EventConnected})
	mgr.Apply(simconnect.Event{Kind: simconnect.EventAircraftStatus, Status: sampleStatus})
	mgr.Apply(simconnect.Event{
		Kind:     simconnect.EventAircraftPosition,
		Position: types.AircraftPosition{Latitude: 47.6, Longitude: -122.3, Altitude: 35000},
	})

	srv := internalmcp.NewServer(mgr, nil, 0)
	m := callTool(t, srv, "get_aircraft_status", nil)

	pos, ok := m["last_position"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 47.6, pos["latitude"].(float64), 1e-9)
	assert.InDelta(t, 35000.0, pos["altitude_ft"].(float64), 1e-9)
}

func TestGetAircraftDataServesCacheWhenDisconnected(t *testing.T) {
	mgr := state.NewManager(0, nil)
	mgr.Apply(simconnect.Event{
		Kind:     simconnect.EventAircraftData,
		Aircraft: types.AircraftData{Type: "Airbus", Model: "A320", Title: "Airbus A320neo", EstimatedCruiseSpeed: 450},
	})
	c := simconnect.NewConnector(nil, simconnect.ConnectorConfig{})

	srv := internalmcp.NewServer(mgr, c, time.Second)
	m := callTool(t, srv, "get_aircraft_data", nil)

	assert.Equal(t, "A320", m["atc_model"])
	assert.Equal(t, "Airbus A320neo", m["title"])
	assert.Equal(t, true, m["cached"])
}

func TestGetAircraftDataLiveIsNotCached(t *testing.T) {
	sim := newFakeSimulator()
	sim.aircraft = &types.AircraftData{Model: "C172"}
	c := connectedConnector(t, sim, nil)

	srv := internalmcp.NewServer(&mockStatus{connected: true}, c, time.Second)
	m := callTool(t, srv, "get_aircraft_data", nil)

	_, hasCached := m["cached"]
	assert.False(t, hasCached)
}

func TestGetFlightPlanServesCacheWhenDisconnected(t *testing.T) {
	mgr := state.NewManager(0, nil)
	mgr.Apply(simconnect.Event{
		Kind:       simconnect.EventFlightPlan,
		FlightPlan: &types.FlightPlanData{DepartureID: "EGLL", DestinationID: "LFPG"},
	})

	srv := internalmcp.NewServer(mgr, nil, time.Second)
	m := callTool(t, srv, "get_flight_plan", nil)

	assert.Equal(t, true, m["available"])
	assert.Equal(t, "EGLL", m["departure"])
	assert.Equal(t, "LFPG", m["destination"])
	assert.Equal(t, true, m["cached"])
}

func TestGetFlightPlanNotConnectedWithoutCache(t *testing.T) {
	srv := internalmcp.NewServer(state.NewManager(0, nil), nil, time.Second)

	m, isError := callToolRaw(t, srv, "get_flight_plan", nil)
	require.True(t, isError)
	assert.Equal(t, "SIMULATOR_NOT_CONNECTED", m["code"])
}
