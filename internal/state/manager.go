package state

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/eytandecker/flightsim-presence/internal/simconnect"
	"github.com/eytandecker/flightsim-presence/pkg/types"
)

// Manager holds a concurrent-safe cache of the latest simulator telemetry.
type Manager struct {
	clock          clockwork.Clock
	staleThreshold time.Duration

	mu          sync.RWMutex
	connected   bool
	status      types.AircraftStatus
	lastUpdated time.Time
	position    *types.AircraftPosition
	aircraft    *types.AircraftData
	flightPlan  *types.FlightPlanData
	planKnown   bool
}

// NewManager creates a Manager with the given stale threshold.
// A zero threshold disables staleness checking.
func NewManager(staleThreshold time.Duration, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{staleThreshold: staleThreshold, clock: clock}
}

// Run applies events until ctx is done or events is closed.
func (m *Manager) Run(ctx context.Context, events <-chan simconnect.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Apply(ev)
		}
	}
}

// Apply records one connector event.
func (m *Manager) Apply(ev simconnect.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch ev.Kind {
	case simconnect.EventConnected:
		m.connected = true
	case simconnect.EventClosed:
		m.connected = false
	case simconnect.EventAircraftStatus:
		m.status = ev.Status
		m.lastUpdated = m.clock.Now()
	case simconnect.EventAircraftPosition:
		pos := ev.Position
		m.position = &pos
	case simconnect.EventAircraftData:
		aircraft := ev.Aircraft
		m.aircraft = &aircraft
	case simconnect.EventFlightPlan:
		m.flightPlan = ev.FlightPlan
		m.planKnown = true
	}
}

// Connected reports whether the simulator session is open.
func (m *Manager) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// Status returns the cached flight status, or ErrStale if no status has been
// received yet or its age exceeds the stale threshold.
func (m *Manager) Status() (types.AircraftStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastUpdated.IsZero() {
		return types.AircraftStatus{}, ErrStale
	}
	if m.staleThreshold > 0 && m.clock.Since(m.lastUpdated) > m.staleThreshold {
		return types.AircraftStatus{}, ErrStale
	}
	return m.status, nil
}

// Position returns the position reported on the last PositionChanged event.
func (m *Manager) Position() (types.AircraftPosition, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.position == nil {
		return types.AircraftPosition{}, false
	}
	return *m.position, true
}

// Aircraft returns the most recently received aircraft data.
func (m *Manager) Aircraft() (types.AircraftData, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.aircraft == nil {
		return types.AircraftData{}, false
	}
	return *m.aircraft, true
}

// FlightPlan returns the last flight plan result. known is false until the
// simulator has answered a flight plan request; plan is nil when it had none.
func (m *Manager) FlightPlan() (plan *types.FlightPlanData, known bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.flightPlan, m.planKnown
}

// LastUpdated returns the time of the most recent status, or zero if none.
func (m *Manager) LastUpdated() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdated
}
