package simconnect

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/eytandecker/flightsim-presence/internal/flightplan"
	"github.com/eytandecker/flightsim-presence/pkg/types"
)

// DefaultFlightPlanRetryDelay is how long to wait before asking again when the
// simulator reports that no flight plan file has been generated yet.
const DefaultFlightPlanRetryDelay = 5 * time.Second

// Transport is the command sink and message source of one simulator session.
// *Client implements it.
type Transport interface {
	AddToDataDefinition(defID uint32, simvar SimVarDef) error
	RequestDataOnSimObject(requestID, defID, objectID uint32, period Period) error
	RequestDataOnSimObjectType(requestID, defID, radius, objectType uint32) error
	SubscribeToSystemEvent(eventID uint32, name string) error
	RequestSystemState(requestID uint32, state string) error
	ReadNext() (Header, []byte, error)
	Close() error
}

// DialFunc opens a new Transport.
type DialFunc func(ctx context.Context) (Transport, error)

// FlightPlanLoader reads the flight plan document at path. A missing file must
// be reported with an error matching fs.ErrNotExist.
type FlightPlanLoader func(path string) (*types.FlightPlanData, error)

// ConnectorState is the lifecycle state of a Connector.
type ConnectorState int32

const (
	ConnectorIdle ConnectorState = iota
	ConnectorConnecting
	ConnectorOpen
	ConnectorClosed
	ConnectorError
)

func (s ConnectorState) String() string {
	switch s {
	case ConnectorIdle:
		return "idle"
	case ConnectorConnecting:
		return "connecting"
	case ConnectorOpen:
		return "open"
	case ConnectorClosed:
		return "closed"
	case ConnectorError:
		return "error"
	default:
		return "unknown"
	}
}

// ConnectorConfig holds Connector settings.
type ConnectorConfig struct {
	// SlowMode requests flight status every simulation frame instead of once
	// per second.
	SlowMode             bool
	FlightPlanRetryDelay time.Duration
}

// Option customizes a Connector.
type Option func(*Connector)

// WithClock sets the clock used for flight plan re-requests.
func WithClock(clock clockwork.Clock) Option {
	return func(c *Connector) { c.clock = clock }
}

// WithLogger sets the connector logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Connector) { c.logger = l }
}

// WithFlightPlanLoader replaces the flight plan document reader.
func WithFlightPlanLoader(load FlightPlanLoader) Option {
	return func(c *Connector) { c.loadPlan = load }
}

// Connector owns the channel to the simulator. It registers the data groups,
// demultiplexes inbound messages on a single read loop, publishes events to
// subscribers and correlates one-shot requests with their responses.
type Connector struct {
	dial     DialFunc
	cfg      ConnectorConfig
	clock    clockwork.Clock
	logger   *slog.Logger
	loadPlan FlightPlanLoader

	mu      sync.Mutex
	state   ConnectorState
	session *session

	subMu sync.Mutex
	subs  []chan Event

	aircraftReq requestSlot[types.AircraftData]
	planReq     requestSlot[*types.FlightPlanData]
}

// session is one open connection. It ends exactly once.
type session struct {
	transport Transport
	done      chan struct{}
	closeOnce sync.Once

	// At most one flight plan re-request is armed at a time.
	retryMu    sync.Mutex
	retry      clockwork.Timer
	retryArmed bool
	ended      bool
}

func (s *session) end() bool {
	ended := false
	s.closeOnce.Do(func() {
		s.retryMu.Lock()
		s.ended = true
		if s.retry != nil {
			s.retry.Stop()
			s.retry = nil
		}
		s.retryArmed = false
		s.retryMu.Unlock()
		close(s.done)
		ended = true
	})
	return ended
}

// armRetry runs f once after d. It does nothing and returns false when a
// retry is already armed or the session has ended.
func (s *session) armRetry(clock clockwork.Clock, d time.Duration, f func()) bool {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()
	if s.ended || s.retryArmed {
		return false
	}
	s.retryArmed = true
	s.retry = clock.AfterFunc(d, func() {
		s.retryMu.Lock()
		s.retryArmed = false
		s.retryMu.Unlock()
		f()
	})
	return true
}

func (s *session) isEnded() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// NewConnector creates an idle Connector.
func NewConnector(dial DialFunc, cfg ConnectorConfig, opts ...Option) *Connector {
	if cfg.FlightPlanRetryDelay <= 0 {
		cfg.FlightPlanRetryDelay = DefaultFlightPlanRetryDelay
	}
	c := &Connector{
		dial:     dial,
		cfg:      cfg,
		clock:    clockwork.NewRealClock(),
		logger:   slog.Default().With("component", "simconnect"),
		loadPlan: flightplan.ParseFile,
		state:    ConnectorIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns the current lifecycle state.
func (c *Connector) State() ConnectorState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Done returns a channel closed when the current session ends. Without an
// open session the returned channel is already closed.
func (c *Connector) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return c.session.done
}

// Subscribe returns a channel receiving every subsequent event. Push
// telemetry is dropped when the channel is full; other events block.
func (c *Connector) Subscribe(buffer int) <-chan Event {
	ch := make(chan Event, buffer)
	c.subMu.Lock()
	c.subs = append(c.subs, ch)
	c.subMu.Unlock()
	return ch
}

func (c *Connector) emit(ev Event) {
	c.subMu.Lock()
	subs := append([]chan Event(nil), c.subs...)
	c.subMu.Unlock()

	for _, ch := range subs {
		if !ev.lossy() {
			ch <- ev
			continue
		}
		select {
		case ch <- ev:
		default:
			c.logger.Debug("Subscriber lagging, dropped event", "kind", ev.Kind)
		}
	}
}

// Connect opens the channel, registers the data groups and the position
// change notification, and starts dispatching inbound messages. Calling it
// while a session is connecting or open returns ErrAlreadyConnected.
func (c *Connector) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.state == ConnectorConnecting || c.state == ConnectorOpen {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = ConnectorConnecting
	c.mu.Unlock()

	t, err := c.dial(ctx)
	if err != nil {
		c.setState(ConnectorError)
		return fmt.Errorf("simconnect connect: %w", err)
	}
	if err := register(t); err != nil {
		_ = t.Close()
		c.setState(ConnectorError)
		return fmt.Errorf("simconnect register: %w", err)
	}

	s := &session{transport: t, done: make(chan struct{})}
	c.mu.Lock()
	c.session = s
	c.state = ConnectorOpen
	c.mu.Unlock()

	c.logger.Info("SimConnect connected")
	c.emit(Event{Kind: EventConnected})

	go c.readLoop(s)
	return nil
}

func register(t Transport) error {
	for _, schema := range Schemas {
		for _, v := range schema.Vars {
			if err := t.AddToDataDefinition(schema.DefID, v); err != nil {
				return fmt.Errorf("%s: %w", schema.Name, err)
			}
		}
	}
	return t.SubscribeToSystemEvent(EventIDPositionChanged, SystemEventPositionChanged)
}

// Disconnect releases the channel and cancels pending timers. Outstanding
// one-shot requests fail with ErrConnectionClosed. It is safe to call at
// any time, any number of times.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	s := c.session
	c.mu.Unlock()
	if s == nil {
		return
	}
	if c.teardown(s, nil) {
		c.logger.Info("SimConnect disconnected")
	}
}

func (c *Connector) setState(st ConnectorState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

// transport returns the open session's transport, or nil.
func (c *Connector) transport() Transport {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != ConnectorOpen || c.session == nil {
		return nil
	}
	return c.session.transport
}

// teardown ends s. It reports whether this call was the one that ended it.
func (c *Connector) teardown(s *session, cause error) bool {
	if !s.end() {
		return false
	}
	_ = s.transport.Close()

	c.mu.Lock()
	if c.session == s {
		c.session = nil
		c.state = ConnectorClosed
	}
	c.mu.Unlock()

	err := ErrConnectionClosed
	if cause != nil {
		err = fmt.Errorf("%w: %v", ErrConnectionClosed, cause)
	}
	c.aircraftReq.resolve(types.AircraftData{}, err)
	c.planReq.resolve(nil, err)
	return true
}

// readLoop is the single consumer of inbound messages for s.
func (c *Connector) readLoop(s *session) {
	for {
		h, data, err := s.transport.ReadNext()
		if err != nil {
			if c.teardown(s, err) {
				c.logger.Warn("SimConnect connection lost", "error", err)
				c.emit(Event{Kind: EventClosed})
			}
			return
		}
		c.dispatch(s, h, data)
		if s.isEnded() {
			return
		}
	}
}

func (c *Connector) dispatch(s *session, h Header, data []byte) {
	switch h.Type {
	case MsgRecvOpen:
		c.handleOpen(s, data)

	case MsgQuit:
		c.logger.Info("Simulator quit")
		c.emit(Event{Kind: EventClosed})
		c.teardown(s, nil)

	case MsgException:
		ex, err := DecodeException(data)
		if err != nil {
			c.drop(h, err)
			return
		}
		name := ExceptionName(ex.Exception)
		c.logger.Warn("SimConnect exception", "exception", name, "sendID", ex.SendID, "index", ex.Index)
		c.emit(Event{Kind: EventError, Err: &types.SimulatorError{
			Message:     name,
			Exception:   ex.Exception,
			SendID:      ex.SendID,
			Recoverable: true,
		}})

	case MsgEvent:
		ev, err := DecodeEvent(data)
		if err != nil {
			c.drop(h, err)
			return
		}
		if ev.EventID == EventIDPositionChanged {
			c.emit(Event{Kind: EventPositionChanged})
			if err := s.transport.RequestDataOnSimObject(ReqIDAircraftPosition, DefIDAircraftPosition, ObjectIDUser, PeriodOnce); err != nil {
				c.logger.Warn("Failed to request aircraft position", "error", err)
			}
		}

	case MsgSimObjectData:
		c.handleSimObjectData(h, data)

	case MsgSimObjectDataByType:
		c.handleSimObjectDataByType(h, data)

	case MsgSystemState:
		st, err := DecodeSystemState(data)
		if err != nil {
			c.drop(h, err)
			return
		}
		if st.RequestID == ReqIDFlightPlan {
			c.handleFlightPlanState(s, st.String)
		}

	default:
		c.logger.Debug("Ignoring message", "type", h.Type, "id", h.ID)
	}
}

func (c *Connector) drop(h Header, err error) {
	c.logger.Warn("Dropping malformed message", "type", h.Type, "id", h.ID, "error", err)
}

func (c *Connector) handleOpen(s *session, data []byte) {
	c.logger.Info("SimConnect session opened", "app", DecodeOpenAppName(data))

	period := PeriodSecond
	if c.cfg.SlowMode {
		period = PeriodSimFrame
	}
	if err := s.transport.RequestDataOnSimObject(ReqIDFlightStatus, DefIDFlightStatus, ObjectIDUser, period); err != nil {
		c.logger.Error("Failed to subscribe to flight status", "error", err)
	}
}

func (c *Connector) handleSimObjectData(h Header, data []byte) {
	hdr, rec, err := DecodeSimObjectData(data)
	if err != nil {
		c.drop(h, err)
		return
	}
	switch hdr.RequestID {
	case ReqIDFlightStatus:
		status, err := DecodeFlightStatus(rec)
		if err != nil {
			c.drop(h, err)
			return
		}
		c.emit(Event{Kind: EventAircraftStatus, Status: status})
	case ReqIDAircraftPosition:
		pos, err := DecodeAircraftPosition(rec)
		if err != nil {
			c.drop(h, err)
			return
		}
		c.emit(Event{Kind: EventAircraftPosition, Position: pos})
	}
}

func (c *Connector) handleSimObjectDataByType(h Header, data []byte) {
	hdr, rec, err := DecodeSimObjectData(data)
	if err != nil {
		c.drop(h, err)
		return
	}
	if hdr.RequestID != ReqIDAircraftData {
		return
	}
	aircraft, err := DecodeAircraftData(rec)
	if err != nil {
		c.drop(h, err)
		return
	}
	c.emit(Event{Kind: EventAircraftData, Aircraft: aircraft})
	c.aircraftReq.resolve(aircraft, nil)
}

func (c *Connector) handleFlightPlanState(s *session, path string) {
	switch path {
	case "":
		return
	case flightPlanPending:
		armed := s.armRetry(c.clock, c.cfg.FlightPlanRetryDelay, func() {
			if s.isEnded() {
				return
			}
			if err := s.transport.RequestSystemState(ReqIDFlightPlan, SystemStateFlightPlan); err != nil {
				c.logger.Warn("Failed to re-request flight plan", "error", err)
			}
		})
		if armed {
			c.logger.Debug("Flight plan not generated yet", "retry_in", c.cfg.FlightPlanRetryDelay)
		} else {
			c.logger.Debug("Flight plan not generated yet, re-request already pending")
		}
		return
	}

	plan, err := c.loadPlan(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Info("Flight plan file not found", "path", path)
		c.emit(Event{Kind: EventFlightPlan})
		c.planReq.resolve(nil, nil)
	case err != nil:
		c.logger.Warn("Failed to load flight plan", "path", path, "error", err)
		c.planReq.resolve(nil, fmt.Errorf("load flight plan: %w", err))
	default:
		c.logger.Info("Flight plan loaded", "path", path, "waypoints", len(plan.Waypoints))
		c.emit(Event{Kind: EventFlightPlan, FlightPlan: plan})
		c.planReq.resolve(plan, nil)
	}
}

// RequestAircraftData asks for the static data of the user aircraft. While a
// request is outstanding every caller receives the same handle. Cancelling
// ctx of the caller that created the request cancels it unless the response
// has already arrived.
func (c *Connector) RequestAircraftData(ctx context.Context) (*Pending[types.AircraftData], error) {
	return request(ctx, c, &c.aircraftReq, "aircraft_data", func(t Transport) error {
		return t.RequestDataOnSimObjectType(ReqIDAircraftData, DefIDAircraftData, 0, SimObjectTypeUser)
	})
}

// RequestFlightPlan asks for the active flight plan. The handle resolves to
// nil when the simulator has no flight plan document. Handle sharing and
// cancellation follow RequestAircraftData.
func (c *Connector) RequestFlightPlan(ctx context.Context) (*Pending[*types.FlightPlanData], error) {
	return request(ctx, c, &c.planReq, "flight_plan", func(t Transport) error {
		return t.RequestSystemState(ReqIDFlightPlan, SystemStateFlightPlan)
	})
}

func request[T any](ctx context.Context, c *Connector, slot *requestSlot[T], kind string, send func(Transport) error) (*Pending[T], error) {
	t := c.transport()
	if t == nil {
		return nil, ErrNotConnected
	}

	p, created := slot.acquire(ctx)
	if !created {
		c.logger.Debug("Joining outstanding request", "kind", kind, "request_id", p.ID())
		return p, nil
	}

	c.logger.Debug("Issuing request", "kind", kind, "request_id", p.ID())
	if err := send(t); err != nil {
		err = fmt.Errorf("request %s: %w", kind, err)
		slot.fail(p, err)
		return nil, err
	}
	return p, nil
}
