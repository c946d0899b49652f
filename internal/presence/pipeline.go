// Package presence turns the simulator's status stream into throttled,
// location-aware presence updates.
package presence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/eytandecker/flightsim-presence/internal/geocode"
	"github.com/eytandecker/flightsim-presence/internal/simconnect"
	"github.com/eytandecker/flightsim-presence/pkg/types"
)

const (
	// DefaultPublishInterval is the minimum spacing between presence updates.
	DefaultPublishInterval = 1000 * time.Millisecond
	// DefaultGeocodeInterval is the minimum spacing between reverse geocode calls.
	DefaultGeocodeInterval = 60000 * time.Millisecond
)

// Sink displays presence payloads.
type Sink interface {
	SetPresence(p Payload) error
	ClearPresence() error
}

// Geocoder resolves the airport nearest to a coordinate.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (geocode.Location, error)
}

// AirportLookup resolves airport metadata by ICAO code.
type AirportLookup interface {
	LookupAirport(ctx context.Context, icao string) (geocode.Airport, error)
}

// Config holds pipeline settings. Zero values take the defaults.
type Config struct {
	PublishInterval time.Duration
	GeocodeInterval time.Duration
	LargeImageKey   string
	PreparingText   string
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock sets the clock used by the throttle gates and timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(p *Pipeline) { p.clock = clock }
}

// WithLogger sets the pipeline logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// Pipeline consumes connector events and publishes presence. All state is
// guarded by mu, so every update is processed one at a time.
type Pipeline struct {
	sink     Sink
	geocoder Geocoder
	airports AirportLookup
	cfg      Config
	clock    clockwork.Clock
	logger   *slog.Logger

	mu          sync.Mutex
	publishGate *Gate
	geocodeGate *Gate
	started     bool
	connected   bool
	callsign    string

	lastStatus     *types.AircraftStatus
	stateChangedAt *time.Time
	lastICAO       string
	lastAirport    string
	// airportCache is never evicted. Failed lookups are stored as empty
	// records and not retried.
	airportCache map[string]geocode.Airport
}

// NewPipeline creates a stopped Pipeline.
func NewPipeline(sink Sink, geocoder Geocoder, airports AirportLookup, cfg Config, opts ...Option) *Pipeline {
	if cfg.PublishInterval <= 0 {
		cfg.PublishInterval = DefaultPublishInterval
	}
	if cfg.GeocodeInterval <= 0 {
		cfg.GeocodeInterval = DefaultGeocodeInterval
	}
	if cfg.LargeImageKey == "" {
		cfg.LargeImageKey = DefaultLargeImageKey
	}
	if cfg.PreparingText == "" {
		cfg.PreparingText = DefaultPreparingText
	}
	p := &Pipeline{
		sink:         sink,
		geocoder:     geocoder,
		airports:     airports,
		cfg:          cfg,
		clock:        clockwork.NewRealClock(),
		logger:       slog.Default().With("component", "presence"),
		airportCache: make(map[string]geocode.Airport),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.publishGate = NewGate(cfg.PublishInterval, p.clock)
	p.geocodeGate = NewGate(cfg.GeocodeInterval, p.clock)
	return p
}

// Start begins publishing under callsign. If the simulator is already
// connected the Preparing payload is shown immediately.
func (p *Pipeline) Start(callsign string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = true
	p.callsign = callsign
	p.logger.Info("Presence started", "callsign", callsign)
	if p.connected {
		p.setPreparing()
	}
}

// Stop ends publishing and clears the display.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.started = false
	p.logger.Info("Presence stopped")
	p.clear()
}

// Run handles events until ctx is done or events is closed.
func (p *Pipeline) Run(ctx context.Context, events <-chan simconnect.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			p.Handle(ctx, ev)
		}
	}
}

// Handle applies one connector event.
func (p *Pipeline) Handle(ctx context.Context, ev simconnect.Event) {
	switch ev.Kind {
	case simconnect.EventConnected:
		p.onConnected()
	case simconnect.EventClosed:
		p.onClosed()
	case simconnect.EventAircraftStatus:
		p.OnStatus(ctx, ev.Status)
	}
}

func (p *Pipeline) onConnected() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = true
	if p.started {
		p.setPreparing()
	}
}

func (p *Pipeline) onClosed() {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.connected = false
	p.logger.Info("Simulator connection lost, clearing presence")
	p.clear()
}

// OnStatus processes one status tick. Ticks are ignored while stopped and
// dropped while the publish gate is closed.
func (p *Pipeline) OnStatus(ctx context.Context, status types.AircraftStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if p.lastStatus == nil || p.lastStatus.IsOnGround != status.IsOnGround {
		now := p.clock.Now()
		p.stateChangedAt = &now
	}
	p.lastStatus = &status

	if !p.publishGate.Allow() {
		return
	}

	if noFix(status.Latitude, status.Longitude) {
		p.setPreparing()
		return
	}

	place := p.locate(ctx, status)
	payload := Compose(p.callsign, status, place, p.stateChangedAt, p.cfg.LargeImageKey)
	if err := p.sink.SetPresence(payload); err != nil {
		p.logger.Warn("Failed to publish presence", "error", err)
	}
}

// locate returns the nearest airport and its country, reusing the previous
// airport while the geocode gate is closed or the service fails.
func (p *Pipeline) locate(ctx context.Context, status types.AircraftStatus) Place {
	if p.geocodeGate.Allow() {
		loc, err := p.geocoder.ReverseGeocode(ctx, status.Latitude, status.Longitude)
		if err != nil {
			p.logger.Warn("Reverse geocode failed, keeping previous airport", "error", err, "icao", p.lastICAO)
		} else {
			p.lastICAO, p.lastAirport = loc.ICAO, loc.Name
		}
	}

	place := Place{ICAO: p.lastICAO, Airport: p.lastAirport}
	if place.ICAO == "" {
		return place
	}

	ap, ok := p.airportCache[place.ICAO]
	if !ok {
		var err error
		ap, err = p.airports.LookupAirport(ctx, place.ICAO)
		if err != nil {
			p.logger.Warn("Airport lookup failed", "icao", place.ICAO, "error", err)
			ap = geocode.Airport{}
		}
		p.airportCache[place.ICAO] = ap
	}
	place.Country = ap.Country
	return place
}

func (p *Pipeline) setPreparing() {
	if err := p.sink.SetPresence(Preparing(p.cfg.LargeImageKey, p.cfg.PreparingText)); err != nil {
		p.logger.Warn("Failed to publish preparing presence", "error", err)
	}
}

func (p *Pipeline) clear() {
	if err := p.sink.ClearPresence(); err != nil {
		p.logger.Warn("Failed to clear presence", "error", err)
	}
}
