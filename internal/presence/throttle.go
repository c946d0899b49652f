package presence

import (
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/time/rate"
)

// Gate admits at most one call per interval. Calls arriving while the gate is
// closed are refused and never queued.
type Gate struct {
	clock   clockwork.Clock
	limiter *rate.Limiter
}

// NewGate returns an open gate.
func NewGate(interval time.Duration, clock clockwork.Clock) *Gate {
	return &Gate{
		clock:   clock,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
	}
}

// Allow reports whether a call may proceed now and, if so, closes the gate
// for the next interval.
func (g *Gate) Allow() bool {
	return g.limiter.AllowN(g.clock.Now(), 1)
}
