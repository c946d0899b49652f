package simconnect

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Pending is the result handle of a one-shot request. It resolves exactly once,
// either with the simulator's response, an error, or a cancellation.
type Pending[T any] struct {
	id    string
	done  chan struct{}
	once  sync.Once
	value T
	err   error
}

func newPending[T any]() *Pending[T] {
	return &Pending[T]{id: uuid.NewString(), done: make(chan struct{})}
}

// ID identifies the request in logs.
func (p *Pending[T]) ID() string { return p.id }

// Done is closed once the request has resolved.
func (p *Pending[T]) Done() <-chan struct{} { return p.done }

// Result returns the outcome. It is only meaningful after Done is closed.
func (p *Pending[T]) Result() (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	default:
		var zero T
		return zero, nil
	}
}

// Wait blocks until the request resolves or ctx is done. Giving up on ctx does
// not cancel the request for other waiters.
func (p *Pending[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-p.done:
		return p.value, p.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (p *Pending[T]) resolve(v T, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.value, p.err = v, err
		close(p.done)
		resolved = true
	})
	return resolved
}

// requestSlot holds at most one outstanding request of a kind. Every
// transition happens under mu so a response and a cancellation can never
// both win.
type requestSlot[T any] struct {
	mu      sync.Mutex
	pending *Pending[T]
	stop    func() bool
}

// acquire returns the outstanding handle, or creates one bound to ctx.
// created reports whether the caller must issue the command.
func (s *requestSlot[T]) acquire(ctx context.Context) (p *Pending[T], created bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != nil {
		return s.pending, false
	}
	p = newPending[T]()
	s.pending = p
	s.stop = context.AfterFunc(ctx, func() {
		s.fail(p, ctx.Err())
	})
	return p, true
}

// fail resolves p with err and clears the slot, but only if p is still the
// unresolved occupant.
func (s *requestSlot[T]) fail(p *Pending[T], err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pending != p {
		return false
	}
	var zero T
	s.clearLocked()
	return p.resolve(zero, err)
}

// resolve completes the outstanding request, if any.
func (s *requestSlot[T]) resolve(v T, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.pending
	if p == nil {
		return false
	}
	s.clearLocked()
	return p.resolve(v, err)
}

// outstanding reports whether a request is in flight.
func (s *requestSlot[T]) outstanding() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *requestSlot[T]) clearLocked() {
	if s.stop != nil {
		s.stop()
		s.stop = nil
	}
	s.pending = nil
}
