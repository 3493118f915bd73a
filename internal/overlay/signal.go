// Package overlay exposes whether a system overlay (the shell's quick
// settings / notification shade equivalent) is currently on screen, as a
// shared observable boolean fed by an out-of-process observer.
package overlay

import "sync"

// Signal is a multi-subscriber boolean stream. New subscribers receive the
// latest value immediately; afterwards only transitions are forwarded, so
// a repeated Set with an unchanged value produces no work downstream.
type Signal struct {
	mu    sync.Mutex
	value bool
	subs  []chan bool
}

// NewSignal creates a signal whose initial value is false (overlay closed)
func NewSignal() *Signal {
	return &Signal{}
}

// Subscribe registers a new subscriber. The returned channel first yields
// the current value, then every subsequent transition.
func (s *Signal) Subscribe() <-chan bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan bool, 4)
	ch <- s.value
	s.subs = append(s.subs, ch)
	return ch
}

// Current returns the latest observed value
func (s *Signal) Current() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.value
}

// Set updates the value and fans the edge out to all subscribers.
// Setting the same value again is a no-op.
func (s *Signal) Set(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v == s.value {
		return
	}
	s.value = v
	for _, ch := range s.subs {
		select {
		case ch <- v:
		default:
			// A stalled subscriber misses the edge; it still sees the
			// correct value on its next read via Current
		}
	}
}
