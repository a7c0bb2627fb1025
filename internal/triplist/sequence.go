package triplist

import (
	"context"
	"sync"
)

// Sequencer issues request tickets where only the newest one counts. Taking
// a ticket cancels the context of the request holding the previous one.
type Sequencer struct {
	mu      sync.Mutex
	current uint64
	cancel  context.CancelFunc
}

// Next cancels the in-flight request, if any, and returns a context and
// ticket for a new one.
func (s *Sequencer) Next(parent context.Context) (context.Context, uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithCancel(parent)
	s.current++
	s.cancel = cancel
	return ctx, s.current
}

// IsCurrent reports whether ticket is the newest one issued.
func (s *Sequencer) IsCurrent(ticket uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ticket == s.current
}

// Done releases the context of ticket when it is still current.
func (s *Sequencer) Done(ticket uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ticket == s.current && s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// Stop cancels the in-flight request and invalidates every issued ticket.
func (s *Sequencer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
	s.current++
}
