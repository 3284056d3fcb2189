package genstore

import (
	"context"
	"sync"
	"time"
)

// Local keeps generations in process memory. Keys neither read nor bumped
// for longer than the retention are swept; a swept key reads as 0 again,
// which only costs its snapshot (the stored gen no longer matches).
type Local struct {
	mu       sync.Mutex
	gens     map[string]*localGen
	now      func() time.Time
	done     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

type localGen struct {
	n        uint64
	lastSeen time.Time
}

var _ GenStore = (*Local)(nil)

// NewLocal starts a sweeper every sweepEvery that drops keys idle for longer
// than retain. Either value <= 0 disables sweeping.
func NewLocal(sweepEvery, retain time.Duration) *Local {
	s := &Local{gens: make(map[string]*localGen), now: time.Now}
	if sweepEvery <= 0 || retain <= 0 {
		return s
	}
	s.done = make(chan struct{})
	s.stopped = make(chan struct{})
	go s.sweepLoop(sweepEvery, retain)
	return s
}

func (s *Local) sweepLoop(every, retain time.Duration) {
	defer close(s.stopped)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.Cleanup(retain)
		case <-s.done:
			return
		}
	}
}

// touchLocked returns the record for k, creating it, and marks it seen.
func (s *Local) touchLocked(k string) *localGen {
	g := s.gens[k]
	if g == nil {
		g = &localGen{}
		s.gens[k] = g
	}
	g.lastSeen = s.now()
	return g
}

func (s *Local) Snapshot(_ context.Context, k string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touchLocked(k).n, nil
}

func (s *Local) Bump(_ context.Context, k string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g := s.touchLocked(k)
	g.n++
	return g.n, nil
}

// Cleanup drops keys idle for longer than retain.
func (s *Local) Cleanup(retain time.Duration) {
	if retain <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-retain)
	for k, g := range s.gens {
		if g.lastSeen.Before(cutoff) {
			delete(s.gens, k)
		}
	}
}

// Len reports how many keys are tracked.
func (s *Local) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gens)
}

func (s *Local) Close(context.Context) error {
	s.stopOnce.Do(func() {
		if s.done != nil {
			close(s.done)
			<-s.stopped
		}
	})
	return nil
}
