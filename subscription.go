package swrcache

import (
	"context"
	"sync"
	"sync/atomic"
)

// Subscription is one listener on one key.
type Subscription struct {
	store *store
	e     *entry
	key   string
	fn    Listener

	mu     sync.Mutex // serializes fn
	last   uint64     // highest Version handed to fn
	closed atomic.Bool
}

func (sub *Subscription) Key() string { return sub.key }

// State returns the entry's current state.
func (sub *Subscription) State() State {
	if sub.e == nil {
		return State{Key: sub.key, Err: ErrClosed}
	}
	sub.store.mu.Lock()
	defer sub.store.mu.Unlock()
	return sub.e.stateLocked()
}

// Refetch forces a fetch of the key and waits for it.
func (sub *Subscription) Refetch(ctx context.Context) (State, error) {
	return sub.store.Revalidate(ctx, sub.key, nil)
}

// Wait blocks until no fetch is in flight for the key.
func (sub *Subscription) Wait(ctx context.Context) (State, error) {
	if sub.e == nil {
		return State{Key: sub.key, Err: ErrClosed}, ErrClosed
	}
	s := sub.store
	s.mu.Lock()
	cl := sub.e.call
	if cl == nil {
		st := sub.e.stateLocked()
		s.mu.Unlock()
		return st, st.Err
	}
	s.mu.Unlock()
	return s.wait(ctx, sub.e, cl)
}

// Unsubscribe stops delivery. The entry and its value stay cached.
func (sub *Subscription) Unsubscribe() {
	if !sub.closed.CompareAndSwap(false, true) || sub.e == nil {
		return
	}
	s := sub.store
	s.mu.Lock()
	delete(sub.e.subs, sub)
	if len(sub.e.subs) == 0 {
		s.stopRefreshLocked(sub.e)
	}
	s.mu.Unlock()
}

func (sub *Subscription) deliver(st State) {
	if sub.fn == nil || sub.closed.Load() {
		return
	}
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if st.Version <= sub.last {
		return
	}
	sub.last = st.Version
	sub.fn(st)
}
