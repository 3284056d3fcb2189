package swrcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	gen "github.com/unkn0wn-root/swrcache/genstore"
	"github.com/unkn0wn-root/swrcache/internal/keys"
)

type store struct {
	staleTime time.Duration
	log       Logger
	hooks     Hooks
	now       func() time.Time
	snap      *snapshots // nil when the snapshot tier is disabled

	// fetches and refresh loops run under ctx; Close cancels it and waits
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	entries   map[string]*entry
	closed    bool
	closeOnce sync.Once
}

// delivery is a state captured under the lock, sent after unlocking.
type delivery struct {
	subs []*Subscription
	st   State
}

func (d delivery) send() {
	for _, sub := range d.subs {
		sub.deliver(d.st)
	}
}

func newStore(opts Options) (*store, error) {
	if opts.Namespace == "" {
		return nil, fmt.Errorf("swrcache: namespace is required")
	}

	s := &store{entries: make(map[string]*entry)}

	// defaults
	s.log = coalesce[Logger](opts.Logger, NopLogger{})
	s.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	s.staleTime = coalesce[time.Duration](opts.StaleTime, defaultStaleTime)
	s.now = opts.Now
	if s.now == nil {
		s.now = time.Now
	}

	if opts.Provider != nil {
		g := opts.GenStore
		if g == nil {
			// default to in-process generations with periodic cleanup
			g = gen.NewLocal(
				coalesce[time.Duration](opts.GenCleanup, defaultGenSweep),
				coalesce[time.Duration](opts.GenRetention, defaultGenRetain),
			)
		}
		cost := opts.ComputeSetCost
		if cost == nil {
			cost = func(_ string, raw []byte) int64 { return int64(len(raw)) }
		}
		s.snap = &snapshots{
			ns:       opts.Namespace,
			provider: opts.Provider,
			gen:      g,
			ttl:      coalesce[time.Duration](opts.SnapshotTTL, defaultSnapshotTTL),
			cost:     cost,
			log:      s.log,
			hooks:    s.hooks,
		}
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	return s, nil
}

// lockEntry returns the entry for key with s.mu held, creating it when
// missing. A new entry is hydrated from the snapshot tier when cd is set.
func (s *store) lockEntry(key string, cd c.Codec[any]) (*entry, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := s.entries[key]; ok {
		return e, nil
	}
	s.mu.Unlock()

	var warm warmValue
	var hasWarm bool
	if s.snap != nil && cd != nil {
		warm, hasWarm = s.snap.load(s.ctx, key, cd)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if e, ok := s.entries[key]; ok {
		return e, nil
	}
	e := newEntry(key)
	if hasWarm {
		e.value, e.hasValue = warm.value, true
		e.confirmed, e.hasConfirmed = warm.value, true
		e.fetchedAt = warm.fetchedAt
		e.stale = true // shown at once, revalidated by the first subscriber
		s.log.Debug("entry hydrated from snapshot", Fields{"key": key})
	}
	s.entries[key] = e
	return e, nil
}

func (s *store) staleTimeFor(e *entry) time.Duration {
	return coalesce[time.Duration](e.opts.StaleTime, s.staleTime)
}

func (s *store) Subscribe(key string, fetch Fetcher, opts SubscribeOptions, fn Listener) (*Subscription, State) {
	sub := &Subscription{store: s, key: key, fn: fn}
	e, err := s.lockEntry(key, opts.Codec)
	if err != nil {
		sub.closed.Store(true)
		return sub, State{Key: key, Err: err}
	}
	sub.e = e
	if fetch != nil {
		e.fetch = fetch
	}
	e.opts = opts
	e.subs[sub] = struct{}{}
	s.startRefreshLocked(e)

	var d delivery
	cl, started := s.revalidateLocked(e, TriggerMount)
	if started {
		d = s.deliveryLocked(e)
	}
	st := e.stateLocked()
	sub.mu.Lock()
	sub.last = st.Version
	sub.mu.Unlock()
	s.mu.Unlock()

	if cl != nil && !started {
		s.hooks.FetchDeduplicated(key)
	}
	d.send()
	return sub, st
}

func (s *store) Get(ctx context.Context, key string, fetch Fetcher, opts SubscribeOptions) (State, error) {
	e, err := s.lockEntry(key, opts.Codec)
	if err != nil {
		return State{Key: key, Err: err}, err
	}
	if fetch != nil {
		e.fetch = fetch
	}
	if len(e.subs) == 0 {
		e.opts = opts
	}
	if e.fetch == nil && !e.hasValue {
		st := e.stateLocked()
		s.mu.Unlock()
		return st, ErrNoFetcher
	}

	cl, started := s.revalidateLocked(e, TriggerMount)
	var d delivery
	if started {
		d = s.deliveryLocked(e)
	}
	if cl == nil {
		st := e.stateLocked()
		s.mu.Unlock()
		return st, st.Err
	}
	s.mu.Unlock()

	if !started {
		s.hooks.FetchDeduplicated(key)
	}
	d.send()
	return s.wait(ctx, e, cl)
}

func (s *store) Peek(key string) (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return State{Key: key}, false
	}
	return e.stateLocked(), true
}

func (s *store) Revalidate(ctx context.Context, key string, fetch Fetcher) (State, error) {
	var e *entry
	if fetch != nil {
		var err error
		if e, err = s.lockEntry(key, nil); err != nil {
			return State{Key: key, Err: err}, err
		}
		if e.fetch == nil {
			// entry was created by a write alone
			e.fetch = fetch
		}
	} else {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return State{Key: key, Err: ErrClosed}, ErrClosed
		}
		var ok bool
		if e, ok = s.entries[key]; !ok {
			s.mu.Unlock()
			return State{Key: key}, ErrNoFetcher
		}
	}
	if e.fetch == nil {
		st := e.stateLocked()
		s.mu.Unlock()
		return st, ErrNoFetcher
	}
	cl, _ := s.revalidateLocked(e, TriggerRevalidate)
	d := s.deliveryLocked(e)
	s.mu.Unlock()

	d.send()
	return s.wait(ctx, e, cl)
}

func (s *store) Invalidate(ctx context.Context, key string) error {
	// drop the snapshot first so the refetch below observes the new generation
	var snapErr error
	if s.snap != nil {
		snapErr = s.snap.invalidate(ctx, key)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	var d delivery
	if e, ok := s.entries[key]; ok {
		e.stale = true
		e.version++
		if len(e.subs) > 0 || e.call != nil {
			s.revalidateLocked(e, TriggerInvalidate)
		}
		d = s.deliveryLocked(e)
	}
	s.mu.Unlock()

	d.send()
	s.log.Debug("invalidated key", Fields{"key": key})
	return snapErr
}

func (s *store) InvalidateResource(ctx context.Context, name string) error {
	s.mu.Lock()
	var matched []string
	for k := range s.entries {
		if keys.Name(k) == name {
			matched = append(matched, k)
		}
	}
	s.mu.Unlock()

	var errs []error
	for _, k := range matched {
		if err := s.Invalidate(ctx, k); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (s *store) SetOptimistic(key string, o Optimistic) error {
	e, err := s.lockEntry(key, nil)
	if err != nil {
		return err
	}
	if o.Pending {
		e.pending = true
	} else {
		e.value, e.hasValue = o.Value, true
		e.optimistic = true
	}
	e.gen++ // fetches started before the mutation must not land on top of it
	e.version++
	d := s.deliveryLocked(e)
	s.mu.Unlock()

	s.hooks.OptimisticWrite(key, o.Pending)
	d.send()
	return nil
}

func (s *store) Reconcile(key string, value any) error {
	e, err := s.lockEntry(key, nil)
	if err != nil {
		return err
	}
	now := s.now()
	e.value, e.hasValue = value, true
	e.confirmed, e.hasConfirmed = value, true
	e.err = nil
	e.stale = false
	e.optimistic, e.pending = false, false
	e.fetchedAt = now
	e.gen++
	e.version++
	cd := e.opts.Codec
	d := s.deliveryLocked(e)
	s.mu.Unlock()

	s.hooks.Reconciled(key)
	d.send()
	if s.snap != nil && cd != nil {
		if err := s.snap.invalidate(s.ctx, key); err != nil {
			s.log.Warn("snapshot invalidate failed on reconcile", Fields{"key": key, "err": err})
			return nil
		}
		if obs, ok := s.snap.observe(s.ctx, key); ok {
			s.snap.store(s.ctx, key, value, obs, now, cd)
		}
	}
	return nil
}

func (s *store) Focus() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	var ds []delivery
	for _, e := range s.entries {
		if len(e.subs) == 0 || e.opts.DisableFocusRevalidation {
			continue
		}
		if _, started := s.revalidateLocked(e, TriggerFocus); started {
			ds = append(ds, s.deliveryLocked(e))
		}
	}
	s.mu.Unlock()

	for _, d := range ds {
		d.send()
	}
}

func (s *store) Close(ctx context.Context) error {
	var err error
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		for _, e := range s.entries {
			s.stopRefreshLocked(e)
		}
		s.mu.Unlock()

		s.cancel()
		done := make(chan struct{})
		go func() {
			s.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			err = ctx.Err()
		}

		if s.snap != nil {
			if cerr := s.snap.close(ctx); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}

// revalidateLocked starts a fetch for e when trigger calls for one and
// returns the fetch callers should wait on (nil when the entry is fresh or
// has no fetcher). Forced triggers supersede the fetch in flight; the others
// join it, reported as a non-nil call with started=false. Hooks fire
// outside the lock: FetchStarted from run, FetchDeduplicated from callers.
func (s *store) revalidateLocked(e *entry, trigger Trigger) (*call, bool) {
	if e.fetch == nil {
		return nil, false
	}
	switch trigger {
	case TriggerInvalidate, TriggerRevalidate:
	default:
		if e.call != nil {
			return e.call, false
		}
		if e.mutatingLocked() {
			return nil, false
		}
		if trigger != TriggerInterval && e.freshLocked(s.now(), s.staleTimeFor(e)) {
			return nil, false
		}
	}

	e.gen++
	cl := &call{gen: e.gen, done: make(chan struct{})}
	e.call = cl
	e.version++

	s.wg.Add(1)
	go s.run(e, cl, trigger, e.fetch, e.opts.Codec)
	return cl, true
}

func (s *store) run(e *entry, cl *call, trigger Trigger, fetch Fetcher, cd c.Codec[any]) {
	defer s.wg.Done()
	s.hooks.FetchStarted(e.key, cl.gen, trigger)

	var obs uint64
	var canSnap bool
	if s.snap != nil && cd != nil {
		obs, canSnap = s.snap.observe(s.ctx, e.key)
	}

	began := time.Now()
	v, err := s.invoke(e.key, fetch)
	fetchedAt, applied := s.complete(e, cl, v, err, time.Since(began))

	if applied && err == nil && canSnap {
		s.snap.store(s.ctx, e.key, v, obs, fetchedAt, cd)
	}
}

func (s *store) invoke(key string, fetch Fetcher) (v any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Key: key, Value: r}
		}
	}()
	return fetch(s.ctx)
}

// complete applies a fetch result unless a newer generation was issued
// meanwhile. It reports the fetch time and whether the result was applied.
func (s *store) complete(e *entry, cl *call, v any, err error, took time.Duration) (time.Time, bool) {
	s.mu.Lock()
	if cl.gen != e.gen {
		cl.superseded = true
		var d delivery
		if e.call == cl {
			e.call = nil
			e.version++
			d = s.deliveryLocked(e)
		}
		newest := e.gen
		close(cl.done)
		s.mu.Unlock()

		s.hooks.FetchSuperseded(e.key, cl.gen, newest)
		s.log.Debug("fetch result dropped (superseded)", Fields{"key": e.key, "gen": cl.gen, "newest": newest})
		d.send()
		return time.Time{}, false
	}

	e.call = nil
	now := s.now()
	if err == nil {
		e.value, e.hasValue = v, true
		e.confirmed, e.hasConfirmed = v, true
		e.err = nil
		e.fetchedAt = now
		e.stale = false
	} else {
		e.err = err
		if e.optimistic {
			e.value, e.hasValue = e.confirmed, e.hasConfirmed
		}
	}
	e.optimistic, e.pending = false, false
	e.version++
	d := s.deliveryLocked(e)
	close(cl.done)
	s.mu.Unlock()

	if err != nil {
		s.hooks.FetchFailed(e.key, took, err)
		s.log.Warn("fetch failed; keeping last value", Fields{"key": e.key, "err": err})
	} else {
		s.hooks.FetchSucceeded(e.key, took)
	}
	d.send()
	return now, true
}

// wait blocks until cl resolves. A superseded fetch hands its waiters over
// to the newest one.
func (s *store) wait(ctx context.Context, e *entry, cl *call) (State, error) {
	for {
		select {
		case <-cl.done:
		case <-ctx.Done():
			s.mu.Lock()
			st := e.stateLocked()
			s.mu.Unlock()
			return st, ctx.Err()
		}

		s.mu.Lock()
		if cl.superseded && e.call != nil {
			cl = e.call
			s.mu.Unlock()
			continue
		}
		st := e.stateLocked()
		s.mu.Unlock()
		return st, st.Err
	}
}

func (s *store) deliveryLocked(e *entry) delivery {
	if len(e.subs) == 0 {
		return delivery{}
	}
	subs := make([]*Subscription, 0, len(e.subs))
	for sub := range e.subs {
		subs = append(subs, sub)
	}
	return delivery{subs: subs, st: e.stateLocked()}
}

func (s *store) startRefreshLocked(e *entry) {
	iv := e.opts.RefreshInterval
	if iv <= 0 || e.refresh != nil {
		return
	}
	stop := make(chan struct{})
	e.refresh = stop
	s.wg.Add(1)
	go s.refreshLoop(e, iv, stop)
}

func (s *store) stopRefreshLocked(e *entry) {
	if e.refresh != nil {
		close(e.refresh)
		e.refresh = nil
	}
}

func (s *store) refreshLoop(e *entry, iv time.Duration, stop <-chan struct{}) {
	defer s.wg.Done()
	t := time.NewTicker(iv)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			s.tick(e)
		case <-stop:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *store) tick(e *entry) {
	s.mu.Lock()
	if s.closed || len(e.subs) == 0 {
		s.mu.Unlock()
		return
	}
	var d delivery
	if _, started := s.revalidateLocked(e, TriggerInterval); started {
		d = s.deliveryLocked(e)
	}
	s.mu.Unlock()
	d.send()
}
