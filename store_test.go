package swrcache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	"github.com/unkn0wn-root/swrcache/internal/keys"
	pr "github.com/unkn0wn-root/swrcache/provider"
)

type memEntry struct {
	v   []byte
	exp time.Time // zero => no TTL
}

type memProvider struct {
	mu sync.Mutex
	m  map[string]memEntry
}

var _ pr.Provider = (*memProvider)(nil)

func newMemProvider() *memProvider { return &memProvider{m: make(map[string]memEntry)} }

func (p *memProvider) Get(_ context.Context, key string) ([]byte, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.m[key]
	if !ok {
		return nil, false, nil
	}
	if !e.exp.IsZero() && time.Now().After(e.exp) {
		delete(p.m, key)
		return nil, false, nil
	}
	return e.v, true, nil
}

func (p *memProvider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var exp time.Time
	if ttl > 0 {
		exp = time.Now().Add(ttl)
	}
	p.m[key] = memEntry{v: value, exp: exp}
	return true, nil
}

func (p *memProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.m, key)
	return nil
}

func (p *memProvider) Close(_ context.Context) error { return nil }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1_700_000_000, 0)} }

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

type countHooks struct {
	NopHooks
	started    atomic.Int64
	deduped    atomic.Int64
	superseded atomic.Int64
	selfHeals  atomic.Int64
}

func (h *countHooks) FetchStarted(string, uint64, Trigger)   { h.started.Add(1) }
func (h *countHooks) FetchDeduplicated(string)               { h.deduped.Add(1) }
func (h *countHooks) FetchSuperseded(string, uint64, uint64) { h.superseded.Add(1) }
func (h *countHooks) SnapshotSelfHeal(string, string)        { h.selfHeals.Add(1) }

func newTestStore(t *testing.T, optsOpt func(*Options)) *store {
	t.Helper()
	opts := Options{Namespace: "test"}
	if optsOpt != nil {
		optsOpt(&opts)
	}
	s, err := newStore(opts)
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

// counter returns a fetcher yielding 1, 2, 3... and the number of calls made.
func counter() (Fetcher, *atomic.Int64) {
	var n atomic.Int64
	return func(context.Context) (any, error) {
		return int(n.Add(1)), nil
	}, &n
}

// gated returns a fetcher that blocks until release is closed.
func gated(release <-chan struct{}, v any, calls *atomic.Int64) Fetcher {
	return func(ctx context.Context) (any, error) {
		calls.Add(1)
		select {
		case <-release:
			return v, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func TestNewRequiresNamespace(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("New without namespace should fail")
	}
}

func TestGetFetchesOnceThenServesFresh(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	fetch, calls := counter()

	st, err := s.Get(ctx, "kpi", fetch, SubscribeOptions{})
	if err != nil || !st.HasValue || st.Value != 1 {
		t.Fatalf("first Get: st=%+v err=%v", st, err)
	}
	st, err = s.Get(ctx, "kpi", fetch, SubscribeOptions{})
	if err != nil || st.Value != 1 {
		t.Fatalf("second Get: st=%+v err=%v", st, err)
	}
	if got := calls.Load(); got != 1 {
		t.Fatalf("fetch calls = %d, want 1", got)
	}
}

func TestSubscribersShareOneFetch(t *testing.T) {
	h := &countHooks{}
	s := newTestStore(t, func(o *Options) { o.Hooks = h })

	release := make(chan struct{})
	var calls atomic.Int64
	fetch := gated(release, "v", &calls)

	const n = 5
	var got sync.WaitGroup
	got.Add(n)
	subs := make([]*Subscription, 0, n)
	for i := 0; i < n; i++ {
		var once sync.Once
		sub, st := s.Subscribe("products", fetch, SubscribeOptions{}, func(st State) {
			if st.HasValue && st.Value == "v" {
				once.Do(got.Done)
			}
		})
		if !st.IsLoading {
			t.Fatalf("subscriber %d: want IsLoading on mount, got %+v", i, st)
		}
		subs = append(subs, sub)
	}
	close(release)

	if _, err := subs[0].Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	waitGroup(t, &got)

	if c := calls.Load(); c != 1 {
		t.Fatalf("fetch calls = %d, want 1", c)
	}
	if d := h.deduped.Load(); d != n-1 {
		t.Fatalf("deduplicated = %d, want %d", d, n-1)
	}
}

func TestStaleValueServedWhileRevalidating(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStore(t, func(o *Options) { o.Now = clk.Now; o.StaleTime = time.Second })

	if _, err := s.Get(ctx, "balance", func(context.Context) (any, error) { return 500, nil }, SubscribeOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	clk.Advance(2 * time.Second)

	release := make(chan struct{})
	var calls atomic.Int64
	sub, st := s.Subscribe("balance", gated(release, 300, &calls), SubscribeOptions{}, nil)
	defer sub.Unsubscribe()

	if !st.HasValue || st.Value != 500 || !st.IsLoading {
		t.Fatalf("want stale 500 while loading, got %+v", st)
	}
	close(release)
	st, err := sub.Wait(ctx)
	if err != nil || st.Value != 300 || st.IsLoading {
		t.Fatalf("after revalidation: st=%+v err=%v", st, err)
	}
}

func TestOlderFetchCannotOverwriteNewer(t *testing.T) {
	ctx := context.Background()
	h := &countHooks{}
	s := newTestStore(t, func(o *Options) { o.Hooks = h })

	slow := make(chan struct{})
	var n atomic.Int64
	fetch := func(context.Context) (any, error) {
		if n.Add(1) == 1 {
			<-slow
			return "old", nil
		}
		return "new", nil
	}

	sub, _ := s.Subscribe("history", fetch, SubscribeOptions{}, nil)
	defer sub.Unsubscribe()

	st, err := s.Revalidate(ctx, "history", nil)
	if err != nil || st.Value != "new" {
		t.Fatalf("Revalidate: st=%+v err=%v", st, err)
	}
	close(slow)
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	st, _ = s.Peek("history")
	if st.Value != "new" {
		t.Fatalf("late result overwrote newer value: %+v", st)
	}
	if h.superseded.Load() != 1 {
		t.Fatalf("superseded = %d, want 1", h.superseded.Load())
	}
}

func TestWaitersFollowSupersedingFetch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	first := make(chan struct{})
	second := make(chan struct{})
	var n atomic.Int64
	fetch := func(context.Context) (any, error) {
		switch n.Add(1) {
		case 1:
			<-first
			return 1, nil
		default:
			<-second
			return 2, nil
		}
	}

	sub, _ := s.Subscribe("k", fetch, SubscribeOptions{}, nil)
	defer sub.Unsubscribe()

	type res struct {
		st  State
		err error
	}
	waited := make(chan res, 1)
	go func() {
		st, err := sub.Wait(ctx)
		waited <- res{st, err}
	}()

	if err := s.Invalidate(ctx, "k"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	close(first)
	close(second)

	select {
	case r := <-waited:
		if r.err != nil || r.st.Value != 2 {
			t.Fatalf("waiter got %+v err=%v, want value 2", r.st, r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never resolved")
	}
}

func TestFetchErrorKeepsLastValue(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	boom := errors.New("boom")
	var fail atomic.Bool
	fetch := func(context.Context) (any, error) {
		if fail.Load() {
			return nil, boom
		}
		return "ok", nil
	}

	if _, err := s.Get(ctx, "a", fetch, SubscribeOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Get(ctx, "b", fetch, SubscribeOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	fail.Store(true)
	st, err := s.Revalidate(ctx, "a", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("Revalidate err = %v, want boom", err)
	}
	if !st.HasValue || st.Value != "ok" {
		t.Fatalf("value lost on error: %+v", st)
	}
	if other, _ := s.Peek("b"); other.Err != nil {
		t.Fatalf("error leaked to another key: %+v", other)
	}

	fail.Store(false)
	st, err = s.Revalidate(ctx, "a", nil)
	if err != nil || st.Err != nil {
		t.Fatalf("error not cleared by success: st=%+v err=%v", st, err)
	}
}

func TestPanickingFetcherBecomesError(t *testing.T) {
	s := newTestStore(t, nil)
	_, err := s.Get(context.Background(), "p", func(context.Context) (any, error) {
		panic("kaboom")
	}, SubscribeOptions{})
	var pe *PanicError
	if !errors.As(err, &pe) || pe.Key != "p" {
		t.Fatalf("want PanicError, got %v", err)
	}
}

func TestOptimisticValueRolledBackOnFetchError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	var fail atomic.Bool
	fetch := func(context.Context) (any, error) {
		if fail.Load() {
			return nil, errors.New("offline")
		}
		return 500, nil
	}
	if _, err := s.Get(ctx, "balance", fetch, SubscribeOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}

	if err := s.SetOptimistic("balance", Optimistic{Value: 300}); err != nil {
		t.Fatalf("SetOptimistic: %v", err)
	}
	st, _ := s.Peek("balance")
	if !st.Optimistic || st.Value != 300 {
		t.Fatalf("optimistic write not visible: %+v", st)
	}

	fail.Store(true)
	st, _ = s.Revalidate(ctx, "balance", nil)
	if st.Optimistic || st.Value != 500 || st.Err == nil {
		t.Fatalf("want rollback to 500 with error, got %+v", st)
	}
}

func TestPendingSurvivesOlderFetch(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStore(t, func(o *Options) { o.Now = clk.Now })

	if _, err := s.Get(ctx, "balance", func(context.Context) (any, error) { return 500, nil }, SubscribeOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	clk.Advance(time.Minute)

	release := make(chan struct{})
	var calls atomic.Int64
	sub, _ := s.Subscribe("balance", gated(release, 999, &calls), SubscribeOptions{}, nil)
	defer sub.Unsubscribe()

	if err := s.SetOptimistic("balance", Optimistic{Pending: true}); err != nil {
		t.Fatalf("SetOptimistic: %v", err)
	}
	close(release)
	st, _ := sub.Wait(ctx)
	if !st.Pending || st.Value != 500 {
		t.Fatalf("pre-mutation fetch landed over pending write: %+v", st)
	}

	if err := s.Reconcile("balance", 300); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	st, _ = s.Peek("balance")
	if st.Pending || st.Optimistic || st.Value != 300 || st.Stale {
		t.Fatalf("Reconcile: %+v", st)
	}
}

func TestInvalidateRefetchesSubscribedKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	fetch, calls := counter()

	sub, _ := s.Subscribe("kpi", fetch, SubscribeOptions{}, nil)
	defer sub.Unsubscribe()
	if st, _ := sub.Wait(ctx); st.Value != 1 {
		t.Fatalf("initial value = %v", st.Value)
	}

	if err := s.Invalidate(ctx, "kpi"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	st, err := sub.Wait(ctx)
	if err != nil || st.Value != 2 || st.Stale {
		t.Fatalf("after invalidate: st=%+v err=%v", st, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("calls = %d, want 2", calls.Load())
	}
}

func TestInvalidateUnsubscribedKeyDefersFetch(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	fetch, calls := counter()

	if _, err := s.Get(ctx, "kpi", fetch, SubscribeOptions{}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if err := s.Invalidate(ctx, "kpi"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	st, _ := s.Peek("kpi")
	if !st.Stale || st.Value != 1 || st.IsLoading {
		t.Fatalf("want stale value 1 without fetch, got %+v", st)
	}
	if calls.Load() != 1 {
		t.Fatalf("calls = %d, want 1", calls.Load())
	}

	st, err := s.Get(ctx, "kpi", fetch, SubscribeOptions{})
	if err != nil || st.Value != 2 {
		t.Fatalf("Get after invalidate: st=%+v err=%v", st, err)
	}
}

func TestInvalidateResourceMatchesAllParams(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	fetch, _ := counter()

	k1 := keys.Build("points-history", map[string]string{"limit": "20"})
	k2 := keys.Build("points-history", map[string]string{"limit": "50"})
	k3 := keys.Build("products", nil)
	for _, k := range []string{k1, k2, k3} {
		if _, err := s.Get(ctx, k, fetch, SubscribeOptions{}); err != nil {
			t.Fatalf("Get %s: %v", k, err)
		}
	}

	if err := s.InvalidateResource(ctx, "points-history"); err != nil {
		t.Fatalf("InvalidateResource: %v", err)
	}
	for _, k := range []string{k1, k2} {
		if st, _ := s.Peek(k); !st.Stale {
			t.Fatalf("%s not stale", k)
		}
	}
	if st, _ := s.Peek(k3); st.Stale {
		t.Fatalf("unrelated key invalidated")
	}
}

func TestFocusRespectsStaleTime(t *testing.T) {
	ctx := context.Background()
	clk := newFakeClock()
	s := newTestStore(t, func(o *Options) { o.Now = clk.Now; o.StaleTime = 10 * time.Second })
	fetch, calls := counter()

	sub, _ := s.Subscribe("co2", fetch, SubscribeOptions{}, nil)
	defer sub.Unsubscribe()
	off, _ := s.Subscribe("usage", fetch, SubscribeOptions{DisableFocusRevalidation: true}, nil)
	defer off.Unsubscribe()
	_, _ = sub.Wait(ctx)
	_, _ = off.Wait(ctx)

	s.Focus()
	if calls.Load() != 2 {
		t.Fatalf("focus inside stale window fetched: calls=%d", calls.Load())
	}

	clk.Advance(11 * time.Second)
	s.Focus()
	if _, err := sub.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("calls = %d, want 3 (one focus refetch)", calls.Load())
	}
}

func TestRefreshIntervalStopsAfterUnsubscribe(t *testing.T) {
	s := newTestStore(t, nil)
	fetch, calls := counter()

	sub, _ := s.Subscribe("kpi", fetch, SubscribeOptions{RefreshInterval: 10 * time.Millisecond}, nil)
	deadline := time.Now().Add(2 * time.Second)
	for calls.Load() < 3 {
		if time.Now().After(deadline) {
			t.Fatalf("interval refresh never fired, calls=%d", calls.Load())
		}
		time.Sleep(5 * time.Millisecond)
	}

	sub.Unsubscribe()
	_, _ = sub.Wait(context.Background())
	stopped := calls.Load()
	time.Sleep(50 * time.Millisecond)
	if calls.Load() > stopped+1 {
		t.Fatalf("interval kept firing after unsubscribe: %d -> %d", stopped, calls.Load())
	}
}

func TestListenerVersionsNeverGoBack(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	fetch, _ := counter()

	var mu sync.Mutex
	var seen []uint64
	sub, _ := s.Subscribe("k", fetch, SubscribeOptions{}, func(st State) {
		mu.Lock()
		seen = append(seen, st.Version)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = s.Revalidate(ctx, "k", nil)
		}()
	}
	wg.Wait()
	_ = s.Close(ctx)

	mu.Lock()
	defer mu.Unlock()
	for i := 1; i < len(seen); i++ {
		if seen[i] <= seen[i-1] {
			t.Fatalf("version went back: %v", seen)
		}
	}
}

func TestClosedStoreRejectsCalls(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)
	if err := s.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	fetch, _ := counter()
	if _, err := s.Get(ctx, "k", fetch, SubscribeOptions{}); !errors.Is(err, ErrClosed) {
		t.Fatalf("Get after close: %v", err)
	}
	if err := s.SetOptimistic("k", Optimistic{Pending: true}); !errors.Is(err, ErrClosed) {
		t.Fatalf("SetOptimistic after close: %v", err)
	}
	sub, st := s.Subscribe("k", fetch, SubscribeOptions{}, nil)
	if !errors.Is(st.Err, ErrClosed) {
		t.Fatalf("Subscribe after close: %+v", st)
	}
	sub.Unsubscribe()
}

func TestRevalidateUnknownKey(t *testing.T) {
	s := newTestStore(t, nil)
	if _, err := s.Revalidate(context.Background(), "nope", nil); !errors.Is(err, ErrNoFetcher) {
		t.Fatalf("want ErrNoFetcher, got %v", err)
	}
}

func TestRevalidateInstallsFetcherOnWriteOnlyEntry(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	// entry exists only because of writes
	if err := s.Reconcile("balance", 300); err != nil {
		t.Fatalf("Reconcile: %v", err)
	}
	if err := s.SetOptimistic("balance", Optimistic{Pending: true}); err != nil {
		t.Fatalf("SetOptimistic: %v", err)
	}
	if _, err := s.Revalidate(ctx, "balance", nil); !errors.Is(err, ErrNoFetcher) {
		t.Fatalf("want ErrNoFetcher without a fetcher, got %v", err)
	}

	var calls atomic.Int64
	fetch := func(context.Context) (any, error) {
		calls.Add(1)
		return 480, nil
	}
	st, err := s.Revalidate(ctx, "balance", fetch)
	if err != nil {
		t.Fatalf("Revalidate: %v", err)
	}
	if st.Value != 480 || st.Pending || st.Optimistic {
		t.Fatalf("state after revalidate = %+v", st)
	}
	if calls.Load() != 1 {
		t.Fatalf("fetch calls = %d, want 1", calls.Load())
	}

	// the installed fetcher now serves plain revalidation too
	if _, err := s.Revalidate(ctx, "balance", nil); err != nil {
		t.Fatalf("Revalidate with installed fetcher: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("fetch calls = %d, want 2", calls.Load())
	}
}

// reentrantHooks reads the store from inside every hook.
type reentrantHooks struct {
	NopHooks
	s     *store
	calls atomic.Int64
}

func (h *reentrantHooks) peek(key string) {
	h.s.Peek(key)
	h.calls.Add(1)
}

func (h *reentrantHooks) FetchStarted(key string, _ uint64, _ Trigger) { h.peek(key) }
func (h *reentrantHooks) FetchDeduplicated(key string)                 { h.peek(key) }
func (h *reentrantHooks) FetchSucceeded(key string, _ time.Duration)   { h.peek(key) }
func (h *reentrantHooks) OptimisticWrite(key string, _ bool)           { h.peek(key) }
func (h *reentrantHooks) Reconciled(key string)                        { h.peek(key) }

func TestHooksMayCallBackIntoStore(t *testing.T) {
	ctx := context.Background()
	h := &reentrantHooks{}
	s := newTestStore(t, func(o *Options) { o.Hooks = h })
	h.s = s

	done := make(chan struct{})
	go func() {
		defer close(done)
		release := make(chan struct{})
		var calls atomic.Int64
		sub, _ := s.Subscribe("kpi", gated(release, 1, &calls), SubscribeOptions{}, nil)
		defer sub.Unsubscribe()
		go close(release)
		_, _ = s.Get(ctx, "kpi", nil, SubscribeOptions{})
		_ = s.SetOptimistic("kpi", Optimistic{Pending: true})
		_ = s.Reconcile("kpi", 2)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("store deadlocked on a re-entrant hook")
	}
	// started, optimistic, reconciled; FetchSucceeded may still be running
	if h.calls.Load() < 3 {
		t.Fatalf("hook calls = %d, want at least 3", h.calls.Load())
	}
}

func TestSnapshotWarmsNewStore(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cd := c.Erase[int](c.JSON[int]{})

	a, err := newStore(Options{Namespace: "dash", Provider: mp})
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	if _, err := a.Get(ctx, "balance", func(context.Context) (any, error) { return 500, nil }, SubscribeOptions{Codec: cd}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = a.Close(ctx) // waits for the snapshot write

	b := newTestStore(t, func(o *Options) { o.Namespace = "dash"; o.Provider = mp })
	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int64
	sub, st := b.Subscribe("balance", gated(release, 600, &calls), SubscribeOptions{Codec: cd}, nil)
	defer sub.Unsubscribe()

	if !st.HasValue || st.Value != 500 || !st.Stale || !st.IsLoading {
		t.Fatalf("want hydrated stale 500 with revalidation, got %+v", st)
	}
}

func TestSnapshotSelfHealsCorruptBytes(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	h := &countHooks{}
	s := newTestStore(t, func(o *Options) { o.Provider = mp; o.Hooks = h })

	sk := s.snap.storageKey("kpi")
	if _, err := mp.Set(ctx, sk, []byte("not-wire-format"), 1, time.Minute); err != nil {
		t.Fatalf("inject: %v", err)
	}

	release := make(chan struct{})
	defer close(release)
	var calls atomic.Int64
	_, st := s.Subscribe("kpi", gated(release, 1, &calls), SubscribeOptions{Codec: c.Erase[int](c.JSON[int]{})}, nil)
	if st.HasValue {
		t.Fatalf("corrupt snapshot was served: %+v", st)
	}
	if _, ok, _ := mp.Get(ctx, sk); ok {
		t.Fatalf("corrupt snapshot was not deleted")
	}
	if h.selfHeals.Load() != 1 {
		t.Fatalf("selfHeals = %d, want 1", h.selfHeals.Load())
	}
}

func TestInvalidateDropsSnapshot(t *testing.T) {
	ctx := context.Background()
	mp := newMemProvider()
	cd := c.Erase[int](c.JSON[int]{})

	a, err := newStore(Options{Namespace: "dash", Provider: mp})
	if err != nil {
		t.Fatalf("newStore: %v", err)
	}
	if _, err := a.Get(ctx, "kpi", func(context.Context) (any, error) { return 7, nil }, SubscribeOptions{Codec: cd}); err != nil {
		t.Fatalf("Get: %v", err)
	}
	_ = a.Close(ctx)

	sk := "snap:dash:kpi"
	if _, ok, _ := mp.Get(ctx, sk); !ok {
		t.Fatalf("snapshot not written")
	}

	b := newTestStore(t, func(o *Options) { o.Namespace = "dash"; o.Provider = mp })
	if err := b.Invalidate(ctx, "kpi"); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if _, ok, _ := mp.Get(ctx, sk); ok {
		t.Fatalf("snapshot survived invalidate")
	}
}

func waitGroup(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for listeners")
	}
}
