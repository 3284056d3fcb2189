// Package resource binds typed, named accessors to the cache store so every
// call site derives the same key and fetcher for the same remote resource.
package resource

import (
	"context"
	"time"

	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/codec"
)

// Snapshot is a typed view of one cache entry.
type Snapshot[T any] struct {
	Value      T
	HasValue   bool
	IsLoading  bool
	Err        error
	Stale      bool
	Optimistic bool
	Pending    bool
	FetchedAt  time.Time
}

func snapshotOf[T any](st swrcache.State) Snapshot[T] {
	s := Snapshot[T]{
		IsLoading:  st.IsLoading,
		Err:        st.Err,
		Stale:      st.Stale,
		Optimistic: st.Optimistic,
		Pending:    st.Pending,
		FetchedAt:  st.FetchedAt,
	}
	if st.HasValue {
		if v, ok := st.Value.(T); ok {
			s.Value, s.HasValue = v, true
		}
	}
	return s
}

// Options tune one resource.
type Options[T any] struct {
	StaleTime                time.Duration
	RefreshInterval          time.Duration
	DisableFocusRevalidation bool
	Codec                    codec.Codec[T] // nil => never snapshotted
}

type Resource[T any] struct {
	store swrcache.Store
	key   string
	fetch swrcache.Fetcher
	opts  swrcache.SubscribeOptions
}

func New[T any](store swrcache.Store, key string, fetch func(context.Context) (T, error), opts Options[T]) *Resource[T] {
	so := swrcache.SubscribeOptions{
		StaleTime:                opts.StaleTime,
		RefreshInterval:          opts.RefreshInterval,
		DisableFocusRevalidation: opts.DisableFocusRevalidation,
	}
	if opts.Codec != nil {
		so.Codec = codec.Erase(opts.Codec)
	}
	return &Resource[T]{
		store: store,
		key:   key,
		fetch: func(ctx context.Context) (any, error) {
			v, err := fetch(ctx)
			if err != nil {
				return nil, err
			}
			return v, nil
		},
		opts: so,
	}
}

func (r *Resource[T]) Key() string { return r.key }

// Watch subscribes fn to every change of the entry. fn may be nil.
func (r *Resource[T]) Watch(fn func(Snapshot[T])) *Handle[T] {
	var l swrcache.Listener
	if fn != nil {
		l = func(st swrcache.State) { fn(snapshotOf[T](st)) }
	}
	sub, st := r.store.Subscribe(r.key, r.fetch, r.opts, l)
	return &Handle[T]{sub: sub, initial: snapshotOf[T](st)}
}

// Get returns a fresh cached value or waits for the fetch.
func (r *Resource[T]) Get(ctx context.Context) (Snapshot[T], error) {
	st, err := r.store.Get(ctx, r.key, r.fetch, r.opts)
	return snapshotOf[T](st), err
}

func (r *Resource[T]) Peek() (Snapshot[T], bool) {
	st, ok := r.store.Peek(r.key)
	return snapshotOf[T](st), ok
}

// Refetch bypasses the staleness window and any pending mutation. An entry
// created by a write alone has no fetcher yet; it gets this resource's.
func (r *Resource[T]) Refetch(ctx context.Context) (Snapshot[T], error) {
	st, err := r.store.Revalidate(ctx, r.key, r.fetch)
	return snapshotOf[T](st), err
}

func (r *Resource[T]) Invalidate(ctx context.Context) error {
	return r.store.Invalidate(ctx, r.key)
}

// Handle is a live subscription to a resource.
type Handle[T any] struct {
	sub     *swrcache.Subscription
	initial Snapshot[T]
}

// Initial is the state at subscription time.
func (h *Handle[T]) Initial() Snapshot[T] { return h.initial }

func (h *Handle[T]) State() Snapshot[T] { return snapshotOf[T](h.sub.State()) }

func (h *Handle[T]) Refetch(ctx context.Context) (Snapshot[T], error) {
	st, err := h.sub.Refetch(ctx)
	return snapshotOf[T](st), err
}

// Wait blocks until no fetch is in flight.
func (h *Handle[T]) Wait(ctx context.Context) (Snapshot[T], error) {
	st, err := h.sub.Wait(ctx)
	return snapshotOf[T](st), err
}

func (h *Handle[T]) Close() { h.sub.Unsubscribe() }
