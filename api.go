package swrcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	gen "github.com/unkn0wn-root/swrcache/genstore"
	pr "github.com/unkn0wn-root/swrcache/provider"
)

// Fetcher loads the current value of one resource. It runs detached from
// any single caller, under the store's lifetime context.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives entry changes. Calls for one Subscription are serialized
// and never go back in Version.
type Listener func(State)

// Trigger names what caused a fetch.
type Trigger string

const (
	TriggerMount      Trigger = "mount"
	TriggerFocus      Trigger = "focus"
	TriggerInterval   Trigger = "interval"
	TriggerInvalidate Trigger = "invalidate"
	TriggerRevalidate Trigger = "revalidate"
)

// State is a consistent view of one entry.
type State struct {
	Key        string
	Value      any
	HasValue   bool
	Err        error // last fetch error; cleared by the next success
	IsLoading  bool  // a fetch is in flight
	Stale      bool  // invalidated or hydrated, refresh pending
	Optimistic bool  // Value was written by SetOptimistic and is not confirmed
	Pending    bool  // a mutation is outstanding; Value predates it
	FetchedAt  time.Time
	Version    uint64
}

// Optimistic is a provisional write. With Pending set the cached value is
// kept as is and only flagged, for when the post-mutation value is unknown.
type Optimistic struct {
	Value   any
	Pending bool
}

// SubscribeOptions tune one key. The last subscriber's options win.
type SubscribeOptions struct {
	StaleTime                time.Duration // 0 => Options.StaleTime
	RefreshInterval          time.Duration // 0 => no timed refresh
	DisableFocusRevalidation bool
	Codec                    c.Codec[any] // nil => key is never snapshotted
}

// Store is the cache store. All entry writes go through these methods.
type Store interface {
	// Subscribe registers fn for key and returns the current state. A fetch
	// starts when the entry has no fresh value and none is in flight.
	Subscribe(key string, fetch Fetcher, opts SubscribeOptions, fn Listener) (*Subscription, State)
	// Get is a one-shot Subscribe: it returns a fresh cached value at once,
	// otherwise waits for the fetch. The returned error is State.Err.
	Get(ctx context.Context, key string, fetch Fetcher, opts SubscribeOptions) (State, error)
	Peek(key string) (State, bool)

	// Revalidate forces a fetch that bypasses the staleness window and
	// supersedes any fetch in flight, then waits for it. fetch is installed
	// when the entry has none yet (it was created by SetOptimistic or
	// Reconcile); nil uses the entry's own and fails with ErrNoFetcher
	// when there is none.
	Revalidate(ctx context.Context, key string, fetch Fetcher) (State, error)
	// Invalidate marks key stale and refetches at once when anyone is
	// subscribed or waiting. The old value stays until replaced.
	Invalidate(ctx context.Context, key string) error
	// InvalidateResource invalidates every key of a resource name.
	InvalidateResource(ctx context.Context, name string) error

	SetOptimistic(key string, o Optimistic) error
	// Reconcile stores an authoritative value from a mutation response.
	Reconcile(key string, value any) error

	// Focus revalidates subscribed entries that left their staleness window.
	Focus()

	Close(ctx context.Context) error
}

// Options configure a Store. Only Namespace is required.
type Options struct {
	Namespace string // isolates snapshot and generation keys, e.g. "dash:prod"

	StaleTime time.Duration // 0 => 5s
	Logger    Logger        // nil => NopLogger
	Hooks     Hooks         // nil => NopHooks; see Hooks for call rules
	Now       func() time.Time

	// Snapshot tier
	Provider       pr.Provider                               // nil => disabled
	SnapshotTTL    time.Duration                             // 0 => 10m
	ComputeSetCost func(storageKey string, raw []byte) int64 // nil => len(raw)
	GenStore       gen.GenStore                              // nil => in-process generations
	GenCleanup     time.Duration                             // local gen sweep; 0 => 1h
	GenRetention   time.Duration                             // 0 => 24h
}

func New(opts Options) (Store, error) {
	return newStore(opts)
}
