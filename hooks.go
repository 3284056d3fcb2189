package swrcache

import "time"

// Hooks are lightweight callbacks for high-signal events. They run without
// the store lock held, on the goroutine that caused the event, so a hook may
// call back into the Store. A slow hook delays that caller only; wrap it in
// hooks/async when it does IO.
type Hooks interface {
	// A fetch was issued. trigger is one of the Trigger constants.
	FetchStarted(key string, gen uint64, trigger Trigger)
	// A caller joined a fetch that was already in flight.
	FetchDeduplicated(key string)
	// A fetch resolved after a newer fetch or write; its result was dropped.
	FetchSuperseded(key string, gen, newest uint64)
	FetchSucceeded(key string, took time.Duration)
	FetchFailed(key string, took time.Duration, err error)

	// SetOptimistic was applied. pending means the value was kept and only flagged.
	OptimisticWrite(key string, pending bool)
	// Reconcile replaced the entry with an authoritative value.
	Reconciled(key string)

	// A snapshot was deleted on read.
	// reason ∈ {"corrupt", "gen_mismatch", "value_decode"}
	SnapshotSelfHeal(storageKey, reason string)
	// Provider returned ok=false on Set (backpressure/eviction).
	ProviderSetRejected(storageKey string)
	// GenStore failed. op ∈ {"snapshot", "bump"}.
	GenStoreError(op, storageKey string, err error)
}

// NopHooks is the default no-op
type NopHooks struct{}

func (NopHooks) FetchStarted(string, uint64, Trigger)     {}
func (NopHooks) FetchDeduplicated(string)                 {}
func (NopHooks) FetchSuperseded(string, uint64, uint64)   {}
func (NopHooks) FetchSucceeded(string, time.Duration)     {}
func (NopHooks) FetchFailed(string, time.Duration, error) {}
func (NopHooks) OptimisticWrite(string, bool)             {}
func (NopHooks) Reconciled(string)                        {}
func (NopHooks) SnapshotSelfHeal(string, string)          {}
func (NopHooks) ProviderSetRejected(string)               {}
func (NopHooks) GenStoreError(string, string, error)      {}

// Multi fans every event out to hs in order.
func Multi(hs ...Hooks) Hooks { return multiHooks(hs) }

type multiHooks []Hooks

func (m multiHooks) FetchStarted(k string, g uint64, t Trigger) {
	for _, h := range m {
		h.FetchStarted(k, g, t)
	}
}

func (m multiHooks) FetchDeduplicated(k string) {
	for _, h := range m {
		h.FetchDeduplicated(k)
	}
}

func (m multiHooks) FetchSuperseded(k string, g, newest uint64) {
	for _, h := range m {
		h.FetchSuperseded(k, g, newest)
	}
}

func (m multiHooks) FetchSucceeded(k string, took time.Duration) {
	for _, h := range m {
		h.FetchSucceeded(k, took)
	}
}

func (m multiHooks) FetchFailed(k string, took time.Duration, err error) {
	for _, h := range m {
		h.FetchFailed(k, took, err)
	}
}

func (m multiHooks) OptimisticWrite(k string, pending bool) {
	for _, h := range m {
		h.OptimisticWrite(k, pending)
	}
}

func (m multiHooks) Reconciled(k string) {
	for _, h := range m {
		h.Reconciled(k)
	}
}

func (m multiHooks) SnapshotSelfHeal(sk, reason string) {
	for _, h := range m {
		h.SnapshotSelfHeal(sk, reason)
	}
}

func (m multiHooks) ProviderSetRejected(sk string) {
	for _, h := range m {
		h.ProviderSetRejected(sk)
	}
}

func (m multiHooks) GenStoreError(op, sk string, err error) {
	for _, h := range m {
		h.GenStoreError(op, sk, err)
	}
}
