// Package asynchook moves hook work off the store's hot path.
//
// usage:
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{SelfHealEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	store, _ := swrcache.New(swrcache.Options{
//	    Namespace: "dash:prod",
//	    Hooks:     hooks, // or raw if you don't want async
//	})
package asynchook

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type Hooks struct {
	inner   swrcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ swrcache.Hooks = (*Hooks)(nil)

func New(inner swrcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains the queue. Events raised after Close are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped counts events lost to a full queue.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default: // drop
		h.dropped.Add(1)
	}
}

func (h *Hooks) FetchStarted(k string, g uint64, tr swrcache.Trigger) {
	h.try(func() { h.inner.FetchStarted(k, g, tr) })
}
func (h *Hooks) FetchDeduplicated(k string) { h.try(func() { h.inner.FetchDeduplicated(k) }) }
func (h *Hooks) FetchSuperseded(k string, g, newest uint64) {
	h.try(func() { h.inner.FetchSuperseded(k, g, newest) })
}
func (h *Hooks) FetchSucceeded(k string, took time.Duration) {
	h.try(func() { h.inner.FetchSucceeded(k, took) })
}
func (h *Hooks) FetchFailed(k string, took time.Duration, err error) {
	h.try(func() { h.inner.FetchFailed(k, took, err) })
}
func (h *Hooks) OptimisticWrite(k string, pending bool) {
	h.try(func() { h.inner.OptimisticWrite(k, pending) })
}
func (h *Hooks) Reconciled(k string)          { h.try(func() { h.inner.Reconciled(k) }) }
func (h *Hooks) SnapshotSelfHeal(k, r string) { h.try(func() { h.inner.SnapshotSelfHeal(k, r) }) }
func (h *Hooks) ProviderSetRejected(k string) { h.try(func() { h.inner.ProviderSetRejected(k) }) }
func (h *Hooks) GenStoreError(op, k string, err error) {
	h.try(func() { h.inner.GenStoreError(op, k, err) })
}
