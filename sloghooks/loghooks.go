// Package sloghooks logs store events with log/slog.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/unkn0wn-root/swrcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	SelfHealEvery uint64
	DedupEvery    uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	selfHealCtr atomic.Uint64
	dedupCtr    atomic.Uint64
}

var _ swrcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) FetchStarted(key string, gen uint64, trigger swrcache.Trigger) {
	if h.l == nil {
		return
	}
	h.l.Debug("swrcache.fetch_started",
		"key", h.redact(key),
		"gen", gen,
		"trigger", string(trigger))
}

func (h *Hooks) FetchDeduplicated(key string) {
	if h.l == nil || !sample(h.opts.DedupEvery, &h.dedupCtr) {
		return
	}
	h.l.Debug("swrcache.fetch_deduplicated", "key", h.redact(key))
}

func (h *Hooks) FetchSuperseded(key string, gen, newest uint64) {
	if h.l == nil {
		return
	}
	h.l.Info("swrcache.fetch_superseded",
		"key", h.redact(key),
		"gen", gen,
		"newest", newest)
}

func (h *Hooks) FetchSucceeded(key string, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Debug("swrcache.fetch_succeeded", "key", h.redact(key), "took", took)
}

func (h *Hooks) FetchFailed(key string, took time.Duration, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.fetch_failed",
		"key", h.redact(key),
		"took", took,
		"err", err)
}

func (h *Hooks) OptimisticWrite(key string, pending bool) {
	if h.l == nil {
		return
	}
	h.l.Info("swrcache.optimistic_write", "key", h.redact(key), "pending", pending)
}

func (h *Hooks) Reconciled(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("swrcache.reconciled", "key", h.redact(key))
}

func (h *Hooks) SnapshotSelfHeal(storageKey, reason string) {
	if h.l == nil || !sample(h.opts.SelfHealEvery, &h.selfHealCtr) {
		return
	}
	h.l.Debug("swrcache.snapshot_self_heal",
		"key", h.redact(storageKey),
		"reason", reason)
}

func (h *Hooks) ProviderSetRejected(storageKey string) {
	if h.l == nil {
		return
	}
	h.l.Warn("swrcache.provider_set_rejected", "key", h.redact(storageKey))
}

func (h *Hooks) GenStoreError(op, storageKey string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("swrcache.genstore_error",
		"op", op,
		"key", h.redact(storageKey),
		"err", err)
}
