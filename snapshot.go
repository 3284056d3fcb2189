package swrcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/swrcache/codec"
	gen "github.com/unkn0wn-root/swrcache/genstore"
	"github.com/unkn0wn-root/swrcache/internal/wire"
	pr "github.com/unkn0wn-root/swrcache/provider"
)

// snapshots persists last good values in a Provider so a new entry can
// start warm. Writes are CAS-guarded by the GenStore generation.
type snapshots struct {
	ns       string
	provider pr.Provider
	gen      gen.GenStore
	ttl      time.Duration
	cost     func(string, []byte) int64
	log      Logger
	hooks    Hooks
}

type warmValue struct {
	value     any
	fetchedAt time.Time
}

func (t *snapshots) storageKey(key string) string {
	// isolate by namespace
	return "snap:" + t.ns + ":" + key
}

// observe returns the generation to write a later snapshot with.
// ok=false means the write must be skipped.
func (t *snapshots) observe(ctx context.Context, key string) (uint64, bool) {
	sk := t.storageKey(key)
	g, err := t.gen.Snapshot(ctx, sk)
	if err != nil {
		t.log.Warn("gen snapshot error", Fields{"key": sk, "err": err})
		t.hooks.GenStoreError("snapshot", sk, err)
		return 0, false
	}
	return g, true
}

func (t *snapshots) load(ctx context.Context, key string, cd c.Codec[any]) (warmValue, bool) {
	sk := t.storageKey(key)
	raw, ok, err := t.provider.Get(ctx, sk)
	if err != nil {
		t.log.Warn("snapshot read failed", Fields{"key": sk, "err": err})
		return warmValue{}, false
	}
	if !ok {
		return warmValue{}, false
	}
	snap, err := wire.Decode(raw)
	if err != nil {
		t.selfHeal(ctx, sk, "corrupt")
		return warmValue{}, false
	}
	cur, ok := t.observe(ctx, key)
	if !ok {
		return warmValue{}, false
	}
	if snap.Gen != cur {
		t.selfHeal(ctx, sk, "gen_mismatch")
		return warmValue{}, false
	}
	v, err := cd.Decode(snap.Payload)
	if err != nil {
		t.selfHeal(ctx, sk, "value_decode")
		return warmValue{}, false
	}
	return warmValue{value: v, fetchedAt: snap.FetchedAt}, true
}

func (t *snapshots) store(ctx context.Context, key string, v any, observed uint64, fetchedAt time.Time, cd c.Codec[any]) {
	sk := t.storageKey(key)
	if cur, ok := t.observe(ctx, key); !ok || cur != observed {
		// generation moved; skip stale write
		t.log.Debug("snapshot write skipped (gen mismatch)", Fields{"key": key, "obs": observed})
		return
	}
	payload, err := cd.Encode(v)
	if err != nil {
		t.log.Warn("snapshot encode failed", Fields{"key": key, "err": err})
		return
	}
	raw := wire.Encode(wire.Snapshot{Gen: observed, FetchedAt: fetchedAt, Payload: payload})
	ok, err := t.provider.Set(ctx, sk, raw, t.cost(sk, raw), t.ttl)
	if err != nil {
		t.log.Warn("snapshot write failed", Fields{"key": key, "err": err})
		return
	}
	if !ok {
		t.log.Debug("snapshot rejected by provider (pressure)", Fields{"key": key})
		t.hooks.ProviderSetRejected(sk)
	}
}

// invalidate bumps the generation and drops the stored snapshot.
func (t *snapshots) invalidate(ctx context.Context, key string) error {
	sk := t.storageKey(key)
	newGen, bumpErr := t.gen.Bump(ctx, sk)
	if bumpErr != nil {
		t.hooks.GenStoreError("bump", sk, bumpErr)
	}
	delErr := t.provider.Del(ctx, sk)
	if bumpErr != nil || delErr != nil {
		return &InvalidateError{Key: key, BumpErr: bumpErr, DelErr: delErr}
	}
	t.log.Debug("snapshot invalidated (bumped gen + deleted)", Fields{"key": key, "newGen": newGen})
	return nil
}

func (t *snapshots) selfHeal(ctx context.Context, sk, reason string) {
	_ = t.provider.Del(ctx, sk)
	t.hooks.SnapshotSelfHeal(sk, reason)
}

func (t *snapshots) close(ctx context.Context) error {
	_ = t.gen.Close(ctx) // best effort
	return t.provider.Close(ctx)
}
