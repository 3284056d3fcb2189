package genstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*Redis, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedis(rdb, "test", ttl), mr
}

func TestRedisBumpAndSnapshot(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, 0)

	if g, err := s.Snapshot(ctx, "points/balance"); err != nil || g != 0 {
		t.Fatalf("missing key: g=%d err=%v", g, err)
	}
	for want := uint64(1); want <= 2; want++ {
		g, err := s.Bump(ctx, "points/balance")
		if err != nil || g != want {
			t.Fatalf("Bump: g=%d err=%v want %d", g, err, want)
		}
	}
	if g, err := s.Snapshot(ctx, "points/balance"); err != nil || g != 2 {
		t.Fatalf("Snapshot: g=%d err=%v", g, err)
	}
	if !mr.Exists("gen:test:points/balance") {
		t.Fatalf("expected namespaced gen key")
	}
}

func TestRedisBumpWithTTLExpires(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, time.Minute)

	if g, err := s.Bump(ctx, "kpi-summary"); err != nil || g != 1 {
		t.Fatalf("Bump: g=%d err=%v", g, err)
	}
	if ttl := mr.TTL("gen:test:kpi-summary"); ttl != time.Minute {
		t.Fatalf("TTL = %v, want 1m", ttl)
	}
	mr.FastForward(2 * time.Minute)
	if g, _ := s.Snapshot(ctx, "kpi-summary"); g != 0 {
		t.Fatalf("expired gen should read 0, got %d", g)
	}
}

func TestRedisSnapshotParseError(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, 0)
	_ = mr.Set("gen:test:bad", "not-a-number")
	if _, err := s.Snapshot(ctx, "bad"); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestRedisBumpWithoutTTLPersists(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, 0)
	if _, err := s.Bump(ctx, "products"); err != nil {
		t.Fatal(err)
	}
	if ttl := mr.TTL("gen:test:products"); ttl != 0 {
		t.Fatalf("TTL = %v, want none", ttl)
	}
}

func TestRedisUnreachableReturnsError(t *testing.T) {
	ctx := context.Background()
	s, mr := newRedisStore(t, 0)
	mr.Close()
	if _, err := s.Snapshot(ctx, "products"); err == nil {
		t.Fatalf("expected error from closed redis")
	}
	if _, err := s.Bump(ctx, "products"); err == nil {
		t.Fatalf("expected error from closed redis")
	}
}
