package genstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis shares generations between replicas: an invalidation in one
// process outdates snapshots any other process wrote. With a TTL the
// keyspace stays bounded; an expired gen reads as 0 and the matching
// snapshot self-heals on its next read.
type Redis struct {
	rdb redis.UniversalClient
	ns  string
	ttl time.Duration
}

var _ GenStore = (*Redis)(nil)

// NewRedis returns a generation store on client. ttl <= 0 disables expiry.
// Close leaves the client open.
func NewRedis(client redis.UniversalClient, namespace string, ttl time.Duration) *Redis {
	return &Redis{rdb: client, ns: namespace, ttl: ttl}
}

func (s *Redis) key(k string) string { return "gen:" + s.ns + ":" + k }

func (s *Redis) Snapshot(ctx context.Context, key string) (uint64, error) {
	g, err := s.rdb.Get(ctx, s.key(key)).Uint64()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, fmt.Errorf("genstore: read %s: %w", key, err)
	}
	return g, nil
}

// Bump runs INCR and EXPIRE in one MULTI so a bumped key never lives
// without its TTL.
func (s *Redis) Bump(ctx context.Context, key string) (uint64, error) {
	k := s.key(key)
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		incr = p.Incr(ctx, k)
		if s.ttl > 0 {
			p.Expire(ctx, k, s.ttl)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("genstore: bump %s: %w", key, err)
	}
	return uint64(incr.Val()), nil
}

// Cleanup is a no-op; Redis expires keys itself.
func (s *Redis) Cleanup(time.Duration) {}

func (s *Redis) Close(context.Context) error { return nil }
