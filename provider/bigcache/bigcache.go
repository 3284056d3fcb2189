// Package bigcache keeps snapshots in bigcache's off-heap shards.
//
// bigcache evicts on one global life window. Per-call TTLs are kept by
// prefixing every value with its deadline (unix nanos, big endian); an
// entry past its deadline reads as a miss and is deleted.
package bigcache

import (
	"context"
	"encoding/binary"
	"errors"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/swrcache/provider"
)

const deadlineLen = 8

type Config struct {
	// LifeWindow is the hard upper bound on any entry's life.
	LifeWindow time.Duration
	// MaxBytes caps the shards; 0 means unbounded.
	MaxBytes int64
}

type Provider struct {
	c   *bc.BigCache
	now func() time.Time
}

var _ pr.Provider = (*Provider)(nil)

func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.LifeWindow <= 0 {
		return nil, errors.New("bigcache: LifeWindow must be positive")
	}
	conf := bc.DefaultConfig(cfg.LifeWindow)
	conf.Verbose = false
	// a dashboard holds dozens of keys, not millions
	conf.Shards = 64
	conf.MaxEntriesInWindow = 10_000
	conf.MaxEntrySize = 1 << 10
	conf.CleanWindow = max(cfg.LifeWindow/4, time.Second)
	if cfg.MaxBytes > 0 {
		conf.HardMaxCacheSize = int(max(cfg.MaxBytes>>20, 1))
	}
	c, err := bc.New(ctx, conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, now: time.Now}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	b, err := p.c.Get(key)
	switch {
	case errors.Is(err, bc.ErrEntryNotFound):
		return nil, false, nil
	case err != nil:
		return nil, false, err
	}
	if len(b) < deadlineLen {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	if d := int64(binary.BigEndian.Uint64(b)); d != 0 && p.now().UnixNano() >= d {
		_ = p.c.Delete(key)
		return nil, false, nil
	}
	return b[deadlineLen:], true, nil
}

// Set ignores cost; ttl <= 0 leaves only the life window.
func (p *Provider) Set(_ context.Context, key string, value []byte, _ int64, ttl time.Duration) (bool, error) {
	buf := make([]byte, deadlineLen+len(value))
	if ttl > 0 {
		binary.BigEndian.PutUint64(buf, uint64(p.now().Add(ttl).UnixNano()))
	}
	copy(buf[deadlineLen:], value)
	if err := p.c.Set(key, buf); err != nil {
		return false, err
	}
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	err := p.c.Delete(key)
	if errors.Is(err, bc.ErrEntryNotFound) {
		return nil
	}
	return err
}

func (p *Provider) Close(context.Context) error {
	return p.c.Close()
}
