// Package ristretto keeps snapshots in an in-process ristretto cache.
// Cost is payload bytes, so MaxBytes bounds the tier's memory.
package ristretto

import (
	"context"
	"errors"
	"time"

	rc "github.com/dgraph-io/ristretto"
	"github.com/prometheus/client_golang/prometheus"

	pr "github.com/unkn0wn-root/swrcache/provider"
)

// avgSnapshotBytes sizes the admission counters: ristretto wants about ten
// counters per entry it can hold.
const avgSnapshotBytes = 1 << 10

type Config struct {
	MaxBytes int64
	// Metrics enables ristretto's counters and Collector.
	Metrics bool
}

type Provider struct {
	c   *rc.Cache
	max int64
}

var _ pr.Provider = (*Provider)(nil)

func New(cfg Config) (*Provider, error) {
	if cfg.MaxBytes <= 0 {
		return nil, errors.New("ristretto: MaxBytes must be positive")
	}
	c, err := rc.NewCache(&rc.Config{
		NumCounters:        max(10*cfg.MaxBytes/avgSnapshotBytes, 1000),
		MaxCost:            cfg.MaxBytes,
		BufferItems:        64,
		Metrics:            cfg.Metrics,
		IgnoreInternalCost: true, // cost is payload bytes only
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c, max: cfg.MaxBytes}, nil
}

func (p *Provider) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false, nil
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false, nil
	}
	return b, true, nil
}

// Set admits value and waits for the write buffer, so a snapshot is
// readable as soon as Set returns. Values larger than MaxBytes are refused.
func (p *Provider) Set(_ context.Context, key string, value []byte, cost int64, ttl time.Duration) (bool, error) {
	if cost <= 0 {
		cost = int64(len(value))
	}
	if cost > p.max {
		return false, nil
	}
	if ttl < 0 {
		ttl = 0
	}
	if !p.c.SetWithTTL(key, value, cost, ttl) {
		return false, nil
	}
	p.c.Wait()
	return true, nil
}

func (p *Provider) Del(_ context.Context, key string) error {
	p.c.Del(key)
	return nil
}

func (p *Provider) Close(context.Context) error {
	p.c.Close()
	return nil
}

// Collector exports the cache counters. They read as zero unless
// Config.Metrics is set.
func (p *Provider) Collector(namespace string) prometheus.Collector {
	return &collector{p: p, descs: newDescs(namespace)}
}

type descs struct {
	hits, misses, added, evicted, rejected, costAdded, costEvicted *prometheus.Desc
}

func newDescs(ns string) descs {
	d := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(ns, "snapshot_cache", name), help, nil, nil)
	}
	return descs{
		hits:        d("hits_total", "Snapshot reads served from memory."),
		misses:      d("misses_total", "Snapshot reads that found nothing."),
		added:       d("keys_added_total", "Snapshots admitted."),
		evicted:     d("keys_evicted_total", "Snapshots evicted for space."),
		rejected:    d("sets_rejected_total", "Snapshot writes refused by the admission policy."),
		costAdded:   d("bytes_added_total", "Snapshot bytes admitted."),
		costEvicted: d("bytes_evicted_total", "Snapshot bytes evicted."),
	}
}

type collector struct {
	p     *Provider
	descs descs
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	d := c.descs
	for _, x := range []*prometheus.Desc{d.hits, d.misses, d.added, d.evicted, d.rejected, d.costAdded, d.costEvicted} {
		ch <- x
	}
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	m, d := c.p.c.Metrics, c.descs
	counter := func(desc *prometheus.Desc, v uint64) {
		ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, float64(v))
	}
	counter(d.hits, m.Hits())
	counter(d.misses, m.Misses())
	counter(d.added, m.KeysAdded())
	counter(d.evicted, m.KeysEvicted())
	counter(d.rejected, m.SetsRejected())
	counter(d.costAdded, m.CostAdded())
	counter(d.costEvicted, m.CostEvicted())
}
