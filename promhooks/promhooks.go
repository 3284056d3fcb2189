// Package promhooks exports store events as Prometheus metrics.
// Keys are reduced to their resource name so label cardinality stays bounded.
package promhooks

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/unkn0wn-root/swrcache"
	"github.com/unkn0wn-root/swrcache/internal/keys"
)

type Hooks struct {
	swrcache.NopHooks

	fetches     *prometheus.CounterVec
	dedup       *prometheus.CounterVec
	superseded  *prometheus.CounterVec
	fetchTime   *prometheus.HistogramVec
	optimistic  *prometheus.CounterVec
	selfHeal    *prometheus.CounterVec
	genStoreErr *prometheus.CounterVec
}

var _ swrcache.Hooks = (*Hooks)(nil)

// New registers the collectors on reg under the given namespace.
func New(reg prometheus.Registerer, namespace string) (*Hooks, error) {
	h := &Hooks{
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetches_total",
			Help:      "Fetches issued, by resource and trigger.",
		}, []string{"resource", "trigger"}),
		dedup: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_deduplicated_total",
			Help:      "Callers that joined a fetch already in flight.",
		}, []string{"resource"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_superseded_total",
			Help:      "Fetch results dropped because a newer fetch or write won.",
		}, []string{"resource"}),
		fetchTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Fetch latency, by resource and outcome.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"resource", "outcome"}),
		optimistic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "optimistic_writes_total",
			Help:      "Optimistic writes, by resource and mode.",
		}, []string{"resource", "mode"}),
		selfHeal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_self_heal_total",
			Help:      "Snapshots deleted on read.",
		}, []string{"reason"}),
		genStoreErr: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "genstore_errors_total",
			Help:      "Generation store failures.",
		}, []string{"op"}),
	}
	for _, c := range []prometheus.Collector{
		h.fetches, h.dedup, h.superseded, h.fetchTime, h.optimistic, h.selfHeal, h.genStoreErr,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return h, nil
}

func (h *Hooks) FetchStarted(key string, _ uint64, trigger swrcache.Trigger) {
	h.fetches.WithLabelValues(keys.Name(key), string(trigger)).Inc()
}

func (h *Hooks) FetchDeduplicated(key string) {
	h.dedup.WithLabelValues(keys.Name(key)).Inc()
}

func (h *Hooks) FetchSuperseded(key string, _, _ uint64) {
	h.superseded.WithLabelValues(keys.Name(key)).Inc()
}

func (h *Hooks) FetchSucceeded(key string, took time.Duration) {
	h.fetchTime.WithLabelValues(keys.Name(key), "ok").Observe(took.Seconds())
}

func (h *Hooks) FetchFailed(key string, took time.Duration, _ error) {
	h.fetchTime.WithLabelValues(keys.Name(key), "error").Observe(took.Seconds())
}

func (h *Hooks) OptimisticWrite(key string, pending bool) {
	mode := "value"
	if pending {
		mode = "pending"
	}
	h.optimistic.WithLabelValues(keys.Name(key), mode).Inc()
}

func (h *Hooks) SnapshotSelfHeal(_ string, reason string) {
	h.selfHeal.WithLabelValues(reason).Inc()
}

func (h *Hooks) GenStoreError(op, _ string, _ error) {
	h.genStoreErr.WithLabelValues(op).Inc()
}
