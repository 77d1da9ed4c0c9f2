package shmstore

// metrics.go is a thin abstraction over Prometheus, used with or without a
// *prometheus.Registry: when Config.Registry is nil the hot path pays
// nothing (a noop sink); otherwise labeled counters/gauges are registered
// and updated on every CachedStore operation and arena gauge sample.
//
// The metric set covers the overlay+old/new+arena surface: hit/miss/add/
// remove/oldify/revive counters per value type, a collect counter, and
// heap/hash/dep gauges.
//
// © 2025 shmstore authors. MIT License.

import (
	"github.com/prometheus/client_golang/prometheus"
)

// metricsSink abstracts the concrete backend away from CachedStore; callers
// only ever see the generic methods here.
type metricsSink interface {
	incHit(typeTag string)
	incMiss(typeTag string)
	incAdd(typeTag string)
	incRemove(typeTag string)
	incOldify(typeTag string)
	incRevive(typeTag string)
	incCollect()
	setHeapGauges(used, wasted, hashSlots, depSlots int64)
}

type noopMetrics struct{}

func (noopMetrics) incHit(string)                            {}
func (noopMetrics) incMiss(string)                            {}
func (noopMetrics) incAdd(string)                             {}
func (noopMetrics) incRemove(string)                          {}
func (noopMetrics) incOldify(string)                          {}
func (noopMetrics) incRevive(string)                          {}
func (noopMetrics) incCollect()                               {}
func (noopMetrics) setHeapGauges(used, wasted, hash, dep int64) {}

type promMetrics struct {
	hits      *prometheus.CounterVec
	misses    *prometheus.CounterVec
	adds      *prometheus.CounterVec
	removes   *prometheus.CounterVec
	oldifies  *prometheus.CounterVec
	revives   *prometheus.CounterVec
	collects  prometheus.Counter
	heapUsed  prometheus.Gauge
	heapWaste prometheus.Gauge
	hashSlots prometheus.Gauge
	depSlots  prometheus.Gauge
}

func newPromMetrics(reg *prometheus.Registry) *promMetrics {
	label := []string{"type"}
	pm := &promMetrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "cache_hits_total", Help: "Local-cache hits.",
		}, label),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "cache_misses_total", Help: "Local-cache misses.",
		}, label),
		adds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "adds_total", Help: "Successful Add calls.",
		}, label),
		removes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "removes_total", Help: "Successful Remove calls.",
		}, label),
		oldifies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "oldify_total", Help: "Keys moved to the old namespace.",
		}, label),
		revives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "revive_total", Help: "Keys moved back to the new namespace.",
		}, label),
		collects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "shmstore", Name: "collect_total", Help: "Arena mark-and-sweep runs.",
		}),
		heapUsed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shmstore", Name: "heap_used_bytes", Help: "Live bytes allocated in the arena heap.",
		}),
		heapWaste: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shmstore", Name: "heap_wasted_bytes", Help: "Bytes reclaimable by the next Collect.",
		}),
		hashSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shmstore", Name: "hash_used_slots", Help: "Occupied hash-table slots.",
		}),
		depSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "shmstore", Name: "dep_used_slots", Help: "Occupied dependency-table slots.",
		}),
	}
	reg.MustRegister(pm.hits, pm.misses, pm.adds, pm.removes, pm.oldifies, pm.revives,
		pm.collects, pm.heapUsed, pm.heapWaste, pm.hashSlots, pm.depSlots)
	return pm
}

func (m *promMetrics) incHit(t string)    { m.hits.WithLabelValues(t).Inc() }
func (m *promMetrics) incMiss(t string)   { m.misses.WithLabelValues(t).Inc() }
func (m *promMetrics) incAdd(t string)    { m.adds.WithLabelValues(t).Inc() }
func (m *promMetrics) incRemove(t string) { m.removes.WithLabelValues(t).Inc() }
func (m *promMetrics) incOldify(t string) { m.oldifies.WithLabelValues(t).Inc() }
func (m *promMetrics) incRevive(t string) { m.revives.WithLabelValues(t).Inc() }
func (m *promMetrics) incCollect()        { m.collects.Inc() }
func (m *promMetrics) setHeapGauges(used, wasted, hashSlots, depSlots int64) {
	m.heapUsed.Set(float64(used))
	m.heapWaste.Set(float64(wasted))
	m.hashSlots.Set(float64(hashSlots))
	m.depSlots.Set(float64(depSlots))
}

// newMetricsSink returns a noop sink when reg is nil, otherwise a
// Prometheus-backed one registered against reg.
func newMetricsSink(reg *prometheus.Registry) metricsSink {
	if reg == nil {
		return noopMetrics{}
	}
	return newPromMetrics(reg)
}
