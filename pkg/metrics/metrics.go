// Package metrics exposes pool statistics to Prometheus.
//
// # Overview
//
// The metrics package provides:
//   - PoolCollector, a prometheus.Collector that reads pool Stats on scrape
//   - A phase latency histogram for bench workloads
//   - A Timer helper for measuring phases
//
// # Basic Usage
//
//	reg := prometheus.NewRegistry()
//	reg.MustRegister(metrics.NewPoolCollector("entities", entities))
//
//	timer := metrics.NewTimer("allocate")
//	allocateAll(entities)
//	phases.WithLabelValues("entities", "allocate").Observe(timer.Stop().Seconds())
//
// # Consistency
//
// Pools are single-owner and unlocked, so Collect reads Stats directly.
// Gather from the goroutine that owns the pool, or only while it is idle.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ajitpratap0/chunkpool/pkg/pool"
)

const namespace = "chunkpool"

// StatsSource is anything that can report pool statistics; *pool.Pool[T]
// satisfies it for every T.
type StatsSource interface {
	Stats() pool.Stats
}

// PoolCollector reports one pool's counts and counters, labelled with the
// pool name.
type PoolCollector struct {
	source StatsSource

	used           *prometheus.Desc
	free           *prometheus.Desc
	capacity       *prometheus.Desc
	chunks         *prometheus.Desc
	allocations    *prometheus.Desc
	releases       *prometheus.Desc
	failedReleases *prometheus.Desc
	grows          *prometheus.Desc
	clears         *prometheus.Desc
}

// NewPoolCollector creates a collector for source labelled pool=name.
//
// Example:
//
//	reg.MustRegister(metrics.NewPoolCollector("lights", lights))
func NewPoolCollector(name string, source StatsSource) *PoolCollector {
	labels := prometheus.Labels{"pool": name}
	desc := func(metric, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", metric), help, nil, labels)
	}
	return &PoolCollector{
		source:         source,
		used:           desc("used_slots", "Number of slots holding a live object"),
		free:           desc("free_slots", "Number of free slots across all chunks"),
		capacity:       desc("capacity_slots", "Total number of slots across all chunks"),
		chunks:         desc("chunks", "Number of allocated chunks"),
		allocations:    desc("allocations_total", "Total successful allocations"),
		releases:       desc("releases_total", "Total successful releases"),
		failedReleases: desc("failed_releases_total", "Total rejected releases (not found, double free)"),
		grows:          desc("grows_total", "Total chunks appended"),
		clears:         desc("clears_total", "Total Clear calls that dropped chunks"),
	}
}

// Describe implements prometheus.Collector
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.used
	ch <- c.free
	ch <- c.capacity
	ch <- c.chunks
	ch <- c.allocations
	ch <- c.releases
	ch <- c.failedReleases
	ch <- c.grows
	ch <- c.clears
}

// Collect implements prometheus.Collector
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	s := c.source.Stats()
	ch <- prometheus.MustNewConstMetric(c.used, prometheus.GaugeValue, float64(s.Used))
	ch <- prometheus.MustNewConstMetric(c.free, prometheus.GaugeValue, float64(s.Free))
	ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity))
	ch <- prometheus.MustNewConstMetric(c.chunks, prometheus.GaugeValue, float64(s.Chunks))
	ch <- prometheus.MustNewConstMetric(c.allocations, prometheus.CounterValue, float64(s.Allocations))
	ch <- prometheus.MustNewConstMetric(c.releases, prometheus.CounterValue, float64(s.Releases))
	ch <- prometheus.MustNewConstMetric(c.failedReleases, prometheus.CounterValue, float64(s.FailedReleases))
	ch <- prometheus.MustNewConstMetric(c.grows, prometheus.CounterValue, float64(s.Grows))
	ch <- prometheus.MustNewConstMetric(c.clears, prometheus.CounterValue, float64(s.Clears))
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPhaseHistogram creates an unregistered histogram of workload phase
// durations in seconds, labelled by pool and phase.
func NewPhaseHistogram() *prometheus.HistogramVec {
	return prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of bench workload phases",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		},
		[]string{"pool", "phase"},
	)
}

// Timer measures elapsed time for a single operation
type Timer struct {
	start time.Time
	name  string
}

// NewTimer creates a new timer and starts timing immediately.
// The name parameter is for identification in logs or metrics.
func NewTimer(name string) *Timer {
	return &Timer{
		start: time.Now(),
		name:  name,
	}
}

// Name returns the timer's name
func (t *Timer) Name() string {
	return t.name
}

// Stop returns the elapsed duration since creation. The timer can be
// stopped multiple times.
func (t *Timer) Stop() time.Duration {
	return time.Since(t.start)
}
