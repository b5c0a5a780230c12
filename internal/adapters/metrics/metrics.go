// Package metrics records pipeline counters in a Prometheus registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.trai.ch/tsl/internal/core/domain"
	"go.trai.ch/tsl/internal/core/ports"
	"go.trai.ch/zerr"
)

var _ ports.Metrics = (*Prometheus)(nil)

const namespace = "tsl"

// Prometheus implements ports.Metrics on a private registry.
type Prometheus struct {
	registry  *prometheus.Registry
	hits      *prometheus.CounterVec
	misses    prometheus.Counter
	evictions *prometheus.CounterVec
	frontend  *prometheus.CounterVec
	tasks     *prometheus.CounterVec
	retries   *prometheus.CounterVec
	restarts  prometheus.Counter
}

// New creates the counters and registers them on a fresh registry.
func New() *Prometheus {
	m := &Prometheus{
		registry: prometheus.NewRegistry(),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Count of cache lookups served, by tier",
		}, []string{"tier"}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Count of cache lookups missing both tiers",
		}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Count of entries evicted, by tier",
		}, []string{"tier"}),
		frontend: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "frontend",
			Name:      "invocations_total",
			Help:      "Count of frontend runs, by task kind",
		}, []string{"kind"}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "tasks_total",
			Help:      "Count of finished pool tasks, by kind and outcome",
		}, []string{"kind", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "task_retries_total",
			Help:      "Count of tasks requeued after a timeout, by kind",
		}, []string{"kind"}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pool",
			Name:      "worker_restarts_total",
			Help:      "Count of workers replaced after a crash",
		}),
	}
	m.registry.MustRegister(m.hits, m.misses, m.evictions, m.frontend, m.tasks, m.retries, m.restarts)
	return m
}

// Registry returns the registry holding the counters.
func (m *Prometheus) Registry() *prometheus.Registry {
	return m.registry
}

// CacheHit counts a lookup served by tier.
func (m *Prometheus) CacheHit(tier string) {
	m.hits.WithLabelValues(tier).Inc()
}

// CacheMiss counts a lookup missing both tiers.
func (m *Prometheus) CacheMiss() {
	m.misses.Inc()
}

// CacheEvicted counts n entries evicted from tier.
func (m *Prometheus) CacheEvicted(tier string, n int) {
	m.evictions.WithLabelValues(tier).Add(float64(n))
}

// FrontendInvoked counts a frontend run.
func (m *Prometheus) FrontendInvoked(kind domain.TaskKind) {
	m.frontend.WithLabelValues(string(kind)).Inc()
}

// TaskFinished counts a task leaving the pool with outcome.
func (m *Prometheus) TaskFinished(kind domain.TaskKind, outcome string) {
	m.tasks.WithLabelValues(string(kind), outcome).Inc()
}

// TaskRetried counts a task requeued after a timeout.
func (m *Prometheus) TaskRetried(kind domain.TaskKind) {
	m.retries.WithLabelValues(string(kind)).Inc()
}

// WorkerRestarted counts a worker replaced after a crash.
func (m *Prometheus) WorkerRestarted() {
	m.restarts.Inc()
}

// WriteToTextfile writes the registry in the text exposition format to path.
func (m *Prometheus) WriteToTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return zerr.With(zerr.Wrap(err, domain.ErrMetricsWriteFailed.Error()), "path", path)
	}
	return nil
}

// Value returns the current value of the counter name with the given label
// values, ordered by label name. It returns 0 for series never incremented.
func (m *Prometheus) Value(name string, labels ...string) float64 {
	families, err := m.registry.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			pairs := metric.GetLabel()
			if len(pairs) != len(labels) {
				continue
			}
			match := true
			for i, p := range pairs {
				if p.GetValue() != labels[i] {
					match = false
					break
				}
			}
			if match {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}
