package emitter

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors updated by a Factory. A nil
// *Metrics records nothing.
type Metrics struct {
	lookups     *prometheus.CounterVec
	synthesis   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	instances   *prometheus.CounterVec
	synthesisDt *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg, if reg is
// not nil.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		lookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emitter",
			Name:      "type_lookups_total",
			Help:      "Dispatcher type lookups by cache result.",
		}, []string{"result"}),
		synthesis: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emitter",
			Name:      "types_synthesized_total",
			Help:      "Dispatcher types produced, by strategy.",
		}, []string{"strategy"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emitter",
			Name:      "failures_total",
			Help:      "Failed dispatcher requests, by kind.",
		}, []string{"kind"}),
		instances: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "emitter",
			Name:      "instances_total",
			Help:      "Dispatcher instances created, by strategy.",
		}, []string{"strategy"}),
		synthesisDt: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "emitter",
			Name:      "synthesis_duration_seconds",
			Help:      "Time spent producing a dispatcher type.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"strategy"}),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.lookups, m.synthesis, m.failures, m.instances, m.synthesisDt} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("registering emitter metrics: %w", err)
			}
		}
	}
	return m, nil
}

func (m *Metrics) lookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.lookups.WithLabelValues(result).Inc()
}

func (m *Metrics) synthesized(s Strategy, took time.Duration) {
	if m == nil {
		return
	}
	m.synthesis.WithLabelValues(string(s)).Inc()
	m.synthesisDt.WithLabelValues(string(s)).Observe(took.Seconds())
}

func (m *Metrics) failed(kind string) {
	if m == nil {
		return
	}
	m.failures.WithLabelValues(kind).Inc()
}

func (m *Metrics) instantiated(s Strategy) {
	if m == nil {
		return
	}
	m.instances.WithLabelValues(string(s)).Inc()
}
