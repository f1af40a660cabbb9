package machine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics instruments machine runs. All methods are nil-safe so the
// machine can run uninstrumented.
type Metrics struct {
	transitions *prometheus.CounterVec
	stepSeconds *prometheus.HistogramVec
}

// NewMetrics registers the machine metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "loom",
				Name:      "machine_transitions_total",
				Help:      "State transitions taken, by machine and edge.",
			},
			[]string{"machine", "from", "to"},
		),
		stepSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "loom",
				Name:      "machine_step_duration_seconds",
				Help:      "Wall time of one state entry, including its entry action and decision call.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 3, 10),
			},
			[]string{"machine", "state"},
		),
	}
	reg.MustRegister(m.transitions, m.stepSeconds)
	return m
}

// CountTransition records one taken edge.
func (m *Metrics) CountTransition(machine, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(machine, from, to).Inc()
}

// ObserveStep records the duration of one state entry.
func (m *Metrics) ObserveStep(machine, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepSeconds.WithLabelValues(machine, state).Observe(d.Seconds())
}
