package menu

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks menu activity. A nil *Metrics is valid and records nothing.
type Metrics struct {
	created      *prometheus.CounterVec
	disbanded    *prometheus.CounterVec
	moveFailures prometheus.Counter
	active       prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg when non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		created: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadrouter",
			Name:      "menus_created_total",
			Help:      "Menus created, by variant.",
		}, []string{"variant"}),
		disbanded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "threadrouter",
			Name:      "menus_disbanded_total",
			Help:      "Menus disbanded, by reason.",
		}, []string{"reason"}),
		moveFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "threadrouter",
			Name:      "thread_move_failures_total",
			Help:      "Thread moves rejected by the transport.",
		}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "threadrouter",
			Name:      "menus_active",
			Help:      "Menus currently waiting for input.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.created, m.disbanded, m.moveFailures, m.active)
	}
	return m
}

func (m *Metrics) menuCreated(variant string) {
	if m == nil {
		return
	}
	m.created.WithLabelValues(variant).Inc()
	m.active.Inc()
}

func (m *Metrics) menuDisbanded(reason Reason) {
	if m == nil {
		return
	}
	m.disbanded.WithLabelValues(string(reason)).Inc()
	m.active.Dec()
}

func (m *Metrics) moveFailed() {
	if m == nil {
		return
	}
	m.moveFailures.Inc()
}
