package program

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what the processor executes
type Metrics struct {
	Controls   *prometheus.CounterVec
	Cranks     *prometheus.CounterVec
	Rejections *prometheus.CounterVec
}

// NewMetrics creates the processor collectors and registers them with reg
// when it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crank",
			Subsystem: "program",
			Name:      "control_instructions_total",
			Help:      "Control instructions accepted, by kind.",
		}, []string{"kind"}),
		Cranks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crank",
			Subsystem: "program",
			Name:      "cranks_total",
			Help:      "DSL instructions executed, by tag.",
		}, []string{"tag"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crank",
			Subsystem: "program",
			Name:      "rejections_total",
			Help:      "Control instructions rejected, by kind.",
		}, []string{"kind"}),
	}
	if reg != nil {
		reg.MustRegister(m.Controls, m.Cranks, m.Rejections)
	}
	return m
}

func (m *Metrics) control(d Discriminant) {
	if m != nil {
		m.Controls.WithLabelValues(d.String()).Inc()
	}
}

func (m *Metrics) crank(t string) {
	if m != nil {
		m.Cranks.WithLabelValues(t).Inc()
	}
}

func (m *Metrics) reject(kind string) {
	if m != nil {
		m.Rejections.WithLabelValues(kind).Inc()
	}
}
