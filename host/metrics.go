package host

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts processed transactions
type Metrics struct {
	Transactions *prometheus.CounterVec
	Instructions prometheus.Histogram
}

// DefaultInstructionBuckets bucket the instructions per transaction histogram
var DefaultInstructionBuckets = prometheus.ExponentialBuckets(1, 2, 8)

// NewMetrics creates the bank collectors and registers them with reg when it
// is not nil. Empty buckets mean DefaultInstructionBuckets.
func NewMetrics(reg prometheus.Registerer, buckets ...float64) *Metrics {
	if len(buckets) == 0 {
		buckets = DefaultInstructionBuckets
	}
	m := &Metrics{
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "crank",
			Subsystem: "bank",
			Name:      "transactions_total",
			Help:      "Transactions processed, by result.",
		}, []string{"result"}),
		Instructions: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "crank",
			Subsystem: "bank",
			Name:      "transaction_instructions",
			Help:      "Instructions per committed transaction.",
			Buckets:   buckets,
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Transactions, m.Instructions)
	}
	return m
}

func (m *Metrics) observe(tx *Transaction, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Transactions.WithLabelValues("rejected").Inc()
		return
	}
	m.Transactions.WithLabelValues("committed").Inc()
	m.Instructions.Observe(float64(len(tx.Instructions)))
}
