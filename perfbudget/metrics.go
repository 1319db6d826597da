package perfbudget

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsNamespace prefixes every metric this package exports.
const MetricsNamespace = "e2e"

// outcome label values for operations_total.
const (
	outcomeWithin     = "within"
	outcomeOver       = "over"
	outcomeUnbudgeted = "unbudgeted"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: MetricsNamespace,
		Subsystem: "perf",
		Name:      "operations_total",
		Help:      "Count of measured operations by outcome",
	}, []string{
		"op",
		"outcome",
	})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: MetricsNamespace,
		Subsystem: "perf",
		Name:      "operation_duration_seconds",
		Help:      "Duration of measured operations",
		Buckets:   []float64{0.005, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{
		"op",
	})

	budgetHeadroom = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: MetricsNamespace,
		Subsystem: "perf",
		Name:      "budget_headroom_seconds",
		Help:      "Remaining budget after the most recent sample of each operation (negative when over)",
	}, []string{
		"op",
	})
)

// publishSample records one sample in the package metrics.
func publishSample(sample Sample) {
	outcome := outcomeUnbudgeted
	switch {
	case sample.Over:
		outcome = outcomeOver
	case sample.Budget > 0:
		outcome = outcomeWithin
	}

	operationsTotal.WithLabelValues(sample.Op, outcome).Inc()
	operationDuration.WithLabelValues(sample.Op).Observe(sample.Elapsed.Seconds())
	if sample.Budget > 0 {
		budgetHeadroom.WithLabelValues(sample.Op).Set((sample.Budget - sample.Elapsed).Seconds())
	}
}
