package confirm

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var outcomes = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Help:      "Number of confirmation races by outcome",
		Name:      "outcomes_total",
		Subsystem: "confirmation",
		Namespace: "soltx",
	},
	[]string{"outcome"},
)

func init() {
	prometheus.MustRegister(
		outcomes,
	)
}

func observeOutcome(out Outcome) {
	outcomes.WithLabelValues(out.Status.String()).Inc()
}
