package sender

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var rebroadcasts = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Help:      "Number of transaction send attempts by status",
		Name:      "attempts_total",
		Subsystem: "rebroadcast",
		Namespace: "soltx",
	},
	[]string{"status"},
)

func init() {
	prometheus.MustRegister(
		rebroadcasts,
	)
}

func observeAttempt(ok bool) {
	var status = "failed"
	if ok {
		status = "ok"
	}
	rebroadcasts.WithLabelValues(status).Inc()
}
