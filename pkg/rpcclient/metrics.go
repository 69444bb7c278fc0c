package rpcclient

import (
	"errors"
	"time"

	"github.com/nspcc-dev/soltx/pkg/solrpc"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	rpcRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Help:      "Number of RPC requests by method and status",
			Name:      "requests_total",
			Subsystem: "rpc",
			Namespace: "soltx",
		},
		[]string{"method", "status"},
	)
	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Help:      "RPC request duration",
			Name:      "request_duration_seconds",
			Subsystem: "rpc",
			Namespace: "soltx",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)

func init() {
	prometheus.MustRegister(
		rpcRequests,
		rpcDuration,
	)
}

func requestStatus(err error) string {
	var remote *solrpc.Error
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &remote):
		return "remote_error"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	default:
		return "transport_error"
	}
}

func observeRequest(method string, start time.Time, err error) {
	rpcRequests.WithLabelValues(method, requestStatus(err)).Inc()
	rpcDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
}
