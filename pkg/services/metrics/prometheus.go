package metrics

import (
	"net/http"
	"time"

	"github.com/nspcc-dev/soltx/pkg/config"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readHeaderTimeout = 5 * time.Second

// NewPrometheusService creates a new service for gathering prometheus metrics.
func NewPrometheusService(cfg config.BasicService, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}

	addrs := cfg.GetAddresses()
	srvs := make([]*http.Server, len(addrs))
	handler := promhttp.Handler() // Shared between all servers.
	for i, addr := range addrs {
		srvs[i] = &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: readHeaderTimeout,
		}
	}
	return NewService("Prometheus", srvs, cfg, log)
}
