package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MetricsHandler exposes registry in text or OpenMetrics format. Collector
// errors are logged and the remaining metrics are still served. The handler
// instruments itself on the same registry.
func MetricsHandler(registry *prometheus.Registry, log *logrus.Entry) http.Handler {
	opts := promhttp.HandlerOpts{
		ErrorHandling:       promhttp.ContinueOnError,
		Registry:            registry,
		EnableOpenMetrics:   true,
		MaxRequestsInFlight: 4,
		Timeout:             10 * time.Second,
	}
	if log != nil {
		opts.ErrorLog = log
	}
	return promhttp.InstrumentMetricHandler(registry, promhttp.HandlerFor(registry, opts))
}
