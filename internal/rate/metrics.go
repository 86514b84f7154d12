package rate

import "github.com/prometheus/client_golang/prometheus"

var (
	remainingGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_rate_limit_remaining",
			Help: "Requests left in the budget window, as reported upstream or estimated locally",
		},
		[]string{"provider", "window"},
	)
	retryAfterGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_rate_limit_retry_after_seconds",
			Help: "Last Retry-After announced by the upstream",
		},
		[]string{"provider"},
	)
	lastStatusGauge = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_rate_limit_last_status_code",
			Help: "Status code of the last response seen by the limiter",
		},
		[]string{"provider"},
	)
	blockedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omhome_rate_limit_blocked_total",
			Help: "Requests refused locally before reaching the upstream",
		},
		[]string{"provider", "reason"},
	)
)

// MetricsCollectors returns the limiter collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		remainingGauge,
		retryAfterGauge,
		lastStatusGauge,
		blockedTotal,
	}
}
