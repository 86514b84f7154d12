package oauth

import "github.com/prometheus/client_golang/prometheus"

const (
	resultOK       = "ok"
	resultRejected = "rejected"
	resultError    = "error"
)

var (
	tokenFetches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omhome_oauth_token_fetches_total",
			Help: "Token endpoint calls by result (ok, rejected credentials, transport or server error)",
		},
		[]string{"provider", "result"},
	)
	tokenExpiry = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_oauth_token_expiry_timestamp_seconds",
			Help: "Expiry of the cached access token, 0 when none is cached",
		},
		[]string{"provider"},
	)
	invalidations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omhome_oauth_invalidations_total",
			Help: "Access tokens dropped after the API rejected them",
		},
		[]string{"provider"},
	)
)

// MetricsCollectors returns the token manager collectors.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{tokenFetches, tokenExpiry, invalidations}
}
