package coordinator

import "github.com/prometheus/client_golang/prometheus"

var (
	refreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omhome_coordinator_refresh_total",
			Help: "Refresh cycles by result (success, partial, failure, cancelled)",
		},
		[]string{"coordinator", "result"},
	)
	kindFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omhome_coordinator_kind_fetch_failures_total",
			Help: "Failed fetches per resource kind",
		},
		[]string{"coordinator", "kind"},
	)
	lastSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_coordinator_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last fully successful refresh",
		},
		[]string{"coordinator"},
	)
	updateSuccess = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_coordinator_update_success",
			Help: "Whether the last refresh succeeded for every kind (1=yes, 0=no)",
		},
		[]string{"coordinator"},
	)
	records = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "omhome_coordinator_records",
			Help: "Records per kind in the published snapshot",
		},
		[]string{"coordinator", "kind"},
	)
	optimisticUpdates = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "omhome_coordinator_optimistic_updates_total",
			Help: "Snapshots republished after a successful command",
		},
		[]string{"coordinator"},
	)
	refreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "omhome_coordinator_refresh_duration_seconds",
			Help:    "Wall time of one refresh cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15, 30},
		},
		[]string{"coordinator"},
	)
)

// MetricsCollectors returns collectors for the shared coordinator module.
func MetricsCollectors() []prometheus.Collector {
	return []prometheus.Collector{
		refreshTotal,
		kindFailures,
		lastSuccess,
		updateSuccess,
		records,
		optimisticUpdates,
		refreshDuration,
	}
}
