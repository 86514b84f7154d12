// Package core hosts gateway plugins: it validates them at startup, reports
// their health over gRPC and HTTP, and collects their metrics and dashboards.
package core

import "github.com/prometheus/client_golang/prometheus"

// Status is a plugin's health as seen by the registry.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusError    Status = "error"
)

// Serving reports whether a plugin in this state still answers requests.
// Degraded plugins serve stale data.
func (s Status) Serving() bool {
	return s != StatusError
}

type Health struct {
	Status  Status
	Message string
}

// Dashboard is a Grafana dashboard shipped inside a plugin binary.
type Dashboard struct {
	Slug string
	JSON []byte
}

type Manifest struct {
	PluginID    string
	DisplayName string
	Version     string

	// Platforms are the entity platforms the plugin exposes.
	Platforms []string
	Services  []string
}

// Plugin is a gateway integration hosted by the daemon.
type Plugin interface {
	Manifest() Manifest
	// Docs is operator-facing markdown served next to the plugin summary.
	Docs() string
	Dashboards() []Dashboard
	Collectors() []prometheus.Collector
	Health() Health
}
