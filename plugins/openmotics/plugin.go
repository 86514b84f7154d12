package openmotics

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/core"
	"github.com/joshp123/omhome/internal/entity"
)

//go:embed AGENTS.md
var agentsMD string

//go:embed dashboard.json
var dashboardJSON []byte

// Plugin implements the core plugin contract on top of a running coordinator.
type Plugin struct {
	gateway Gateway
	coord   *coordinator.Coordinator
	key     string
}

func NewPlugin(gateway Gateway, coord *coordinator.Coordinator, installKey string) *Plugin {
	return &Plugin{gateway: gateway, coord: coord, key: installKey}
}

func (p *Plugin) Manifest() core.Manifest {
	platforms := make([]string, 0, len(entity.Platforms()))
	for _, platform := range entity.Platforms() {
		platforms = append(platforms, string(platform))
	}
	return core.Manifest{
		PluginID:    Provider,
		DisplayName: "OpenMotics",
		Version:     "0.1.0",
		Platforms:   platforms,
		Services:    []string{"grpc.health.v1.Health"},
	}
}

func (p *Plugin) Docs() string {
	return agentsMD
}

func (p *Plugin) Dashboards() []core.Dashboard {
	return []core.Dashboard{{Slug: "openmotics-overview", JSON: dashboardJSON}}
}

func (p *Plugin) Collectors() []prometheus.Collector {
	if p.coord == nil {
		return nil
	}
	return []prometheus.Collector{NewMetricsCollector(p.coord)}
}

// InstallKey is the prefix of every entity unique id.
func (p *Plugin) InstallKey() string {
	return p.key
}

func (p *Plugin) Gateway() Gateway {
	return p.gateway
}

// Health maps the last refresh onto the registry states: a partial failure
// degrades, a total failure is an error.
func (p *Plugin) Health() core.Health {
	if p.coord == nil {
		return core.Health{Status: core.StatusError, Message: "coordinator not configured"}
	}
	if p.coord.LastUpdateSuccess() {
		return core.Health{
			Status:  core.StatusHealthy,
			Message: fmt.Sprintf("%s gateway %s updated %s", p.gateway.Mode(), p.key, p.coord.LastUpdated().Format("15:04:05")),
		}
	}
	err := p.coord.LastError()
	if err == nil {
		return core.Health{Status: core.StatusDegraded, Message: "waiting for first refresh"}
	}
	var refreshErr *coordinator.RefreshError
	if errors.As(err, &refreshErr) && refreshErr.Total() {
		return core.Health{Status: core.StatusError, Message: err.Error()}
	}
	return core.Health{Status: core.StatusDegraded, Message: err.Error()}
}
