package core

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// PluginSummary is the registry view of one plugin.
type PluginSummary struct {
	PluginID    string   `json:"plugin_id"`
	DisplayName string   `json:"display_name"`
	Version     string   `json:"version"`
	Platforms   []string `json:"platforms,omitempty"`
	Services    []string `json:"services,omitempty"`
	Dashboards  []string `json:"dashboards,omitempty"`
	Status      Status   `json:"status"`
	Message     string   `json:"message,omitempty"`
}

// Registry reports plugin health through the standard gRPC health service.
// Each plugin is a service named after its id; the empty service name
// aggregates all of them.
type Registry struct {
	plugins []Plugin
	health  *health.Server
}

func NewRegistry(plugins []Plugin) *Registry {
	r := &Registry{plugins: plugins, health: health.NewServer()}
	r.Sync()
	return r
}

// Register installs the health service on server.
func (r *Registry) Register(server *grpc.Server) {
	healthpb.RegisterHealthServer(server, r.health)
}

// Sync copies every plugin's current health into the health service.
func (r *Registry) Sync() {
	overall := healthpb.HealthCheckResponse_SERVING
	for _, p := range r.plugins {
		status := servingStatus(p.Health().Status)
		r.health.SetServingStatus(p.Manifest().PluginID, status)
		if status != healthpb.HealthCheckResponse_SERVING {
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	r.health.SetServingStatus("", overall)
}

// Run syncs on every tick until ctx is done, then marks everything as not
// serving.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.health.Shutdown()
			return
		case <-ticker.C:
			r.Sync()
		}
	}
}

// Summaries lists every plugin with its current health.
func (r *Registry) Summaries() []PluginSummary {
	out := make([]PluginSummary, 0, len(r.plugins))
	for _, p := range r.plugins {
		manifest := p.Manifest()
		health := p.Health()
		summary := PluginSummary{
			PluginID:    manifest.PluginID,
			DisplayName: manifest.DisplayName,
			Version:     manifest.Version,
			Platforms:   manifest.Platforms,
			Services:    manifest.Services,
			Status:      health.Status,
			Message:     health.Message,
		}
		for _, d := range p.Dashboards() {
			summary.Dashboards = append(summary.Dashboards, DashboardPath(manifest.PluginID, d))
		}
		out = append(out, summary)
	}
	return out
}

// Healthy reports whether every plugin is still serving.
func (r *Registry) Healthy() bool {
	for _, p := range r.plugins {
		if !p.Health().Status.Serving() {
			return false
		}
	}
	return true
}

// Docs returns the operator docs of a plugin.
func (r *Registry) Docs(pluginID string) (string, bool) {
	for _, p := range r.plugins {
		if p.Manifest().PluginID == pluginID {
			return p.Docs(), true
		}
	}
	return "", false
}

func servingStatus(status Status) healthpb.HealthCheckResponse_ServingStatus {
	if status.Serving() {
		return healthpb.HealthCheckResponse_SERVING
	}
	return healthpb.HealthCheckResponse_NOT_SERVING
}
