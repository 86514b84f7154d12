package core

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// MetricsRegistry registers the runtime collectors, every plugin's
// collectors and any shared package collectors on a fresh registry.
func MetricsRegistry(plugins []Plugin, shared ...[]prometheus.Collector) (*prometheus.Registry, error) {
	registry := prometheus.NewRegistry()
	runtime := []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if err := register(registry, "runtime", runtime); err != nil {
		return nil, err
	}
	for _, plugin := range plugins {
		if err := register(registry, plugin.Manifest().PluginID, plugin.Collectors()); err != nil {
			return nil, err
		}
	}
	for _, group := range shared {
		if err := register(registry, "shared", group); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func register(registry *prometheus.Registry, owner string, group []prometheus.Collector) error {
	for _, collector := range group {
		if err := registry.Register(collector); err != nil {
			return fmt.Errorf("register %s metrics: %w", owner, err)
		}
	}
	return nil
}
