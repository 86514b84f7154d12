package core

import (
	"fmt"
	"os"
	"path/filepath"
)

// DashboardPath is the URL path a plugin dashboard is served under.
func DashboardPath(pluginID string, d Dashboard) string {
	return "/dashboards/" + pluginID + "/" + d.Slug + ".json"
}

// Dashboards indexes every plugin dashboard by URL path.
func Dashboards(plugins []Plugin) map[string][]byte {
	index := make(map[string][]byte)
	for _, plugin := range plugins {
		id := plugin.Manifest().PluginID
		for _, d := range plugin.Dashboards() {
			index[DashboardPath(id, d)] = d.JSON
		}
	}
	return index
}

// ExportDashboards writes every dashboard to dir/{plugin}/{slug}.json for
// Grafana file provisioning and returns how many were written. Files are
// replaced by rename so Grafana never reads a partial dashboard.
func ExportDashboards(dir string, plugins []Plugin) (int, error) {
	written := 0
	for _, plugin := range plugins {
		pluginDir := filepath.Join(dir, plugin.Manifest().PluginID)
		if err := os.MkdirAll(pluginDir, 0o755); err != nil {
			return written, fmt.Errorf("create %s: %w", pluginDir, err)
		}
		for _, d := range plugin.Dashboards() {
			if err := writeFileAtomic(filepath.Join(pluginDir, d.Slug+".json"), d.JSON); err != nil {
				return written, err
			}
			written++
		}
	}
	return written, nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".dashboard-*")
	if err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
