package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type stubPlugin struct {
	id         string
	platforms  []string
	dashboards []Dashboard
	collectors []prometheus.Collector
	health     Health
}

func (s *stubPlugin) Manifest() Manifest {
	return Manifest{
		PluginID:    s.id,
		DisplayName: "Stub",
		Version:     "0.1.0",
		Platforms:   s.platforms,
		Services:    []string{"grpc.health.v1.Health"},
	}
}

func (s *stubPlugin) Docs() string { return "# " + s.id }

func (s *stubPlugin) Dashboards() []Dashboard { return s.dashboards }

func (s *stubPlugin) Collectors() []prometheus.Collector { return s.collectors }

func (s *stubPlugin) Health() Health { return s.health }

func newStubPlugin(id string) *stubPlugin {
	return &stubPlugin{
		id:         id,
		platforms:  []string{"light", "cover"},
		dashboards: []Dashboard{{Slug: "overview", JSON: []byte(`{"title":"overview"}`)}},
		health:     Health{Status: StatusHealthy, Message: "updated"},
	}
}

func checkStatus(t *testing.T, r *Registry, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	resp, err := r.health.Check(context.Background(), &healthpb.HealthCheckRequest{Service: service})
	if err != nil {
		t.Fatalf("Check(%q) error: %v", service, err)
	}
	return resp.Status
}

func TestRegistryServingFollowsPluginHealth(t *testing.T) {
	plugin := newStubPlugin("gateway")
	r := NewRegistry([]Plugin{plugin})

	if got := checkStatus(t, r, "gateway"); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("expected SERVING, got %s", got)
	}

	plugin.health = Health{Status: StatusDegraded, Message: "outputs: timeout"}
	r.Sync()
	if got := checkStatus(t, r, ""); got != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("degraded plugin serves stale data, got %s", got)
	}
	if !r.Healthy() {
		t.Fatalf("degraded registry should still be healthy")
	}

	plugin.health = Health{Status: StatusError, Message: "refresh failed for all kinds"}
	r.Sync()
	if got := checkStatus(t, r, "gateway"); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected NOT_SERVING, got %s", got)
	}
	if got := checkStatus(t, r, ""); got != healthpb.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("expected overall NOT_SERVING, got %s", got)
	}
	if r.Healthy() {
		t.Fatalf("registry should report unhealthy")
	}
}

func TestRegistrySummariesAndDocs(t *testing.T) {
	r := NewRegistry([]Plugin{newStubPlugin("gateway")})

	summaries := r.Summaries()
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(summaries))
	}
	got := summaries[0]
	if got.PluginID != "gateway" || got.Status != StatusHealthy || got.Message != "updated" {
		t.Fatalf("unexpected summary: %+v", got)
	}
	if len(got.Platforms) != 2 || len(got.Dashboards) != 1 || got.Dashboards[0] != "/dashboards/gateway/overview.json" {
		t.Fatalf("unexpected summary assets: %+v", got)
	}

	if docs, ok := r.Docs("gateway"); !ok || docs != "# gateway" {
		t.Fatalf("unexpected docs %q %v", docs, ok)
	}
	if _, ok := r.Docs("missing"); ok {
		t.Fatalf("docs for unknown plugin")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	if err := Validate([]Plugin{newStubPlugin("gateway")}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := newStubPlugin("Bad-ID")
	bad.platforms = nil
	bad.dashboards = []Dashboard{
		{Slug: "Overview", JSON: []byte("{")},
		{Slug: "Overview", JSON: []byte("{}")},
	}
	err := Validate([]Plugin{newStubPlugin("gateway"), newStubPlugin("gateway"), bad})
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	for _, want := range []string{
		`duplicate plugin id "gateway"`,
		`plugin id "Bad-ID" does not match`,
		"no entity platforms declared",
		`dashboard slug "Overview" does not match`,
		`duplicate dashboard "Overview"`,
		"is not valid JSON",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestDashboardsIndexAndExport(t *testing.T) {
	plugins := []Plugin{newStubPlugin("gateway")}

	index := Dashboards(plugins)
	if _, ok := index["/dashboards/gateway/overview.json"]; !ok {
		t.Fatalf("dashboard path missing: %v", index)
	}

	dir := t.TempDir()
	n, err := ExportDashboards(dir, plugins)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 dashboard written, got %d", n)
	}
	data, err := os.ReadFile(filepath.Join(dir, "gateway", "overview.json"))
	if err != nil {
		t.Fatalf("read exported dashboard: %v", err)
	}
	if string(data) != `{"title":"overview"}` {
		t.Fatalf("unexpected dashboard content %s", data)
	}
	entries, _ := os.ReadDir(filepath.Join(dir, "gateway"))
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestMetricsRegistryRejectsDuplicateCollectors(t *testing.T) {
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "stub_total", Help: "stub"})
	plugin := newStubPlugin("gateway")
	plugin.collectors = []prometheus.Collector{counter}

	registry, err := MetricsRegistry([]Plugin{plugin})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	found := false
	for _, family := range families {
		if family.GetName() == "stub_total" {
			found = true
		}
	}
	if !found {
		t.Fatalf("plugin collector not registered")
	}

	if _, err := MetricsRegistry([]Plugin{plugin}, []prometheus.Collector{counter}); err == nil {
		t.Fatalf("expected duplicate registration error")
	}
}
