package openmotics

import (
	"context"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/core"
)

func newTestCoordinator(t *testing.T, fetcher coordinator.Fetcher) *coordinator.Coordinator {
	t.Helper()
	logger, _ := test.NewNullLogger()
	return coordinator.New(fetcher, coordinator.Options{Name: "test", Logger: logrus.NewEntry(logger)})
}

func TestPluginHealthyAfterRefresh(t *testing.T) {
	client := newLocalFixture(t, newFakeGateway())
	coord := newTestCoordinator(t, client)
	plugin := NewPlugin(client, coord, "127.0.0.1")

	assert.Equal(t, core.Health{Status: core.StatusDegraded, Message: "waiting for first refresh"}, plugin.Health())

	_, err := coord.Refresh(context.Background())
	require.NoError(t, err)
	health := plugin.Health()
	assert.Equal(t, core.StatusHealthy, health.Status)
	assert.Contains(t, health.Message, "local gateway 127.0.0.1")

	collector := NewMetricsCollector(coord)
	assert.Equal(t, 2, testutil.CollectAndCount(collector, "omhome_openmotics_output_on_bool"))
	assert.Equal(t, 1, testutil.CollectAndCount(collector, "omhome_openmotics_output_level_percent"))
	assert.Equal(t, 2, testutil.CollectAndCount(collector, "omhome_openmotics_thermostat_setpoint_celsius"))
}

func TestPluginErrorOnTotalFailure(t *testing.T) {
	client := newLocalFixture(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	coord := newTestCoordinator(t, client)
	plugin := NewPlugin(client, coord, "127.0.0.1")

	_, err := coord.Refresh(context.Background())
	require.Error(t, err)
	health := plugin.Health()
	assert.Equal(t, core.StatusError, health.Status)
	assert.Contains(t, health.Message, "refresh failed for all kinds")
}

func TestPluginManifest(t *testing.T) {
	plugin := NewPlugin(nil, nil, "")
	manifest := plugin.Manifest()
	assert.Equal(t, "openmotics", manifest.PluginID)
	assert.Equal(t, "OpenMotics", manifest.DisplayName)
	assert.Contains(t, manifest.Platforms, "cover")
	assert.NotEmpty(t, plugin.Docs())
	require.Len(t, plugin.Dashboards(), 1)
	assert.Contains(t, string(plugin.Dashboards()[0].JSON), "openmotics-overview")
	assert.Nil(t, plugin.Collectors())
	assert.Equal(t, core.StatusError, plugin.Health().Status)
	assert.NoError(t, core.Validate([]core.Plugin{plugin}))
}
