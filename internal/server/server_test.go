package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

func TestDashboardsHandler(t *testing.T) {
	handler := DashboardsHandler(map[string][]byte{
		"/dashboards/openmotics/openmotics-overview.json": []byte(`{"uid":"openmotics-overview"}`),
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/openmotics/openmotics-overview.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"uid":"openmotics-overview"}`, rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/", nil))
	var paths []string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &paths))
	assert.Equal(t, []string{"/dashboards/openmotics/openmotics-overview.json"}, paths)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboards/missing.json", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "omhome_test_gauge"})
	gauge.Set(3)
	registry.MustRegister(gauge)

	handler := MetricsHandler(registry, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "omhome_test_gauge 3")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `promhttp_metric_handler_requests_total{code="200"} 1`)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Accept", "application/openmetrics-text; version=1.0.0")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/openmetrics-text")
	assert.Contains(t, rec.Body.String(), "# EOF")
}

func TestLivenessHandler(t *testing.T) {
	handler := LivenessHandler("1.2.3")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
	assert.Equal(t, "1.2.3", rec.Header().Get(VersionHeader))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodHead, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())
}

type healthRegistrar struct{ health *health.Server }

func (h healthRegistrar) Register(s *grpc.Server) {
	healthpb.RegisterHealthServer(s, h.health)
}

func TestGRPCServerRegistersServices(t *testing.T) {
	hs := health.NewServer()
	hs.SetServingStatus("openmotics", healthpb.HealthCheckResponse_SERVING)

	srv, err := NewGRPCServer("127.0.0.1:0", healthRegistrar{health: hs})
	require.NoError(t, err)
	go func() { _ = srv.Serve() }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient(srv.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	resp, err := healthpb.NewHealthClient(conn).Check(context.Background(), &healthpb.HealthCheckRequest{Service: "openmotics"})
	require.NoError(t, err)
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, resp.Status)
}
