package openmotics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/omhome/internal/config"
	"github.com/joshp123/omhome/internal/resource"
)

type cloudFixture struct {
	srv    *httptest.Server
	client *CloudClient
	tokens atomic.Int32
	mux    *http.ServeMux
}

func newCloudFixture(t *testing.T, installationID int) *cloudFixture {
	t.Helper()
	f := &cloudFixture{mux: http.NewServeMux()}
	f.mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		n := f.tokens.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"access_token":"tok-%d","token_type":"Bearer","expires_in":3600}`, n)
	})
	f.srv = httptest.NewServer(f.mux)
	t.Cleanup(f.srv.Close)

	logger, _ := test.NewNullLogger()
	client, err := NewCloudClient(config.CloudConfig{
		ClientID:       "client",
		ClientSecret:   "secret",
		InstallationID: installationID,
		BaseURL:        f.srv.URL,
		TokenURL:       f.srv.URL + "/token",
	}, config.RateConfig{}, logrus.NewEntry(logger))
	require.NoError(t, err)
	f.client = client
	return f
}

func TestCloudOutputsEnvelope(t *testing.T) {
	f := newCloudFixture(t, 7)
	f.mux.HandleFunc("/base/installations/7/outputs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"data":[
			{"id":1,"local_id":1,"name":"Hall","type":"light","capabilities":["ON_OFF","RANGE"],"status":{"on":true,"value":50}},
			{"id":2,"local_id":2,"name":"Pump","type":"OUTLET","status":{"on":false,"value":0}}
		]}`))
	})

	outputs, err := f.client.Outputs(context.Background())
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	assert.Equal(t, "LIGHT", outputs[0].OutputType)
	assert.True(t, outputs[0].Status.On)
	assert.Equal(t, 50, outputs[0].Status.Value)
	assert.True(t, outputs[0].Has(resource.CapabilityRange))
	assert.Equal(t, "OUTLET", outputs[1].OutputType)
}

func TestCloudRetriesOnceAfterUnauthorized(t *testing.T) {
	f := newCloudFixture(t, 7)
	var calls atomic.Int32
	f.mux.HandleFunc("/base/installations/7/lights", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[{"id":3,"name":"Kitchen","status":{"on":true,"value":80}}]`))
	})

	lights, err := f.client.Lights(context.Background())
	require.NoError(t, err)
	require.Len(t, lights, 1)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, int32(2), f.tokens.Load())
}

func TestCloudConcurrentUnauthorizedFetchesOneNewToken(t *testing.T) {
	f := newCloudFixture(t, 7)
	var rejected atomic.Int32
	bothRejected := make(chan struct{})
	f.mux.HandleFunc("/base/installations/7/outputs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "Bearer tok-1" {
			if rejected.Add(1) == 2 {
				close(bothRejected)
			}
			select {
			case <-bothRejected:
			case <-time.After(2 * time.Second):
				t.Error("second request with the first token never arrived")
			}
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "Bearer tok-2", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`[]`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.client.Outputs(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(2), rejected.Load())
	assert.Equal(t, int32(2), f.tokens.Load())
}

func TestCloudUnauthorizedTwiceFails(t *testing.T) {
	f := newCloudFixture(t, 7)
	var calls atomic.Int32
	f.mux.HandleFunc("/base/installations/7/shutters", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := f.client.Shutters(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.False(t, IsRetryable(err))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCloudMaintenanceMode(t *testing.T) {
	f := newCloudFixture(t, 7)
	f.mux.HandleFunc("/base/installations/7/sensors", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := f.client.Sensors(context.Background())
	var maintErr *MaintenanceModeError
	require.ErrorAs(t, err, &maintErr)
	assert.True(t, IsRetryable(err))
}

func TestCloudUnexpectedStatusIsConnectionError(t *testing.T) {
	f := newCloudFixture(t, 7)
	f.mux.HandleFunc("/base/installations/7/groupactions", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	})

	_, err := f.client.GroupActions(context.Background())
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	var statusErr HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.Status)
}

func TestCloudCommandPayload(t *testing.T) {
	f := newCloudFixture(t, 7)
	f.mux.HandleFunc("/base/installations/7/shutters/4/change_position", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var payload map[string]int
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, 70, payload["position"])
		_, _ = w.Write([]byte(`{}`))
	})

	result, err := f.client.Command(context.Background(), resource.Command{
		Kind:   resource.KindShutter,
		ID:     4,
		Op:     resource.OpChangePosition,
		Number: resource.Number(70),
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
}

func TestCloudCommandVendorError(t *testing.T) {
	f := newCloudFixture(t, 7)
	f.mux.HandleFunc("/base/installations/7/outputs/1/turn_on", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"_error":"output locked"}`))
	})

	result, err := f.client.Command(context.Background(), resource.Command{Kind: resource.KindOutput, ID: 1, Op: resource.OpTurnOn})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "output locked", apiErr.Message)
	assert.False(t, result.Success)
	assert.False(t, IsRetryable(err))
}

func TestCloudCommandUnsupported(t *testing.T) {
	f := newCloudFixture(t, 7)
	_, err := f.client.Command(context.Background(), resource.Command{Kind: resource.KindSensor, ID: 1, Op: resource.OpTurnOn})
	assert.True(t, errors.Is(err, ErrUnsupportedCommand))
}

func TestCloudInstallationDiscovery(t *testing.T) {
	t.Run("single", func(t *testing.T) {
		f := newCloudFixture(t, 0)
		f.mux.HandleFunc("/base/installations", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"id":21,"name":"Home"}]}`))
		})
		id, err := f.client.InstallationID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 21, id)
	})

	t.Run("multiple", func(t *testing.T) {
		f := newCloudFixture(t, 0)
		f.mux.HandleFunc("/base/installations", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"data":[{"id":21,"name":"Home"},{"id":22}]}`))
		})
		_, err := f.client.InstallationID(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "21 (Home), 22")
	})

	t.Run("configured", func(t *testing.T) {
		f := newCloudFixture(t, 9)
		id, err := f.client.InstallationID(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 9, id)
		assert.Equal(t, int32(0), f.tokens.Load())
	})
}

func TestCloudUnitAliases(t *testing.T) {
	f := newCloudFixture(t, 7)
	f.mux.HandleFunc("/base/installations/7/thermostats/units", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":5,"name":"Living","status":{"state":"ON","mode":"HEATING","actual_temperature":20.5,"current_setpoint":21}}]}`))
	})

	units, err := f.client.ThermostatUnits(context.Background())
	require.NoError(t, err)
	require.Len(t, units, 1)
	require.NotNil(t, units[0].Status.CurrentTemperature)
	assert.InDelta(t, 20.5, *units[0].Status.CurrentTemperature, 0.001)
	require.NotNil(t, units[0].Status.Setpoint)
	assert.InDelta(t, 21.0, *units[0].Status.Setpoint, 0.001)
}
