package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshp123/omhome/internal/coordinator"
	"github.com/joshp123/omhome/internal/core"
	"github.com/joshp123/omhome/internal/diagnostics"
	"github.com/joshp123/omhome/internal/entity"
	"github.com/joshp123/omhome/internal/resource"
	"github.com/joshp123/omhome/plugins/openmotics"
)

// fakeCoord stands in for the coordinator as both the API's view and the
// entity service's source.
type fakeCoord struct {
	mu         sync.Mutex
	snap       *resource.Snapshot
	refreshes  int
	requests   int
	refreshErr error
	success    bool
}

func (f *fakeCoord) Data() *resource.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeCoord) Update(fn func(*resource.Snapshot) bool) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := f.snap.Clone()
	if !fn(next) {
		return false
	}
	f.snap = next
	return true
}

func (f *fakeCoord) Refresh(context.Context) (*resource.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.refreshes++
	return f.snap, f.refreshErr
}

func (f *fakeCoord) RequestRefresh() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests++
}

func (f *fakeCoord) LastUpdateSuccess() bool { return f.success }

func (f *fakeCoord) LastError() error { return f.refreshErr }

func (f *fakeCoord) LastUpdated() time.Time {
	return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

type fakeCommander struct {
	mu   sync.Mutex
	sent []resource.Command
	err  error
}

func (f *fakeCommander) Command(_ context.Context, cmd resource.Command) (resource.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, cmd)
	if f.err != nil {
		return resource.Result{}, f.err
	}
	return resource.Result{Success: true}, nil
}

type fakeHealth struct{ healthy bool }

func (f fakeHealth) Summaries() []core.PluginSummary {
	return []core.PluginSummary{{PluginID: "openmotics", DisplayName: "OpenMotics"}}
}

func (f fakeHealth) Healthy() bool { return f.healthy }

func (f fakeHealth) Docs(pluginID string) (string, bool) {
	if pluginID != "openmotics" {
		return "", false
	}
	return "# OpenMotics plugin", true
}

type fakeDiagnostics struct{}

func (fakeDiagnostics) Report() diagnostics.Report {
	return diagnostics.Report{LastUpdateSuccess: true, Installation: resource.Installation{ID: 21, Name: "Home"}}
}

func intp(v int) *int { return &v }

func snapshot() *resource.Snapshot {
	snap := resource.EmptySnapshot()
	snap.Lights = []resource.Light{{
		Base: resource.Base{ID: 5, Name: "Hall", Capabilities: []string{resource.CapabilityRange}},
	}}
	snap.Shutters = []resource.Shutter{{
		Base:   resource.Base{ID: 7, Name: "Kitchen blind", Capabilities: []string{resource.CapabilityPosition}},
		Status: resource.ShutterStatus{State: resource.ShutterUp, Position: intp(30)},
	}}
	return snap
}

type fixture struct {
	server    *Server
	handler   http.Handler
	coord     *fakeCoord
	commander *fakeCommander
}

func newFixture(t *testing.T, deps Deps) *fixture {
	t.Helper()
	logger, _ := test.NewNullLogger()
	log := logrus.NewEntry(logger)

	coord := &fakeCoord{snap: snapshot(), success: true}
	commander := &fakeCommander{}
	deps.Entities = entity.NewService(commander, coord, "21", log)
	deps.Coordinator = coord
	deps.Log = log

	srv, err := New(deps)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go srv.Hub().Run(ctx)

	return &fixture{server: srv, handler: srv.Handler(), coord: coord, commander: commander}
}

func (f *fixture) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) Error {
	t.Helper()
	var apiErr Error
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &apiErr))
	return apiErr
}

func TestNewRequiresDependencies(t *testing.T) {
	_, err := New(Deps{})
	assert.Error(t, err)
}

func TestListAndGetEntities(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(t, http.MethodGet, "/api/v1/entities/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	var states []entity.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 2)

	rec = f.do(t, http.MethodGet, "/api/v1/entities/?platform=cover", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &states))
	require.Len(t, states, 1)
	assert.Equal(t, "shutters-7", states[0].Key)

	rec = f.do(t, http.MethodGet, "/api/v1/entities/lights-5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var state entity.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "Hall", state.Name)
	assert.Equal(t, "21-5", state.UniqueID)
	assert.True(t, state.Available)

	rec = f.do(t, http.MethodGet, "/api/v1/entities/lights-99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, ErrCodeNotFound, decodeError(t, rec).Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	f := newFixture(t, Deps{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))

	var snap resource.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Len(t, snap.Shutters, 1)
}

func TestEntityActionAppliesOptimisticState(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(t, http.MethodPost, "/api/v1/entities/lights-5/turn_on", `{"brightness":128}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var state entity.State
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.NotNil(t, state.On)
	assert.True(t, *state.On)

	require.Len(t, f.commander.sent, 1)
	require.NotNil(t, f.commander.sent[0].Number)
	assert.Equal(t, 50.0, *f.commander.sent[0].Number)
	assert.Zero(t, f.coord.refreshes)

	rec = f.do(t, http.MethodPost, "/api/v1/entities/shutters-7/close", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	require.NotNil(t, state.Cover)
	assert.Equal(t, entity.CoverClosing, state.Cover.State)
}

func TestEntityActionErrors(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(t, http.MethodPost, "/api/v1/entities/lights-5/turn_on", `{"brightness":`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeBadRequest, decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/v1/entities/lights-5/open", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeUnsupported, decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/v1/entities/shutters-7/set_position", `{"position":150}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, ErrCodeValidation, decodeError(t, rec).Code)

	rec = f.do(t, http.MethodPost, "/api/v1/entities/lights-99/turn_on", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Empty(t, f.commander.sent)
}

func TestEntityActionGatewayFailureRefreshes(t *testing.T) {
	f := newFixture(t, Deps{})
	f.commander.err = &openmotics.APIError{Op: "set_output", Message: "output locked"}

	rec := f.do(t, http.MethodPost, "/api/v1/entities/lights-5/turn_off", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	apiErr := decodeError(t, rec)
	assert.Equal(t, ErrCodeGateway, apiErr.Code)
	assert.Contains(t, apiErr.Message, "output locked")
	assert.Equal(t, 1, f.coord.refreshes)

	f.commander.err = &openmotics.MaintenanceModeError{Op: "set_output"}
	rec = f.do(t, http.MethodPost, "/api/v1/entities/lights-5/turn_off", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, ErrCodeMaintenance, decodeError(t, rec).Code)
}

func TestRefresh(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(t, http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)

	f.coord.refreshErr = &coordinator.RefreshError{Failed: map[resource.Kind]error{
		resource.KindSensor: errors.New("timeout"),
	}}
	rec = f.do(t, http.MethodPost, "/api/v1/refresh", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "sensors")

	f.coord.refreshErr = errors.New("gateway unreachable")
	rec = f.do(t, http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestRefreshWithoutWaitQueues(t *testing.T) {
	f := newFixture(t, Deps{})

	rec := f.do(t, http.MethodPost, "/api/v1/refresh?wait=false", "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Queued)
	assert.Equal(t, 1, f.coord.requests)
	assert.Zero(t, f.coord.refreshes)

	rec = f.do(t, http.MethodPost, "/api/v1/refresh?wait=maybe", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, 1, f.coord.requests)
}

func TestHealth(t *testing.T) {
	f := newFixture(t, Deps{Health: fakeHealth{healthy: true}, Version: "test"})

	rec := f.do(t, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test", resp.Version)
	require.Len(t, resp.Plugins, 1)
	assert.Equal(t, "openmotics", resp.Plugins[0].PluginID)

	f.coord.success = false
	f.coord.refreshErr = errors.New("gateway unreachable")
	rec = f.do(t, http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "gateway unreachable", resp.LastError)
}

func TestPlugins(t *testing.T) {
	f := newFixture(t, Deps{Health: fakeHealth{healthy: true}})

	rec := f.do(t, http.MethodGet, "/api/v1/plugins", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"plugin_id":"openmotics"`)

	rec = f.do(t, http.MethodGet, "/api/v1/plugins/openmotics/docs", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "# OpenMotics plugin", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/markdown")

	rec = f.do(t, http.MethodGet, "/api/v1/plugins/unknown/docs", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDiagnostics(t *testing.T) {
	f := newFixture(t, Deps{})
	rec := f.do(t, http.MethodGet, "/api/v1/diagnostics", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	f = newFixture(t, Deps{Diagnostics: fakeDiagnostics{}})
	rec = f.do(t, http.MethodGet, "/api/v1/diagnostics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"last_update_success":true`)
}

func TestOperationalRoutes(t *testing.T) {
	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("omhome_up 1\n"))
	})
	f := newFixture(t, Deps{Metrics: metrics})

	rec := f.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = f.do(t, http.MethodHead, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", "")
	assert.Contains(t, rec.Body.String(), "omhome_up 1")

	rec = f.do(t, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEventsStream(t *testing.T) {
	f := newFixture(t, Deps{})
	srv := httptest.NewServer(f.handler)
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsTypeEvent, msg.Type)
	assert.Equal(t, EventEntities, msg.EventType)

	require.NoError(t, conn.WriteJSON(WSMessage{Type: wsTypePing, ID: "1"}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, wsTypePong, msg.Type)
	assert.Equal(t, "1", msg.ID)

	require.Eventually(t, func() bool { return f.server.Hub().ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	rec := f.do(t, http.MethodPost, "/api/v1/entities/shutters-7/stop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, EventEntities, msg.EventType)
	states, ok := msg.Payload.([]any)
	require.True(t, ok)
	assert.Len(t, states, 2)
}
