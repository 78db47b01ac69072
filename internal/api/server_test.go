package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/proxymon/internal/metrics"
	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/monitor"
	"github.com/edvin/proxymon/internal/secrets"
)

type idleModule struct{}

func (idleModule) Start(_ context.Context, _ *monitor.Monitor, _ []monitor.Parameter) (monitor.Handle, error) {
	return struct{}{}, nil
}
func (idleModule) Stop(_ *monitor.Monitor)                     {}
func (idleModule) Diagnostics(_ io.Writer, _ *monitor.Monitor) {}

func newTestServer(t *testing.T) (*Server, *monitor.Registry) {
	t.Helper()
	modules := monitor.NewModuleSet()
	modules.Register("idle", idleModule{})
	registry := monitor.NewRegistry(
		zerolog.Nop(),
		modules,
		secrets.NewServiceWithKey(nil),
		metrics.NewMonitorMetrics(prometheus.NewRegistry()),
	)
	return NewServer(zerolog.Nop(), registry), registry
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListMonitors(t *testing.T) {
	srv, registry := newTestServer(t)
	_, err := registry.Create("cluster-a", "idle")
	require.NoError(t, err)
	_, err = registry.Create("cluster-b", "idle")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitors", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var list []struct {
		Name    string `json:"name"`
		Running bool   `json:"running"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 2)
	assert.Equal(t, "cluster-b", list[0].Name)
	assert.Equal(t, "cluster-a", list[1].Name)
	assert.False(t, list[0].Running)
}

func TestGetMonitor(t *testing.T) {
	srv, registry := newTestServer(t)
	mon, err := registry.Create("cluster-a", "idle")
	require.NoError(t, err)
	mon.AddServer(model.NewServer("db1", "10.0.0.1", 3306))

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitors/cluster-a", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var detail struct {
		Name  string `json:"name"`
		State string `json:"state"`
		Nodes []struct {
			Name    string `json:"name"`
			Address string `json:"address"`
			Status  string `json:"status"`
		} `json:"nodes"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "cluster-a", detail.Name)
	assert.Equal(t, "Stopped", detail.State)
	require.Len(t, detail.Nodes, 1)
	assert.Equal(t, "10.0.0.1:3306", detail.Nodes[0].Address)
	assert.Equal(t, "Down", detail.Nodes[0].Status)
}

func TestGetMonitorNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitors/nope", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitors/nope/diagnostics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDiagnostics(t *testing.T) {
	srv, registry := newTestServer(t)
	_, err := registry.Create("cluster-a", "idle")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/monitors/cluster-a/diagnostics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Monitor: cluster-a")

	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/diagnostics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cluster-a")
}
