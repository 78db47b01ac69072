package postgresmon

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/proxymon/internal/metrics"
	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/monitor"
	"github.com/edvin/proxymon/internal/secrets"
)

func newTestMonitor(t *testing.T, module monitor.Module) *monitor.Monitor {
	t.Helper()
	modules := monitor.NewModuleSet()
	modules.Register(Name, module)
	registry := monitor.NewRegistry(
		zerolog.Nop(),
		modules,
		secrets.NewServiceWithKey(nil),
		metrics.NewMonitorMetrics(prometheus.NewRegistry()),
	)
	mon, err := registry.Create("test", Name)
	require.NoError(t, err)
	return mon
}

func TestStartRequiresServers(t *testing.T) {
	module := New(zerolog.Nop())
	mon := newTestMonitor(t, module)

	_, err := module.Start(context.Background(), mon, nil)
	require.Error(t, err)
}

func TestStartReturnsRunHandle(t *testing.T) {
	module := New(zerolog.Nop())
	mon := newTestMonitor(t, module)
	mon.SetInterval(time.Hour)
	mon.AddServer(model.NewServer("pg1", "127.0.0.1", 1))

	handle, err := module.Start(context.Background(), mon, []monitor.Parameter{
		{Name: "database", Value: "monitoring"},
	})
	require.NoError(t, err)

	h, ok := handle.(*monitor.RunHandle)
	require.True(t, ok)
	h.Stop()
}

func TestRunSettings(t *testing.T) {
	module := New(zerolog.Nop())

	assert.Equal(t, "postgres", module.newRun(nil).database)
	assert.Equal(t, "postgres", module.newRun([]monitor.Parameter{{Name: "database", Value: ""}}).database)
	assert.Equal(t, "monitoring", module.newRun([]monitor.Parameter{{Name: "database", Value: "monitoring"}}).database)
}

func TestRunSettingsAreIndependentPerStart(t *testing.T) {
	module := New(zerolog.Nop())

	first := module.newRun([]monitor.Parameter{{Name: "database", Value: "monitoring"}})
	second := module.newRun(nil)

	assert.Equal(t, "monitoring", first.database)
	assert.Equal(t, "postgres", second.database)
	assert.Equal(t, "monitoring", first.database)
}

func TestOpenHandlesSpecialCharacterCredentials(t *testing.T) {
	module := New(zerolog.Nop())
	srv := model.NewServer("pg1", "10.0.0.1", 5432)

	db, err := module.newRun(nil).Open(srv, "mon user", "p@ss/w:rd", monitor.Timeouts{Connect: 3 * time.Second})
	require.NoError(t, err)
	require.NotNil(t, db)
	db.Close()
}
