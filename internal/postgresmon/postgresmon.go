// Package postgresmon implements the PostgreSQL streaming-replication
// monitor module: a node in recovery is a slave, a writable node the
// master.
package postgresmon

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"

	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/monitor"
)

// Name is the module name monitors reference in configuration.
const Name = "postgresmon"

// Module polls PostgreSQL streaming-replication clusters. Per-monitor
// settings live on the run each Start creates, not on the shared module.
type Module struct {
	logger zerolog.Logger
}

// New creates the postgresmon module.
func New(logger zerolog.Logger) *Module {
	return &Module{
		logger: logger.With().Str("module", Name).Logger(),
	}
}

// run holds one monitor's settings and implements its polling probe. The
// run is also the monitor's connector, since the maintenance database is a
// per-monitor setting.
type run struct {
	module *Module

	// database is the maintenance database probes connect to. Controlled
	// by the database parameter.
	database string
}

func (m *Module) newRun(params []monitor.Parameter) *run {
	r := &run{module: m, database: "postgres"}
	for _, p := range params {
		switch p.Name {
		case "database":
			if p.Value != "" {
				r.database = p.Value
			}
		}
	}
	return r
}

// Start begins polling the monitor's nodes.
func (m *Module) Start(ctx context.Context, mon *monitor.Monitor, params []monitor.Parameter) (monitor.Handle, error) {
	if len(mon.Nodes()) == 0 {
		return nil, fmt.Errorf("monitor %q has no servers to monitor", mon.Name())
	}

	r := m.newRun(params)

	if !mon.CheckPermissions(ctx, r, "SELECT pg_is_in_recovery()") {
		return nil, fmt.Errorf("monitor %q credentials lack the required permissions", mon.Name())
	}

	return monitor.StartPolling(ctx, mon, r), nil
}

// Stop halts the polling loop and waits for it to exit.
func (m *Module) Stop(mon *monitor.Monitor) {
	if h, ok := mon.Handle().(*monitor.RunHandle); ok && h != nil {
		h.Stop()
	}
}

// Diagnostics writes per-node replication state.
func (m *Module) Diagnostics(w io.Writer, mon *monitor.Monitor) {
	for _, node := range mon.Nodes() {
		srv := node.Server()
		fmt.Fprintf(w, "\tServer %s [%s]: %s\n", srv.Name, srv.Address(), srv.Status())
	}
}

// Open builds a probe connection to the run's maintenance database using
// the monitor's timeout settings.
func (r *run) Open(server *model.Server, user, password string, timeouts monitor.Timeouts) (*sql.DB, error) {
	dsn := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, password),
		Host:   server.Address(),
		Path:   "/" + r.database,
	}

	cfg, err := pgx.ParseConfig(dsn.String())
	if err != nil {
		return nil, fmt.Errorf("configure connection to %s: %w", server.Address(), err)
	}
	cfg.ConnectTimeout = timeouts.Connect

	return stdlib.OpenDB(*cfg), nil
}

// ProbeNode refreshes one node's pending status bits for the current cycle.
func (r *run) ProbeNode(ctx context.Context, mon *monitor.Monitor, node *monitor.Node) {
	node.ResetPending()

	result, err := mon.EnsureConnected(ctx, node, r)
	if result != monitor.ConnectOK {
		if node.ErrorCount() == 0 {
			mon.LogConnectError(node, result, err)
		}
		node.IncErrorCount()
		return
	}
	node.ResetErrorCount()
	node.SetPending(model.StatusRunning)

	var inRecovery bool
	if err := node.Conn().QueryRowContext(ctx, "SELECT pg_is_in_recovery()").Scan(&inRecovery); err != nil {
		mon.Logger().Debug().
			Err(err).
			Str("node", node.Server().Name).
			Msg("failed to read recovery state")
		return
	}
	if inRecovery {
		node.SetPending(model.StatusSlave)
	} else {
		node.SetPending(model.StatusMaster)
	}
}
