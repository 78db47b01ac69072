// Package galeramon implements the Galera cluster monitor module: nodes
// report their wsrep state over the MySQL protocol, and synced cluster
// members gain the joined status bit.
package galeramon

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/monitor"
	"github.com/edvin/proxymon/internal/mysqlmon"
)

// Name is the module name monitors reference in configuration.
const Name = "galeramon"

// wsrep_local_state values for a fully synced member and a donor/desynced
// member.
const (
	wsrepStateSynced = "4"
	wsrepStateDonor  = "2"
)

// Module polls Galera clusters. Connection handling is shared with the
// MySQL module; only role derivation differs. Per-monitor settings live on
// the run each Start creates, not on the shared module.
type Module struct {
	logger zerolog.Logger
	conn   *mysqlmon.Module
}

// New creates the galeramon module.
func New(logger zerolog.Logger) *Module {
	return &Module{
		logger: logger.With().Str("module", Name).Logger(),
		conn:   mysqlmon.New(logger),
	}
}

// run holds one monitor's settings and implements its polling probe.
type run struct {
	module *Module

	// availableWhenDonor keeps a donor-state node flagged as joined.
	// Controlled by the available_when_donor parameter.
	availableWhenDonor bool
}

func (m *Module) newRun(params []monitor.Parameter) *run {
	r := &run{module: m}
	for _, p := range params {
		switch p.Name {
		case "available_when_donor":
			r.availableWhenDonor = strings.EqualFold(p.Value, "true") || p.Value == "1"
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

	if !mon.CheckPermissions(ctx, m, "SHOW STATUS LIKE 'wsrep_local_state'") {
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

// Diagnostics writes per-node cluster membership state.
func (m *Module) Diagnostics(w io.Writer, mon *monitor.Monitor) {
	for _, node := range mon.Nodes() {
		srv := node.Server()
		fmt.Fprintf(w, "\tServer %s [%s]: %s\n", srv.Name, srv.Address(), srv.Status())
	}
}

// Open delegates to the MySQL connector.
func (m *Module) Open(server *model.Server, user, password string, timeouts monitor.Timeouts) (*sql.DB, error) {
	return m.conn.Open(server, user, password, timeouts)
}

// ProbeNode refreshes one node's pending status bits for the current cycle.
func (r *run) ProbeNode(ctx context.Context, mon *monitor.Monitor, node *monitor.Node) {
	node.ResetPending()

	result, err := mon.EnsureConnected(ctx, node, r.module)
	if result != monitor.ConnectOK {
		if node.ErrorCount() == 0 {
			mon.LogConnectError(node, result, err)
		}
		node.IncErrorCount()
		return
	}
	node.ResetErrorCount()
	node.SetPending(model.StatusRunning)

	state, err := wsrepLocalState(ctx, node.Conn())
	if err != nil {
		mon.Logger().Debug().
			Err(err).
			Str("node", node.Server().Name).
			Msg("failed to read wsrep state")
		return
	}
	if state == wsrepStateSynced || (r.availableWhenDonor && state == wsrepStateDonor) {
		node.SetPending(model.StatusJoined)
	}
}

// wsrepLocalState reads the node's wsrep_local_state status variable,
// empty when the provider is not loaded.
func wsrepLocalState(ctx context.Context, db *sql.DB) (string, error) {
	var name, value string
	err := db.QueryRowContext(ctx, "SHOW STATUS LIKE 'wsrep_local_state'").Scan(&name, &value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("show wsrep_local_state: %w", err)
	}
	return value, nil
}
