// Package mysqlmon implements the MySQL replication monitor module: it
// probes each node over the MySQL protocol and derives master/slave role
// bits from replication state.
package mysqlmon

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"

	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/monitor"
)

// Name is the module name monitors reference in configuration.
const Name = "mysqlmon"

// Module polls MySQL replication clusters. It carries no per-monitor state:
// one registered instance serves every monitor, and each Start gets its own
// run.
type Module struct {
	logger zerolog.Logger
}

// New creates the mysqlmon module.
func New(logger zerolog.Logger) *Module {
	return &Module{
		logger: logger.With().Str("module", Name).Logger(),
	}
}

// run holds one monitor's settings and implements its polling probe.
// Monitors sharing the module cannot reconfigure each other's run.
type run struct {
	module *Module

	// readOnlySlave treats read_only servers without running slave
	// threads as slaves. Controlled by the read_only_slave parameter.
	readOnlySlave bool
}

func (m *Module) newRun(params []monitor.Parameter) *run {
	r := &run{module: m}
	for _, p := range params {
		switch p.Name {
		case "read_only_slave":
			r.readOnlySlave = parseBool(p.Value)
		}
	}
	return r
}

func parseBool(v string) bool {
	return strings.EqualFold(v, "true") || v == "1"
}

// Start begins polling the monitor's nodes.
func (m *Module) Start(ctx context.Context, mon *monitor.Monitor, params []monitor.Parameter) (monitor.Handle, error) {
	if len(mon.Nodes()) == 0 {
		return nil, fmt.Errorf("monitor %q has no servers to monitor", mon.Name())
	}

	r := m.newRun(params)

	if !mon.CheckPermissions(ctx, m, "SHOW SLAVE STATUS") {
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

// Open builds a probe connection using the monitor's timeout settings.
func (m *Module) Open(server *model.Server, user, password string, timeouts monitor.Timeouts) (*sql.DB, error) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Passwd = password
	cfg.Net = "tcp"
	cfg.Addr = server.Address()
	cfg.Timeout = timeouts.Connect
	cfg.ReadTimeout = timeouts.Read
	cfg.WriteTimeout = timeouts.Write

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("configure connection to %s: %w", server.Address(), err)
	}
	return sql.OpenDB(connector), nil
}

// ProbeNode refreshes one node's pending status bits for the current cycle.
func (r *run) ProbeNode(ctx context.Context, mon *monitor.Monitor, node *monitor.Node) {
	node.ResetPending()

	result, err := mon.EnsureConnected(ctx, node, r.module)
	if result != monitor.ConnectOK {
		// Log the failure once per outage, not once per cycle.
		if node.ErrorCount() == 0 {
			mon.LogConnectError(node, result, err)
		}
		node.IncErrorCount()
		return
	}
	node.ResetErrorCount()
	node.SetPending(model.StatusRunning)

	r.checkVersion(ctx, mon, node)
	r.detectRole(ctx, mon, node)
}

// checkVersion warns once per node about server versions too old for
// replication monitoring.
func (r *run) checkVersion(ctx context.Context, mon *monitor.Monitor, node *monitor.Node) {
	if node.VersionWarned() {
		return
	}
	var version string
	if err := node.Conn().QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return
	}
	if strings.HasPrefix(version, "4.") || strings.HasPrefix(version, "5.0") {
		mon.Logger().Warn().
			Str("node", node.Server().Name).
			Str("version", version).
			Msg("server version is too old for reliable replication monitoring")
		node.MarkVersionWarned()
	}
}

// detectRole sets the master/slave pending bits from the node's
// replication state.
func (r *run) detectRole(ctx context.Context, mon *monitor.Monitor, node *monitor.Node) {
	db := node.Conn()

	slave, err := slaveThreadsRunning(ctx, db)
	if err != nil {
		mon.Logger().Debug().
			Err(err).
			Str("node", node.Server().Name).
			Msg("failed to read replication state")
		return
	}
	if slave {
		node.SetPending(model.StatusSlave)
		return
	}

	var readOnly bool
	if err := db.QueryRowContext(ctx, "SELECT @@global.read_only").Scan(&readOnly); err != nil {
		mon.Logger().Debug().
			Err(err).
			Str("node", node.Server().Name).
			Msg("failed to read read_only state")
		return
	}
	if readOnly {
		if r.readOnlySlave {
			node.SetPending(model.StatusSlave)
		}
		return
	}
	node.SetPending(model.StatusMaster)
}

// slaveThreadsRunning reports whether both replication threads are running.
// SHOW SLAVE STATUS returns no rows on a server that is not a replica; its
// column set varies across server versions, so the row is scanned by name.
func slaveThreadsRunning(ctx context.Context, db *sql.DB) (bool, error) {
	rows, err := db.QueryContext(ctx, "SHOW SLAVE STATUS")
	if err != nil {
		return false, fmt.Errorf("show slave status: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return false, rows.Err()
	}

	cols, err := rows.Columns()
	if err != nil {
		return false, fmt.Errorf("slave status columns: %w", err)
	}
	values := make([]sql.RawBytes, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return false, fmt.Errorf("scan slave status: %w", err)
	}

	ioRunning, sqlRunning := false, false
	for i, col := range cols {
		switch col {
		case "Slave_IO_Running":
			ioRunning = string(values[i]) == "Yes"
		case "Slave_SQL_Running":
			sqlRunning = string(values[i]) == "Yes"
		}
	}
	return ioRunning && sqlRunning, nil
}
