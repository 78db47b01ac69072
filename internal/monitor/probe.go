package monitor

import (
	"context"
	"time"
)

// ConnectResult classifies the outcome of a probe connection attempt.
type ConnectResult int

const (
	// ConnectOK means the node's connection is usable.
	ConnectOK ConnectResult = iota
	// ConnectTimedOut means the attempt consumed the full connect timeout.
	ConnectTimedOut
	// ConnectRefused covers every other failure, including the inability
	// to allocate a client handle.
	ConnectRefused
)

// String returns the classification's label used in logs and metrics.
func (r ConnectResult) String() string {
	switch r {
	case ConnectOK:
		return "ok"
	case ConnectTimedOut:
		return "timeout"
	default:
		return "refused"
	}
}

// classifyConnectFailure maps a failed attempt's elapsed wall-clock time to
// the timeout/refused taxonomy: reaching the configured connect timeout is
// a timeout, anything quicker is a refusal.
func classifyConnectFailure(elapsed, connectTimeout time.Duration) ConnectResult {
	if elapsed >= connectTimeout {
		return ConnectTimedOut
	}
	return ConnectRefused
}

// EnsureConnected guarantees the node holds a usable probe connection or
// reports why it cannot. An existing connection that still answers a ping
// is reused. Otherwise the stale handle is closed, the effective password
// (node override, else monitor default) is decrypted, and a fresh
// connection is opened through the module's connector under the monitor's
// timeout settings.
//
// The node's connection handle is always left in a well-defined state:
// either a usable open handle or nil.
func (m *Monitor) EnsureConnected(ctx context.Context, node *Node, connector Connector) (ConnectResult, error) {
	if db := node.Conn(); db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, m.timeouts.Connect)
		err := db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return ConnectOK, nil
		}
	}

	node.CloseConn()

	user, password := m.user, m.password
	if node.user != "" {
		user, password = node.user, node.password
	}
	plaintext, err := m.secrets.Decrypt(password)
	if err != nil {
		return ConnectRefused, err
	}

	start := time.Now()
	db, err := connector.Open(node.Server(), user, plaintext, m.timeouts)
	if err == nil {
		// sql.Open validates lazily; the ping performs the actual connect.
		pingCtx, cancel := context.WithTimeout(ctx, m.timeouts.Connect)
		err = db.PingContext(pingCtx)
		cancel()
	}
	elapsed := time.Since(start)

	if err != nil {
		if db != nil {
			db.Close()
		}
		return classifyConnectFailure(elapsed, m.timeouts.Connect), err
	}

	// Probes are strictly sequential within a cycle; one connection is
	// enough and keeps the backend's connection count predictable.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	node.SetConn(db)
	return ConnectOK, nil
}

// LogConnectError reports a failed probe connection, distinguishing
// timeouts from other refusals, and feeds the failure counters.
func (m *Monitor) LogConnectError(node *Node, result ConnectResult, err error) {
	srv := node.Server()
	msg := "monitor was unable to connect to server"
	if result == ConnectTimedOut {
		msg = "monitor timed out when connecting to server"
	}
	m.logger.Error().
		Err(err).
		Str("node", srv.Name).
		Str("host", srv.Host).
		Int("port", srv.Port).
		Msg(msg)
	m.metrics.CountConnectError(m.name, srv.Name, result.String())
}
