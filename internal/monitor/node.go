package monitor

import (
	"database/sql"

	"github.com/edvin/proxymon/internal/model"
)

// Node tracks one backend server within a monitor. It owns the probe
// connection and the per-cycle status bookkeeping; the server descriptor
// itself belongs to the cluster configuration.
type Node struct {
	server *model.Server

	// Credentials overriding the monitor defaults, empty when unset.
	// The password is stored in its encrypted form.
	user     string
	password string

	conn *sql.DB

	// pending is assembled during the current poll cycle and committed to
	// the server's status when the cycle completes.
	pending model.Status

	// prev holds the status observed at the end of the prior completed
	// cycle. hasPrev is false until the first observation.
	prev    model.Status
	hasPrev bool

	errCount      int
	versionWarned bool
}

// NewNode wraps a server descriptor for monitoring.
func NewNode(server *model.Server) *Node {
	return &Node{server: server}
}

// SetCredentials sets per-node credentials that override the monitor
// defaults. The password is expected in its stored (encrypted) form.
func (n *Node) SetCredentials(user, password string) {
	n.user = user
	n.password = password
}

// Server returns the monitored server descriptor.
func (n *Node) Server() *model.Server {
	return n.server
}

// Conn returns the node's probe connection, nil when closed.
func (n *Node) Conn() *sql.DB {
	return n.conn
}

// SetConn replaces the node's probe connection without closing the old
// handle; callers close it themselves when the handle is stale.
func (n *Node) SetConn(db *sql.DB) {
	n.conn = db
}

// CloseConn closes and clears the probe connection. Safe on a closed node.
func (n *Node) CloseConn() {
	if n.conn != nil {
		n.conn.Close()
		n.conn = nil
	}
}

// ResetPending clears the pending bits at the start of a poll cycle.
func (n *Node) ResetPending() {
	n.pending = 0
}

// SetPending sets status bits in the pending mask.
func (n *Node) SetPending(bits model.Status) {
	n.pending |= bits
}

// ClearPending clears status bits from the pending mask.
func (n *Node) ClearPending(bits model.Status) {
	n.pending &^= bits
}

// Pending returns the status assembled so far this cycle.
func (n *Node) Pending() model.Status {
	return n.pending
}

// CommitPending publishes the pending bits as the server's current status.
func (n *Node) CommitPending() {
	n.server.SetStatus(n.pending)
}

// Previous returns the status observed at the end of the prior cycle, zero
// when no cycle has completed yet.
func (n *Node) Previous() model.Status {
	if !n.hasPrev {
		return 0
	}
	return n.prev
}

// HasPrevious reports whether a prior cycle has been observed.
func (n *Node) HasPrevious() bool {
	return n.hasPrev
}

// StatusChanged reports whether the current status differs from the prior
// cycle's observation. Always false before the first completed cycle.
func (n *Node) StatusChanged() bool {
	return n.hasPrev && n.prev != n.server.Status()
}

// UpdatePrevious records the current status as the prior-cycle observation
// for the next cycle's diff.
func (n *Node) UpdatePrevious() {
	n.prev = n.server.Status()
	n.hasPrev = true
}

// ErrorCount returns the consecutive probe failure count.
func (n *Node) ErrorCount() int {
	return n.errCount
}

// IncErrorCount bumps the consecutive failure count.
func (n *Node) IncErrorCount() {
	n.errCount++
}

// ResetErrorCount clears the consecutive failure count after a successful
// probe.
func (n *Node) ResetErrorCount() {
	n.errCount = 0
}

// VersionWarned reports whether the unsupported-version warning has already
// been logged for this node.
func (n *Node) VersionWarned() bool {
	return n.versionWarned
}

// MarkVersionWarned suppresses further unsupported-version warnings.
func (n *Node) MarkVersionWarned() {
	n.versionWarned = true
}
