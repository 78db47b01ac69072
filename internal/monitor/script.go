package monitor

import (
	"context"
	"strings"

	"github.com/edvin/proxymon/internal/externcmd"
	"github.com/edvin/proxymon/internal/model"
)

// Placeholder tokens the reaction script may reference. Each is computed
// only when the resolved command actually contains it.
const (
	tokenInitiator  = "$INITIATOR"
	tokenEvent      = "$EVENT"
	tokenNodeList   = "$NODELIST"
	tokenList       = "$LIST"
	tokenMasterList = "$MASTERLIST"
	tokenSlaveList  = "$SLAVELIST"
	tokenSyncedList = "$SYNCEDLIST"
)

// nodeListCapacity bounds the rendered length of any node-list placeholder
// value.
const nodeListCapacity = 4096

// AppendNodeNames renders a comma-separated host:port list of the nodes
// whose status has all bits of mask set; a zero mask admits every node.
// The result never exceeds capacity and never ends in a truncated entry:
// a node is appended only when it fits together with its separator, and
// rendering stops at the first one that does not.
func AppendNodeNames(nodes []*Node, capacity int, mask model.Status) string {
	var b strings.Builder
	sep := ""
	for _, node := range nodes {
		srv := node.Server()
		if mask != 0 && !srv.Status().Has(mask) {
			continue
		}
		entry := srv.Address()
		if b.Len()+len(sep)+len(entry) > capacity {
			break
		}
		b.WriteString(sep)
		b.WriteString(entry)
		sep = ","
	}
	return b.String()
}

// LaunchScript resolves the monitor's reaction script, substitutes the
// placeholders it references with cluster state derived from the node
// collection, and executes it. Failures are logged and recorded but never
// propagate: a broken script must not disturb the polling cycle.
func (m *Monitor) LaunchScript(ctx context.Context, initiator *Node, event Event) {
	cmd, err := externcmd.Resolve(m.script)
	if err != nil {
		m.logger.Error().Err(err).Str("script", m.script).Msg("failed to initialize monitor script")
		return
	}

	if cmd.Matches(tokenInitiator) {
		cmd.Substitute(tokenInitiator, initiator.Server().Address())
	}
	if cmd.Matches(tokenEvent) {
		cmd.Substitute(tokenEvent, event.String())
	}

	nodes := m.Nodes()
	// $LIST must be substituted last: it is a substring of the other list
	// tokens.
	lists := []struct {
		token string
		mask  model.Status
	}{
		{tokenNodeList, model.StatusRunning},
		{tokenMasterList, model.StatusMaster},
		{tokenSlaveList, model.StatusSlave},
		{tokenSyncedList, model.StatusJoined},
		{tokenList, 0},
	}
	for _, l := range lists {
		if cmd.Matches(l.token) {
			cmd.Substitute(l.token, AppendNodeNames(nodes, nodeListCapacity, l.mask))
		}
	}

	if err := cmd.Execute(ctx); err != nil {
		m.logger.Error().
			Err(err).
			Str("script", m.script).
			Str("event", event.String()).
			Msg("failed to execute monitor script")
		m.metrics.CountScriptRun(m.name, "failure")
		return
	}

	m.logger.Info().
		Str("script", m.script).
		Str("event", event.String()).
		Msg("executed monitor script")
	m.metrics.CountScriptRun(m.name, "success")
}
