package model

import "strings"

// Status is a bitmask describing a backend server's observed operational
// and replication state.
type Status uint32

const (
	// StatusRunning is set when the server accepts connections.
	StatusRunning Status = 1 << iota
	// StatusMaster is set when the server is the replication master.
	StatusMaster
	// StatusSlave is set when the server is a replication slave.
	StatusSlave
	// StatusJoined is set when the server is a synced cluster member.
	StatusJoined
	// StatusNDB is set when the server is a synced NDB cluster node.
	StatusNDB
	// StatusMaintenance is set when the server has been taken out of
	// rotation by an operator. Not tracked by event classification.
	StatusMaintenance
	// StatusAuthError is set when the last probe failed authentication.
	// Not tracked by event classification.
	StatusAuthError
)

// EventMask covers the bits that participate in state-transition
// classification. All other bits are ignored when diffing cycles.
const EventMask = StatusRunning | StatusMaster | StatusSlave | StatusJoined | StatusNDB

// Has reports whether all bits in mask are set.
func (s Status) Has(mask Status) bool {
	return s&mask == mask
}

// With returns s with the given bits set.
func (s Status) With(mask Status) Status {
	return s | mask
}

// Without returns s with the given bits cleared.
func (s Status) Without(mask Status) Status {
	return s &^ mask
}

var statusNames = []struct {
	bit  Status
	name string
}{
	{StatusMaintenance, "Maintenance"},
	{StatusMaster, "Master"},
	{StatusSlave, "Slave"},
	{StatusJoined, "Synced"},
	{StatusNDB, "NDB"},
	{StatusAuthError, "Auth Error"},
	{StatusRunning, "Running"},
}

// String renders the status as a comma-separated list of flag names,
// "Down" when no bits are set.
func (s Status) String() string {
	if s == 0 {
		return "Down"
	}
	var parts []string
	for _, def := range statusNames {
		if s.Has(def.bit) {
			parts = append(parts, def.name)
		}
	}
	if !s.Has(StatusRunning) {
		parts = append(parts, "Down")
	}
	return strings.Join(parts, ", ")
}
