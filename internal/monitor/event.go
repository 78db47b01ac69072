package monitor

import (
	"fmt"
	"strings"

	"github.com/edvin/proxymon/internal/model"
)

// Event classifies the semantic meaning of a status transition between two
// poll cycles.
type Event int

const (
	// EventUndefined is the sentinel for unrecognized event names and
	// unclassifiable transitions. It is never a valid filter entry.
	EventUndefined Event = iota
	EventServerUp
	EventServerDown
	EventMasterUp
	EventMasterDown
	EventSlaveUp
	EventSlaveDown
	EventSyncedUp
	EventSyncedDown
	EventNDBUp
	EventNDBDown
	EventLostMaster
	EventLostSlave
	EventLostSynced
	EventLostNDB
	EventNewMaster
	EventNewSlave
	EventNewSynced
	EventNewNDB

	// EventNone means no reportable change between cycles. It sits outside
	// the name vocabulary and is never matched by EventFromName.
	EventNone
)

var eventNames = map[Event]string{
	EventUndefined:  "undefined",
	EventServerUp:   "server_up",
	EventServerDown: "server_down",
	EventMasterUp:   "master_up",
	EventMasterDown: "master_down",
	EventSlaveUp:    "slave_up",
	EventSlaveDown:  "slave_down",
	EventSyncedUp:   "synced_up",
	EventSyncedDown: "synced_down",
	EventNDBUp:      "ndb_up",
	EventNDBDown:    "ndb_down",
	EventLostMaster: "lost_master",
	EventLostSlave:  "lost_slave",
	EventLostSynced: "lost_synced",
	EventLostNDB:    "lost_ndb",
	EventNewMaster:  "new_master",
	EventNewSlave:   "new_slave",
	EventNewSynced:  "new_synced",
	EventNewNDB:     "new_ndb",
}

// String returns the canonical lower-case event name.
func (e Event) String() string {
	if name, ok := eventNames[e]; ok {
		return name
	}
	if e == EventNone {
		return "none"
	}
	return "undefined"
}

// EventFromName maps a textual event name to its Event value. Matching is
// case-insensitive. Unrecognized names map to EventUndefined, never an
// error.
func EventFromName(name string) Event {
	for ev, evName := range eventNames {
		if strings.EqualFold(evName, name) {
			return ev
		}
	}
	return EventUndefined
}

// roleBits lists the role bits in precedence order: when more than one is
// set, the first match wins.
var roleBits = []struct {
	bit                    Status
	up, down, lost, gained Event
}{
	{model.StatusMaster, EventMasterUp, EventMasterDown, EventLostMaster, EventNewMaster},
	{model.StatusSlave, EventSlaveUp, EventSlaveDown, EventLostSlave, EventNewSlave},
	{model.StatusJoined, EventSyncedUp, EventSyncedDown, EventLostSynced, EventNewSynced},
	{model.StatusNDB, EventNDBUp, EventNDBDown, EventLostNDB, EventNewNDB},
}

// Status is re-exported for classification call sites.
type Status = model.Status

// ClassifyEvent maps a (previous, current) status pair to the event that
// describes the transition. Both inputs are masked to the bits event
// classification tracks; other bits never influence the result.
func ClassifyEvent(prev, cur Status) Event {
	prev &= model.EventMask
	cur &= model.EventMask

	if prev == cur {
		return EventNone
	}

	wasRunning := prev.Has(model.StatusRunning)
	isRunning := cur.Has(model.StatusRunning)

	switch {
	case !wasRunning && isRunning:
		for _, r := range roleBits {
			if cur.Has(r.bit) {
				return r.up
			}
		}
		return EventServerUp

	case wasRunning && !isRunning:
		for _, r := range roleBits {
			if prev.Has(r.bit) {
				return r.down
			}
		}
		return EventServerDown

	case wasRunning && isRunning:
		// Still up; a role bit was gained or dropped.
		for _, r := range roleBits {
			if prev.Has(r.bit) {
				return r.lost
			}
		}
		for _, r := range roleBits {
			if cur.Has(r.bit) {
				return r.gained
			}
		}
		return EventUndefined

	default:
		// Down before and after; only untracked role churn.
		return EventUndefined
	}
}

// EventSet is a filter over the event vocabulary. The zero value admits
// every event, matching a monitor with no explicit events parameter.
type EventSet struct {
	enabled map[Event]bool
}

// Enabled reports whether ev passes the filter.
func (s EventSet) Enabled(ev Event) bool {
	if s.enabled == nil {
		return true
	}
	return s.enabled[ev]
}

// Empty reports whether the set admits everything.
func (s EventSet) Empty() bool {
	return s.enabled == nil
}

// eventListDelimiters accepts the comma, pipe, and space separated forms.
func eventListDelimiters(r rune) bool {
	return r == ',' || r == '|' || r == ' '
}

// ParseEventList parses an event filter specification. The parse is
// atomic: the first unrecognized name fails the whole call and no partial
// set is returned.
func ParseEventList(spec string) (EventSet, error) {
	names := strings.FieldsFunc(spec, eventListDelimiters)
	if len(names) == 0 {
		return EventSet{}, fmt.Errorf("empty event list")
	}

	enabled := make(map[Event]bool, len(names))
	for _, name := range names {
		ev := EventFromName(name)
		if ev == EventUndefined {
			return EventSet{}, fmt.Errorf("invalid event name %q", name)
		}
		enabled[ev] = true
	}
	return EventSet{enabled: enabled}, nil
}
