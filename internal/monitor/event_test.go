package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/proxymon/internal/model"
)

func TestClassifyEvent(t *testing.T) {
	tests := []struct {
		name string
		prev model.Status
		cur  model.Status
		want Event
	}{
		{"plain server up", 0, model.StatusRunning, EventServerUp},
		{"plain server down", model.StatusRunning, 0, EventServerDown},
		{"master up from cold", 0, model.StatusRunning | model.StatusMaster, EventMasterUp},
		{"master down", model.StatusRunning | model.StatusMaster, 0, EventMasterDown},
		{"slave up", 0, model.StatusRunning | model.StatusSlave, EventSlaveUp},
		{"slave down", model.StatusRunning | model.StatusSlave, 0, EventSlaveDown},
		{"synced up", 0, model.StatusRunning | model.StatusJoined, EventSyncedUp},
		{"synced down", model.StatusRunning | model.StatusJoined, 0, EventSyncedDown},
		{"ndb up", 0, model.StatusRunning | model.StatusNDB, EventNDBUp},
		{"ndb down", model.StatusRunning | model.StatusNDB, 0, EventNDBDown},
		{"lost master while up", model.StatusRunning | model.StatusMaster, model.StatusRunning, EventLostMaster},
		{"lost slave while up", model.StatusRunning | model.StatusSlave, model.StatusRunning, EventLostSlave},
		{"lost synced while up", model.StatusRunning | model.StatusJoined, model.StatusRunning, EventLostSynced},
		{"lost ndb while up", model.StatusRunning | model.StatusNDB, model.StatusRunning, EventLostNDB},
		{"new master while up", model.StatusRunning, model.StatusRunning | model.StatusMaster, EventNewMaster},
		{"new slave while up", model.StatusRunning, model.StatusRunning | model.StatusSlave, EventNewSlave},
		{"new synced while up", model.StatusRunning, model.StatusRunning | model.StatusJoined, EventNewSynced},
		{"new ndb while up", model.StatusRunning, model.StatusRunning | model.StatusNDB, EventNewNDB},
		{"no change", model.StatusRunning | model.StatusMaster, model.StatusRunning | model.StatusMaster, EventNone},
		{"both down", 0, 0, EventNone},
		{"role churn while down", model.StatusMaster, model.StatusSlave, EventUndefined},
		{"master precedence over slave coming up", 0, model.StatusRunning | model.StatusMaster | model.StatusSlave, EventMasterUp},
		{"master precedence going down", model.StatusRunning | model.StatusMaster | model.StatusSlave, 0, EventMasterDown},
		{"slave precedence over joined", 0, model.StatusRunning | model.StatusSlave | model.StatusJoined, EventSlaveUp},
		{"maintenance bit ignored", model.StatusRunning, model.StatusRunning | model.StatusMaintenance, EventNone},
		{"role swap reports loss first", model.StatusRunning | model.StatusMaster, model.StatusRunning | model.StatusSlave, EventLostMaster},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEvent(tt.prev, tt.cur))
		})
	}
}

func TestEventNames(t *testing.T) {
	assert.Equal(t, "master_down", EventMasterDown.String())
	assert.Equal(t, "new_synced", EventNewSynced.String())
	assert.Equal(t, "none", EventNone.String())
	assert.Equal(t, "undefined", EventUndefined.String())
	assert.Equal(t, "undefined", Event(9999).String())

	// Every named event round-trips through its name.
	for ev, name := range eventNames {
		if ev == EventUndefined {
			continue
		}
		assert.Equal(t, ev, EventFromName(name))
	}
}

func TestEventFromName(t *testing.T) {
	assert.Equal(t, EventMasterUp, EventFromName("master_up"))
	assert.Equal(t, EventMasterUp, EventFromName("MASTER_UP"))
	assert.Equal(t, EventUndefined, EventFromName("bogus"))
	assert.Equal(t, EventUndefined, EventFromName(""))
	// "none" is not part of the filter vocabulary.
	assert.Equal(t, EventUndefined, EventFromName("none"))
}

func TestParseEventList(t *testing.T) {
	set, err := ParseEventList("master_down,master_up|slave_down new_master")
	require.NoError(t, err)
	assert.True(t, set.Enabled(EventMasterDown))
	assert.True(t, set.Enabled(EventMasterUp))
	assert.True(t, set.Enabled(EventSlaveDown))
	assert.True(t, set.Enabled(EventNewMaster))
	assert.False(t, set.Enabled(EventSlaveUp))
	assert.False(t, set.Empty())
}

func TestParseEventListRejectsUnknownName(t *testing.T) {
	set, err := ParseEventList("master_down,bogus,slave_down")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bogus")
	// No partial set: the returned zero value admits everything, so callers
	// must not install it on error.
	assert.True(t, set.Empty())
}

func TestParseEventListEmpty(t *testing.T) {
	_, err := ParseEventList("")
	require.Error(t, err)
	_, err = ParseEventList(" ,| ")
	require.Error(t, err)
}

func TestEventSetZeroValueAdmitsAll(t *testing.T) {
	var set EventSet
	assert.True(t, set.Empty())
	assert.True(t, set.Enabled(EventMasterDown))
	assert.True(t, set.Enabled(EventServerUp))
}
