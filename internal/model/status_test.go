package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusBits(t *testing.T) {
	s := StatusRunning.With(StatusMaster)

	assert.True(t, s.Has(StatusRunning))
	assert.True(t, s.Has(StatusMaster))
	assert.False(t, s.Has(StatusSlave))

	s = s.Without(StatusMaster)
	assert.False(t, s.Has(StatusMaster))
	assert.True(t, s.Has(StatusRunning))
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		status Status
		want   string
	}{
		{0, "Down"},
		{StatusRunning, "Running"},
		{StatusRunning | StatusMaster, "Master, Running"},
		{StatusRunning | StatusSlave, "Slave, Running"},
		{StatusRunning | StatusJoined, "Synced, Running"},
		{StatusMaster, "Master, Down"},
		{StatusRunning | StatusMaintenance, "Maintenance, Running"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.String())
		})
	}
}

func TestEventMask(t *testing.T) {
	s := StatusRunning | StatusMaster | StatusMaintenance | StatusAuthError
	assert.Equal(t, StatusRunning|StatusMaster, s&EventMask)
}

func TestServerStatus(t *testing.T) {
	srv := NewServer("db1", "10.0.0.1", 3306)

	assert.Equal(t, Status(0), srv.Status())
	assert.False(t, srv.IsRunning())
	assert.Equal(t, "10.0.0.1:3306", srv.Address())

	srv.SetStatus(StatusRunning | StatusSlave)
	assert.True(t, srv.IsRunning())
	assert.Equal(t, StatusRunning|StatusSlave, srv.Status())
}
