package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassifyConnectFailure(t *testing.T) {
	timeout := 3 * time.Second

	tests := []struct {
		name    string
		elapsed time.Duration
		want    ConnectResult
	}{
		{"instant refusal", 0, ConnectRefused},
		{"fast refusal", 50 * time.Millisecond, ConnectRefused},
		{"just under the timeout", timeout - time.Nanosecond, ConnectRefused},
		{"exactly the timeout", timeout, ConnectTimedOut},
		{"over the timeout", timeout + time.Second, ConnectTimedOut},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyConnectFailure(tt.elapsed, timeout))
		})
	}
}

func TestConnectResultString(t *testing.T) {
	assert.Equal(t, "ok", ConnectOK.String())
	assert.Equal(t, "timeout", ConnectTimedOut.String())
	assert.Equal(t, "refused", ConnectRefused.String())
}
