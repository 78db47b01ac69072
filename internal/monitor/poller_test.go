package monitor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/proxymon/internal/model"
)

// countingProber flips every probed node to running and counts cycles.
type countingProber struct {
	probes atomic.Int64
	cycled chan struct{}
}

func (p *countingProber) ProbeNode(_ context.Context, _ *Monitor, node *Node) {
	node.ResetPending()
	node.SetPending(model.StatusRunning)
	p.probes.Add(1)
	select {
	case p.cycled <- struct{}{}:
	default:
	}
}

func TestStartPollingRunsImmediateCycle(t *testing.T) {
	mon := newTestMonitor(t, &fakeModule{})
	mon.SetInterval(time.Hour) // only the immediate cycle should run
	node := mon.AddServer(model.NewServer("db1", "10.0.0.1", 3306))

	prober := &countingProber{cycled: make(chan struct{}, 1)}
	handle := StartPolling(context.Background(), mon, prober)
	require.NotNil(t, handle)
	assert.NotEqual(t, uuid.Nil, handle.ID())

	select {
	case <-prober.cycled:
	case <-time.After(5 * time.Second):
		t.Fatal("first poll cycle never ran")
	}

	handle.Stop()
	assert.EqualValues(t, 1, prober.probes.Load())
	assert.Equal(t, model.StatusRunning, node.Server().Status())
	assert.True(t, node.HasPrevious())
}

func TestStartPollingTicks(t *testing.T) {
	mon := newTestMonitor(t, &fakeModule{})
	mon.SetInterval(5 * time.Millisecond)
	mon.AddServer(model.NewServer("db1", "10.0.0.1", 3306))

	prober := &countingProber{cycled: make(chan struct{}, 1)}
	handle := StartPolling(context.Background(), mon, prober)

	deadline := time.After(5 * time.Second)
	for prober.probes.Load() < 3 {
		select {
		case <-prober.cycled:
		case <-deadline:
			t.Fatal("polling loop never ticked")
		}
	}
	handle.Stop()

	// No more cycles run after Stop returns.
	settled := prober.probes.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, settled, prober.probes.Load())
}

func TestStartPollingStopsOnContextCancel(t *testing.T) {
	mon := newTestMonitor(t, &fakeModule{})
	mon.SetInterval(time.Hour)
	mon.AddServer(model.NewServer("db1", "10.0.0.1", 3306))

	ctx, cancel := context.WithCancel(context.Background())
	prober := &countingProber{cycled: make(chan struct{}, 1)}
	handle := StartPolling(ctx, mon, prober)

	<-prober.cycled
	cancel()

	select {
	case <-handle.done:
	case <-time.After(5 * time.Second):
		t.Fatal("polling loop did not exit on context cancel")
	}
}

// bitsProber stamps a fixed bit pattern on every node it probes.
type bitsProber struct {
	bits   model.Status
	cycled chan struct{}
}

func (p *bitsProber) ProbeNode(_ context.Context, _ *Monitor, node *Node) {
	node.ResetPending()
	node.SetPending(p.bits)
	select {
	case p.cycled <- struct{}{}:
	default:
	}
}

func TestConcurrentMonitorsDoNotCrossContaminate(t *testing.T) {
	monA := newTestMonitor(t, &fakeModule{})
	monA.SetInterval(time.Millisecond)
	aNodes := []*Node{
		monA.AddServer(model.NewServer("a1", "10.0.0.1", 3306)),
		monA.AddServer(model.NewServer("a2", "10.0.0.2", 3306)),
	}

	monB := newTestMonitor(t, &fakeModule{})
	monB.SetInterval(time.Millisecond)
	bNodes := []*Node{
		monB.AddServer(model.NewServer("b1", "10.0.1.1", 5432)),
	}

	proberA := &bitsProber{bits: model.StatusRunning | model.StatusMaster, cycled: make(chan struct{}, 1)}
	proberB := &bitsProber{bits: model.StatusRunning | model.StatusSlave, cycled: make(chan struct{}, 1)}

	handleA := StartPolling(context.Background(), monA, proberA)
	handleB := StartPolling(context.Background(), monB, proberB)

	// Let both loops complete several cycles.
	deadline := time.After(5 * time.Second)
	for cyclesA, cyclesB := 0, 0; cyclesA < 3 || cyclesB < 3; {
		select {
		case <-proberA.cycled:
			cyclesA++
		case <-proberB.cycled:
			cyclesB++
		case <-deadline:
			t.Fatal("polling loops did not cycle")
		}
	}

	handleA.Stop()
	handleB.Stop()

	// Each monitor's nodes carry only their own prober's bits.
	for _, node := range aNodes {
		assert.Equal(t, model.StatusRunning|model.StatusMaster, node.Server().Status())
		assert.False(t, node.Server().Status().Has(model.StatusSlave))
	}
	for _, node := range bNodes {
		assert.Equal(t, model.StatusRunning|model.StatusSlave, node.Server().Status())
		assert.False(t, node.Server().Status().Has(model.StatusMaster))
	}
}
