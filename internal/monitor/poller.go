package monitor

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Prober is the per-node probe a module plugs into the polling loop. It
// assembles the node's pending status bits for the current cycle; the loop
// handles commit, diffing, and reactions.
type Prober interface {
	ProbeNode(ctx context.Context, mon *Monitor, node *Node)
}

// RunHandle identifies one polling run. Modules return it from Start and
// stop it from Stop.
type RunHandle struct {
	id     uuid.UUID
	cancel context.CancelFunc
	done   chan struct{}
}

// ID returns the run's unique identifier.
func (h *RunHandle) ID() uuid.UUID { return h.id }

// Stop cancels the polling loop and blocks until it has exited. The
// in-flight cycle is interrupted at its next context check; individual
// connection attempts are not cancelled mid-probe.
func (h *RunHandle) Stop() {
	h.cancel()
	<-h.done
}

// StartPolling launches the monitor's polling loop on its own goroutine:
// one full cycle immediately, then one per sampling interval. Within a
// cycle nodes are probed sequentially in insertion order; after the last
// probe the cycle's pending observations are committed and state
// transitions processed.
func StartPolling(ctx context.Context, mon *Monitor, p Prober) *RunHandle {
	ctx, cancel := context.WithCancel(ctx)
	h := &RunHandle{
		id:     uuid.New(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go func() {
		defer close(h.done)

		runCycle(ctx, mon, p)

		ticker := time.NewTicker(mon.Interval())
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				runCycle(ctx, mon, p)
			}
		}
	}()

	return h
}

func runCycle(ctx context.Context, mon *Monitor, p Prober) {
	start := time.Now()
	for _, node := range mon.Nodes() {
		if ctx.Err() != nil {
			return
		}
		p.ProbeNode(ctx, mon, node)
	}
	mon.ProcessStateChanges(ctx)
	mon.ObserveCycle(time.Since(start))
}
