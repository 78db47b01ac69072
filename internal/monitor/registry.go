package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"sync"

	"github.com/rs/zerolog"

	"github.com/edvin/proxymon/internal/metrics"
	"github.com/edvin/proxymon/internal/secrets"
)

// ErrMonitorExists is returned when a monitor name is already registered.
var ErrMonitorExists = errors.New("monitor already exists")

// ErrMonitorNotFound is returned by Find for unknown monitor names.
var ErrMonitorNotFound = errors.New("monitor not found")

// Registry is the process-wide collection of monitors. All list access is
// serialized by the registry's own lock; the lock is held only for the
// duration of a list operation, never across a polling cycle.
type Registry struct {
	logger  zerolog.Logger
	modules *ModuleSet
	secrets *secrets.Service
	metrics *metrics.MonitorMetrics

	mu sync.Mutex
	// monitors keeps most-recently-created first; byName indexes it.
	monitors []*Monitor
	byName   map[string]*Monitor
}

// NewRegistry creates an empty monitor registry.
func NewRegistry(logger zerolog.Logger, modules *ModuleSet, sec *secrets.Service, met *metrics.MonitorMetrics) *Registry {
	return &Registry{
		logger:  logger.With().Str("component", "monitor-registry").Logger(),
		modules: modules,
		secrets: sec,
		metrics: met,
		byName:  make(map[string]*Monitor),
	}
}

// Create allocates a monitor bound to the named module and registers it.
// The monitor starts in the allocated state with default timeouts and an
// empty node collection. Creation fails when the module cannot be resolved
// or the name is taken.
func (r *Registry) Create(name, moduleName string) (*Monitor, error) {
	module, err := r.modules.Load(moduleName)
	if err != nil {
		r.logger.Error().Err(err).Str("monitor", name).Msg("unable to load monitor module")
		return nil, fmt.Errorf("create monitor %q: %w", name, err)
	}

	mon := newMonitor(name, module, r.logger, r.secrets, r.metrics)

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, taken := r.byName[name]; taken {
		return nil, fmt.Errorf("create monitor %q: %w", name, ErrMonitorExists)
	}
	r.monitors = append([]*Monitor{mon}, r.monitors...)
	r.byName[name] = mon
	return mon, nil
}

// Destroy stops the monitor if it is running, unlinks it from the registry,
// and releases its resources. The monitor is unreachable by name afterward.
func (r *Registry) Destroy(mon *Monitor) {
	r.mu.Lock()
	for i, m := range r.monitors {
		if m == mon {
			r.monitors = append(r.monitors[:i], r.monitors[i+1:]...)
			break
		}
	}
	delete(r.byName, mon.Name())
	r.mu.Unlock()

	// Free forces a stop; done outside the registry lock since stopping
	// waits for the monitor's polling loop.
	mon.free()
}

// Find returns the monitor with the exact given name.
func (r *Registry) Find(name string) (*Monitor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mon, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("find monitor %q: %w", name, ErrMonitorNotFound)
	}
	return mon, nil
}

// snapshot returns the monitor list as of now, most-recently-created first.
func (r *Registry) snapshot() []*Monitor {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Monitor(nil), r.monitors...)
}

// All returns a restartable sequence of (name, running) pairs, consistent
// with the registry contents at the time of the call. Later registry
// mutation does not affect an in-progress iteration.
func (r *Registry) All() iter.Seq2[string, bool] {
	monitors := r.snapshot()
	return func(yield func(string, bool) bool) {
		for _, mon := range monitors {
			if !yield(mon.Name(), mon.IsRunning()) {
				return
			}
		}
	}
}

// StartAll starts every registered monitor in registry order. One
// monitor's start failure is logged and does not prevent starting the
// rest.
func (r *Registry) StartAll(ctx context.Context) {
	for _, mon := range r.snapshot() {
		if err := mon.Start(ctx); err != nil {
			r.logger.Error().Err(err).Str("monitor", mon.Name()).Msg("monitor failed to start")
		}
	}
}

// StopAll stops every registered monitor in registry order.
func (r *Registry) StopAll() {
	for _, mon := range r.snapshot() {
		mon.Stop()
	}
}

// List writes a tabular listing of all monitors and their run state.
func (r *Registry) List(w io.Writer) {
	fmt.Fprintf(w, "---------------------+---------------------\n")
	fmt.Fprintf(w, "%-20s | Status\n", "Monitor")
	fmt.Fprintf(w, "---------------------+---------------------\n")
	for name, running := range r.All() {
		state := "Stopped"
		if running {
			state = "Running"
		}
		fmt.Fprintf(w, "%-20s | %s\n", name, state)
	}
	fmt.Fprintf(w, "---------------------+---------------------\n")
}

// Show writes a single monitor's diagnostics, delegating module state to
// the module itself.
func (r *Registry) Show(w io.Writer, mon *Monitor) {
	fmt.Fprintf(w, "Monitor: %s\n", mon.Name())
	fmt.Fprintf(w, "\tState:                  %s\n", mon.State())
	fmt.Fprintf(w, "\tSampling interval:      %s\n", mon.Interval())
	if mon.Handle() != nil {
		mon.module.Diagnostics(w, mon)
	} else {
		fmt.Fprintf(w, "\t(monitor not started)\n")
	}
}

// ShowAll writes diagnostics for every registered monitor.
func (r *Registry) ShowAll(w io.Writer) {
	for _, mon := range r.snapshot() {
		r.Show(w, mon)
	}
}
