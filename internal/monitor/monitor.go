package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/proxymon/internal/metrics"
	"github.com/edvin/proxymon/internal/model"
	"github.com/edvin/proxymon/internal/secrets"
)

// State is a monitor's lifecycle state.
type State int

const (
	// StateAllocated is the state immediately after creation, before any
	// start attempt.
	StateAllocated State = iota
	// StateRunning means the module's polling loop is active.
	StateRunning
	// StateStopping is the transient state while the polling loop halts.
	StateStopping
	// StateStopped means polling has halted and node connections are closed.
	StateStopped
	// StateFreed is terminal; the monitor has released its resources.
	StateFreed
)

// String returns the state's display form used in listings.
func (s State) String() string {
	switch s {
	case StateRunning:
		return "Running"
	case StateStopping:
		return "Stopping"
	case StateFreed:
		return "Freed"
	default:
		return "Stopped"
	}
}

// Default sampling and network timeout settings, applied at creation.
const (
	DefaultInterval       = 10 * time.Second
	DefaultConnectTimeout = 3 * time.Second
	DefaultReadTimeout    = 1 * time.Second
	DefaultWriteTimeout   = 2 * time.Second
)

// Timeouts carries the three network timeout classes applied to probe
// connections.
type Timeouts struct {
	Connect time.Duration
	Read    time.Duration
	Write   time.Duration
}

// TimeoutKind selects which timeout a SetNetworkTimeout call adjusts.
type TimeoutKind int

const (
	ConnectTimeout TimeoutKind = iota
	ReadTimeout
	WriteTimeout
)

// Parameter is one entry of a monitor's ordered configuration parameters.
type Parameter struct {
	Name  string
	Value string
}

// Monitor is one configured monitoring unit: a named set of nodes polled at
// an interval by a pluggable module, reacting to state transitions.
type Monitor struct {
	name    string
	module  Module
	logger  zerolog.Logger
	secrets *secrets.Service
	metrics *metrics.MonitorMetrics

	// mu guards lifecycle state and node-list splices. It is held only for
	// short critical sections, never across network calls.
	mu     sync.Mutex
	state  State
	handle Handle
	nodes  []*Node
	// starting is set while a Start call is between the state check and the
	// state commit, so a concurrent Start cannot launch a second polling loop.
	starting bool

	interval time.Duration
	timeouts Timeouts

	user     string
	password string // encrypted at rest

	script string
	events EventSet

	params []Parameter
}

func newMonitor(name string, module Module, logger zerolog.Logger, sec *secrets.Service, met *metrics.MonitorMetrics) *Monitor {
	return &Monitor{
		name:     name,
		module:   module,
		logger:   logger.With().Str("monitor", name).Logger(),
		secrets:  sec,
		metrics:  met,
		state:    StateAllocated,
		interval: DefaultInterval,
		timeouts: Timeouts{
			Connect: DefaultConnectTimeout,
			Read:    DefaultReadTimeout,
			Write:   DefaultWriteTimeout,
		},
	}
}

// Name returns the monitor's unique name.
func (m *Monitor) Name() string { return m.name }

// Logger returns the monitor-scoped logger for modules to build on.
func (m *Monitor) Logger() *zerolog.Logger { return &m.logger }

// State returns the current lifecycle state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// IsRunning reports whether the monitor is polling.
func (m *Monitor) IsRunning() bool {
	return m.State() == StateRunning
}

// Handle returns the opaque run handle stored by the last successful start.
func (m *Monitor) Handle() Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.handle
}

// Interval returns the sampling interval.
func (m *Monitor) Interval() time.Duration { return m.interval }

// SetInterval sets the sampling interval.
func (m *Monitor) SetInterval(d time.Duration) {
	if d > 0 {
		m.interval = d
	}
}

// Timeouts returns the network timeout settings.
func (m *Monitor) Timeouts() Timeouts { return m.timeouts }

// SetNetworkTimeout adjusts one timeout class. Non-positive values are
// rejected.
func (m *Monitor) SetNetworkTimeout(kind TimeoutKind, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("non-positive value %v for monitor timeout", d)
	}
	switch kind {
	case ConnectTimeout:
		m.timeouts.Connect = d
	case ReadTimeout:
		m.timeouts.Read = d
	case WriteTimeout:
		m.timeouts.Write = d
	default:
		return fmt.Errorf("unsupported timeout kind %d", kind)
	}
	return nil
}

// SetUser sets the default credentials used to connect to monitored nodes.
// The password is stored in its encrypted form and decrypted on demand.
func (m *Monitor) SetUser(user, password string) {
	m.user = user
	m.password = password
}

// User returns the default monitoring username.
func (m *Monitor) User() string { return m.user }

// Script returns the reaction script command, empty when unset.
func (m *Monitor) Script() string { return m.script }

// SetScript sets the reaction script command launched on qualifying events.
func (m *Monitor) SetScript(script string) {
	m.script = script
}

// Events returns the event filter controlling script launches.
func (m *Monitor) Events() EventSet { return m.events }

// SetEventFilter parses and installs an event filter specification. On a
// parse error the previous filter stays in effect.
func (m *Monitor) SetEventFilter(spec string) error {
	set, err := ParseEventList(spec)
	if err != nil {
		return err
	}
	m.events = set
	return nil
}

// AddParameters prepends configuration parameters, mirroring how later
// definitions shadow earlier ones when modules scan the list front to back.
func (m *Monitor) AddParameters(params []Parameter) {
	m.params = append(append([]Parameter(nil), params...), m.params...)
}

// Parameters returns the monitor's configuration parameters in order.
func (m *Monitor) Parameters() []Parameter {
	return append([]Parameter(nil), m.params...)
}

// AddServer attaches a server to the monitor's node collection and returns
// the node, so callers may set per-node credential overrides.
func (m *Monitor) AddServer(server *model.Server) *Node {
	node := NewNode(server)
	m.mu.Lock()
	m.nodes = append(m.nodes, node)
	m.mu.Unlock()
	return node
}

// Nodes returns a snapshot of the node collection in insertion order.
func (m *Monitor) Nodes() []*Node {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*Node(nil), m.nodes...)
}

// Start initializes the module and begins polling. A module start failure
// is logged and returned; the monitor stays non-running.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateRunning || m.starting {
		m.mu.Unlock()
		return nil
	}
	m.starting = true
	params := append([]Parameter(nil), m.params...)
	m.mu.Unlock()

	// The module's own start work (permission checks, first connections)
	// happens outside the lock.
	handle, err := m.module.Start(ctx, m, params)

	m.mu.Lock()
	m.starting = false
	if err == nil {
		m.handle = handle
		m.state = StateRunning
	}
	m.mu.Unlock()

	if err != nil {
		m.logger.Error().Err(err).Msg("failed to start monitor")
		return fmt.Errorf("start monitor %q: %w", m.name, err)
	}

	m.logger.Info().Dur("interval", m.interval).Msg("monitor started")
	return nil
}

// Stop halts polling, closes every node's open connection, and leaves the
// monitor stopped. Calling Stop while not running is a harmless no-op.
// Stop returns only after the module's polling loop has exited.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.state != StateRunning {
		m.mu.Unlock()
		return
	}
	m.state = StateStopping
	m.mu.Unlock()

	// The module blocks until its polling goroutine exits; this must happen
	// outside the monitor lock since the final cycle may still be on the
	// network.
	m.module.Stop(m)

	m.mu.Lock()
	for _, node := range m.nodes {
		node.CloseConn()
	}
	m.state = StateStopped
	m.mu.Unlock()

	m.logger.Info().Msg("monitor stopped")
}

// free forces a stop and releases the monitor's owned resources. Only the
// registry calls this, after unlinking the monitor.
func (m *Monitor) free() {
	m.Stop()

	m.mu.Lock()
	for _, node := range m.nodes {
		node.CloseConn()
	}
	m.nodes = nil
	m.params = nil
	m.handle = nil
	m.state = StateFreed
	m.mu.Unlock()
}

// ProcessStateChanges commits each node's pending status, classifies the
// transition against the prior cycle, and reacts: state changes are logged,
// counted, and — when the event passes the monitor's filter — handed to the
// reaction script. Modules call this at the end of every poll cycle.
func (m *Monitor) ProcessStateChanges(ctx context.Context) {
	for _, node := range m.Nodes() {
		node.CommitPending()
		srv := node.Server()
		m.metrics.ObserveNodeStatus(m.name, srv.Name, srv.IsRunning())

		if node.StatusChanged() {
			event := ClassifyEvent(node.Previous(), srv.Status())
			m.logStateChange(node, event)
			m.metrics.CountEvent(m.name, event.String())

			if m.script != "" && event != EventNone && m.events.Enabled(event) {
				m.LaunchScript(ctx, node, event)
			}
		}
		node.UpdatePrevious()
	}
}

func (m *Monitor) logStateChange(node *Node, event Event) {
	srv := node.Server()
	m.logger.Info().
		Str("node", srv.Name).
		Str("address", srv.Address()).
		Str("event", event.String()).
		Str("from", node.Previous().String()).
		Str("to", srv.Status().String()).
		Msg("server changed state")
}

// ObserveCycle records one completed poll cycle's duration.
func (m *Monitor) ObserveCycle(d time.Duration) {
	m.metrics.ObserveCycle(m.name, d)
}
