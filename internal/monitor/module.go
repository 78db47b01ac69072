package monitor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/edvin/proxymon/internal/model"
)

// ErrUnknownModule is returned when a monitor references a module name
// that has not been registered.
var ErrUnknownModule = errors.New("unknown monitor module")

// Handle is the opaque per-run state a module returns from Start. The core
// stores it on the monitor and hands it back on Stop without inspecting it.
type Handle any

// Module is a pluggable monitoring strategy. The core owns registry and
// lifecycle bookkeeping; the module owns the polling loop and whatever
// vendor-specific topology discovery it performs inside it.
type Module interface {
	// Start begins polling the monitor's nodes and returns an opaque run
	// handle. A nil error means the monitor is polling.
	Start(ctx context.Context, mon *Monitor, params []Parameter) (Handle, error)
	// Stop halts the polling loop and returns once it has exited.
	Stop(mon *Monitor)
	// Diagnostics writes human-readable module state for one monitor.
	Diagnostics(w io.Writer, mon *Monitor)
}

// Connector opens a driver-specific probe connection to a server. Each
// module supplies one so the shared probe logic stays backend-agnostic.
type Connector interface {
	Open(server *model.Server, user, password string, timeouts Timeouts) (*sql.DB, error)
}

// ModuleSet resolves module names to registered implementations.
type ModuleSet struct {
	mu      sync.Mutex
	modules map[string]Module
}

// NewModuleSet creates an empty module resolver.
func NewModuleSet() *ModuleSet {
	return &ModuleSet{modules: make(map[string]Module)}
}

// Register makes a module loadable under name. Later registrations under
// the same name replace earlier ones.
func (s *ModuleSet) Register(name string, m Module) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.modules[name] = m
}

// Load resolves a module by name.
func (s *ModuleSet) Load(name string) (Module, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.modules[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownModule, name)
	}
	return m, nil
}
