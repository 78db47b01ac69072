package model

import (
	"fmt"
	"sync/atomic"
)

// Server describes one backend database instance. The descriptor is owned
// by whoever assembled the cluster configuration; monitors hold non-owning
// references and are the only writers of the status field.
type Server struct {
	// Name is the logical, operator-assigned identifier.
	Name string
	// Host is the network address used to reach the server.
	Host string
	// Port is the database listener port.
	Port int

	status atomic.Uint32
}

// NewServer creates a server descriptor with an empty status.
func NewServer(name, host string, port int) *Server {
	return &Server{Name: name, Host: host, Port: port}
}

// Status returns the server's current status bits.
func (s *Server) Status() Status {
	return Status(s.status.Load())
}

// SetStatus replaces the server's status bits. Called by the owning
// monitor when a poll cycle commits its pending observation.
func (s *Server) SetStatus(status Status) {
	s.status.Store(uint32(status))
}

// IsRunning reports whether the server was up at the last observation.
func (s *Server) IsRunning() bool {
	return s.Status().Has(StatusRunning)
}

// Address returns the host:port endpoint string.
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}
