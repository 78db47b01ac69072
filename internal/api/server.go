// Package api serves the local administrative interface: monitor listings
// and per-monitor diagnostics, bound to a loopback address by default.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/edvin/proxymon/internal/monitor"
)

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	registry *monitor.Registry
}

func NewServer(logger zerolog.Logger, registry *monitor.Registry) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger.With().Str("component", "admin-api").Logger(),
		registry: registry,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/monitors", s.handleListMonitors)
	s.router.Get("/monitors/{name}", s.handleGetMonitor)
	s.router.Get("/monitors/{name}/diagnostics", s.handleDiagnostics)
	s.router.Get("/diagnostics", s.handleAllDiagnostics)

	return s
}

// Handler returns the router for mounting into an http.Server.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type monitorSummary struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
}

type nodeSummary struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Status  string `json:"status"`
}

type monitorDetail struct {
	Name     string        `json:"name"`
	State    string        `json:"state"`
	Interval string        `json:"interval"`
	Nodes    []nodeSummary `json:"nodes"`
}

func (s *Server) handleListMonitors(w http.ResponseWriter, _ *http.Request) {
	list := []monitorSummary{}
	for name, running := range s.registry.All() {
		list = append(list, monitorSummary{Name: name, Running: running})
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetMonitor(w http.ResponseWriter, r *http.Request) {
	mon, err := s.registry.Find(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, monitor.ErrMonitorNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	detail := monitorDetail{
		Name:     mon.Name(),
		State:    mon.State().String(),
		Interval: mon.Interval().String(),
		Nodes:    []nodeSummary{},
	}
	for _, node := range mon.Nodes() {
		srv := node.Server()
		detail.Nodes = append(detail.Nodes, nodeSummary{
			Name:    srv.Name,
			Address: srv.Address(),
			Status:  srv.Status().String(),
		})
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	mon, err := s.registry.Find(chi.URLParam(r, "name"))
	if err != nil {
		if errors.Is(err, monitor.ErrMonitorNotFound) {
			writeError(w, http.StatusNotFound, "monitor not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	var b strings.Builder
	s.registry.Show(&b, mon)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(b.String()))
}

func (s *Server) handleAllDiagnostics(w http.ResponseWriter, _ *http.Request) {
	var b strings.Builder
	s.registry.List(&b)
	s.registry.ShowAll(&b)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte(b.String()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
