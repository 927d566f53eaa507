// Package opsapi serves the controller's operational HTTP surface:
// liveness, Prometheus scraping, and a snapshot of the last rendered
// frame. It is three handlers, deliberately plain net/http rather than
// a router — see DESIGN.md for why no router dependency is wired here.
package opsapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/partylights/partylights-go/internal/blackboard"
)

// Server serves /healthz, /metrics, and /api/status.
type Server struct {
	log *slog.Logger

	mu       sync.RWMutex
	lastBoot time.Time
	last     *blackboard.Board
}

// New builds a Server. Call Handler to mount it; /api/status is kept
// current by calling Observe once per frame.
func New(log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{log: log, lastBoot: time.Now()}
}

// Observe records the most recently rendered frame for /api/status.
func (s *Server) Observe(bb *blackboard.Board) {
	s.mu.Lock()
	s.last = bb
	s.mu.Unlock()
}

// Handler returns the mux serving this Server's endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/status", s.handleStatus)
	return mux
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type statusResponse struct {
	UptimeSeconds float64                   `json:"uptime_seconds"`
	IsOnset       bool                      `json:"is_onset"`
	IsBeat        bool                      `json:"is_beat"`
	Pitch         *float64                  `json:"pitch"`
	RenderedState map[string]map[string]int `json:"rendered_state"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	last := s.last
	s.mu.RUnlock()

	resp := statusResponse{UptimeSeconds: time.Since(s.lastBoot).Seconds()}
	if last != nil {
		resp.IsOnset = last.IsOnset
		resp.IsBeat = last.IsBeat
		resp.Pitch = last.Pitch
		resp.RenderedState = last.RenderedState
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.log.Error("opsapi: encode status", "error", err)
	}
}
