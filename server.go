package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/banshee-data/path.planner/internal/fusion"
	"github.com/banshee-data/path.planner/internal/monitor"
	"github.com/banshee-data/path.planner/internal/monitoring"
	"github.com/banshee-data/path.planner/internal/planner"
)

// Server wires the telemetry ingress and the debug monitor onto one mux.
type Server struct {
	pl          *planner.Planner
	withMonitor bool
}

func NewServer(pl *planner.Planner, withMonitor bool) *Server {
	return &Server{pl: pl, withMonitor: withMonitor}
}

// pathResponse is the outbound message: the full emitted path in order.
type pathResponse struct {
	NextX []float64 `json:"next_x"`
	NextY []float64 `json:"next_y"`
}

func (s *Server) ServeMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.homeHandler)
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/telemetry", s.telemetryHandler)
	if s.withMonitor {
		monitor.NewWebServer(s.pl).Register(mux)
	}
	return mux
}

func (s *Server) homeHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("path-planner: POST /telemetry\n"))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("ok\n"))
}

// telemetryHandler consumes one frame and answers with the next path. A
// malformed frame is rejected but still answered with the previous path so
// the simulator always has something to drive.
func (s *Server) telemetryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	frame, err := fusion.ParseFrame(body)
	if err != nil {
		if errors.Is(err, fusion.ErrMalformedFrame) {
			monitoring.Logf("skipping malformed frame: %v", err)
			s.writePath(w, http.StatusBadRequest, s.pl.LastPath())
			return
		}
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	s.writePath(w, http.StatusOK, s.pl.OnFrame(frame))
}

func (s *Server) writePath(w http.ResponseWriter, status int, path fusion.Path) {
	resp := pathResponse{NextX: path.X, NextY: path.Y}
	if resp.NextX == nil {
		resp.NextX = []float64{}
	}
	if resp.NextY == nil {
		resp.NextY = []float64{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		monitoring.Logf("write path response: %v", err)
	}
}
