// Package monitor serves the live state of a running control loop over
// HTTP: JSON for the current pose and modules, and an HTML trajectory chart.
package monitor

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/banshee-data/swervesim/internal/geometry"
	"github.com/banshee-data/swervesim/internal/monitoring"
	"github.com/banshee-data/swervesim/internal/telemetry"
)

// DefaultTrailLength is how many ticks of path the chart keeps.
const DefaultTrailLength = 3000

// Config configures a Server.
type Config struct {
	Address     string
	ModuleNames []string
	TrailLength int
	// Store, when set, lets the chart replay a recorded run with ?run=<id>.
	Store *telemetry.Store
}

type trailPoint struct {
	estimated geometry.Pose
	truth     *geometry.Pose
}

// Server receives frames from the control loop and serves them. Publish is
// called from the loop goroutine; handlers run on the HTTP goroutines.
type Server struct {
	address     string
	moduleNames []string
	store       *telemetry.Store

	mux    *http.ServeMux
	server *http.Server

	mu        sync.RWMutex
	latest    telemetry.Frame
	published bool
	trail     []trailPoint
	trailHead int
	trailCap  int
}

// NewServer creates a server and registers its routes.
func NewServer(cfg Config) *Server {
	capacity := cfg.TrailLength
	if capacity <= 0 {
		capacity = DefaultTrailLength
	}
	s := &Server{
		address:     cfg.Address,
		moduleNames: cfg.ModuleNames,
		store:       cfg.Store,
		trailCap:    capacity,
		mux:         http.NewServeMux(),
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/pose", s.handlePose)
	s.mux.HandleFunc("/api/modules", s.handleModules)
	s.mux.HandleFunc("/charts/trajectory", s.handleTrajectoryChart)
	s.server = &http.Server{Addr: s.address, Handler: s.mux}
	return s
}

// Mux exposes the route table so other packages can mount /debug/ routes.
func (s *Server) Mux() *http.ServeMux { return s.mux }

// Publish records the latest frame.
func (s *Server) Publish(f telemetry.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = f
	s.published = true

	p := trailPoint{estimated: f.Report.Pose}
	if f.Truth != nil {
		t := *f.Truth
		p.truth = &t
	}
	if len(s.trail) < s.trailCap {
		s.trail = append(s.trail, p)
		return
	}
	s.trail[s.trailHead] = p
	s.trailHead = (s.trailHead + 1) % s.trailCap
}

func (s *Server) snapshot() (telemetry.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.published
}

// trailPoints returns the trail oldest first.
func (s *Server) trailPoints() []trailPoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]trailPoint, 0, len(s.trail))
	out = append(out, s.trail[s.trailHead:]...)
	return append(out, s.trail[:s.trailHead]...)
}

// Start serves until ctx is done, then shuts down.
func (s *Server) Start(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		monitoring.Logf("monitor: listening on %s", s.address)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errc <- err
		}
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("monitor: shutdown: %v", err)
		if err := s.server.Close(); err != nil {
			monitoring.Logf("monitor: force close: %v", err)
		}
	}
	monitoring.Logf("monitor: stopped")
	return nil
}
