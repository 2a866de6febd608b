// Package ops exposes the simulator's operational HTTP surface: health,
// manual tick and reconcile triggers, and cached position lookups.
package ops

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/itanishqshelar/milesconnect-demo/internal/fleet"
	"github.com/itanishqshelar/milesconnect-demo/internal/sim"
)

// TickRunner triggers one simulation tick unless one is already running.
type TickRunner interface {
	RunOnce() (sim.TickResult, bool, error)
}

// Reconciler fixes or reports busy-flag drift.
type Reconciler interface {
	Reconcile(ctx context.Context) (sim.Report, error)
	Inspect(ctx context.Context) (sim.Report, error)
}

// PositionReader serves the latest cached fix for a vehicle.
type PositionReader interface {
	GetPosition(ctx context.Context, vehicleID string) (*fleet.PositionSnapshot, error)
}

type Server struct {
	runner    TickRunner
	recon     Reconciler
	positions PositionReader // nil when the snapshot cache is disabled
	ping      func(ctx context.Context) error
}

func NewServer(runner TickRunner, recon Reconciler, positions PositionReader, ping func(ctx context.Context) error) *Server {
	return &Server{runner: runner, recon: recon, positions: positions, ping: ping}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/tick", s.handleTick)
	mux.HandleFunc("/reconcile", s.handleReconcile)
	mux.HandleFunc("/positions/", s.handlePosition)
	return loggingMiddleware(mux)
}

// Serve starts the ops HTTP server on the given address.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{Addr: addr, Handler: s.Handler()}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("ops server error: %v", err)
		}
	}()
	log.Printf("ops listening on %s", addr)
	return srv
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.ping != nil {
		if err := s.ping(r.Context()); err != nil {
			log.Printf("health: db ping: %v", err)
			writeError(w, http.StatusServiceUnavailable, "database unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTick(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	res, skipped, err := s.runner.RunOnce()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if skipped {
		writeError(w, http.StatusConflict, "tick already running")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	var (
		report sim.Report
		err    error
	)
	switch r.Method {
	case http.MethodGet:
		report, err = s.recon.Inspect(r.Context())
	case http.MethodPost:
		report, err = s.recon.Reconcile(r.Context())
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/positions/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if s.positions == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshot cache disabled")
		return
	}
	snap, err := s.positions.GetPosition(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if snap == nil {
		writeError(w, http.StatusNotFound, "no cached position")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, sw.status, time.Since(start))
	})
}
