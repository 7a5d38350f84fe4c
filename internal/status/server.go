// Package status exposes the state of the display loop for diagnostics.
package status

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/unklstewy/flightboard/internal/db"
	"github.com/unklstewy/flightboard/internal/scheduler"
	"github.com/unklstewy/flightboard/pkg/panel"
)

// HealthChecker reports dependency health.
type HealthChecker interface {
	Healthy(ctx context.Context) error
}

// SightingLister returns recent journal entries.
type SightingLister interface {
	Recent(ctx context.Context, limit int) ([]db.Sighting, error)
}

// Options configures the optional parts of the server.
type Options struct {
	// CacheSize is sampled from the loop goroutine on every cycle.
	CacheSize func() int
	Health    HealthChecker
	Sightings SightingLister
	Logger    *slog.Logger
}

// CycleSummary is the JSON form of a scheduler.Cycle.
type CycleSummary struct {
	At        time.Time    `json:"at"`
	Area      string       `json:"area"`
	AreaIndex int          `json:"area_index"`
	Fetched   int          `json:"fetched"`
	Kept      int          `json:"kept"`
	Skipped   bool         `json:"skipped"`
	Frame     *panel.Frame `json:"frame,omitempty"`
}

// AreaSummary is the JSON form of scheduler.AreaStats.
type AreaSummary struct {
	Fetched      int       `json:"fetched"`
	Kept         int       `json:"kept"`
	Shown        int       `json:"shown"`
	Skips        int       `json:"skips"`
	TotalUpdates int       `json:"total_updates"`
	LastUpdate   time.Time `json:"last_update"`
}

// Snapshot is the /status payload.
type Snapshot struct {
	StartedAt    time.Time              `json:"started_at"`
	Cycles       int                    `json:"cycles"`
	Frames       int                    `json:"frames"`
	CachedRoutes int                    `json:"cached_routes"`
	LastCycle    *CycleSummary          `json:"last_cycle,omitempty"`
	Areas        map[string]AreaSummary `json:"areas"`
}

// Server keeps the last cycle and frame behind a mutex; Report is called by
// the loop goroutine and the handlers read from HTTP goroutines.
type Server struct {
	router *chi.Mux
	opts   Options
	logger *slog.Logger

	mu       sync.RWMutex
	snapshot Snapshot
	frame    []byte
}

// NewServer creates the status server and its routes.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: logger,
		snapshot: Snapshot{
			StartedAt: time.Now().UTC(),
			Areas:     make(map[string]AreaSummary),
		},
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/frame.png", s.handleFrame)
	if s.opts.Sightings != nil {
		r.Get("/sightings", s.handleSightings)
	}
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Report records a completed cycle. The frame is encoded here so the
// handlers never touch the image.
func (s *Server) Report(c scheduler.Cycle) {
	var encoded []byte
	if c.Image != nil {
		var buf bytes.Buffer
		if err := png.Encode(&buf, c.Image); err != nil {
			s.logger.Warn("Failed to encode status frame", "error", err)
		} else {
			encoded = buf.Bytes()
		}
	}
	cached := -1
	if s.opts.CacheSize != nil {
		cached = s.opts.CacheSize()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Cycles++
	s.snapshot.LastCycle = &CycleSummary{
		At:        c.At,
		Area:      c.Area,
		AreaIndex: c.AreaIndex,
		Fetched:   c.Fetched,
		Kept:      c.Kept,
		Skipped:   c.Skipped,
		Frame:     c.Frame,
	}
	s.snapshot.Areas[c.Area] = AreaSummary(c.Stats)
	if cached >= 0 {
		s.snapshot.CachedRoutes = cached
	}
	if encoded != nil {
		s.snapshot.Frames++
		s.frame = encoded
	}
}

// Snapshot returns a copy of the current state.
func (s *Server) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Areas = make(map[string]AreaSummary, len(s.snapshot.Areas))
	for k, v := range s.snapshot.Areas {
		snap.Areas[k] = v
	}
	if s.snapshot.LastCycle != nil {
		last := *s.snapshot.LastCycle
		snap.LastCycle = &last
	}
	return snap
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Status server listening", "addr", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.opts.Health.Healthy(ctx); err != nil {
			respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status": "degraded",
				"error":  err.Error(),
			})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.Snapshot())
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	frame := s.frame
	s.mu.RUnlock()

	if frame == nil {
		respondError(w, http.StatusNotFound, "no frame rendered yet")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(frame)
}

func (s *Server) handleSightings(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 500 {
			respondError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	sightings, err := s.opts.Sightings.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list sightings", "error", err)
		respondError(w, http.StatusInternalServerError, "failed to list sightings")
		return
	}
	if sightings == nil {
		sightings = []db.Sighting{}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"sightings": sightings,
		"count":     len(sightings),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]interface{}{"error": message})
}
