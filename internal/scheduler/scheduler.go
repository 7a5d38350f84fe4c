// Package scheduler is the polling loop that rotates through the configured
// areas and pushes one aircraft per cycle to the display.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"time"

	"github.com/unklstewy/flightboard/internal/db"
	"github.com/unklstewy/flightboard/pkg/adsb"
	"github.com/unklstewy/flightboard/pkg/config"
	"github.com/unklstewy/flightboard/pkg/coordinates"
	"github.com/unklstewy/flightboard/pkg/panel"
	"github.com/unklstewy/flightboard/pkg/routes"
)

// PositionSource returns at most adsb.MaxAircraft records for an area.
type PositionSource interface {
	Fetch(ctx context.Context, lat, lon, radiusKm float64) []adsb.Aircraft
}

// RouteResolver maps a callsign to route info, never failing.
type RouteResolver interface {
	Resolve(ctx context.Context, callsign string) routes.Route
}

// Renderer draws the first aircraft of a list.
type Renderer interface {
	Render(ctx context.Context, aircraft []panel.Enriched, area string, home coordinates.Geographic) (image.Image, error)
}

// Sink receives finished frames.
type Sink interface {
	Show(img image.Image) error
}

// Journal records shown sightings.
type Journal interface {
	Record(ctx context.Context, s db.Sighting) error
}

// Reporter observes each completed cycle.
type Reporter interface {
	Report(c Cycle)
}

// AreaStats tracks per-area statistics.
type AreaStats struct {
	Fetched      int
	Kept         int
	Shown        int
	Skips        int
	TotalUpdates int
	LastUpdate   time.Time
}

// Cycle summarises one Step.
type Cycle struct {
	At        time.Time
	Area      string
	AreaIndex int
	Fetched   int
	Kept      int
	Skipped   bool
	Frame     *panel.Frame
	Image     image.Image
	Stats     AreaStats
}

// Config is the static part of the loop.
type Config struct {
	Areas          []config.Area
	Home           coordinates.Geographic
	SwitchInterval time.Duration
	PollInterval   time.Duration
}

// Dependencies are the collaborators driven by the loop. Journal,
// Reporters, Now, Sleep and Logger are optional.
type Dependencies struct {
	Source    PositionSource
	Routes    RouteResolver
	Renderer  Renderer
	Sink      Sink
	Journal   Journal
	Reporters []Reporter
	Logger    *slog.Logger

	// Now and Sleep replace the wall clock in tests.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

// Scheduler owns the rotation state. It is not safe for concurrent use;
// Step and Run must be called from a single goroutine.
type Scheduler struct {
	cfg  Config
	deps Dependencies

	index      int
	lastSwitch time.Time
	areaStats  map[string]*AreaStats
	logger     *slog.Logger
}

// New validates cfg and deps and starts the rotation clock.
func New(cfg Config, deps Dependencies) (*Scheduler, error) {
	if len(cfg.Areas) == 0 {
		return nil, errors.New("scheduler: at least one area is required")
	}
	if cfg.SwitchInterval <= 0 || cfg.PollInterval <= 0 {
		return nil, errors.New("scheduler: intervals must be positive")
	}
	if deps.Source == nil || deps.Routes == nil || deps.Renderer == nil || deps.Sink == nil {
		return nil, errors.New("scheduler: source, routes, renderer and sink are required")
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepContext
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		cfg:        cfg,
		deps:       deps,
		lastSwitch: deps.Now(),
		areaStats:  make(map[string]*AreaStats),
		logger:     logger,
	}, nil
}

// CurrentArea returns the area the next Step will scan.
func (s *Scheduler) CurrentArea() config.Area {
	return s.cfg.Areas[s.index]
}

// Run repeats Step and sleeps the poll interval until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("Scheduler started",
		"areas", len(s.cfg.Areas),
		"switch_interval", s.cfg.SwitchInterval,
		"poll_interval", s.cfg.PollInterval)

	for {
		s.safeStep(ctx)

		if err := s.deps.Sleep(ctx, s.cfg.PollInterval); err != nil {
			s.logger.Info("Scheduler stopped", "reason", err)
			return err
		}
	}
}

// safeStep keeps the loop alive if a collaborator panics.
func (s *Scheduler) safeStep(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("PANIC in step, will retry next cycle", "panic", fmt.Sprint(r))
		}
	}()
	s.Step(ctx)
}

// Step runs one iteration: timed rotation, fetch, enrich, then render the
// first enriched aircraft or skip forward to the next area.
func (s *Scheduler) Step(ctx context.Context) Cycle {
	now := s.deps.Now()
	if now.Sub(s.lastSwitch) >= s.cfg.SwitchInterval {
		s.advance(now)
		s.logger.Info("Switching area", "area", s.CurrentArea().Name)
	}

	area := s.CurrentArea()
	stats := s.statsFor(area.Name)
	stats.TotalUpdates++
	stats.LastUpdate = now

	raw := s.deps.Source.Fetch(ctx, area.Latitude, area.Longitude, area.RadiusKm)
	kept := s.enrich(ctx, raw)
	stats.Fetched = len(raw)
	stats.Kept = len(kept)

	cycle := Cycle{
		At:        now,
		Area:      area.Name,
		AreaIndex: s.index,
		Fetched:   len(raw),
		Kept:      len(kept),
	}

	if len(kept) == 0 {
		s.logger.Info("No valid aircraft, skipping", "area", area.Name, "fetched", len(raw))
		stats.Skips++
		cycle.Skipped = true
		s.advance(now)
	} else {
		cycle.Frame, cycle.Image = s.show(ctx, area, kept)
		if cycle.Image != nil {
			stats.Shown++
		}
	}

	cycle.Stats = *stats
	for _, r := range s.deps.Reporters {
		r.Report(cycle)
	}
	return cycle
}

// enrich keeps, in upstream order, the aircraft whose route resolved.
func (s *Scheduler) enrich(ctx context.Context, raw []adsb.Aircraft) []panel.Enriched {
	var kept []panel.Enriched
	for _, ac := range raw {
		route := s.deps.Routes.Resolve(ctx, ac.Callsign())
		if !route.Resolved() {
			continue
		}
		kept = append(kept, panel.Enriched{Aircraft: ac, Route: route})
	}
	return kept
}

func (s *Scheduler) show(ctx context.Context, area config.Area, kept []panel.Enriched) (*panel.Frame, image.Image) {
	frame := panel.NewFrame(kept[0], area.Name, s.cfg.Home)

	img, err := s.deps.Renderer.Render(ctx, kept, area.Name, s.cfg.Home)
	if err != nil {
		s.logger.Error("Render failed", "area", area.Name, "error", err)
		return &frame, nil
	}
	if err := s.deps.Sink.Show(img); err != nil {
		s.logger.Error("Display update failed", "area", area.Name, "error", err)
	}

	if s.deps.Journal != nil {
		if err := s.deps.Journal.Record(ctx, db.SightingFromFrame(frame, s.deps.Now())); err != nil {
			s.logger.Error("Journal write failed", "callsign", frame.Callsign, "error", err)
		}
	}
	return &frame, img
}

// advance moves to the next area and restarts the rotation timer.
func (s *Scheduler) advance(now time.Time) {
	s.index = (s.index + 1) % len(s.cfg.Areas)
	s.lastSwitch = now
}

func (s *Scheduler) statsFor(name string) *AreaStats {
	st, ok := s.areaStats[name]
	if !ok {
		st = &AreaStats{}
		s.areaStats[name] = st
	}
	return st
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
