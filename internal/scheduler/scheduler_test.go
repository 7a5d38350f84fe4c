package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unklstewy/flightboard/internal/db"
	"github.com/unklstewy/flightboard/pkg/adsb"
	"github.com/unklstewy/flightboard/pkg/config"
	"github.com/unklstewy/flightboard/pkg/coordinates"
	"github.com/unklstewy/flightboard/pkg/panel"
	"github.com/unklstewy/flightboard/pkg/routes"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

var testAreas = []config.Area{
	{Name: "Austin", Latitude: 30.3, Longitude: -97.7, RadiusKm: 50},
	{Name: "Dallas/Fort Worth", Latitude: 32.9, Longitude: -97.0, RadiusKm: 50},
	{Name: "Houston", Latitude: 29.9, Longitude: -95.3, RadiusKm: 50},
}

// fakeClock is advanced by tests.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeSource struct {
	aircraft []adsb.Aircraft
	areas    []float64 // latitudes queried
}

func (f *fakeSource) Fetch(ctx context.Context, lat, lon, radiusKm float64) []adsb.Aircraft {
	f.areas = append(f.areas, lat)
	return f.aircraft
}

type fakeResolver map[string]routes.Route

func (f fakeResolver) Resolve(ctx context.Context, callsign string) routes.Route {
	if r, ok := f[callsign]; ok {
		return r
	}
	return routes.UnknownRoute
}

type fakeRenderer struct {
	calls [][]panel.Enriched
	err   error
	panic bool
}

func (f *fakeRenderer) Render(ctx context.Context, aircraft []panel.Enriched, area string, home coordinates.Geographic) (image.Image, error) {
	if f.panic {
		panic("renderer exploded")
	}
	f.calls = append(f.calls, aircraft)
	if f.err != nil {
		return nil, f.err
	}
	return image.NewRGBA(image.Rect(0, 0, 600, 448)), nil
}

type fakeSink struct {
	shown []image.Image
}

func (f *fakeSink) Show(img image.Image) error {
	f.shown = append(f.shown, img)
	return nil
}

type fakeJournal struct {
	sightings []db.Sighting
}

func (f *fakeJournal) Record(ctx context.Context, s db.Sighting) error {
	f.sightings = append(f.sightings, s)
	return nil
}

type recordingReporter struct {
	cycles []Cycle
}

func (r *recordingReporter) Report(c Cycle) { r.cycles = append(r.cycles, c) }

func delta() routes.Route {
	return routes.Route{Airline: "Delta Air Lines", Origin: "Austin", Destination: "Atlanta"}
}

func newTestScheduler(t *testing.T, clock *fakeClock, src *fakeSource, deps Dependencies) *Scheduler {
	t.Helper()
	deps.Source = src
	if deps.Routes == nil {
		deps.Routes = fakeResolver{"DAL1": delta()}
	}
	if deps.Renderer == nil {
		deps.Renderer = &fakeRenderer{}
	}
	if deps.Sink == nil {
		deps.Sink = &fakeSink{}
	}
	deps.Logger = quietLogger()
	deps.Now = clock.Now

	s, err := New(Config{
		Areas:          testAreas,
		Home:           coordinates.Geographic{Latitude: 31, Longitude: -97},
		SwitchInterval: 300 * time.Second,
		PollInterval:   10 * time.Second,
	}, deps)
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}
	return s
}

func TestNew(t *testing.T) {
	deps := Dependencies{Source: &fakeSource{}, Routes: fakeResolver{}, Renderer: &fakeRenderer{}, Sink: &fakeSink{}}

	if _, err := New(Config{SwitchInterval: time.Second, PollInterval: time.Second}, deps); err == nil {
		t.Error("Expected error for empty area list")
	}
	if _, err := New(Config{Areas: testAreas, PollInterval: time.Second}, deps); err == nil {
		t.Error("Expected error for zero switch interval")
	}
	if _, err := New(Config{Areas: testAreas, SwitchInterval: time.Second, PollInterval: time.Second}, Dependencies{}); err == nil {
		t.Error("Expected error for missing dependencies")
	}
}

func TestTimedRotation(t *testing.T) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	src := &fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("DAL1")}}}
	s := newTestScheduler(t, clock, src, Dependencies{})

	steps := []struct {
		advance  time.Duration
		expected string
	}{
		{0, "Austin"},
		{299 * time.Second, "Austin"},
		{1 * time.Second, "Dallas/Fort Worth"}, // 300s elapsed
		{10 * time.Second, "Dallas/Fort Worth"},
		{289 * time.Second, "Dallas/Fort Worth"}, // 299s since switch
		{1 * time.Second, "Houston"},
		{300 * time.Second, "Austin"}, // wraps
	}

	for i, step := range steps {
		clock.Advance(step.advance)
		c := s.Step(context.Background())
		if c.Area != step.expected {
			t.Errorf("Step %d: Expected area %s, got %s", i, step.expected, c.Area)
		}
		if c.Skipped {
			t.Errorf("Step %d: Expected a rendered cycle", i)
		}
	}
}

func TestRotationAdvancesOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	src := &fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("DAL1")}}}
	s := newTestScheduler(t, clock, src, Dependencies{})

	// a large gap still advances a single area
	clock.Advance(1000 * time.Second)
	if c := s.Step(context.Background()); c.AreaIndex != 1 {
		t.Errorf("Expected index 1 after one overdue switch, got %d", c.AreaIndex)
	}
}

func TestSkipForward(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	src := &fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("XYZ999")}, {Flight: strPtr("")}}}
	renderer := &fakeRenderer{}
	sink := &fakeSink{}
	s := newTestScheduler(t, clock, src, Dependencies{Renderer: renderer, Sink: sink})

	expected := []string{"Austin", "Dallas/Fort Worth", "Houston", "Austin"}
	for i, name := range expected {
		c := s.Step(context.Background())
		if c.Area != name {
			t.Errorf("Step %d: Expected area %s, got %s", i, name, c.Area)
		}
		if !c.Skipped {
			t.Errorf("Step %d: Expected skip", i)
		}
		if c.Fetched != 2 || c.Kept != 0 {
			t.Errorf("Step %d: Expected 2 fetched 0 kept, got %d/%d", i, c.Fetched, c.Kept)
		}
	}

	if len(renderer.calls) != 0 || len(sink.shown) != 0 {
		t.Error("Expected nothing rendered when no aircraft resolve")
	}

	// the skip reset the timer, so 299s later there is no timed switch
	src.aircraft = []adsb.Aircraft{{Flight: strPtr("DAL1")}}
	clock.Advance(299 * time.Second)
	if c := s.Step(context.Background()); c.Area != "Dallas/Fort Worth" {
		t.Errorf("Expected Dallas/Fort Worth after skip, got %s", c.Area)
	}
}

// slowSource moves the clock forward while fetching, like a slow upstream.
type slowSource struct {
	fakeSource
	clock *fakeClock
	delay time.Duration
}

func (f *slowSource) Fetch(ctx context.Context, lat, lon, radiusKm float64) []adsb.Aircraft {
	f.clock.Advance(f.delay)
	return f.fakeSource.Fetch(ctx, lat, lon, radiusKm)
}

func TestSkipForwardUsesCycleStart(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	src := &slowSource{
		fakeSource: fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("XYZ999")}}},
		clock:      clock,
		delay:      60 * time.Second,
	}

	s, err := New(Config{
		Areas:          testAreas,
		Home:           coordinates.Geographic{Latitude: 31, Longitude: -97},
		SwitchInterval: 300 * time.Second,
		PollInterval:   10 * time.Second,
	}, Dependencies{
		Source:   src,
		Routes:   fakeResolver{"DAL1": delta()},
		Renderer: &fakeRenderer{},
		Sink:     &fakeSink{},
		Logger:   quietLogger(),
		Now:      clock.Now,
	})
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	start := clock.Now()
	if c := s.Step(context.Background()); !c.Skipped || c.Area != "Austin" {
		t.Fatalf("Expected Austin to be skipped, got %+v", c)
	}
	if !s.lastSwitch.Equal(start) {
		t.Errorf("Expected timer reset to cycle start %v, got %v", start, s.lastSwitch)
	}

	// 300s after the skipped cycle started, the timed switch is due even
	// though the fetch itself took 60s.
	src.aircraft = []adsb.Aircraft{{Flight: strPtr("DAL1")}}
	src.delay = 0
	clock.t = start.Add(300 * time.Second)
	if c := s.Step(context.Background()); c.Area != "Houston" {
		t.Errorf("Expected timed switch to Houston, got %s", c.Area)
	}
}

func TestStepKeepsUpstreamOrder(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	src := &fakeSource{aircraft: []adsb.Aircraft{
		{Hex: "1", Flight: strPtr("NOPE1")},
		{Hex: "2", Flight: strPtr("AAL7 ")},
		{Hex: "3", Flight: strPtr("DAL1")},
	}}
	resolver := fakeResolver{
		"DAL1": delta(),
		"AAL7": {Airline: "American Airlines", Origin: "Dallas", Destination: "Austin"},
	}
	renderer := &fakeRenderer{}
	journal := &fakeJournal{}
	reporter := &recordingReporter{}
	s := newTestScheduler(t, clock, src, Dependencies{
		Routes:    resolver,
		Renderer:  renderer,
		Journal:   journal,
		Reporters: []Reporter{reporter},
	})

	c := s.Step(context.Background())
	if c.Kept != 2 {
		t.Fatalf("Expected 2 kept, got %d", c.Kept)
	}
	got := renderer.calls[0]
	if got[0].Aircraft.Hex != "2" || got[1].Aircraft.Hex != "3" {
		t.Errorf("Expected upstream order 2,3, got %s,%s", got[0].Aircraft.Hex, got[1].Aircraft.Hex)
	}
	if c.Frame == nil || c.Frame.Callsign != "AAL7" {
		t.Errorf("Expected frame for AAL7, got %+v", c.Frame)
	}
	if len(journal.sightings) != 1 || journal.sightings[0].Airline != "American Airlines" {
		t.Errorf("Expected one journal entry for American, got %+v", journal.sightings)
	}
	if len(reporter.cycles) != 1 || reporter.cycles[0].Stats.Shown != 1 {
		t.Errorf("Expected one reported cycle with Shown=1, got %+v", reporter.cycles)
	}
}

func TestRenderFailureNotShown(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	src := &fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("DAL1")}}}
	sink := &fakeSink{}
	s := newTestScheduler(t, clock, src, Dependencies{
		Renderer: &fakeRenderer{err: errors.New("no fonts")},
		Sink:     sink,
	})

	c := s.Step(context.Background())
	if c.Skipped {
		t.Error("Expected render failure not to count as a skip")
	}
	if len(sink.shown) != 0 {
		t.Error("Expected nothing shown on render failure")
	}
	if c.Area != "Austin" {
		t.Errorf("Expected to stay on Austin, got %s", c.Area)
	}
}

func TestRun(t *testing.T) {
	t.Run("stops on cancel", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(0, 0)}
		src := &fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("DAL1")}}}

		ctx, cancel := context.WithCancel(context.Background())
		var sleeps []time.Duration
		sleep := func(ctx context.Context, d time.Duration) error {
			sleeps = append(sleeps, d)
			clock.Advance(d)
			if len(sleeps) == 3 {
				cancel()
				return ctx.Err()
			}
			return nil
		}

		s := newTestScheduler(t, clock, src, Dependencies{Sleep: sleep})
		err := s.Run(ctx)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if len(src.areas) != 3 {
			t.Errorf("Expected 3 fetches, got %d", len(src.areas))
		}
		for _, d := range sleeps {
			if d != 10*time.Second {
				t.Errorf("Expected 10s poll sleep, got %v", d)
			}
		}
	})

	t.Run("survives panicking renderer", func(t *testing.T) {
		clock := &fakeClock{t: time.Unix(0, 0)}
		src := &fakeSource{aircraft: []adsb.Aircraft{{Flight: strPtr("DAL1")}}}

		ctx, cancel := context.WithCancel(context.Background())
		calls := 0
		sleep := func(ctx context.Context, d time.Duration) error {
			calls++
			if calls == 2 {
				cancel()
				return ctx.Err()
			}
			return nil
		}

		s := newTestScheduler(t, clock, src, Dependencies{Renderer: &fakeRenderer{panic: true}, Sleep: sleep})
		if err := s.Run(ctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
		if len(src.areas) != 2 {
			t.Errorf("Expected loop to continue after panic, got %d fetches", len(src.areas))
		}
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Expected nil after short sleep, got %v", err)
	}
}

// TestEndToEnd wires the real position source, route enricher and panel
// renderer against local HTTP servers.
func TestEndToEnd(t *testing.T) {
	positions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/point/") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"ac": []map[string]interface{}{
				{"hex": "a1", "flight": "FFT100  ", "alt_baro": 24000, "gs": 420.0, "lat": 30.4, "lon": -97.6},
				{"hex": "a2", "flight": "", "alt_baro": "ground", "gs": 5.0},
			},
			"msg":   "No error",
			"total": 2,
		})
	}))
	defer positions.Close()

	var routeCalls atomic.Int32
	routeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		routeCalls.Add(1)
		if r.URL.Path != "/callsign/FFT100" {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"response":"unknown callsign"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"response":{"flightroute":{
			"airline":{"name":"Frontier Airlines"},
			"origin":{"name":"Denver International Airport"},
			"destination":{"name":"Austin-Bergstrom International Airport"}}}}`))
	}))
	defer routeServer.Close()

	var logoCalls atomic.Int32
	logoServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logoCalls.Add(1)
		http.NotFound(w, r)
	}))
	defer logoServer.Close()

	logger := quietLogger()
	source := adsb.NewSource(adsb.NewClient(adsb.ClientConfig{BaseURL: positions.URL, Timeout: 2 * time.Second}), logger)
	enricher := routes.NewEnricher(routes.NewClient(routes.Config{BaseURL: routeServer.URL, Timeout: 2 * time.Second}), logger)
	// Frontier has no logo domain, so the logo step fails without a request
	logos := panel.NewLogoFetcher(config.LogoConfig{URLTemplate: logoServer.URL + "/{domain}", Width: 200, Height: 60},
		map[string]string{"Delta Air Lines": "delta.com"}, logger)
	renderer := panel.NewRenderer(600, 448, panel.BasicFonts(), logos, logger)
	sink := &fakeSink{}

	s, err := New(Config{
		Areas:          testAreas,
		Home:           coordinates.Geographic{Latitude: 31, Longitude: -97},
		SwitchInterval: 300 * time.Second,
		PollInterval:   10 * time.Second,
	}, Dependencies{
		Source:   source,
		Routes:   enricher,
		Renderer: renderer,
		Sink:     sink,
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("Failed to create scheduler: %v", err)
	}

	c := s.Step(context.Background())
	if c.Fetched != 2 {
		t.Errorf("Expected 2 raw records, got %d", c.Fetched)
	}
	if c.Kept != 1 {
		t.Fatalf("Expected 1 kept record, got %d", c.Kept)
	}
	if c.Frame.Callsign != "FFT100" || c.Frame.Airline != "Frontier Airlines" {
		t.Errorf("Expected FFT100 / Frontier Airlines, got %s / %s", c.Frame.Callsign, c.Frame.Airline)
	}
	if len(sink.shown) != 1 {
		t.Fatalf("Expected 1 frame shown, got %d", len(sink.shown))
	}
	if b := sink.shown[0].Bounds(); b.Dx() != 600 || b.Dy() != 448 {
		t.Errorf("Expected 600x448 frame, got %v", b)
	}
	if routeCalls.Load() != 1 {
		t.Errorf("Expected 1 route lookup (empty callsign skipped), got %d", routeCalls.Load())
	}
	if logoCalls.Load() != 0 {
		t.Errorf("Expected no logo request for unmapped airline, got %d", logoCalls.Load())
	}

	// second cycle is served from the route cache
	s.Step(context.Background())
	if routeCalls.Load() != 1 {
		t.Errorf("Expected cached route on second cycle, got %d lookups", routeCalls.Load())
	}
	if enricher.Len() != 2 {
		t.Errorf("Expected 2 cached callsigns, got %d", enricher.Len())
	}
}
