package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/peterbourgon/ff/v3/ffcli"

	flog "github.com/unklstewy/flightboard/internal/log"
	"github.com/unklstewy/flightboard/pkg/adsb"
	"github.com/unklstewy/flightboard/pkg/config"
	"github.com/unklstewy/flightboard/pkg/coordinates"
	"github.com/unklstewy/flightboard/pkg/routes"
)

// newProbeCommand queries one area and prints every aircraft with its
// enrichment result, without touching the display.
func newProbeCommand(opts *options) *ffcli.Command {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	area := fs.String("area", "", "area name (default: first configured area)")
	return &ffcli.Command{
		Name:       "probe",
		ShortUsage: "flightboard [-config path] probe [-area name]",
		ShortHelp:  "fetch and enrich one area and print the results",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			cfg, err := loadConfig(*opts)
			if err != nil {
				return err
			}
			return probe(ctx, cfg, *area, os.Stdout)
		},
	}
}

func findArea(cfg *config.Config, name string) (config.Area, error) {
	if name == "" {
		return cfg.Areas[0], nil
	}
	for _, a := range cfg.Areas {
		if strings.EqualFold(a.Name, name) {
			return a, nil
		}
	}
	return config.Area{}, fmt.Errorf("unknown area %q", name)
}

func probe(ctx context.Context, cfg *config.Config, areaName string, w io.Writer) error {
	area, err := findArea(cfg, areaName)
	if err != nil {
		return err
	}
	logger, closer := flog.New(flog.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer closer.Close()

	client := adsb.NewClient(adsb.ClientConfig{
		BaseURL:           cfg.Position.BaseURL,
		Timeout:           seconds(cfg.Position.TimeoutSeconds),
		RequestsPerSecond: cfg.Position.RequestsPerSecond,
	})
	enricher := routes.NewEnricher(routes.NewClient(routes.Config{
		BaseURL:           cfg.Routes.BaseURL,
		Timeout:           seconds(cfg.Routes.TimeoutSeconds),
		RequestsPerSecond: cfg.Routes.RequestsPerSecond,
	}), logger)

	aircraft, err := client.GetAircraft(ctx, area.Latitude, area.Longitude, area.RadiusKm)
	if err != nil {
		return fmt.Errorf("failed to fetch aircraft: %w", err)
	}

	r := lipgloss.NewRenderer(w)
	header := r.NewStyle().Bold(true).Foreground(lipgloss.Color("51"))
	kept := r.NewStyle().Foreground(lipgloss.Color("46"))
	dropped := r.NewStyle().Foreground(lipgloss.Color("244"))

	fmt.Fprintln(w, header.Render(fmt.Sprintf("%s Area: %d aircraft within %.0f km", area.Name, len(aircraft), area.RadiusKm)))

	home := cfg.Home.Geographic()
	shown := false
	for i, ac := range aircraft {
		route := enricher.Resolve(ctx, ac.Callsign())

		where := "no position"
		if pos, ok := ac.Position(); ok {
			km := coordinates.DistanceKm(home, pos)
			where = fmt.Sprintf("%.1f mi %s", km*coordinates.KmToMiles,
				coordinates.CardinalDirection(coordinates.InitialBearing(home, pos)))
		}

		callsign := ac.Callsign()
		if callsign == "" {
			callsign = routes.Unknown
		}
		line := fmt.Sprintf("%2d. %-8s %-24s %6d ft %4.0f mph  %s",
			i+1, callsign, route.Airline, ac.AltitudeFt(),
			float64(ac.GroundSpeedKnots())*coordinates.KnotsToMph, where)

		switch {
		case route.Resolved() && !shown:
			fmt.Fprintln(w, kept.Render(line+"  <- would be shown"))
			shown = true
		case route.Resolved():
			fmt.Fprintln(w, kept.Render(line))
		default:
			fmt.Fprintln(w, dropped.Render(line))
		}
	}

	if !shown {
		fmt.Fprintln(w, dropped.Render("no enrichable traffic, the board would skip this area"))
	}
	return nil
}
