// Command flightboard shows the nearest airline flight around a rotating
// set of areas on an e-paper panel.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"
	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/flightboard/internal/db"
	flog "github.com/unklstewy/flightboard/internal/log"
	"github.com/unklstewy/flightboard/internal/scheduler"
	"github.com/unklstewy/flightboard/internal/status"
	"github.com/unklstewy/flightboard/pkg/adsb"
	"github.com/unklstewy/flightboard/pkg/config"
	"github.com/unklstewy/flightboard/pkg/display"
	"github.com/unklstewy/flightboard/pkg/panel"
	"github.com/unklstewy/flightboard/pkg/routes"
)

// Build flags
var version = ""

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cmd := newCommand()
	if err := cmd.ParseAndRun(ctx, os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		log.Fatal(err)
	}
}

// options are the command line overrides; empty values keep the config file.
type options struct {
	configPath string
	logLevel   string
	logFile    string
	driver     string
	output     string
	statusAddr string
	once       bool
	console    bool
}

func newCommand() *ffcli.Command {
	fs := flag.NewFlagSet("flightboard", flag.ExitOnError)
	var opts options
	fs.StringVar(&opts.configPath, "config", "configs/flightboard.yaml", "path to configuration file (.json, .yaml)")
	fs.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	fs.StringVar(&opts.logFile, "log-file", "", "rotating JSON log file")
	fs.StringVar(&opts.driver, "display", "", "display driver: inky or png")
	fs.StringVar(&opts.output, "output", "", "output file for the png driver")
	fs.StringVar(&opts.statusAddr, "status-addr", "", "diagnostic HTTP listen address")
	fs.BoolVar(&opts.once, "once", false, "run a single cycle and exit")
	fs.BoolVar(&opts.console, "console", true, "print a status line per cycle")

	return &ffcli.Command{
		ShortUsage: "flightboard [flags] [<subcommand>]",
		FlagSet:    fs,
		Options:    []ff.Option{ff.WithEnvVarPrefix("FLIGHTBOARD")},
		Exec: func(ctx context.Context, args []string) error {
			return run(ctx, opts)
		},
		Subcommands: []*ffcli.Command{
			newInitConfigCommand(&opts),
			newProbeCommand(&opts),
			newVersionCommand(),
		},
	}
}

func newInitConfigCommand(opts *options) *ffcli.Command {
	fs := flag.NewFlagSet("init-config", flag.ExitOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	return &ffcli.Command{
		Name:       "init-config",
		ShortUsage: "flightboard [-config path] init-config [-force]",
		ShortHelp:  "write the default configuration to -config",
		FlagSet:    fs,
		Exec: func(ctx context.Context, args []string) error {
			if _, err := os.Stat(opts.configPath); err == nil && !*force {
				return fmt.Errorf("%s already exists (use -force)", opts.configPath)
			}
			if err := config.DefaultConfig().Save(opts.configPath); err != nil {
				return err
			}
			fmt.Printf("wrote %s\n", opts.configPath)
			return nil
		},
	}
}

func newVersionCommand() *ffcli.Command {
	return &ffcli.Command{
		Name:       "version",
		ShortUsage: "flightboard version",
		ShortHelp:  "print version",
		Exec: func(ctx context.Context, args []string) error {
			v := version
			if v == "" {
				if bi, ok := debug.ReadBuildInfo(); ok {
					v = bi.Main.Version
				}
			}
			if v == "" {
				v = "dev"
			}
			fmt.Println(v)
			return nil
		},
	}
}

// loadConfig reads the file and applies command line overrides.
func loadConfig(opts options) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.logLevel != "" {
		cfg.Log.Level = opts.logLevel
	}
	if opts.logFile != "" {
		cfg.Log.File = opts.logFile
	}
	if opts.driver != "" {
		cfg.Display.Driver = opts.driver
	}
	if opts.output != "" {
		cfg.Display.OutputPath = opts.output
	}
	if opts.statusAddr != "" {
		cfg.Status.Addr = opts.statusAddr
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func run(ctx context.Context, opts options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, closer := flog.New(flog.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	defer closer.Close()
	slog.SetDefault(logger)

	logger.Info("Configuration loaded",
		"path", opts.configPath,
		"areas", len(cfg.Areas),
		"home_lat", cfg.Home.Latitude,
		"home_lon", cfg.Home.Longitude,
		"display", cfg.Display.Driver)

	sink, err := display.Open(cfg.Display, logger)
	if err != nil {
		return fmt.Errorf("failed to open display: %w", err)
	}
	defer sink.Close()
	width, height := sink.Size()

	source := adsb.NewSource(adsb.NewClient(adsb.ClientConfig{
		BaseURL:           cfg.Position.BaseURL,
		Timeout:           seconds(cfg.Position.TimeoutSeconds),
		RequestsPerSecond: cfg.Position.RequestsPerSecond,
	}), logger)

	enricher := routes.NewEnricher(routes.NewClient(routes.Config{
		BaseURL:           cfg.Routes.BaseURL,
		Timeout:           seconds(cfg.Routes.TimeoutSeconds),
		RequestsPerSecond: cfg.Routes.RequestsPerSecond,
	}), logger)

	fonts := panel.LoadFonts(cfg.Fonts, logger)
	logos := panel.NewLogoFetcher(cfg.Logos, cfg.AirlineDomains, logger)
	renderer := panel.NewRenderer(width, height, fonts, logos, logger)

	deps := scheduler.Dependencies{
		Source:   source,
		Routes:   enricher,
		Renderer: renderer,
		Sink:     sink,
		Logger:   logger,
	}
	statusOpts := status.Options{CacheSize: enricher.Len, Logger: logger}

	if cfg.Database.Enabled {
		database, err := openJournal(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer database.Close()

		repo := db.NewSightingRepository(database)
		deps.Journal = repo
		statusOpts.Health = database
		statusOpts.Sightings = repo
	}

	if opts.console {
		deps.Reporters = append(deps.Reporters, status.NewConsoleReporter(os.Stdout))
	}

	var statusServer *status.Server
	if cfg.Status.Addr != "" {
		statusServer = status.NewServer(statusOpts)
		deps.Reporters = append(deps.Reporters, statusServer)
	}

	sched, err := scheduler.New(scheduler.Config{
		Areas:          cfg.Areas,
		Home:           cfg.Home.Geographic(),
		SwitchInterval: cfg.Schedule.SwitchInterval(),
		PollInterval:   cfg.Schedule.PollInterval(),
	}, deps)
	if err != nil {
		return err
	}

	if opts.once {
		sched.Step(ctx)
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return sched.Run(gctx)
	})
	if statusServer != nil {
		g.Go(func() error {
			return statusServer.ListenAndServe(gctx, cfg.Status.Addr)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		logger.Info("Shutting down gracefully")
		return nil
	}
	return err
}

// openJournal connects, applies the schema and prunes old rows.
func openJournal(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*db.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := database.InitSchema(ctx); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if cfg.RetentionDays > 0 {
		pruned, err := database.CleanupOldData(ctx, time.Duration(cfg.RetentionDays)*24*time.Hour)
		if err != nil {
			logger.Warn("Journal cleanup failed", "error", err)
		} else if pruned > 0 {
			logger.Info("Pruned old sightings", "rows", pruned)
		}
	}

	if stats, err := database.GetStats(ctx); err == nil {
		logger.Info("Sightings journal ready", "sightings", stats["sightings"], "distinct_callsigns", stats["distinct_callsigns"])
	}
	return database, nil
}
