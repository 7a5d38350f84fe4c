package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/unklstewy/flightboard/pkg/coordinates"
)

// Config represents the complete application configuration.
// It is read once at startup from a JSON or YAML file and never reloaded.
type Config struct {
	Home           HomeConfig        `json:"home" yaml:"home"`
	Areas          []Area            `json:"areas" yaml:"areas"`
	AirlineDomains map[string]string `json:"airline_domains" yaml:"airline_domains"`
	Position       PositionConfig    `json:"position" yaml:"position"`
	Routes         RoutesConfig      `json:"routes" yaml:"routes"`
	Logos          LogoConfig        `json:"logos" yaml:"logos"`
	Display        DisplayConfig     `json:"display" yaml:"display"`
	Fonts          FontConfig        `json:"fonts" yaml:"fonts"`
	Schedule       ScheduleConfig    `json:"schedule" yaml:"schedule"`
	Log            LogConfig         `json:"log" yaml:"log"`
	Database       DatabaseConfig    `json:"database" yaml:"database"`
	Status         StatusConfig      `json:"status" yaml:"status"`
}

// HomeConfig is the fixed location distances are measured from.
type HomeConfig struct {
	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" yaml:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Geographic returns the home location as a coordinate pair.
func (h HomeConfig) Geographic() coordinates.Geographic {
	return coordinates.Geographic{Latitude: h.Latitude, Longitude: h.Longitude}
}

// Area represents a named geographic circle scanned for traffic.
// Areas are cycled through in configuration order.
type Area struct {
	// Name is shown as the panel title ("<Name> Area")
	Name string `json:"name" yaml:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" yaml:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" yaml:"longitude"`

	// RadiusKm is the search radius in kilometers
	RadiusKm float64 `json:"radius_km" yaml:"radius_km"`
}

// PositionConfig configures the aircraft position API.
type PositionConfig struct {
	// BaseURL is the readsb v2 API base (default: https://api.adsb.lol/v2)
	BaseURL string `json:"base_url" yaml:"base_url"`

	// TimeoutSeconds bounds each request
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// RequestsPerSecond limits the call rate, 0 = unlimited
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// RoutesConfig configures the callsign route lookup API.
type RoutesConfig struct {
	// BaseURL is the adsbdb API base (default: https://api.adsbdb.com/v0)
	BaseURL string `json:"base_url" yaml:"base_url"`

	// TimeoutSeconds bounds each request
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// RequestsPerSecond limits the call rate, 0 = unlimited
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
}

// LogoConfig configures airline logo fetching.
type LogoConfig struct {
	// URLTemplate contains a {domain} placeholder
	URLTemplate string `json:"url_template" yaml:"url_template"`

	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds"`

	// Width and Height of the logo footprint on the panel
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// CacheSize is the number of decoded logos kept in memory, 0 = no caching
	CacheSize int `json:"cache_size" yaml:"cache_size"`
}

// DisplayConfig selects and configures the display sink.
type DisplayConfig struct {
	// Driver is "inky" (e-paper over SPI) or "png" (write frames to a file)
	Driver string `json:"driver" yaml:"driver"`

	// OutputPath is where the png driver writes frames
	OutputPath string `json:"output_path" yaml:"output_path"`

	// Width and Height are the native panel size used by the png driver.
	// The inky driver reads them from the panel EEPROM.
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`

	// SPIPort, DCPin, ResetPin and BusyPin locate the panel on the host
	SPIPort  string `json:"spi_port" yaml:"spi_port"`
	DCPin    string `json:"dc_pin" yaml:"dc_pin"`
	ResetPin string `json:"reset_pin" yaml:"reset_pin"`
	BusyPin  string `json:"busy_pin" yaml:"busy_pin"`
}

// FontConfig lists the TrueType fonts for the three text sizes.
// Any font that fails to load falls back to the built-in set.
type FontConfig struct {
	LargePath  string  `json:"large_path" yaml:"large_path"`
	LargeSize  float64 `json:"large_size" yaml:"large_size"`
	MediumPath string  `json:"medium_path" yaml:"medium_path"`
	MediumSize float64 `json:"medium_size" yaml:"medium_size"`
	SmallPath  string  `json:"small_path" yaml:"small_path"`
	SmallSize  float64 `json:"small_size" yaml:"small_size"`
}

// ScheduleConfig controls area rotation and polling.
type ScheduleConfig struct {
	// SwitchIntervalSeconds is how long each area stays on the panel
	SwitchIntervalSeconds int `json:"switch_interval_seconds" yaml:"switch_interval_seconds"`

	// PollIntervalSeconds is the sleep between cycles
	PollIntervalSeconds int `json:"poll_interval_seconds" yaml:"poll_interval_seconds"`
}

// SwitchInterval returns the rotation interval as a duration.
func (s ScheduleConfig) SwitchInterval() time.Duration {
	return time.Duration(s.SwitchIntervalSeconds) * time.Second
}

// PollInterval returns the sleep between cycles as a duration.
func (s ScheduleConfig) PollInterval() time.Duration {
	return time.Duration(s.PollIntervalSeconds) * time.Second
}

// LogConfig controls logging output.
type LogConfig struct {
	// Level is one of debug, info, warn, error
	Level string `json:"level" yaml:"level"`

	// File, when set, receives JSON logs with rotation
	File string `json:"file" yaml:"file"`
}

// DatabaseConfig contains database connection settings for the sightings journal.
type DatabaseConfig struct {
	// Enabled turns on recording of displayed sightings
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Host is the database server hostname
	Host string `json:"host" yaml:"host"`

	// Port is the database server port
	Port int `json:"port" yaml:"port"`

	// Database is the database name
	Database string `json:"database" yaml:"database"`

	// Username for database authentication
	Username string `json:"username" yaml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" yaml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns"`

	// RetentionDays prunes sightings older than this at startup, 0 = keep all
	RetentionDays int `json:"retention_days" yaml:"retention_days"`
}

// StatusConfig configures the diagnostic HTTP server.
type StatusConfig struct {
	// Addr is the listen address (e.g., "127.0.0.1:8080"), empty = disabled
	Addr string `json:"addr" yaml:"addr"`
}

// Load reads configuration from a JSON or YAML file (chosen by extension).
// If the file doesn't exist, returns a default configuration.
// Sections missing from the file keep their default values.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()
		cfg.applyEnvironmentOverrides()
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Lists and tables from the file replace the defaults instead of merging.
	cfg := DefaultConfig()
	cfg.Areas = nil
	cfg.AirlineDomains = nil

	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	defaults := DefaultConfig()
	if cfg.Areas == nil {
		cfg.Areas = defaults.Areas
	}
	if cfg.AirlineDomains == nil {
		cfg.AirlineDomains = defaults.AirlineDomains
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration to a JSON or YAML file (chosen by extension).
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns the stock configuration: three Texas metro areas,
// five airline logo domains and a 5 minute rotation.
func DefaultConfig() *Config {
	return &Config{
		Home: HomeConfig{
			Latitude:  31.0,
			Longitude: -97.0,
		},
		Areas: []Area{
			{Name: "Austin", Latitude: 30.3, Longitude: -97.7, RadiusKm: 50},
			{Name: "Dallas/Fort Worth", Latitude: 32.9, Longitude: -97.0, RadiusKm: 50},
			{Name: "Houston", Latitude: 29.9, Longitude: -95.3, RadiusKm: 50},
		},
		AirlineDomains: map[string]string{
			"American Airlines":  "aa.com",
			"Delta Air Lines":    "delta.com",
			"United Airlines":    "united.com",
			"Southwest Airlines": "southwest.com",
			"Alaska Airlines":    "alaskaair.com",
		},
		Position: PositionConfig{
			BaseURL:        "https://api.adsb.lol/v2",
			TimeoutSeconds: 10,
		},
		Routes: RoutesConfig{
			BaseURL:           "https://api.adsbdb.com/v0",
			TimeoutSeconds:    10,
			RequestsPerSecond: 5,
		},
		Logos: LogoConfig{
			URLTemplate:    "https://logo.clearbit.com/{domain}",
			TimeoutSeconds: 10,
			Width:          200,
			Height:         60,
			CacheSize:      16,
		},
		Display: DisplayConfig{
			Driver:     "inky",
			OutputPath: "flightboard.png",
			Width:      600, // Inky Impression 5.7"
			Height:     448,
			SPIPort:    "SPI0.0",
			DCPin:      "GPIO22",
			ResetPin:   "GPIO27",
			BusyPin:    "GPIO17",
		},
		Fonts: FontConfig{
			LargePath:  "/usr/share/fonts/truetype/dejavu/DejaVuSans-Bold.ttf",
			LargeSize:  32,
			MediumPath: "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			MediumSize: 22,
			SmallPath:  "/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
			SmallSize:  18,
		},
		Schedule: ScheduleConfig{
			SwitchIntervalSeconds: 300, // 5 minutes
			PollIntervalSeconds:   10,
		},
		Log: LogConfig{
			Level: "info",
		},
		Database: DatabaseConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "flightboard",
			Username:      "flightboard",
			SSLMode:       "disable",
			MaxOpenConns:  2,
			MaxIdleConns:  1,
			RetentionDays: 30,
		},
	}
}

// Validate checks the configuration for values the display loop cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if !c.Home.Geographic().Valid() {
		errs = append(errs, fmt.Errorf("home: coordinates out of range (%.4f, %.4f)",
			c.Home.Latitude, c.Home.Longitude))
	}
	if len(c.Areas) == 0 {
		errs = append(errs, errors.New("areas: at least one area is required"))
	}
	for i, area := range c.Areas {
		if area.Name == "" {
			errs = append(errs, fmt.Errorf("areas[%d]: name is required", i))
		}
		pos := coordinates.Geographic{Latitude: area.Latitude, Longitude: area.Longitude}
		if !pos.Valid() {
			errs = append(errs, fmt.Errorf("areas[%d] %q: coordinates out of range", i, area.Name))
		}
		if area.RadiusKm <= 0 {
			errs = append(errs, fmt.Errorf("areas[%d] %q: radius must be positive", i, area.Name))
		}
	}
	if c.Schedule.SwitchIntervalSeconds <= 0 || c.Schedule.PollIntervalSeconds <= 0 {
		errs = append(errs, errors.New("schedule: intervals must be positive"))
	}
	switch c.Display.Driver {
	case "inky":
	case "png":
		if c.Display.OutputPath == "" || c.Display.Width <= 0 || c.Display.Height <= 0 {
			errs = append(errs, errors.New("display: png driver needs output_path, width and height"))
		}
	default:
		errs = append(errs, fmt.Errorf("display: unknown driver %q", c.Display.Driver))
	}
	if c.Logos.Width <= 0 || c.Logos.Height <= 0 {
		errs = append(errs, errors.New("logos: width and height must be positive"))
	}

	return errors.Join(errs...)
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows sensitive data like passwords to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if dbPassword := os.Getenv("FLIGHTBOARD_DB_PASSWORD"); dbPassword != "" {
		c.Database.Password = dbPassword
	}
	if positionURL := os.Getenv("FLIGHTBOARD_POSITION_URL"); positionURL != "" {
		c.Position.BaseURL = positionURL
	}
	if routesURL := os.Getenv("FLIGHTBOARD_ROUTES_URL"); routesURL != "" {
		c.Routes.BaseURL = routesURL
	}
	if driver := os.Getenv("FLIGHTBOARD_DISPLAY"); driver != "" {
		c.Display.Driver = driver
	}
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
