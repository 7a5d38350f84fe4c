package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/unklstewy/flightboard/pkg/config"
)

func TestLoadConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	opts := options{
		configPath: filepath.Join(dir, "missing.yaml"),
		logLevel:   "debug",
		driver:     "png",
		output:     filepath.Join(dir, "frame.png"),
		statusAddr: "127.0.0.1:8099",
	}

	cfg, err := loadConfig(opts)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Expected debug level, got %s", cfg.Log.Level)
	}
	if cfg.Display.Driver != "png" || cfg.Display.OutputPath != opts.output {
		t.Errorf("Expected png driver to %s, got %+v", opts.output, cfg.Display)
	}
	if cfg.Status.Addr != "127.0.0.1:8099" {
		t.Errorf("Expected status addr override, got %s", cfg.Status.Addr)
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte(`{"areas": []}`), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	_, err := loadConfig(options{configPath: path})
	if err == nil {
		t.Fatal("Expected validation error for empty area list")
	}
	if !strings.Contains(err.Error(), "invalid configuration") {
		t.Errorf("Expected invalid configuration error, got %v", err)
	}
}

func TestInitConfigCommand(t *testing.T) {
	path := filepath.Join(t.TempDir(), "configs", "flightboard.yaml")
	cmd := newCommand()

	if err := cmd.ParseAndRun(context.Background(), []string{"-config", path, "init-config"}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("Expected config file, got %v", err)
	}

	cmd = newCommand()
	err := cmd.ParseAndRun(context.Background(), []string{"-config", path, "init-config"})
	if err == nil || !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected already exists error, got %v", err)
	}
}

func TestProbe(t *testing.T) {
	positions := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"ac":[
			{"hex":"a1","flight":"SWA12   ","alt_baro":8000,"gs":250,"lat":31.5,"lon":-97.0},
			{"hex":"a2","flight":"N123AB  ","alt_baro":3500,"gs":110},
			{"hex":"a3","flight":"SWA99","alt_baro":9000,"gs":260,"lat":30.5,"lon":-97.0}
		]}`))
	}))
	defer positions.Close()

	routeServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/callsign/SWA") {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte(`{"response":{"flightroute":{"airline":{"name":"Southwest Airlines"},
			"origin":{"name":"Dallas Love Field"},"destination":{"name":"William P. Hobby Airport"}}}}`))
	}))
	defer routeServer.Close()

	cfg := config.DefaultConfig()
	cfg.Position.BaseURL = positions.URL
	cfg.Routes.BaseURL = routeServer.URL
	cfg.Routes.RequestsPerSecond = 0
	cfg.Log.Level = "error"

	var out bytes.Buffer
	if err := probe(context.Background(), cfg, "houston", &out); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("Expected header and 3 aircraft lines, got %d: %q", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "Houston Area: 3 aircraft") {
		t.Errorf("Expected Houston header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], "SWA12") || !strings.Contains(lines[1], "would be shown") {
		t.Errorf("Expected first Southwest flight to be shown, got %q", lines[1])
	}
	if !strings.Contains(lines[1], " N") {
		t.Errorf("Expected aircraft north of home, got %q", lines[1])
	}
	if !strings.Contains(lines[2], "N/A") || !strings.Contains(lines[2], "no position") {
		t.Errorf("Expected unresolved line without position, got %q", lines[2])
	}
	if strings.Contains(lines[3], "would be shown") {
		t.Errorf("Expected only the first resolved aircraft marked, got %q", lines[3])
	}

	if err := probe(context.Background(), cfg, "Denver", &out); err == nil {
		t.Error("Expected error for unknown area")
	}
}
