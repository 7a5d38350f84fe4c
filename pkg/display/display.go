// Package display hands finished frames to a physical or file-backed sink.
package display

import (
	"fmt"
	"image"
	"log/slog"

	pdisplay "periph.io/x/conn/v3/display"

	"github.com/unklstewy/flightboard/pkg/config"
)

// Sink accepts a finished frame of its native size.
type Sink interface {
	// Show pushes img to the sink and triggers a refresh.
	Show(img image.Image) error
	// Size reports the native width and height in pixels.
	Size() (width, height int)
	Close() error
}

// DrawerSink adapts any periph display.Drawer to Sink.
type DrawerSink struct {
	dev     pdisplay.Drawer
	closers []func() error
	logger  *slog.Logger
}

// NewDrawerSink wraps dev. Extra closers run after the device halts.
func NewDrawerSink(dev pdisplay.Drawer, logger *slog.Logger, closers ...func() error) *DrawerSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &DrawerSink{dev: dev, closers: closers, logger: logger}
}

// Show draws img over the full panel.
func (s *DrawerSink) Show(img image.Image) error {
	b := s.dev.Bounds()
	if img.Bounds().Dx() != b.Dx() || img.Bounds().Dy() != b.Dy() {
		s.logger.Warn("Frame size does not match panel",
			"frame", img.Bounds().Size().String(), "panel", b.Size().String())
	}
	if err := s.dev.Draw(b, img, img.Bounds().Min); err != nil {
		return fmt.Errorf("failed to draw on %s: %w", s.dev, err)
	}
	return nil
}

// Size reports the panel bounds.
func (s *DrawerSink) Size() (int, int) {
	b := s.dev.Bounds()
	return b.Dx(), b.Dy()
}

// Close halts the device and releases its buses.
func (s *DrawerSink) Close() error {
	err := s.dev.Halt()
	for _, c := range s.closers {
		if cerr := c(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Open selects the sink named by cfg.Driver.
func Open(cfg config.DisplayConfig, logger *slog.Logger) (Sink, error) {
	switch cfg.Driver {
	case "png":
		return NewPNGSink(cfg.OutputPath, cfg.Width, cfg.Height), nil
	case "inky", "":
		return OpenInky(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown display driver %q", cfg.Driver)
	}
}
