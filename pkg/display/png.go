package display

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
)

// PNGSink writes each frame to a PNG file, replacing it atomically so a
// reader never sees a partial image.
type PNGSink struct {
	path   string
	width  int
	height int
}

// NewPNGSink creates a sink that pretends to be a width x height panel.
func NewPNGSink(path string, width, height int) *PNGSink {
	return &PNGSink{path: path, width: width, height: height}
}

// Show encodes img next to the target and renames it into place.
func (s *PNGSink) Show(img image.Image) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".frame-*.png")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := png.Encode(tmp, img); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}
	return nil
}

// Size returns the configured panel size.
func (s *PNGSink) Size() (int, int) {
	return s.width, s.height
}

// Path is the output file.
func (s *PNGSink) Path() string {
	return s.path
}

func (s *PNGSink) Close() error { return nil }
