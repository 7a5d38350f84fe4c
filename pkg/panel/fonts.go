package panel

import (
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"

	"github.com/unklstewy/flightboard/pkg/config"
)

// Fonts are the three faces used by the panel layout.
type Fonts struct {
	Large  font.Face
	Medium font.Face
	Small  font.Face
}

// LoadFonts opens the configured TrueType files. If any of them cannot be
// loaded the whole set falls back to the built-in Go fonts at the same
// sizes, and failing that to a fixed bitmap face.
func LoadFonts(cfg config.FontConfig, logger *slog.Logger) Fonts {
	if logger == nil {
		logger = slog.Default()
	}

	fonts, err := loadFontSet(cfg)
	if err == nil {
		return fonts
	}
	logger.Warn("Default fonts loaded due to font error", "error", err)

	return BuiltinFonts(cfg.LargeSize, cfg.MediumSize, cfg.SmallSize)
}

// BuiltinFonts returns Go Bold / Go Regular faces at the given sizes.
func BuiltinFonts(large, medium, small float64) Fonts {
	bold, err := opentype.Parse(gobold.TTF)
	if err != nil {
		return BasicFonts()
	}
	regular, err := opentype.Parse(goregular.TTF)
	if err != nil {
		return BasicFonts()
	}

	l, errL := newFace(bold, large)
	m, errM := newFace(regular, medium)
	s, errS := newFace(regular, small)
	if errL != nil || errM != nil || errS != nil {
		return BasicFonts()
	}
	return Fonts{Large: l, Medium: m, Small: s}
}

// BasicFonts uses the 7x13 bitmap face for every line.
func BasicFonts() Fonts {
	return Fonts{Large: basicfont.Face7x13, Medium: basicfont.Face7x13, Small: basicfont.Face7x13}
}

func loadFontSet(cfg config.FontConfig) (Fonts, error) {
	large, err := loadFace(cfg.LargePath, cfg.LargeSize)
	if err != nil {
		return Fonts{}, err
	}
	medium, err := loadFace(cfg.MediumPath, cfg.MediumSize)
	if err != nil {
		return Fonts{}, err
	}
	small, err := loadFace(cfg.SmallPath, cfg.SmallSize)
	if err != nil {
		return Fonts{}, err
	}
	return Fonts{Large: large, Medium: medium, Small: small}, nil
}

func loadFace(path string, size float64) (font.Face, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read font %s: %w", path, err)
	}
	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font %s: %w", path, err)
	}
	face, err := newFace(f, size)
	if err != nil {
		return nil, fmt.Errorf("failed to create face for %s: %w", path, err)
	}
	return face, nil
}

// newFace renders at 72 DPI so that size is in pixels.
func newFace(f *opentype.Font, size float64) (font.Face, error) {
	return opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})
}
