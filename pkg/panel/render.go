// Package panel lays out the chosen aircraft on a bitmap sized for the
// e-paper panel.
package panel

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/f64"
	"golang.org/x/image/math/fixed"

	"github.com/unklstewy/flightboard/pkg/coordinates"
)

const (
	marginLeft = 10
	logoMargin = 10
)

// ErrNoAircraft is returned when Render is called with an empty list.
var ErrNoAircraft = errors.New("no aircraft to render")

// Renderer draws frames for a sink of the given native size. The text is
// laid out portrait on a (height x width) canvas and rotated 90 degrees
// counter-clockwise before being returned.
type Renderer struct {
	width  int
	height int
	fonts  Fonts
	logos  LogoSource
	logger *slog.Logger
}

// NewRenderer creates a renderer for a sink that is sinkWidth x sinkHeight
// pixels. logos may be nil.
func NewRenderer(sinkWidth, sinkHeight int, fonts Fonts, logos LogoSource, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Renderer{
		width:  sinkWidth,
		height: sinkHeight,
		fonts:  fonts,
		logos:  logos,
		logger: logger,
	}
}

// Render draws the first aircraft of the list and returns the rotated
// bitmap ready for the sink.
func (r *Renderer) Render(ctx context.Context, aircraft []Enriched, area string, home coordinates.Geographic) (image.Image, error) {
	if len(aircraft) == 0 {
		return nil, ErrNoAircraft
	}
	r.logger.Info("Rendering display", "area", area)

	frame := NewFrame(aircraft[0], area, home)
	return r.RenderFrame(ctx, frame), nil
}

// RenderFrame draws an already derived frame.
func (r *Renderer) RenderFrame(ctx context.Context, f Frame) image.Image {
	// canvas is portrait: sink height wide, sink width tall
	w, h := r.height, r.width
	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, canvas.Bounds(), image.White, image.Point{}, draw.Src)

	for _, l := range r.layout(f) {
		drawText(canvas, l.text, l.face, l.color, marginLeft, l.y)
	}

	if r.logos != nil {
		if logo := r.logos.Logo(ctx, f.Airline); logo != nil {
			b := logo.Bounds()
			at := image.Pt(w-b.Dx()-logoMargin, h-b.Dy()-logoMargin)
			draw.Draw(canvas, image.Rectangle{Min: at, Max: at.Add(b.Size())}, logo, b.Min, draw.Over)
		}
	}

	return Rotate90(canvas)
}

type textLine struct {
	text  string
	face  font.Face
	color color.Color
	y     int
}

// layout positions the eight text lines top to bottom.
func (r *Renderer) layout(f Frame) []textLine {
	black := color.Black
	lines := []struct {
		text    string
		face    font.Face
		color   color.Color
		advance int
	}{
		{fmt.Sprintf("%s Area", f.Area), r.fonts.Large, black, 0},
		{fmt.Sprintf("Flight: %s", f.Callsign), r.fonts.Medium, black, 40},
		{fmt.Sprintf("Airline: %s", f.Airline), r.fonts.Medium, black, 30},
		{fmt.Sprintf("Altitude: %d ft", f.AltitudeFt), r.fonts.Medium, AltitudeColor(float64(f.AltitudeFt)), 30},
		{fmt.Sprintf("Speed: %.0f mph", f.SpeedMph), r.fonts.Medium, SpeedColor(float64(f.SpeedKnots)), 30},
		{fmt.Sprintf("Distance: %.1f mi", f.DistanceMiles), r.fonts.Medium, DistanceColor(f.DistanceKm), 30},
		{fmt.Sprintf("From: %s", f.Origin), r.fonts.Small, black, 35},
		{fmt.Sprintf("To: %s", f.Destination), r.fonts.Small, black, 25},
	}

	out := make([]textLine, 0, len(lines))
	y := 10
	for _, l := range lines {
		y += l.advance
		out = append(out, textLine{text: l.text, face: l.face, color: l.color, y: y})
	}
	return out
}

// drawText draws s with its top edge at y.
func drawText(dst draw.Image, s string, face font.Face, c color.Color, x, y int) {
	if face == nil {
		return
	}
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, y+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(s)
}

// Rotate90 rotates src 90 degrees counter-clockwise, swapping its width
// and height.
func Rotate90(src image.Image) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dy(), b.Dx()))
	// (x, y) -> (y - minY, maxX - x)
	m := f64.Aff3{
		0, 1, -float64(b.Min.Y),
		-1, 0, float64(b.Max.X),
	}
	draw.NearestNeighbor.Transform(dst, m, src, b, draw.Src, nil)
	return dst
}
