package status

import (
	"fmt"
	"image/color"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightboard/internal/scheduler"
	"github.com/unklstewy/flightboard/pkg/panel"
)

// ConsoleReporter prints one line per cycle, shading the altitude, speed
// and distance cells the same way the panel does.
type ConsoleReporter struct {
	mu sync.Mutex
	w  io.Writer

	area  lipgloss.Style
	muted lipgloss.Style
	cell  lipgloss.Style
}

// NewConsoleReporter writes to w, detecting colour support from it.
func NewConsoleReporter(w io.Writer) *ConsoleReporter {
	r := lipgloss.NewRenderer(w)
	return &ConsoleReporter{
		w:     w,
		area:  r.NewStyle().Bold(true).Foreground(lipgloss.Color("51")),
		muted: r.NewStyle().Foreground(lipgloss.Color("244")).Italic(true),
		cell:  r.NewStyle().Foreground(lipgloss.Color("255")).Padding(0, 1),
	}
}

// Report implements scheduler.Reporter.
func (c *ConsoleReporter) Report(cycle scheduler.Cycle) {
	line := c.Format(cycle)

	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.w, line)
}

// Format renders a cycle as a single line.
func (c *ConsoleReporter) Format(cycle scheduler.Cycle) string {
	ts := cycle.At.Format("15:04:05")
	area := c.area.Render(cycle.Area)

	if cycle.Skipped || cycle.Frame == nil {
		return fmt.Sprintf("[%s] %s %s", ts, area,
			c.muted.Render(fmt.Sprintf("no enrichable traffic (%d fetched), skipping", cycle.Fetched)))
	}

	f := cycle.Frame
	if cycle.Image == nil {
		return fmt.Sprintf("[%s] %s %s", ts, area,
			c.muted.Render(fmt.Sprintf("render failed for %s, nothing shown", f.Callsign)))
	}

	cells := []string{
		fmt.Sprintf("%s %s", f.Callsign, f.Airline),
		c.shaded(panel.AltitudeColor(float64(f.AltitudeFt))).Render(fmt.Sprintf("%d ft", f.AltitudeFt)),
		c.shaded(panel.SpeedColor(float64(f.SpeedKnots))).Render(fmt.Sprintf("%.0f mph", f.SpeedMph)),
		c.shaded(panel.DistanceColor(f.DistanceKm)).Render(fmt.Sprintf("%.1f mi", f.DistanceMiles)),
		c.muted.Render(fmt.Sprintf("%s -> %s", f.Origin, f.Destination)),
	}
	return fmt.Sprintf("[%s] %s %s", ts, area, strings.Join(cells, " "))
}

func (c *ConsoleReporter) shaded(rgb color.RGBA) lipgloss.Style {
	return c.cell.Background(lipgloss.Color(hexColor(rgb)))
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
