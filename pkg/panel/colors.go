package panel

import (
	"image/color"
	"math"
)

const (
	// altitudeCeilingFt is where the altitude line fades to black.
	altitudeCeilingFt = 40000.0
	// distanceHorizonKm is where the distance line fades to black.
	distanceHorizonKm = 100.0
	// speedCeilingKnots is where the speed line reaches full green.
	speedCeilingKnots = 600.0
)

// AltitudeColor shades the altitude line: pure red on the ground, black
// at or above 40,000 ft.
func AltitudeColor(altitudeFt float64) color.RGBA {
	return color.RGBA{R: channel(255, 1-clamp01(altitudeFt/altitudeCeilingFt)), A: 0xff}
}

// DistanceColor shades the distance line: red when overhead, black at
// 100 km and beyond.
func DistanceColor(distanceKm float64) color.RGBA {
	return color.RGBA{R: channel(255, 1-clamp01(distanceKm/distanceHorizonKm)), A: 0xff}
}

// SpeedColor shades the speed line from black (stationary) to green 200
// at 600 knots.
func SpeedColor(knots float64) color.RGBA {
	return color.RGBA{G: channel(200, clamp01(knots/speedCeilingKnots)), A: 0xff}
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// channel scales and truncates toward zero.
func channel(full, frac float64) uint8 {
	return uint8(full * frac)
}
