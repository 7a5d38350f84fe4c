package panel

import (
	"github.com/unklstewy/flightboard/pkg/adsb"
	"github.com/unklstewy/flightboard/pkg/coordinates"
	"github.com/unklstewy/flightboard/pkg/routes"
)

// Enriched is a position record whose callsign resolved to a known airline.
type Enriched struct {
	Aircraft adsb.Aircraft
	Route    routes.Route
}

// Frame holds everything printed on one panel refresh. All derived
// values are computed once in NewFrame.
type Frame struct {
	Area        string `json:"area"`
	Callsign    string `json:"callsign"`
	Airline     string `json:"airline"`
	Origin      string `json:"origin"`
	Destination string `json:"destination"`

	AltitudeFt    int     `json:"altitude_ft"`
	SpeedKnots    int     `json:"speed_knots"`
	SpeedMph      float64 `json:"speed_mph"`
	DistanceKm    float64 `json:"distance_km"`
	DistanceMiles float64 `json:"distance_mi"`
}

// NewFrame derives the printed fields for e. Distance is measured from
// home and is zero when the aircraft has no usable position.
func NewFrame(e Enriched, area string, home coordinates.Geographic) Frame {
	f := Frame{
		Area:        area,
		Callsign:    e.Aircraft.Callsign(),
		Airline:     orUnknown(e.Route.Airline),
		Origin:      orUnknown(e.Route.Origin),
		Destination: orUnknown(e.Route.Destination),
		AltitudeFt:  e.Aircraft.AltitudeFt(),
		SpeedKnots:  e.Aircraft.GroundSpeedKnots(),
	}
	if f.Callsign == "" {
		f.Callsign = routes.Unknown
	}

	if pos, ok := e.Aircraft.Position(); ok {
		f.DistanceKm = coordinates.DistanceKm(home, pos)
	}
	f.DistanceMiles = f.DistanceKm * coordinates.KmToMiles
	f.SpeedMph = float64(f.SpeedKnots) * coordinates.KnotsToMph

	return f
}

func orUnknown(s string) string {
	if s == "" {
		return routes.Unknown
	}
	return s
}
