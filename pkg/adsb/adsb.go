// Package adsb fetches live aircraft positions from an ADS-B aggregator
// exposing the readsb v2 "point" API (api.adsb.lol, api.airplanes.live).
package adsb

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/unklstewy/flightboard/pkg/coordinates"
)

// MaxAircraft is the number of aircraft kept from a single position query.
// Upstream order is preserved when truncating.
const MaxAircraft = 20

// Aircraft is a single aircraft record as returned by the aggregator.
// Every field except Hex may be absent from the payload, so optional values
// are pointers and the barometric altitude is kept in its raw JSON form.
// Field documentation: https://airplanes.live/adsb-field-explanations/
type Aircraft struct {
	// Hex is the ICAO Mode S hex code (e.g., "a12345")
	Hex string `json:"hex"`

	// Flight is the callsign/flight number, usually right-padded with spaces
	Flight *string `json:"flight"`

	// Registration of the airframe (e.g., "N12345")
	Registration string `json:"r,omitempty"`

	// Type is the ICAO type designator (e.g., "B738")
	Type string `json:"t,omitempty"`

	// AltBaro is barometric altitude in feet
	// Note: Can be string "ground" or float
	AltBaro interface{} `json:"alt_baro"`

	// GroundSpeed in knots
	GroundSpeed *float64 `json:"gs"`

	// Track is ground track in degrees (0-360)
	Track *float64 `json:"track,omitempty"`

	// Lat is latitude in decimal degrees
	Lat *float64 `json:"lat"`

	// Lon is longitude in decimal degrees
	Lon *float64 `json:"lon"`

	// Squawk is the Mode A code as 4 octal digits
	Squawk string `json:"squawk,omitempty"`
}

// Callsign returns the trimmed flight identifier, or "" when none was broadcast.
func (a Aircraft) Callsign() string {
	if a.Flight == nil {
		return ""
	}
	return strings.TrimSpace(*a.Flight)
}

// AltitudeFt returns the barometric altitude in whole feet (0 when unusable).
func (a Aircraft) AltitudeFt() int {
	return ParseAltitude(a.AltBaro)
}

// GroundSpeedKnots returns the ground speed truncated to whole knots (0 when absent).
func (a Aircraft) GroundSpeedKnots() int {
	if a.GroundSpeed == nil || math.IsNaN(*a.GroundSpeed) || math.IsInf(*a.GroundSpeed, 0) {
		return 0
	}
	return int(*a.GroundSpeed)
}

// Position returns the aircraft position. ok is false when either coordinate
// is missing or exactly zero, which the aggregator uses for "no fix".
func (a Aircraft) Position() (pos coordinates.Geographic, ok bool) {
	if a.Lat == nil || a.Lon == nil || *a.Lat == 0 || *a.Lon == 0 {
		return coordinates.Geographic{}, false
	}
	return coordinates.Geographic{Latitude: *a.Lat, Longitude: *a.Lon}, true
}

// ParseAltitude converts a raw altitude value to integer feet.
// Numbers are truncated toward zero; numeric strings are parsed;
// anything else ("ground", nil, garbage) yields 0.
func ParseAltitude(val interface{}) int {
	switch v := val.(type) {
	case nil:
		return 0
	case float64:
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0
		}
		return int(v)
	case float32:
		return ParseAltitude(float64(v))
	case int:
		return v
	case int64:
		return int(v)
	case json.Number:
		if n, err := strconv.Atoi(v.String()); err == nil {
			return n
		}
		return 0
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// DataSource is the interface that all ADS-B data providers must implement.
type DataSource interface {
	// GetAircraft returns aircraft within radiusKm of the given center,
	// at most MaxAircraft of them, in upstream order.
	GetAircraft(ctx context.Context, centerLat, centerLon, radiusKm float64) ([]Aircraft, error)
}
